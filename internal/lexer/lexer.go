package lexer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/starford/ansuz/internal/apperr"
)

// Error is a lexing failure at a byte offset.
type Error struct {
	Message string
	Offset  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("lex error at %d: %s", e.Offset, e.Message)
}

// ErrorKind classifies lexing failures as syntax errors.
func (e *Error) ErrorKind() apperr.Kind { return apperr.KindSyntax }

// ErrorOffset returns the offset of the failure.
func (e *Error) ErrorOffset() int { return e.Offset }

var single = map[rune]Kind{
	'[': LBRACKET,
	']': RBRACKET,
	'(': LPAREN,
	')': RPAREN,
	',': COMMA,
	':': COLON,
	';': SEMI,
	'*': STAR,
	'|': PIPE,
	'=': ASSIGN,
}

// Tokenize lexes text into tokens ending with EOF.
func Tokenize(text string) ([]Token, error) {
	l := &lexer{src: text}
	return l.run()
}

type lexer struct {
	src   string
	pos   int
	toks  []Token
	space bool
}

func (l *lexer) run() ([]Token, error) {
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			l.emit(EOF, "", nil, l.pos)
			return l.toks, nil
		}

		start := l.pos
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])

		switch {
		case r == '"' || r == '\'':
			s, err := l.scanString(r)
			if err != nil {
				return nil, err
			}
			l.emit(STRING, l.src[start:l.pos], s, start)

		case isDigit(r):
			lit := l.scanNumber()
			n, err := strconv.ParseFloat(lit, 64)
			if err != nil {
				return nil, &Error{Message: fmt.Sprintf("invalid number %q", lit), Offset: start}
			}
			l.emit(NUMBER, lit, n, start)

		case r == '.':
			if strings.HasPrefix(l.src[l.pos:], "..") {
				l.pos += 2
				l.emit(DOTDOT, "..", nil, start)
			} else {
				l.pos++
				l.emit(DOT, ".", nil, start)
			}

		case isIdentStart(r):
			l.pos += size
			for l.pos < len(l.src) {
				r, size = utf8.DecodeRuneInString(l.src[l.pos:])
				if !isIdentPart(r) {
					break
				}
				l.pos += size
			}
			l.emit(IDENT, l.src[start:l.pos], nil, start)

		default:
			k, ok := single[r]
			if !ok {
				return nil, &Error{Message: fmt.Sprintf("unexpected character %q", r), Offset: start}
			}
			l.pos += size
			l.emit(k, string(r), nil, start)
		}
	}
}

func (l *lexer) emit(k Kind, lexeme string, lit any, offset int) {
	l.toks = append(l.toks, Token{Kind: k, Lexeme: lexeme, Literal: lit, Offset: offset, SpaceBefore: l.space})
	l.space = false
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		l.space = true
		l.pos += size
	}
}

// scanNumber consumes digits with an optional fraction. A '.' followed by
// another '.' is a range operator and ends the number.
func (l *lexer) scanNumber() string {
	start := l.pos
	for l.pos < len(l.src) && isDigit(rune(l.src[l.pos])) {
		l.pos++
	}
	if l.pos+1 < len(l.src) && l.src[l.pos] == '.' && isDigit(rune(l.src[l.pos+1])) {
		l.pos++
		for l.pos < len(l.src) && isDigit(rune(l.src[l.pos])) {
			l.pos++
		}
	}
	return l.src[start:l.pos]
}

func (l *lexer) scanString(quote rune) (string, error) {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		l.pos += size
		switch r {
		case quote:
			return sb.String(), nil
		case '\\':
			if l.pos >= len(l.src) {
				return "", &Error{Message: "unterminated string", Offset: start}
			}
			esc, size := utf8.DecodeRuneInString(l.src[l.pos:])
			l.pos += size
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '\\', '"', '\'':
				sb.WriteRune(esc)
			default:
				return "", &Error{Message: fmt.Sprintf("unknown escape \\%c", esc), Offset: l.pos - size - 1}
			}
		default:
			sb.WriteRune(r)
		}
	}
	return "", &Error{Message: "unterminated string", Offset: start}
}

func isDigit(r rune) bool      { return r >= '0' && r <= '9' }
func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }
func isIdentPart(r rune) bool  { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }
