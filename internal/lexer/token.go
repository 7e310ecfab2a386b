// Package lexer turns directive source text into tokens.
package lexer

import "fmt"

// Kind is a token type.
type Kind int

const (
	EOF Kind = iota
	IDENT
	NUMBER
	STRING

	LBRACKET // [
	RBRACKET // ]
	LPAREN   // (
	RPAREN   // )
	COMMA    // ,
	COLON    // :
	SEMI     // ;
	DOT      // .
	DOTDOT   // ..
	STAR     // *
	PIPE     // |
	ASSIGN   // =
)

var kindNames = [...]string{
	EOF:      "EOF",
	IDENT:    "IDENT",
	NUMBER:   "NUMBER",
	STRING:   "STRING",
	LBRACKET: "[",
	RBRACKET: "]",
	LPAREN:   "(",
	RPAREN:   ")",
	COMMA:    ",",
	COLON:    ":",
	SEMI:     ";",
	DOT:      ".",
	DOTDOT:   "..",
	STAR:     "*",
	PIPE:     "|",
	ASSIGN:   "=",
}

// String returns the string representation of a token kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "UNKNOWN"
}

// Token is a lexed token. Literal holds the decoded value of NUMBER
// (float64) and STRING (string) tokens. SpaceBefore records whether
// whitespace separated this token from the previous one.
type Token struct {
	Kind        Kind
	Lexeme      string
	Literal     any
	Offset      int
	SpaceBefore bool
}

func (t Token) String() string {
	switch t.Kind {
	case IDENT, NUMBER, STRING:
		return fmt.Sprintf("%s(%s)", t.Kind, t.Lexeme)
	}
	return t.Kind.String()
}
