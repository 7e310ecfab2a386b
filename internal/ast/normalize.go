package ast

import (
	"sort"
	"strconv"
	"strings"

	"github.com/starford/ansuz/internal/checksum"
)

// Normalize returns a canonical, position-independent encoding of e.
// Named arguments are sorted by name so that argument order never changes
// the result.
func Normalize(e Expr) string {
	var sb strings.Builder
	writeNorm(&sb, e)
	return sb.String()
}

// CacheKey is the SHA-256 hex digest of Normalize(e).
func CacheKey(e Expr) string {
	return checksum.SumString(Normalize(e))
}

func writeNorm(sb *strings.Builder, e Expr) {
	switch n := e.(type) {
	case nil:
		sb.WriteString("NIL")
	case *NumberLiteral:
		sb.WriteString("NUM(")
		sb.WriteString(strconv.FormatFloat(n.Value, 'g', -1, 64))
		sb.WriteByte(')')
	case *StringLiteral:
		sb.WriteString("STR(")
		sb.WriteString(strconv.Quote(n.Value))
		sb.WriteByte(')')
	case *CallExpr:
		sb.WriteString("CALL(")
		sb.WriteString(n.Name)
		writeNormArgs(sb, n.Args, n.Named)
		sb.WriteByte(')')
	case *CurrentNoteRef:
		sb.WriteString("SELF")
	case *VariableRef:
		sb.WriteString("VAR(")
		sb.WriteString(n.Name)
		sb.WriteByte(')')
	case *PropertyAccess:
		sb.WriteString("PROP(")
		writeNorm(sb, n.Target)
		sb.WriteByte(',')
		sb.WriteString(n.Name)
		sb.WriteByte(')')
	case *MethodCall:
		sb.WriteString("METHOD(")
		writeNorm(sb, n.Target)
		sb.WriteByte(',')
		sb.WriteString(n.Name)
		writeNormArgs(sb, n.Args, n.Named)
		sb.WriteByte(')')
	case *Assignment:
		sb.WriteString("ASSIGN(")
		writeNorm(sb, n.Target)
		sb.WriteByte(',')
		writeNorm(sb, n.Value)
		sb.WriteByte(')')
	case *StatementList:
		sb.WriteString("STMTS(")
		for i, s := range n.Statements {
			if i > 0 {
				sb.WriteByte(';')
			}
			writeNorm(sb, s)
		}
		sb.WriteByte(')')
	case *LambdaExpr:
		sb.WriteString("LAMBDA(")
		sb.WriteString(strings.Join(n.Params, ","))
		sb.WriteByte('|')
		writeNorm(sb, n.Body)
		sb.WriteByte(')')
	case *LambdaInvocation:
		sb.WriteString("INVOKE(")
		writeNorm(sb, n.Lambda)
		writeNormArgs(sb, n.Args, nil)
		sb.WriteByte(')')
	case *OnceExpr:
		sb.WriteString("ONCE(")
		writeNorm(sb, n.Body)
		sb.WriteByte(')')
	case *RefreshExpr:
		sb.WriteString("REFRESH(")
		for i, t := range n.Triggers {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeNorm(sb, t)
		}
		sb.WriteByte('|')
		writeNorm(sb, n.Body)
		sb.WriteByte(')')
	case *PatternExpr:
		sb.WriteString("PATTERN(")
		for i, el := range n.Elements {
			if i > 0 {
				sb.WriteByte(',')
			}
			if el.IsLiteral() {
				sb.WriteString(strconv.Quote(el.Literal))
			} else {
				sb.WriteString(strings.Join(el.Classes, "|"))
			}
			sb.WriteByte('{')
			sb.WriteString(strconv.Itoa(el.Min))
			sb.WriteByte(',')
			sb.WriteString(strconv.Itoa(el.Max))
			sb.WriteByte('}')
		}
		sb.WriteByte(')')
	}
}

func writeNormArgs(sb *strings.Builder, args []Expr, named []NamedArg) {
	for _, a := range args {
		sb.WriteByte(',')
		writeNorm(sb, a)
	}
	if len(named) == 0 {
		return
	}
	sorted := append([]NamedArg(nil), named...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for _, na := range sorted {
		sb.WriteByte(',')
		sb.WriteString(na.Name)
		sb.WriteByte('=')
		writeNorm(sb, na.Value)
	}
}
