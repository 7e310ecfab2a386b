package ast

import (
	"strconv"
	"strings"
)

// Format prints e in directive syntax (without the outer brackets). The
// output parses back to a tree that normalizes identically to e.
func Format(e Expr) string {
	var sb strings.Builder
	writeFormat(&sb, e)
	return sb.String()
}

func writeFormat(sb *strings.Builder, e Expr) {
	switch n := e.(type) {
	case nil:
	case *NumberLiteral:
		sb.WriteString(strconv.FormatFloat(n.Value, 'f', -1, 64))
	case *StringLiteral:
		sb.WriteString(quote(n.Value))
	case *CallExpr:
		sb.WriteString(n.Name)
		writeFormatArgs(sb, n.Args, n.Named)
	case *CurrentNoteRef:
		sb.WriteByte('.')
	case *VariableRef:
		sb.WriteString(n.Name)
	case *PropertyAccess:
		writeTarget(sb, n.Target)
		sb.WriteString(n.Name)
	case *MethodCall:
		writeTarget(sb, n.Target)
		sb.WriteString(n.Name)
		writeFormatArgs(sb, n.Args, n.Named)
	case *Assignment:
		writeFormat(sb, n.Target)
		sb.WriteString(" = ")
		writeFormat(sb, n.Value)
	case *StatementList:
		for i, s := range n.Statements {
			if i > 0 {
				sb.WriteString("; ")
			}
			writeFormat(sb, s)
		}
	case *LambdaExpr:
		if !(len(n.Params) == 1 && n.Params[0] == ImplicitParam) {
			sb.WriteByte('(')
			sb.WriteString(strings.Join(n.Params, ", "))
			sb.WriteByte(')')
		}
		sb.WriteByte('[')
		writeFormat(sb, n.Body)
		sb.WriteByte(']')
	case *LambdaInvocation:
		sb.WriteByte('(')
		writeFormat(sb, n.Lambda)
		sb.WriteByte(')')
		writeFormatArgs(sb, n.Args, nil)
	case *OnceExpr:
		sb.WriteString("once[")
		writeFormat(sb, n.Body)
		sb.WriteByte(']')
	case *RefreshExpr:
		sb.WriteString("refresh")
		if len(n.Triggers) > 0 {
			writeFormatArgs(sb, n.Triggers, nil)
		}
		sb.WriteByte('[')
		writeFormat(sb, n.Body)
		sb.WriteByte(']')
	case *PatternExpr:
		sb.WriteString("pattern(")
		sb.WriteString(FormatPattern(n.Elements))
		sb.WriteByte(')')
	}
}

// writeTarget prints the receiver of a property or method followed by the
// dot. The current note prints as a bare dot; compound receivers are
// parenthesised so the chain binds to the whole expression.
func writeTarget(sb *strings.Builder, target Expr) {
	switch t := target.(type) {
	case *CurrentNoteRef:
		sb.WriteByte('.')
		return
	case *CallExpr, *VariableRef, *PropertyAccess, *MethodCall, *StringLiteral, *PatternExpr:
		writeFormat(sb, t)
	default:
		sb.WriteByte('(')
		writeFormat(sb, t)
		sb.WriteByte(')')
	}
	sb.WriteByte('.')
}

func writeFormatArgs(sb *strings.Builder, args []Expr, named []NamedArg) {
	sb.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeFormat(sb, a)
	}
	for i, na := range named {
		if i > 0 || len(args) > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(na.Name)
		sb.WriteString(": ")
		writeFormat(sb, na.Value)
	}
	sb.WriteByte(')')
}

func quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
