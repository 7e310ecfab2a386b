package ast

import (
	"regexp"
	"strconv"
	"strings"
)

// PatternClasses maps class names to regexp character-class fragments.
var PatternClasses = map[string]string{
	"digit":  `0-9`,
	"letter": `\p{L}`,
	"space":  `\s`,
	"punct":  `[:punct:]`,
}

// ClassAny matches any single character.
const ClassAny = "any"

// IsPatternClass reports whether name is a known character class.
func IsPatternClass(name string) bool {
	_, ok := PatternClasses[name]
	return ok || name == ClassAny
}

// Regexp returns the anchored regular expression source matching exactly
// the strings described by the pattern.
func (p *PatternExpr) Regexp() string {
	var sb strings.Builder
	sb.WriteString(`(?s)^`)
	for _, el := range p.Elements {
		sb.WriteString(elementRegexp(el))
	}
	sb.WriteByte('$')
	return sb.String()
}

func elementRegexp(el PatternElement) string {
	var unit string
	if el.IsLiteral() {
		unit = regexp.QuoteMeta(el.Literal)
		if len([]rune(el.Literal)) != 1 && !(el.Min == 1 && el.Max == 1) {
			unit = "(?:" + unit + ")"
		}
	} else {
		unit = classRegexp(el.Classes)
	}
	return unit + quantifierRegexp(el.Min, el.Max)
}

func classRegexp(classes []string) string {
	var parts []string
	for _, c := range classes {
		if c == ClassAny {
			return "."
		}
		parts = append(parts, PatternClasses[c])
	}
	return "[" + strings.Join(parts, "") + "]"
}

func quantifierRegexp(min, max int) string {
	switch {
	case min == 1 && max == 1:
		return ""
	case min == 0 && max == Unbounded:
		return "*"
	case min == 1 && max == Unbounded:
		return "+"
	case max == Unbounded:
		return "{" + strconv.Itoa(min) + ",}"
	case min == max:
		return "{" + strconv.Itoa(min) + "}"
	default:
		return "{" + strconv.Itoa(min) + "," + strconv.Itoa(max) + "}"
	}
}

// FormatPattern prints the pattern body in directive syntax.
func FormatPattern(elements []PatternElement) string {
	parts := make([]string, len(elements))
	for i, el := range elements {
		var sb strings.Builder
		if el.IsLiteral() {
			sb.WriteString(quote(el.Literal))
		} else {
			sb.WriteString(strings.Join(el.Classes, "|"))
		}
		switch {
		case el.Min == 1 && el.Max == 1:
		case el.Min == 0 && el.Max == Unbounded:
			sb.WriteString("*any")
		case el.Min == el.Max:
			sb.WriteString("*" + strconv.Itoa(el.Min))
		case el.Max == Unbounded:
			sb.WriteString("*(" + strconv.Itoa(el.Min) + "..any)")
		default:
			sb.WriteString("*(" + strconv.Itoa(el.Min) + ".." + strconv.Itoa(el.Max) + ")")
		}
		parts[i] = sb.String()
	}
	return strings.Join(parts, " ")
}
