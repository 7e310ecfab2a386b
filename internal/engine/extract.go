package engine

import "strings"

// Located is a directive found in note text.
type Located struct {
	Source string `json:"source"`
	// Start and End are byte offsets of the brackets; End is exclusive.
	Start int `json:"start"`
	End   int `json:"end"`
	Line  int `json:"line"`
}

// Extract returns the top-level directives of text in order. Wiki links
// ([[...]]) and unterminated brackets are skipped, and brackets inside
// quoted strings do not count.
func Extract(text string) []Located {
	var out []Located
	line := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			line++
			continue
		}
		if text[i] != '[' {
			continue
		}
		if strings.HasPrefix(text[i:], "[[") {
			if end := strings.Index(text[i+2:], "]]"); end >= 0 {
				skipped := text[i : i+2+end+2]
				line += strings.Count(skipped, "\n")
				i += len(skipped) - 1
				continue
			}
		}
		end, ok := matchBracket(text, i)
		if !ok {
			continue
		}
		out = append(out, Located{Source: text[i:end], Start: i, End: end, Line: line})
		line += strings.Count(text[i:end], "\n")
		i = end - 1
	}
	return out
}

// matchBracket returns the offset just past the bracket closing the one at
// open.
func matchBracket(text string, open int) (int, bool) {
	depth := 0
	var quote byte
	for i := open; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}
