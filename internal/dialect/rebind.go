package dialect

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"dialectkit/internal/exec"
)

// Rebind implements exec.Binder. Engines with positional markers get every
// named marker outside a quoted literal replaced in text order, each
// occurrence binding its own argument. Other engines bind by name.
func (p *Provider) Rebind(text string, params []*exec.Param) (string, []any) {
	if p.d.Positional == nil {
		return exec.NamedBinder{}.Rebind(text, params)
	}
	byName := make(map[string]*exec.Param, len(params))
	for _, prm := range params {
		byName[prm.Name] = prm
	}

	var sb strings.Builder
	var args []any
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := closingQuote(text, i)
			sb.WriteString(text[i:end])
			i = end
		case strings.HasPrefix(text[i:], p.paramString) && !isMarkerTail(text[:i]):
			start := i + len(p.paramString)
			end := start
			for end < len(text) {
				r, n := utf8.DecodeRuneInString(text[end:])
				if !isIdentRune(r) {
					break
				}
				end += n
			}
			first, _ := utf8.DecodeRuneInString(text[start:])
			prm, ok := byName[text[i:end]]
			if !ok || end == start || unicode.IsDigit(first) {
				sb.WriteString(text[i:end])
				i = end
				continue
			}
			args = append(args, prm.Value)
			sb.WriteString(p.d.Positional(len(args)))
			i = end
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), args
}

// closingQuote returns the index after the literal opened at text[start].
// Doubled quotes stay inside the literal.
func closingQuote(text string, start int) int {
	q := text[start]
	for i := start + 1; i < len(text); i++ {
		if text[i] != q {
			continue
		}
		if i+1 < len(text) && text[i+1] == q {
			i++
			continue
		}
		return i + 1
	}
	return len(text)
}

// isIdentRune matches the characters SanitizeFieldName keeps.
func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// isMarkerTail reports whether a marker following before is part of a longer
// token, such as @@IDENTITY or a::text.
func isMarkerTail(before string) bool {
	if before == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(before)
	return isIdentRune(r) || r == '@' || r == ':'
}
