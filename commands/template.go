package commands

import (
	"strings"
)

// Expand substitutes a command template's placeholders with the user's
// arguments:
//
//   - $1..$9 take the corresponding whitespace-separated argument
//   - $ARGUMENTS takes the whole raw argument string
//   - $$ escapes to a literal $
//   - unconsumed positional placeholders are removed
//
// A template that defines no placeholders at all gets the raw arguments
// appended after the template text instead.
func Expand(template, rawArgs string) string {
	if !hasPlaceholders(template) {
		if strings.TrimSpace(rawArgs) == "" {
			return template
		}
		return template + " " + rawArgs
	}

	positional := strings.Fields(rawArgs)

	var b strings.Builder
	b.Grow(len(template) + len(rawArgs))

	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '$' || i+1 >= len(template) {
			b.WriteByte(c)
			continue
		}

		next := template[i+1]
		switch {
		case next == '$':
			b.WriteByte('$')
			i++
		case next >= '1' && next <= '9':
			idx := int(next - '1')
			if idx < len(positional) {
				b.WriteString(positional[idx])
			}
			i++
		case strings.HasPrefix(template[i:], "$ARGUMENTS"):
			b.WriteString(rawArgs)
			i += len("$ARGUMENTS") - 1
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

// hasPlaceholders reports whether the template contains any substitutable
// placeholder ($1..$9 or $ARGUMENTS). An escaped $$ does not count.
func hasPlaceholders(template string) bool {
	for i := 0; i < len(template); i++ {
		if template[i] != '$' || i+1 >= len(template) {
			continue
		}
		next := template[i+1]
		if next == '$' {
			i++
			continue
		}
		if next >= '1' && next <= '9' {
			return true
		}
		if strings.HasPrefix(template[i:], "$ARGUMENTS") {
			return true
		}
	}
	return false
}
