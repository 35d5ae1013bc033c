package ninja

import "strings"

// Escape prepares a path token for a build line. Replacements run from the
// most specific pattern to the least: every "$" first, which also covers an
// already escaped space, then plain spaces, then colons. A literal "$" never
// reaches the file unescaped, so ninja cannot read it as a variable.
func Escape(word string) string {
	word = strings.ReplaceAll(word, "$", "$$")
	word = strings.ReplaceAll(word, " ", "$ ")
	return strings.ReplaceAll(word, ":", "$:")
}

// Unescape interprets the escape sequences the scheduler understands
// ("$$", "$ " and "$:"). Escape never emits any other "$" sequence; a stray
// one is kept as is.
func Unescape(token string) string {
	var b strings.Builder
	b.Grow(len(token))
	for i := 0; i < len(token); i++ {
		c := token[i]
		if c == '$' && i+1 < len(token) {
			switch next := token[i+1]; next {
			case '$', ' ', ':':
				b.WriteByte(next)
				i++
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

func escapeAll(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = Escape(p)
	}
	return out
}
