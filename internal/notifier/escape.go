package notifier

import "strings"

const escapeChars = "_*[]()~`>#+-=|{}.!"

// EscapeMarkdownV2 escapes Telegram MarkdownV2 special characters while
// passing fenced ``` code spans through verbatim, so preformatted report
// blocks survive escaping.
func EscapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)

	i := 0
	for i < len(text) {
		if strings.HasPrefix(text[i:], "```") {
			b.WriteString("```")
			i += 3

			end := strings.Index(text[i:], "```")
			if end == -1 {
				b.WriteString(text[i:])
				break
			}
			b.WriteString(text[i : i+end])
			b.WriteString("```")
			i += end + 3
			continue
		}

		c := text[i]
		if strings.IndexByte(escapeChars, c) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
		i++
	}

	return b.String()
}
