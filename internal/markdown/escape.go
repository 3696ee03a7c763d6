package markdown

import "strings"

// EscapeMode selects how plain text outside of markup is escaped.
type EscapeMode int

const (
	EscapeHTML EscapeMode = iota
	EscapeMarkdown
	EscapeNone
)

var (
	htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

	// Telegram MarkdownV2 reserved characters.
	markdownEscaper = strings.NewReplacer(
		`\`, `\\`,
		"_", `\_`, "*", `\*`, "[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`,
		"~", `\~`, "`", "\\`", ">", `\>`, "#", `\#`, "+", `\+`, "-", `\-`,
		"=", `\=`, "|", `\|`, "{", `\{`, "}", `\}`, ".", `\.`, "!", `\!`,
	)
)

// Escape applies mode to s.
func Escape(s string, mode EscapeMode) string {
	switch mode {
	case EscapeHTML:
		return htmlEscaper.Replace(s)
	case EscapeMarkdown:
		return markdownEscaper.Replace(s)
	default:
		return s
	}
}
