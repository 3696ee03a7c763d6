// Package markdown turns Telegram text plus formatting entities into Obsidian markdown.
package markdown

import (
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"tginbox/internal/domain"
)

// node is a span clamped to the text, with the spans nested inside it.
type node struct {
	span       domain.Span
	start, end int // UTF-16 units
	children   []*node
}

// Serialize renders text with spans applied. Spans that fall outside the text are
// clamped; spans that partially overlap an earlier span are dropped.
func Serialize(text string, spans []domain.Span, mode EscapeMode) string {
	if len(spans) == 0 {
		return Escape(text, mode)
	}
	units := utf16.Encode([]rune(text))
	roots, _ := buildTree(spans, len(units))
	return render(units, 0, len(units), roots, mode)
}

// FromMessage serializes the message body. With stripFormatting the raw text
// (or caption) is returned untouched.
func FromMessage(msg domain.InboundMessage, mode EscapeMode, stripFormatting bool) string {
	if stripFormatting {
		return msg.Body()
	}
	return Serialize(msg.Body(), msg.Entities, mode)
}

// Malformed reports how many spans Serialize would clamp or drop for text.
func Malformed(text string, spans []domain.Span) int {
	n := len(utf16.Encode([]rune(text)))
	_, bad := buildTree(spans, n)
	return bad
}

func buildTree(spans []domain.Span, n int) ([]*node, int) {
	nodes := make([]*node, 0, len(spans))
	bad := 0
	for _, s := range spans {
		start, end := clamp(s.Offset, s.Length, n)
		if start != s.Offset || end-start != s.Length {
			bad++
		}
		if end <= start {
			continue
		}
		nodes = append(nodes, &node{span: s, start: start, end: end})
	}
	// Outer spans first: by start, then longest.
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].start != nodes[j].start {
			return nodes[i].start < nodes[j].start
		}
		return nodes[i].end > nodes[j].end
	})

	var roots []*node
	var stack []*node
	for _, nd := range nodes {
		for len(stack) > 0 && stack[len(stack)-1].end <= nd.start {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, nd)
			stack = append(stack, nd)
			continue
		}
		parent := stack[len(stack)-1]
		if nd.end > parent.end {
			bad++
			continue
		}
		parent.children = append(parent.children, nd)
		stack = append(stack, nd)
	}
	return roots, bad
}

func clamp(offset, length, n int) (int, int) {
	start := min(max(offset, 0), n)
	if length < 0 {
		length = 0
	}
	end := n
	if offset <= n-length {
		end = offset + length
	}
	return start, min(max(end, start), n)
}

func render(units []uint16, start, end int, children []*node, mode EscapeMode) string {
	var sb strings.Builder
	cursor := start
	for _, c := range children {
		sb.WriteString(Escape(decode(units[cursor:c.start]), mode))
		inner := render(units, c.start, c.end, c.children, mode)
		sb.WriteString(wrap(c.span, inner))
		cursor = c.end
	}
	sb.WriteString(Escape(decode(units[cursor:end]), mode))
	return sb.String()
}

func decode(units []uint16) string {
	return string(utf16.Decode(units))
}

func wrap(s domain.Span, x string) string {
	switch s.Kind {
	case domain.SpanBold:
		return "**" + x + "**"
	case domain.SpanItalic:
		return "*" + x + "*"
	case domain.SpanUnderline:
		return "<u>" + x + "</u>"
	case domain.SpanStrikethrough:
		return "~~" + x + "~~"
	case domain.SpanCode:
		return "`" + x + "`"
	case domain.SpanPre:
		return "```" + s.Language + "\n" + x + "\n```"
	case domain.SpanSpoiler:
		return "==" + x + "=="
	case domain.SpanTextLink:
		return "[" + x + "](" + s.URL + ")"
	case domain.SpanTextMention:
		return "[" + x + "](tg://user?id=" + strconv.FormatInt(s.UserID, 10) + ")"
	case domain.SpanBlockquote:
		lines := strings.Split(x, "\n")
		for i, l := range lines {
			lines[i] = ">" + l
		}
		return strings.Join(lines, "\n")
	case domain.SpanURL, domain.SpanMention, domain.SpanCustomEmoji, domain.SpanHashtag,
		domain.SpanCashtag, domain.SpanBotCommand, domain.SpanPhoneNumber, domain.SpanEmail:
		return x
	default:
		return x
	}
}
