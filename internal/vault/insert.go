package vault

import (
	"regexp"
	"strings"
)

var frontmatterBlock = regexp.MustCompile(`(?s)^---\n(.*?\n)---(\n|$)`)

// AppendMessage adds msg at the end of data. Trailing newlines of data collapse
// into the single newline separating it from msg.
func AppendMessage(data, msg string) string {
	if strings.TrimSpace(data) == "" {
		return msg
	}
	return strings.TrimRight(data, "\n") + "\n" + msg
}

// PrependAfterFrontmatter puts msg directly below a leading frontmatter block,
// or at the top of the file when there is none.
func PrependAfterFrontmatter(data, msg string) string {
	loc := frontmatterBlock.FindStringIndex(data)
	if loc == nil {
		return msg + "\n" + data
	}
	block := data[:loc[1]]
	if !strings.HasSuffix(block, "\n") {
		block += "\n"
	}
	return block + msg + "\n" + data[loc[1]:]
}

// InsertAfterHeading puts msg on the line after the first line matching heading.
// A missing heading is appended to the file first.
func InsertAfterHeading(data, msg, heading string) string {
	want := strings.TrimSpace(heading)
	lines := strings.Split(data, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != want {
			continue
		}
		out := make([]string, 0, len(lines)+1)
		out = append(out, lines[:i+1]...)
		out = append(out, msg)
		out = append(out, lines[i+1:]...)
		return strings.Join(out, "\n")
	}

	switch {
	case data == "":
	case !strings.HasSuffix(data, "\n"):
		data += "\n\n"
	case !strings.HasSuffix(data, "\n\n"):
		data += "\n"
	}
	return data + heading + "\n" + msg
}
