// Package template implements the {{field}} substitution used for note content and note paths.
package template

import (
	"fmt"
	"strings"
)

// ParseError points at the first malformed tag in a template.
type ParseError struct {
	Pos int // byte offset of the opening braces
	Tag string
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("template: position %d: %s: %q", e.Pos, e.Msg, e.Tag)
}

type segment struct {
	text    string
	isField bool
}

// Validate checks tag syntax without rendering anything. Unknown field names are allowed.
func Validate(tmpl string) error {
	if _, err := parse(tmpl, true); err != nil {
		return err
	}
	return nil
}

// parse splits tmpl into literals and field references. With strict unset,
// malformed tags are kept as literal text and no error is returned.
func parse(tmpl string, strict bool) ([]segment, *ParseError) {
	var segs []segment
	pos := 0
	for pos < len(tmpl) {
		i := strings.Index(tmpl[pos:], "{{")
		if i < 0 {
			segs = append(segs, segment{text: tmpl[pos:]})
			break
		}
		start := pos + i
		if i > 0 {
			segs = append(segs, segment{text: tmpl[pos:start]})
		}

		open, closing := "{{", "}}"
		if strings.HasPrefix(tmpl[start:], "{{{") {
			open, closing = "{{{", "}}}"
		}
		j := strings.Index(tmpl[start+len(open):], closing)
		if j < 0 {
			if strict {
				return nil, &ParseError{Pos: start, Tag: tmpl[start:], Msg: "unclosed tag"}
			}
			segs = append(segs, segment{text: tmpl[start:]})
			break
		}
		end := start + len(open) + j + len(closing)
		tag := tmpl[start:end]
		name := strings.TrimSpace(tmpl[start+len(open) : end-len(closing)])

		var msg string
		switch {
		case name == "":
			msg = "empty tag"
		case !validName(name):
			msg = "invalid field name"
		}
		if msg != "" {
			if strict {
				return nil, &ParseError{Pos: start, Tag: tag, Msg: msg}
			}
			segs = append(segs, segment{text: tag})
		} else {
			segs = append(segs, segment{text: name, isField: true})
		}
		pos = end
	}
	return segs, nil
}

func validName(name string) bool {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}

func render(tmpl string, fields map[string]string) string {
	segs, _ := parse(tmpl, false)
	var sb strings.Builder
	for _, s := range segs {
		if s.isField {
			sb.WriteString(fields[s.text])
			continue
		}
		sb.WriteString(s.text)
	}
	return sb.String()
}

// Render substitutes fields into tmpl. Malformed tags are copied through and unknown fields render empty.
func Render(tmpl string, fields map[string]string) string {
	return render(tmpl, fields)
}
