package vault

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var repeatedSlashes = regexp.MustCompile(`[\\/]+`)

// NormalizePath turns a user supplied note path into the canonical vault form:
// forward slashes, no leading or trailing slash, no doubled slashes, regular
// spaces instead of non-breaking ones, NFC normalized. An empty result means the vault root.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\u00a0", " ")
	p = strings.ReplaceAll(p, "\u202f", " ")
	p = repeatedSlashes.ReplaceAllString(p, "/")
	p = strings.Trim(p, "/")
	return norm.NFC.String(p)
}

// EnsureMarkdownExt appends ".md" unless the path already ends with it.
func EnsureMarkdownExt(p string) string {
	if strings.HasSuffix(p, ".md") {
		return p
	}
	return p + ".md"
}

// ParentDir returns the folder part of a vault path, or "" for the root.
func ParentDir(p string) string {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return ""
	}
	return p[:i]
}
