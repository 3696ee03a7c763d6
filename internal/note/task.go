package note

import (
	"regexp"
	"strings"
)

var taskCommand = regexp.MustCompile(`(?i)^\s*/task(@\w+)?(\s|$)`)

// IsTask reports whether text starts with the /task command.
func IsTask(text string) bool {
	return taskCommand.MatchString(text)
}

// TaskContent turns a /task message into a markdown checkbox line.
// Text that is not a task is returned unchanged.
func TaskContent(text string) string {
	loc := taskCommand.FindStringIndex(text)
	if loc == nil {
		return text
	}
	return "- [ ] " + strings.TrimSpace(text[loc[1]:])
}
