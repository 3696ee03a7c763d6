package template

import (
	"strconv"
	"strings"
	"time"

	"tginbox/internal/domain"
	"tginbox/internal/origin"
)

const (
	dateLayout        = "2006-01-02"
	contentTimeLayout = "15:04"
	pathTimeLayout    = "15-04"

	pathPlaceholder = "~"
)

// Characters that cannot appear in vault file names.
var pathSanitizer = strings.NewReplacer(
	"/", pathPlaceholder, `\`, pathPlaceholder, "[", pathPlaceholder, "]", pathPlaceholder,
	"#", pathPlaceholder, "^", pathPlaceholder, "|", pathPlaceholder, ":", pathPlaceholder,
	"?", pathPlaceholder, "*", pathPlaceholder, `"`, pathPlaceholder, "<", pathPlaceholder,
	">", pathPlaceholder,
)

// Context holds the per-message values both templates draw from.
type Context struct {
	Text      string
	Time      time.Time // message time in the configured zone
	Name      string
	FirstName string
	Username  string
	UserID    int64
	MessageID int64
	Origin    *origin.Origin
}

// NewContext binds msg. text is the already serialized message body.
func NewContext(msg domain.InboundMessage, text string, loc *time.Location) Context {
	if loc == nil {
		loc = time.Local
	}
	return Context{
		Text:      text,
		Time:      msg.Timestamp.In(loc),
		Name:      msg.SenderName(),
		FirstName: msg.FirstName(),
		Username:  msg.Username(),
		UserID:    msg.UserID(),
		MessageID: msg.MessageID,
		Origin:    origin.Resolve(msg.ForwardOrigin),
	}
}

// ContentFields returns the fields available to the message template.
// Origin fields are present only for forwarded messages.
func (c Context) ContentFields() map[string]string {
	f := map[string]string{
		"text":       c.Text,
		"date":       c.Time.Format(dateLayout),
		"time":       c.Time.Format(contentTimeLayout),
		"name":       c.Name,
		"username":   c.Username,
		"user_id":    strconv.FormatInt(c.UserID, 10),
		"message_id": strconv.FormatInt(c.MessageID, 10),
	}
	if c.Origin != nil {
		f["origin_name"] = c.Origin.Name
		f["origin_username"] = c.Origin.Username
		if c.Origin.Link != "" {
			f["origin_link"] = c.Origin.Link
		}
	}
	return f
}

// PathFields returns the fields available to the path template, with
// name-like fields made safe for file names.
func (c Context) PathFields() map[string]string {
	originName := c.Name
	if c.Origin != nil {
		originName = c.Origin.Name
	}
	return map[string]string{
		"date":        c.Time.Format(dateLayout),
		"time":        c.Time.Format(pathTimeLayout),
		"first_name":  SanitizePathPart(c.FirstName),
		"name":        SanitizePathPart(c.Name),
		"user_id":     strconv.FormatInt(c.UserID, 10),
		"origin_name": SanitizePathPart(originName),
	}
}

// SanitizePathPart replaces characters that are illegal in note names.
func SanitizePathPart(s string) string {
	return pathSanitizer.Replace(s)
}

// RenderContent renders the message template. Unknown fields render empty.
func RenderContent(c Context, tmpl string) string {
	return render(tmpl, c.ContentFields())
}

// RenderPath renders the custom file path template.
func RenderPath(c Context, tmpl string) string {
	return render(tmpl, c.PathFields())
}
