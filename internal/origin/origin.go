// Package origin normalizes the forward-origin union into name, username and link.
package origin

import (
	"strconv"
	"strings"

	"tginbox/internal/domain"
)

const permalinkBase = "https://t.me/"

// Origin is the normalized source of a forwarded message.
type Origin struct {
	Name     string
	Username string
	Link     string // channel forwards only
}

// Resolve returns nil when o is nil or describes a chat type that has no sensible name.
func Resolve(o *domain.ForwardOrigin) *Origin {
	if o == nil {
		return nil
	}
	switch o.Kind {
	case domain.OriginUser:
		if o.Sender == nil {
			return nil
		}
		return &Origin{
			Name:     fullName(o.Sender.FirstName, o.Sender.LastName),
			Username: o.Sender.Username,
		}
	case domain.OriginHiddenUser:
		return &Origin{Name: o.SenderName}
	case domain.OriginChannel:
		if o.Chat == nil {
			return nil
		}
		return &Origin{
			Name:     o.Chat.Title,
			Username: o.Chat.Username,
			Link:     Permalink(o.Chat, o.MessageID),
		}
	case domain.OriginChat:
		return fromSenderChat(o.SenderChat)
	default:
		return nil
	}
}

func fromSenderChat(c *domain.Chat) *Origin {
	if c == nil {
		return nil
	}
	switch c.Type {
	case domain.ChatPrivate:
		return &Origin{Name: strings.TrimSpace(fullName(c.FirstName, c.LastName))}
	case domain.ChatGroup, domain.ChatSupergroup:
		return &Origin{Name: c.Title}
	default:
		// Channels posting as a chat are left without an origin.
		return nil
	}
}

// Permalink builds the public link to a channel message. Chats without a
// username use the numeric id with the -100 prefix stripped.
func Permalink(c *domain.Chat, messageID int64) string {
	ref := c.Username
	if ref == "" {
		id := strconv.FormatInt(c.ID, 10)
		ref = strings.TrimPrefix(id, "-100")
	}
	return permalinkBase + ref + "/" + strconv.FormatInt(messageID, 10)
}

func fullName(first, last string) string {
	if last != "" {
		return first + " " + last
	}
	return first
}
