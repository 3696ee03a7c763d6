package domain

import "time"

// MessageKind tells whether a message came from a private/group chat or a channel.
type MessageKind string

const (
	KindDirect      MessageKind = "direct"
	KindChannelPost MessageKind = "channel_post"
)

// InboundMessage is a normalized bot message, already filtered by the allow list.
// It is never mutated after the transport hands it over.
type InboundMessage struct {
	Kind      MessageKind
	MessageID int64

	// Sender fields are empty for channel posts.
	SenderID        int64
	SenderUsername  string
	SenderFirstName string
	SenderLastName  string

	ChatID       int64
	ChatTitle    string
	ChatUsername string

	Text     string
	Caption  string
	Entities []Span // over Text, or over Caption when Text is empty

	Timestamp     time.Time // UTC
	ForwardOrigin *ForwardOrigin

	ReplyToMediaFileRef string
}

// Body returns the text, falling back to the caption for media messages.
func (m InboundMessage) Body() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// SenderName is the display name used by the "name" template field.
// Channel posts use the chat title.
func (m InboundMessage) SenderName() string {
	switch m.Kind {
	case KindChannelPost:
		return m.ChatTitle
	default:
		if m.SenderLastName != "" {
			return m.SenderFirstName + " " + m.SenderLastName
		}
		return m.SenderFirstName
	}
}

// FirstName is the "first_name" path field.
func (m InboundMessage) FirstName() string {
	switch m.Kind {
	case KindChannelPost:
		return m.ChatTitle
	default:
		return m.SenderFirstName
	}
}

// Username is the sender username, or the channel username for channel posts.
func (m InboundMessage) Username() string {
	switch m.Kind {
	case KindChannelPost:
		return m.ChatUsername
	default:
		return m.SenderUsername
	}
}

// UserID is the sender id, or the chat id for channel posts.
func (m InboundMessage) UserID() int64 {
	switch m.Kind {
	case KindChannelPost:
		return m.ChatID
	default:
		return m.SenderID
	}
}

// SpanKind is a formatting entity type as named by the Bot API.
type SpanKind string

const (
	SpanBold          SpanKind = "bold"
	SpanItalic        SpanKind = "italic"
	SpanUnderline     SpanKind = "underline"
	SpanStrikethrough SpanKind = "strikethrough"
	SpanCode          SpanKind = "code"
	SpanPre           SpanKind = "pre"
	SpanSpoiler       SpanKind = "spoiler"
	SpanURL           SpanKind = "url"
	SpanTextLink      SpanKind = "text_link"
	SpanTextMention   SpanKind = "text_mention"
	SpanBlockquote    SpanKind = "blockquote"
	SpanMention       SpanKind = "mention"
	SpanCustomEmoji   SpanKind = "custom_emoji"
	SpanHashtag       SpanKind = "hashtag"
	SpanCashtag       SpanKind = "cashtag"
	SpanBotCommand    SpanKind = "bot_command"
	SpanPhoneNumber   SpanKind = "phone_number"
	SpanEmail         SpanKind = "email"
)

// Span annotates a range of the message text. Offset and Length count UTF-16 code units.
type Span struct {
	Kind     SpanKind
	Offset   int
	Length   int
	URL      string // text_link
	Language string // pre
	UserID   int64  // text_mention
}

// User is the subset of a Bot API user carried by forward origins.
type User struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

// ChatType mirrors the Bot API chat type strings.
type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

// Chat is the subset of a Bot API chat carried by forward origins.
type Chat struct {
	ID        int64
	Type      ChatType
	Title     string
	Username  string
	FirstName string
	LastName  string
}

// OriginKind selects the populated variant of ForwardOrigin.
type OriginKind string

const (
	OriginUser       OriginKind = "user"
	OriginHiddenUser OriginKind = "hidden_user"
	OriginChannel    OriginKind = "channel"
	OriginChat       OriginKind = "chat"
)

// ForwardOrigin describes where a forwarded message came from. Only the fields
// of the variant named by Kind are set.
type ForwardOrigin struct {
	Kind OriginKind

	Sender     *User  // OriginUser
	SenderName string // OriginHiddenUser
	Chat       *Chat  // OriginChannel
	MessageID  int64  // OriginChannel
	SenderChat *Chat  // OriginChat
}
