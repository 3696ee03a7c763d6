// Package channel holds the transports that feed the ingest bus.
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tginbox/internal/bus"
	"tginbox/internal/domain"
)

const (
	telegramName           = "telegram"
	telegramMaxMsgLen      = 4000
	telegramMaxSendRetries = 3

	startGreeting = "Hello! Send me a message to add it to your Obsidian daily note.\n\n" +
		"/task followed by the description will add it as a task item."
)

// botAPI is the part of *tgbotapi.BotAPI the channel uses.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

// Telegram implements domain.Channel over Bot API long polling.
type Telegram struct {
	token       string
	allowFrom   map[string]struct{} // chat ids and usernames
	pollTimeout int
	offset      int
	reaction    string

	bot    botAPI
	bus    domain.MessageBus
	events *bus.EventBus
	logger *slog.Logger
}

type TelegramConfig struct {
	Token          string
	AllowFrom      []string // chat ids or usernames, without "@"
	PollTimeoutSec int
	// Offset is the first update id to request, usually the stored cursor + 1.
	Offset   int
	Reaction string        // emoji set on stored messages; empty disables reactions
	Events   *bus.EventBus // optional
	Logger   *slog.Logger
}

// NewTelegram creates the channel. The bot connects in Start.
func NewTelegram(cfg TelegramConfig) *Telegram {
	allowed := make(map[string]struct{}, len(cfg.AllowFrom))
	for _, s := range cfg.AllowFrom {
		s = strings.TrimPrefix(strings.TrimSpace(s), "@")
		if s != "" {
			allowed[s] = struct{}{}
		}
	}
	if cfg.PollTimeoutSec <= 0 {
		cfg.PollTimeoutSec = 60
	}
	return &Telegram{
		token:       cfg.Token,
		allowFrom:   allowed,
		pollTimeout: cfg.PollTimeoutSec,
		offset:      cfg.Offset,
		reaction:    cfg.Reaction,
		events:      cfg.Events,
		logger:      cfg.Logger,
	}
}

func (t *Telegram) Name() string { return telegramName }

// Start connects to Telegram and polls for updates until ctx is done.
func (t *Telegram) Start(ctx context.Context, mb domain.MessageBus) error {
	t.bus = mb

	if t.bot == nil {
		bot, err := tgbotapi.NewBotAPI(t.token)
		if err != nil {
			return fmt.Errorf("telegram bot init: %w", err)
		}
		t.logger.Info("telegram bot connected", "username", bot.Self.UserName, "id", bot.Self.ID)
		t.bot = bot
	}
	if len(t.allowFrom) == 0 {
		t.logger.Warn("telegram allow list is empty, every chat will be ignored")
	}

	mb.OnOutbound(telegramName, t.onOutbound)

	u := tgbotapi.NewUpdate(t.offset)
	u.Timeout = t.pollTimeout
	u.AllowedUpdates = []string{"message", "channel_post"}
	updates := t.bot.GetUpdatesChan(u)

	t.logger.Info("telegram polling started", "offset", t.offset)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			t.bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(update)
		}
	}
}

// Stop is a no-op: polling stops when Start's context is cancelled, and
// StopReceivingUpdates panics when called twice.
func (t *Telegram) Stop() error {
	return nil
}

func (t *Telegram) handleUpdate(update tgbotapi.Update) {
	if t.events != nil {
		t.events.Emit(bus.Event{Type: bus.EventUpdateSeen, Source: telegramName, Payload: map[string]any{
			"channel": telegramName, "update_id": update.UpdateID,
		}})
	}

	kind := domain.KindDirect
	m := update.Message
	if m == nil {
		m = update.ChannelPost
		kind = domain.KindChannelPost
	}
	if m == nil || m.Chat == nil {
		return
	}

	if !t.isAllowed(m.Chat) {
		t.logger.Warn("unauthorized telegram chat",
			"chat_id", m.Chat.ID,
			"chat_type", m.Chat.Type,
			"username", m.Chat.UserName,
		)
		return
	}

	if m.IsCommand() && m.Command() == "start" {
		t.sendMessage(m.Chat.ID, 0, startGreeting)
		return
	}

	msg := convertMessage(m, kind)
	if msg.Body() == "" && msg.ReplyToMediaFileRef == "" {
		t.logger.Debug("update without text or media ignored", "update_id", update.UpdateID, "chat_id", msg.ChatID)
		return
	}

	t.logger.Info("telegram message received",
		"update_id", update.UpdateID,
		"chat_id", msg.ChatID,
		"message_id", msg.MessageID,
		"kind", msg.Kind,
		"text_len", len(msg.Body()),
	)
	// The cursor is already past this update, so a rejected delivery is
	// reported to the sender instead of being retried.
	if err := t.bus.Publish(domain.Delivery{Channel: telegramName, UpdateID: update.UpdateID, Message: msg}); err != nil {
		t.logger.Error("telegram message not queued", "update_id", update.UpdateID, "chat_id", msg.ChatID, "err", err)
		t.sendMessage(msg.ChatID, int(msg.MessageID), domain.FailureNotice+err.Error())
	}
}

// isAllowed accepts private chats, channels and supergroups whose id or
// username is on the allow list.
func (t *Telegram) isAllowed(chat *tgbotapi.Chat) bool {
	switch domain.ChatType(chat.Type) {
	case domain.ChatPrivate, domain.ChatChannel, domain.ChatSupergroup:
	default:
		return false
	}
	if chat.UserName != "" {
		if _, ok := t.allowFrom[chat.UserName]; ok {
			return true
		}
	}
	_, ok := t.allowFrom[strconv.FormatInt(chat.ID, 10)]
	return ok
}

func (t *Telegram) onOutbound(msg domain.OutboundMessage) {
	switch msg.Kind {
	case domain.OutboundAck:
		if t.reaction == "" {
			return
		}
		if err := t.react(msg.ChatID, msg.MessageID, t.reaction); err != nil {
			t.logger.Warn("telegram reaction failed", "chat_id", msg.ChatID, "message_id", msg.MessageID, "err", err)
		}
	case domain.OutboundFailure:
		t.sendMessage(msg.ChatID, int(msg.MessageID), msg.Content)
	default:
		t.sendMessage(msg.ChatID, 0, msg.Content)
	}
}

type reactionType struct {
	Type  string `json:"type"`
	Emoji string `json:"emoji"`
}

// react sets an emoji reaction. The pinned client predates setMessageReaction,
// so the request is made by method name.
func (t *Telegram) react(chatID, messageID int64, emoji string) error {
	reaction, err := json.Marshal([]reactionType{{Type: "emoji", Emoji: emoji}})
	if err != nil {
		return err
	}
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params.AddNonZero64("message_id", messageID)
	params["reaction"] = string(reaction)
	_, err = t.bot.MakeRequest("setMessageReaction", params)
	return err
}

// sendMessage splits text at the Telegram length limit. Only the first
// chunk replies to replyTo.
func (t *Telegram) sendMessage(chatID int64, replyTo int, text string) {
	const maxLen = telegramMaxMsgLen
	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxLen {
			cutAt := strings.LastIndex(chunk[:maxLen], "\n")
			if cutAt < maxLen/2 {
				cutAt = maxLen
			}
			chunk = text[:cutAt]
			text = text[cutAt:]
		} else {
			text = ""
		}

		t.sendChunk(chatID, replyTo, chunk)
		replyTo = 0
	}
}

// sendChunk sends one plain-text chunk with retry and rate limit handling.
func (t *Telegram) sendChunk(chatID int64, replyTo int, text string) {
	const maxRetries = telegramMaxSendRetries

	for attempt := 0; attempt <= maxRetries; attempt++ {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ReplyToMessageID = replyTo
		msg.AllowSendingWithoutReply = true

		_, err := t.bot.Send(msg)
		if err == nil {
			return
		}

		errStr := err.Error()
		if strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "429") {
			retryAfter := time.Duration(attempt+1) * 3 * time.Second
			t.logger.Warn("telegram rate limited, backing off", "retry_after", retryAfter, "attempt", attempt+1)
			time.Sleep(retryAfter)
			continue
		}

		if attempt < maxRetries {
			backoff := time.Duration(attempt+1) * time.Second
			t.logger.Warn("telegram send error, retrying", "err", err, "backoff", backoff)
			time.Sleep(backoff)
			continue
		}

		t.logger.Error("telegram send failed after retries", "err", err, "attempts", maxRetries+1)
	}
}

// convertMessage maps a Bot API message onto the normalized inbound message.
func convertMessage(m *tgbotapi.Message, kind domain.MessageKind) domain.InboundMessage {
	msg := domain.InboundMessage{
		Kind:      kind,
		MessageID: int64(m.MessageID),
		ChatID:    m.Chat.ID,
		ChatTitle: m.Chat.Title,
		Text:      m.Text,
		Caption:   m.Caption,
		Timestamp: time.Unix(int64(m.Date), 0).UTC(),
	}
	if kind == domain.KindChannelPost {
		msg.ChatUsername = m.Chat.UserName
	} else if m.From != nil {
		msg.SenderID = m.From.ID
		msg.SenderUsername = m.From.UserName
		msg.SenderFirstName = m.From.FirstName
		msg.SenderLastName = m.From.LastName
	}

	entities := m.Entities
	if m.Text == "" {
		entities = m.CaptionEntities
	}
	msg.Entities = convertEntities(entities)
	msg.ForwardOrigin = forwardOrigin(m)
	msg.ReplyToMediaFileRef = mediaFileRef(m)
	return msg
}

func convertEntities(entities []tgbotapi.MessageEntity) []domain.Span {
	if len(entities) == 0 {
		return nil
	}
	spans := make([]domain.Span, 0, len(entities))
	for _, e := range entities {
		s := domain.Span{
			Kind:     domain.SpanKind(e.Type),
			Offset:   e.Offset,
			Length:   e.Length,
			URL:      e.URL,
			Language: e.Language,
		}
		if e.User != nil {
			s.UserID = e.User.ID
		}
		spans = append(spans, s)
	}
	return spans
}

// forwardOrigin reads the legacy forward_* fields. A forward_from_chat of
// type channel is a channel origin; any other chat is an anonymous chat sender.
func forwardOrigin(m *tgbotapi.Message) *domain.ForwardOrigin {
	switch {
	case m.ForwardFrom != nil:
		return &domain.ForwardOrigin{Kind: domain.OriginUser, Sender: &domain.User{
			ID:        m.ForwardFrom.ID,
			FirstName: m.ForwardFrom.FirstName,
			LastName:  m.ForwardFrom.LastName,
			Username:  m.ForwardFrom.UserName,
		}}
	case m.ForwardSenderName != "":
		return &domain.ForwardOrigin{Kind: domain.OriginHiddenUser, SenderName: m.ForwardSenderName}
	case m.ForwardFromChat != nil:
		chat := convertChat(m.ForwardFromChat)
		if chat.Type == domain.ChatChannel {
			return &domain.ForwardOrigin{Kind: domain.OriginChannel, Chat: chat, MessageID: int64(m.ForwardFromMessageID)}
		}
		return &domain.ForwardOrigin{Kind: domain.OriginChat, SenderChat: chat}
	default:
		return nil
	}
}

func convertChat(c *tgbotapi.Chat) *domain.Chat {
	return &domain.Chat{
		ID:        c.ID,
		Type:      domain.ChatType(c.Type),
		Title:     c.Title,
		Username:  c.UserName,
		FirstName: c.FirstName,
		LastName:  c.LastName,
	}
}

// mediaFileRef returns the file id of the attached media, the largest photo size for photos.
func mediaFileRef(m *tgbotapi.Message) string {
	switch {
	case len(m.Photo) > 0:
		return m.Photo[len(m.Photo)-1].FileID
	case m.Document != nil:
		return m.Document.FileID
	case m.Video != nil:
		return m.Video.FileID
	case m.Audio != nil:
		return m.Audio.FileID
	case m.Voice != nil:
		return m.Voice.FileID
	case m.VideoNote != nil:
		return m.VideoNote.FileID
	case m.Animation != nil:
		return m.Animation.FileID
	default:
		return ""
	}
}
