// Package pipeline turns inbound messages into vault writes.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"tginbox/internal/bus"
	"tginbox/internal/domain"
	"tginbox/internal/markdown"
	"tginbox/internal/note"
	"tginbox/internal/template"
)

// ErrSkipped is returned when a message renders to empty content and nothing is written.
var ErrSkipped = errors.New("message skipped: empty content")

// Settings is one consistent snapshot of everything ProcessMessage reads.
type Settings struct {
	MessageTemplate  string
	MarkdownEscaper  bool // escape markdown metacharacters instead of HTML entities
	RemoveFormatting bool
	Location         *time.Location
	Note             note.Settings
}

// Resolver picks the target note.
type Resolver interface {
	Resolve(ctx context.Context, tc template.Context, isTask bool, s note.Settings) (domain.Target, error)
}

// Writer applies one insertion.
type Writer interface {
	Insert(ctx context.Context, content string, target domain.Target) error
}

type Config struct {
	Resolver Resolver
	Writer   Writer
	Settings func() Settings
	Events   *bus.EventBus // optional
	Logger   *slog.Logger
}

// Processor runs the per-message pipeline. It keeps no state between messages.
type Processor struct {
	resolver Resolver
	writer   Writer
	settings func() Settings
	events   *bus.EventBus
	logger   *slog.Logger
}

// NewProcessor creates a processor. cfg.Settings is read once per message.
func NewProcessor(cfg Config) *Processor {
	return &Processor{
		resolver: cfg.Resolver,
		writer:   cfg.Writer,
		settings: cfg.Settings,
		events:   cfg.Events,
		logger:   cfg.Logger,
	}
}

// Render produces the note content for msg and reports whether it is a task.
func Render(msg domain.InboundMessage, s Settings) (string, template.Context, bool) {
	body := msg.Body()
	if note.IsTask(body) {
		content := note.TaskContent(body)
		return content, template.NewContext(msg, content, s.Location), true
	}

	mode := markdown.EscapeHTML
	if s.MarkdownEscaper {
		mode = markdown.EscapeMarkdown
	}
	text := markdown.FromMessage(msg, mode, s.RemoveFormatting)
	tc := template.NewContext(msg, text, s.Location)
	return template.RenderContent(tc, s.MessageTemplate), tc, false
}

// ProcessMessage writes msg to the vault. Resolution and store failures are
// returned as *domain.Error; ErrSkipped means nothing was written.
func (p *Processor) ProcessMessage(ctx context.Context, msg domain.InboundMessage) error {
	start := time.Now()
	s := p.settings()

	if !s.RemoveFormatting {
		if bad := markdown.Malformed(msg.Body(), msg.Entities); bad > 0 {
			p.logger.Debug("malformed entities recovered", "chat_id", msg.ChatID, "message_id", msg.MessageID, "count", bad)
			p.emit(bus.EventMalformedEntities, map[string]any{
				"chat_id": msg.ChatID, "message_id": msg.MessageID, "dropped": bad,
			})
		}
	}

	content, tc, isTask := Render(msg, s)
	if strings.TrimSpace(content) == "" {
		p.logger.Debug("no content to insert, skipping", "chat_id", msg.ChatID, "message_id", msg.MessageID)
		p.emit(bus.EventMessageSkipped, map[string]any{
			"chat_id": msg.ChatID, "message_id": msg.MessageID, "reason": "empty content",
		})
		return ErrSkipped
	}

	target, err := p.resolver.Resolve(ctx, tc, isTask, s.Note)
	if err != nil {
		p.fail(msg, domain.Target{}, err, start)
		return err
	}
	if err := p.writer.Insert(ctx, content, target); err != nil {
		p.fail(msg, target, err, start)
		return err
	}

	p.logger.Info("note written",
		"path", target.File.Path,
		"mode", target.Mode.String(),
		"chat_id", msg.ChatID,
		"message_id", msg.MessageID,
		"task", isTask,
	)
	p.emit(bus.EventNoteWritten, map[string]any{
		"chat_id":    msg.ChatID,
		"message_id": msg.MessageID,
		"path":       target.File.Path,
		"mode":       target.Mode.String(),
		"duration":   time.Since(start),
	})
	return nil
}

func (p *Processor) fail(msg domain.InboundMessage, target domain.Target, err error, start time.Time) {
	p.logger.Error("message not written",
		"chat_id", msg.ChatID,
		"message_id", msg.MessageID,
		"path", target.File.Path,
		"kind", domain.KindOf(err),
		"err", err,
	)
	payload := map[string]any{
		"chat_id":    msg.ChatID,
		"message_id": msg.MessageID,
		"path":       target.File.Path,
		"kind":       string(domain.KindOf(err)),
		"error":      err.Error(),
		"duration":   time.Since(start),
	}
	if target.File.Path != "" {
		payload["mode"] = target.Mode.String()
	}
	p.emit(bus.EventNoteFailed, payload)
}

func (p *Processor) emit(eventType string, payload map[string]any) {
	if p.events == nil {
		return
	}
	p.events.Emit(bus.Event{Type: eventType, Source: "pipeline", Payload: payload})
}
