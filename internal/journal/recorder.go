package journal

import (
	"context"
	"time"

	"tginbox/internal/bus"
)

const recordTimeout = 5 * time.Second

// Subscribe writes pipeline events into the journal. Journal failures are
// logged and never reach the pipeline.
func (s *Store) Subscribe(eb *bus.EventBus) {
	eb.On(bus.EventUpdateSeen, func(e bus.Event) {
		name, _ := e.Payload["channel"].(string)
		id, _ := e.Payload["update_id"].(int)
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := s.SetCursor(ctx, name, id); err != nil {
			s.logger.Warn("journal cursor update failed", "channel", name, "update_id", id, "err", err)
		}
	})

	record := func(status string) bus.EventHandler {
		return func(e bus.Event) {
			entry := entryFromPayload(e.Payload)
			entry.Status = status
			entry.CreatedAt = e.Timestamp.UTC()
			ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
			defer cancel()
			if err := s.Record(ctx, entry); err != nil {
				s.logger.Warn("journal record failed", "status", status, "err", err)
			}
		}
	}
	eb.On(bus.EventNoteWritten, record(StatusWritten))
	eb.On(bus.EventNoteFailed, record(StatusFailed))
	eb.On(bus.EventMessageSkipped, record(StatusSkipped))
}

func entryFromPayload(p map[string]any) Entry {
	var e Entry
	e.ChatID, _ = p["chat_id"].(int64)
	e.MessageID, _ = p["message_id"].(int64)
	e.Path, _ = p["path"].(string)
	e.Mode, _ = p["mode"].(string)
	e.Kind, _ = p["kind"].(string)
	if msg, ok := p["error"].(string); ok {
		e.Error = msg
	} else if reason, ok := p["reason"].(string); ok {
		e.Error = reason
	}
	return e
}
