package bus

import (
	"log/slog"
	"sync"
	"time"

	"tginbox/internal/domain"
)

const defaultPublishTimeout = 10 * time.Second

// InMemoryBus carries accepted updates from transports to the runner and
// acknowledgments back to the transport that registered for them.
type InMemoryBus struct {
	inbound  chan domain.Delivery
	handlers map[string]func(domain.OutboundMessage)
	mu       sync.RWMutex
	closed   bool
	logger   *slog.Logger

	publishTimeout time.Duration
}

// New creates a new InMemoryBus with the given buffer size.
func New(bufferSize int, logger *slog.Logger) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &InMemoryBus{
		inbound:  make(chan domain.Delivery, bufferSize),
		handlers: make(map[string]func(domain.OutboundMessage)),
		logger:   logger,

		publishTimeout: defaultPublishTimeout,
	}
}

// Publish blocks up to publishTimeout when the buffer is full, then gives up
// with domain.ErrBusFull.
func (b *InMemoryBus) Publish(d domain.Delivery) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("attempted to publish to closed bus")
		return domain.ErrBusClosed
	}

	select {
	case b.inbound <- d:
		return nil
	default:
	}

	b.logger.Warn("inbound bus full, waiting", "channel", d.Channel, "update_id", d.UpdateID)
	timer := time.NewTimer(b.publishTimeout)
	defer timer.Stop()
	select {
	case b.inbound <- d:
		b.logger.Info("delivery accepted after wait", "channel", d.Channel, "update_id", d.UpdateID)
		return nil
	case <-timer.C:
		b.logger.Error("delivery dropped: bus full",
			"channel", d.Channel,
			"update_id", d.UpdateID,
			"chat_id", d.Message.ChatID,
			"message_id", d.Message.MessageID,
		)
		return domain.ErrBusFull
	}
}

func (b *InMemoryBus) Subscribe() <-chan domain.Delivery {
	return b.inbound
}

func (b *InMemoryBus) SendOutbound(msg domain.OutboundMessage) {
	b.mu.RLock()
	handler, ok := b.handlers[msg.Channel]
	b.mu.RUnlock()

	if !ok {
		b.logger.Warn("no handler registered for channel",
			"channel", msg.Channel,
			"kind", msg.Kind,
		)
		return
	}

	handler(msg)
}

func (b *InMemoryBus) OnOutbound(channelName string, handler func(domain.OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channelName] = handler
}

var _ domain.MessageBus = (*InMemoryBus)(nil)

// Close stops delivery; the runner drains what is already buffered.
func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.inbound)
	}
}
