package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"tginbox/internal/bus"
	"tginbox/internal/domain"
	"tginbox/internal/metrics"
)

// FailureNotice is the reply sent when a message could not be stored.
const FailureNotice = domain.FailureNotice

type RunnerConfig struct {
	Bus           domain.MessageBus
	Processor     *Processor
	MaxConcurrent int64
	Events        *bus.EventBus   // optional
	Metrics       *metrics.Ingest // optional
	Logger        *slog.Logger
}

// Runner consumes the bus and processes each delivery in its own goroutine,
// at most MaxConcurrent at a time.
type Runner struct {
	bus     domain.MessageBus
	proc    *Processor
	sem     *semaphore.Weighted
	events  *bus.EventBus
	metrics *metrics.Ingest
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewRunner creates a runner. MaxConcurrent below 1 means one message at a time.
func NewRunner(cfg RunnerConfig) *Runner {
	n := cfg.MaxConcurrent
	if n <= 0 {
		n = 1
	}
	return &Runner{
		bus:     cfg.Bus,
		proc:    cfg.Processor,
		sem:     semaphore.NewWeighted(n),
		events:  cfg.Events,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
}

// Run blocks until the bus is closed or ctx is done, then waits for
// in-flight messages. Messages already dispatched are never cancelled.
func (r *Runner) Run(ctx context.Context) {
	defer r.wg.Wait()
	deliveries := r.bus.Subscribe()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("runner stopping", "reason", ctx.Err())
			return
		case d, ok := <-deliveries:
			if !ok {
				r.logger.Info("bus closed, runner stopping")
				return
			}
			if err := r.sem.Acquire(ctx, 1); err != nil {
				r.logger.Warn("delivery not dispatched, shutting down",
					"channel", d.Channel, "update_id", d.UpdateID, "message_id", d.Message.MessageID)
				return
			}
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				defer r.sem.Release(1)
				r.handle(context.WithoutCancel(ctx), d)
			}()
		}
	}
}

func (r *Runner) handle(ctx context.Context, d domain.Delivery) {
	if r.metrics != nil {
		r.metrics.Inflight.Inc()
		defer r.metrics.Inflight.Dec()
	}
	if r.events != nil {
		r.events.Emit(bus.Event{Type: bus.EventMessageReceived, Source: d.Channel, Payload: map[string]any{
			"channel": d.Channel, "chat_id": d.Message.ChatID, "message_id": d.Message.MessageID,
		}})
	}

	err := r.proc.ProcessMessage(ctx, d.Message)
	switch {
	case errors.Is(err, ErrSkipped):
		return
	case err != nil:
		r.bus.SendOutbound(domain.OutboundMessage{
			Channel:   d.Channel,
			ChatID:    d.Message.ChatID,
			MessageID: d.Message.MessageID,
			Kind:      domain.OutboundFailure,
			Content:   FailureNotice + err.Error(),
		})
	default:
		r.bus.SendOutbound(domain.OutboundMessage{
			Channel:   d.Channel,
			ChatID:    d.Message.ChatID,
			MessageID: d.Message.MessageID,
			Kind:      domain.OutboundAck,
		})
	}
}
