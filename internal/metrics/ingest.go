package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"tginbox/internal/bus"
)

var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Ingest holds the pipeline metrics.
type Ingest struct {
	c *Collector

	Messages     *Counter
	Skipped      *Counter
	Inflight     *Gauge
	WriteLatency *Histogram
}

// NewIngest registers the ingest series on c.
func NewIngest(c *Collector) *Ingest {
	return &Ingest{
		c:            c,
		Messages:     c.Counter("tginbox_messages_total", "Messages accepted from transports", ""),
		Skipped:      c.Counter("tginbox_messages_skipped_total", "Messages skipped because their content was empty", ""),
		Inflight:     c.Gauge("tginbox_inflight_messages", "Messages currently being processed", ""),
		WriteLatency: c.Histogram("tginbox_write_latency_seconds", "Time from dispatch to finished vault write", "", latencyBuckets),
	}
}

// NotesWritten returns the written-notes counter for one insertion mode.
func (m *Ingest) NotesWritten(mode string) *Counter {
	return m.c.Counter("tginbox_notes_written_total", "Notes updated in the vault", fmt.Sprintf("mode=%q", mode))
}

// WriteFailures returns the failure counter for one error kind.
func (m *Ingest) WriteFailures(kind string) *Counter {
	if kind == "" {
		kind = "unknown"
	}
	return m.c.Counter("tginbox_write_failures_total", "Messages that could not be written", fmt.Sprintf("kind=%q", kind))
}

// Subscribe updates the metrics from pipeline events.
func (m *Ingest) Subscribe(eb *bus.EventBus) {
	eb.On(bus.EventMessageReceived, func(bus.Event) { m.Messages.Inc() })
	eb.On(bus.EventMessageSkipped, func(bus.Event) { m.Skipped.Inc() })
	eb.On(bus.EventNoteWritten, func(e bus.Event) {
		mode, _ := e.Payload["mode"].(string)
		m.NotesWritten(mode).Inc()
		m.observe(e)
	})
	eb.On(bus.EventNoteFailed, func(e bus.Event) {
		kind, _ := e.Payload["kind"].(string)
		m.WriteFailures(kind).Inc()
		m.observe(e)
	})
}

func (m *Ingest) observe(e bus.Event) {
	if d, ok := e.Payload["duration"].(time.Duration); ok {
		m.WriteLatency.Observe(d.Seconds())
	}
}

// Serve exposes c on addr until ctx is done.
func Serve(ctx context.Context, addr, endpoint string, c *Collector, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc(endpoint, c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", "addr", addr, "endpoint", endpoint)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}
