package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"tginbox/internal/bus"
	"tginbox/internal/domain"
	"tginbox/internal/metrics"
	"tginbox/internal/note"
	"tginbox/internal/template"
	"tginbox/internal/vault"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

type fixture struct {
	store  *vault.FSStore
	events *bus.EventBus
	proc   *Processor
	s      Settings
}

func newFixture(t *testing.T, s Settings) *fixture {
	t.Helper()
	store, err := vault.NewFSStore(t.TempDir(), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{store: store, events: bus.NewEventBus(testLogger()), s: s}
	daily := note.NewDailyNotes(store, note.DailySettings{Folder: "Daily"}, testLogger())
	f.proc = NewProcessor(Config{
		Resolver: note.NewResolver(note.Config{Store: store, Daily: daily, Logger: testLogger()}),
		Writer:   vault.NewCoordinator(store, testLogger()),
		Settings: func() Settings { return f.s },
		Events:   f.events,
		Logger:   testLogger(),
	})
	return f
}

func (f *fixture) read(t *testing.T, path string) string {
	t.Helper()
	data, err := f.store.Read(context.Background(), domain.FileHandle{Path: path})
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}

func message(text string, spans ...domain.Span) domain.InboundMessage {
	return domain.InboundMessage{
		Kind:            domain.KindDirect,
		MessageID:       42,
		SenderID:        7,
		SenderFirstName: "Ann",
		ChatID:          7,
		Text:            text,
		Entities:        spans,
		Timestamp:       time.Date(2021, 7, 21, 10, 30, 0, 0, time.UTC),
	}
}

func TestProcessMessage_CustomFile(t *testing.T) {
	f := newFixture(t, Settings{
		MessageTemplate: "{{text}} - {{name}}",
		Location:        time.UTC,
		Note:            note.Settings{CustomFile: true, PathTemplate: "Inbox/{{date}}"},
	})
	msg := message("Hello world", domain.Span{Kind: domain.SpanBold, Offset: 6, Length: 5})

	if err := f.proc.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if got := f.read(t, "Inbox/2021-07-21.md"); got != "Hello **world** - Ann" {
		t.Fatalf("got %q", got)
	}

	written := f.events.Replay(bus.EventNoteWritten, time.Time{})
	if len(written) != 1 || written[0].Payload["path"] != "Inbox/2021-07-21.md" || written[0].Payload["mode"] != "append" {
		t.Fatalf("unexpected events %+v", written)
	}
}

func TestProcessMessage_LiteralMarkupWithoutEntities(t *testing.T) {
	tests := []struct {
		name            string
		markdownEscaper bool
		want            string
	}{
		{"html escaper", false, "Hello **world** - Ann"},
		{"markdown escaper", true, `Hello \*\*world\*\* - Ann`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Settings{
				MessageTemplate: "{{text}} - {{name}}",
				MarkdownEscaper: tt.markdownEscaper,
				Location:        time.UTC,
				Note:            note.Settings{CustomFile: true, PathTemplate: "Inbox/{{date}}"},
			})
			if err := f.proc.ProcessMessage(context.Background(), message("Hello **world**")); err != nil {
				t.Fatal(err)
			}
			if got := f.read(t, "Inbox/2021-07-21.md"); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProcessMessage_DailyNoteAppends(t *testing.T) {
	f := newFixture(t, Settings{MessageTemplate: "{{text}}", Location: time.UTC})
	ctx := context.Background()
	for _, text := range []string{"first", "second"} {
		if err := f.proc.ProcessMessage(ctx, message(text)); err != nil {
			t.Fatal(err)
		}
	}
	if got := f.read(t, "Daily/2021-07-21.md"); got != "first\nsecond" {
		t.Fatalf("got %q", got)
	}
}

func TestProcessMessage_Task(t *testing.T) {
	f := newFixture(t, Settings{
		MessageTemplate: "{{time}} {{text}}",
		Location:        time.UTC,
		Note:            note.Settings{CustomFile: true, PathTemplate: "Inbox.md"},
	})
	if err := f.proc.ProcessMessage(context.Background(), message("/task buy milk")); err != nil {
		t.Fatal(err)
	}
	if got := f.read(t, "Daily/2021-07-21.md"); got != "- [ ] buy milk" {
		t.Fatalf("got %q", got)
	}
	if _, ok, _ := f.store.Exists(context.Background(), "Inbox.md"); ok {
		t.Fatal("task must not create the custom note")
	}
}

func TestProcessMessage_SkipsEmptyContent(t *testing.T) {
	f := newFixture(t, Settings{MessageTemplate: "{{text}}", Location: time.UTC})
	msg := message("")
	msg.ReplyToMediaFileRef = "photo-1"

	err := f.proc.ProcessMessage(context.Background(), msg)
	if !errors.Is(err, ErrSkipped) {
		t.Fatalf("expected ErrSkipped, got %v", err)
	}
	if _, ok, _ := f.store.Exists(context.Background(), "Daily/2021-07-21.md"); ok {
		t.Fatal("no note should be created for a skipped message")
	}
	if n := len(f.events.Replay(bus.EventMessageSkipped, time.Time{})); n != 1 {
		t.Fatalf("expected 1 skipped event, got %d", n)
	}
}

func TestProcessMessage_MalformedEntitiesStillWritten(t *testing.T) {
	f := newFixture(t, Settings{MessageTemplate: "{{text}}", Location: time.UTC})
	msg := message("abc", domain.Span{Kind: domain.SpanBold, Offset: 1, Length: 50})
	if err := f.proc.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if got := f.read(t, "Daily/2021-07-21.md"); got != "a**bc**" {
		t.Fatalf("got %q", got)
	}
	if n := len(f.events.Replay(bus.EventMalformedEntities, time.Time{})); n != 1 {
		t.Fatalf("expected malformed entities event, got %d", n)
	}
}

type brokenWriter struct{ err error }

func (b brokenWriter) Insert(context.Context, string, domain.Target) error { return b.err }

type fixedResolver struct{ target domain.Target }

func (r fixedResolver) Resolve(context.Context, template.Context, bool, note.Settings) (domain.Target, error) {
	return r.target, nil
}

func TestProcessMessage_WriteFailure(t *testing.T) {
	boom := &domain.Error{Kind: domain.ErrStoreIO, Op: "write", Path: "a.md", Err: errors.New("disk full")}
	events := bus.NewEventBus(testLogger())
	p := NewProcessor(Config{
		Resolver: fixedResolver{domain.Target{File: domain.FileHandle{Path: "a.md"}}},
		Writer:   brokenWriter{boom},
		Settings: func() Settings { return Settings{MessageTemplate: "{{text}}"} },
		Events:   events,
		Logger:   testLogger(),
	})

	err := p.ProcessMessage(context.Background(), message("hi"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected write error, got %v", err)
	}
	failed := events.Replay(bus.EventNoteFailed, time.Time{})
	if len(failed) != 1 || failed[0].Payload["kind"] != string(domain.ErrStoreIO) {
		t.Fatalf("unexpected failure events %+v", failed)
	}
}

type outbox struct {
	mu  sync.Mutex
	out []domain.OutboundMessage
}

func (o *outbox) add(m domain.OutboundMessage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.out = append(o.out, m)
}

func (o *outbox) byMessage() map[int64]domain.OutboundMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	m := make(map[int64]domain.OutboundMessage, len(o.out))
	for _, msg := range o.out {
		m[msg.MessageID] = msg
	}
	return m
}

func TestRunner_AcknowledgesEachMessage(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t, Settings{MessageTemplate: "{{text}}", Location: time.UTC})
	mb := bus.New(16, testLogger())
	box := &outbox{}
	mb.OnOutbound("telegram", box.add)

	collector := metrics.NewCollector("test")
	m := metrics.NewIngest(collector)
	m.Subscribe(f.events)

	r := NewRunner(RunnerConfig{
		Bus: mb, Processor: f.proc, MaxConcurrent: 3,
		Events: f.events, Metrics: m, Logger: testLogger(),
	})

	for i := int64(1); i <= 10; i++ {
		msg := message("note")
		msg.MessageID = i
		mb.Publish(domain.Delivery{Channel: "telegram", UpdateID: int(i), Message: msg})
	}
	empty := message("")
	empty.MessageID = 11
	mb.Publish(domain.Delivery{Channel: "telegram", UpdateID: 11, Message: empty})
	mb.Close()

	r.Run(context.Background())

	acks := box.byMessage()
	if len(acks) != 10 {
		t.Fatalf("expected 10 acknowledgments, got %d", len(acks))
	}
	for id, a := range acks {
		if a.Kind != domain.OutboundAck || a.ChatID != 7 {
			t.Fatalf("message %d: unexpected outbound %+v", id, a)
		}
	}
	if _, ok := acks[11]; ok {
		t.Fatal("skipped message must not be acknowledged")
	}
	if got := strings.Count(f.read(t, "Daily/2021-07-21.md"), "note"); got != 10 {
		t.Fatalf("expected 10 notes in the daily note, got %d", got)
	}
	if m.Messages.Value() != 11 || m.Skipped.Value() != 1 || m.Inflight.Value() != 0 {
		t.Fatalf("metrics: messages=%d skipped=%d inflight=%d", m.Messages.Value(), m.Skipped.Value(), m.Inflight.Value())
	}
}

func TestRunner_ReportsFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := NewProcessor(Config{
		Resolver: fixedResolver{domain.Target{File: domain.FileHandle{Path: "a.md"}}},
		Writer:   brokenWriter{errors.New("disk full")},
		Settings: func() Settings { return Settings{MessageTemplate: "{{text}}"} },
		Logger:   testLogger(),
	})
	mb := bus.New(4, testLogger())
	box := &outbox{}
	mb.OnOutbound("telegram", box.add)
	r := NewRunner(RunnerConfig{Bus: mb, Processor: p, MaxConcurrent: 1, Logger: testLogger()})

	mb.Publish(domain.Delivery{Channel: "telegram", UpdateID: 1, Message: message("hi")})
	mb.Close()
	r.Run(context.Background())

	got := box.byMessage()[42]
	if got.Kind != domain.OutboundFailure || got.Content != FailureNotice+"disk full" {
		t.Fatalf("unexpected outbound %+v", got)
	}
}

func TestRunner_StopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t, Settings{MessageTemplate: "{{text}}", Location: time.UTC})
	mb := bus.New(4, testLogger())
	defer mb.Close()
	r := NewRunner(RunnerConfig{Bus: mb, Processor: f.proc, MaxConcurrent: 2, Logger: testLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}
