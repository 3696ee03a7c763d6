package journal

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tginbox/internal/bus"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "journal.db"), testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_MigratesToLatest(t *testing.T) {
	s := testStore(t)
	v, err := SchemaVersion(s.db)
	if err != nil {
		t.Fatal(err)
	}
	if v != schemaVersion {
		t.Fatalf("expected schema version %d, got %d", schemaVersion, v)
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetCursor(context.Background(), "telegram", 10); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path, testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.Cursor(context.Background(), "telegram")
	if err != nil || got != 10 {
		t.Fatalf("cursor after reopen: %d, %v", got, err)
	}
}

func TestCursor_OnlyMovesForward(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if got, _ := s.Cursor(ctx, "telegram"); got != 0 {
		t.Fatalf("fresh cursor: %d", got)
	}
	for _, id := range []int{5, 9, 7} {
		if err := s.SetCursor(ctx, "telegram", id); err != nil {
			t.Fatal(err)
		}
	}
	if got, _ := s.Cursor(ctx, "telegram"); got != 9 {
		t.Fatalf("expected 9, got %d", got)
	}
}

func TestRecord_RecentAndCounts(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Minute)

	entries := []Entry{
		{ChatID: 1, MessageID: 1, Path: "a.md", Mode: "append", Status: StatusWritten, CreatedAt: base},
		{ChatID: 1, MessageID: 2, Status: StatusFailed, Kind: "store_io", Error: "disk full", CreatedAt: base.Add(time.Second)},
		{ChatID: 1, MessageID: 3, Path: "a.md", Mode: "append", Status: StatusWritten, CreatedAt: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		if err := s.Record(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].MessageID != 3 || recent[1].MessageID != 2 {
		t.Fatalf("unexpected order: %+v", recent)
	}
	if recent[0].ID == "" || recent[0].ID == recent[1].ID {
		t.Fatalf("ids not assigned: %q %q", recent[0].ID, recent[1].ID)
	}
	if recent[1].Kind != "store_io" || recent[1].Error != "disk full" {
		t.Fatalf("failure fields lost: %+v", recent[1])
	}

	counts, err := s.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[StatusWritten] != 2 || counts[StatusFailed] != 1 {
		t.Fatalf("counts: %v", counts)
	}
}

func TestPrune(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	old := Entry{ChatID: 1, MessageID: 1, Status: StatusWritten, CreatedAt: time.Now().UTC().Add(-48 * time.Hour)}
	fresh := Entry{ChatID: 1, MessageID: 2, Status: StatusWritten}
	for _, e := range []Entry{old, fresh} {
		if err := s.Record(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	n, err := s.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned, got %d", n)
	}
}

func TestSubscribe_RecordsEvents(t *testing.T) {
	s := testStore(t)
	eb := bus.NewEventBus(testLogger())
	s.Subscribe(eb)

	eb.Emit(bus.Event{Type: bus.EventUpdateSeen, Payload: map[string]any{"channel": "telegram", "update_id": 77}})
	eb.Emit(bus.Event{Type: bus.EventNoteWritten, Payload: map[string]any{
		"chat_id": int64(5), "message_id": int64(6), "path": "Daily/2021-07-21.md", "mode": "append",
	}})
	eb.Emit(bus.Event{Type: bus.EventMessageSkipped, Payload: map[string]any{
		"chat_id": int64(5), "message_id": int64(7), "reason": "empty content",
	}})

	ctx := context.Background()
	if got, _ := s.Cursor(ctx, "telegram"); got != 77 {
		t.Fatalf("cursor: %d", got)
	}
	recent, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(recent))
	}
	var written, skipped *Entry
	for i := range recent {
		switch recent[i].Status {
		case StatusWritten:
			written = &recent[i]
		case StatusSkipped:
			skipped = &recent[i]
		}
	}
	if written == nil || written.Path != "Daily/2021-07-21.md" || written.ChatID != 5 || written.MessageID != 6 {
		t.Fatalf("written entry: %+v", written)
	}
	if skipped == nil || skipped.Error != "empty content" {
		t.Fatalf("skipped entry: %+v", skipped)
	}
}
