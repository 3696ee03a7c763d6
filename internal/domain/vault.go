package domain

import (
	"context"
	"time"
)

// FileHandle points at a note inside the vault. Path is vault-relative with forward slashes.
type FileHandle struct {
	Path string
}

// InsertionMode decides where new content lands inside a note.
type InsertionMode int

const (
	Append InsertionMode = iota
	PrependAfterFrontmatter
	AfterHeading
)

func (m InsertionMode) String() string {
	switch m {
	case Append:
		return "append"
	case PrependAfterFrontmatter:
		return "prepend"
	case AfterHeading:
		return "after_heading"
	default:
		return "unknown"
	}
}

// Target is the resolved destination of one message.
type Target struct {
	File    FileHandle
	Mode    InsertionMode
	Heading string // AfterHeading only
}

// Store is the vault file store.
type Store interface {
	Read(ctx context.Context, f FileHandle) (string, error)
	Write(ctx context.Context, f FileHandle, content string) error
	// Exists reports whether a note exists at path and returns its handle.
	Exists(ctx context.Context, path string) (FileHandle, bool, error)
	Create(ctx context.Context, path, initial string) (FileHandle, error)
	// CreateFolder succeeds when the folder already exists.
	CreateFolder(ctx context.Context, path string) error
}

// DailyNoteProvider looks up or creates the dated note for a calendar day.
type DailyNoteProvider interface {
	GetOrCreateDailyNote(ctx context.Context, date time.Time) (FileHandle, error)
}
