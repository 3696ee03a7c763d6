package vault

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"tginbox/internal/domain"
)

// Coordinator applies insertions to the store one at a time. Every Insert on
// the same Coordinator shares one critical section, across all files.
type Coordinator struct {
	store  domain.Store
	logger *slog.Logger

	mu sync.Mutex
}

// NewCoordinator serializes every insert into store behind one lock.
func NewCoordinator(store domain.Store, logger *slog.Logger) *Coordinator {
	return &Coordinator{store: store, logger: logger}
}

// Insert performs the read-modify-write for one message.
func (c *Coordinator) Insert(ctx context.Context, content string, target domain.Target) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.store.Read(ctx, target.File)
	if err != nil {
		return &domain.Error{Kind: domain.ErrStoreIO, Op: "read", Path: target.File.Path, Err: err}
	}

	var updated string
	switch target.Mode {
	case domain.PrependAfterFrontmatter:
		updated = PrependAfterFrontmatter(data, content)
	case domain.AfterHeading:
		updated = InsertAfterHeading(data, content, target.Heading)
	case domain.Append:
		updated = AppendMessage(data, content)
	default:
		return &domain.Error{Kind: domain.ErrStoreIO, Op: "insert", Path: target.File.Path,
			Err: fmt.Errorf("unknown insertion mode %d", target.Mode)}
	}

	if err := c.store.Write(ctx, target.File, updated); err != nil {
		return &domain.Error{Kind: domain.ErrStoreIO, Op: "write", Path: target.File.Path, Err: err}
	}
	c.logger.Debug("note updated", "path", target.File.Path, "mode", target.Mode.String())
	return nil
}
