// Package vault stores notes on disk and serializes every mutation through one gate.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"tginbox/internal/domain"
)

// FSStore implements domain.Store on a directory.
type FSStore struct {
	root   string
	logger *slog.Logger
}

// NewFSStore opens root as a vault, creating the directory if needed.
func NewFSStore(root string, logger *slog.Logger) (*FSStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve vault root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create vault root %s: %w", abs, err)
	}
	return &FSStore{root: abs, logger: logger}, nil
}

// Root returns the absolute vault directory.
func (s *FSStore) Root() string { return s.root }

// resolve maps a vault path to disk and rejects anything escaping the root.
func (s *FSStore) resolve(p string) (string, error) {
	p = NormalizePath(p)
	full := filepath.Join(s.root, filepath.FromSlash(p))
	if full != s.root && !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside vault %q", p, s.root)
	}
	return full, nil
}

func (s *FSStore) Read(ctx context.Context, f domain.FileHandle) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, err := s.resolve(f.Path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("read note: %w", err)
	}
	return string(data), nil
}

// Write replaces the note through a temp file and rename so a crash never leaves a half written note.
func (s *FSStore) Write(ctx context.Context, f domain.FileHandle, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(f.Path)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), "."+filepath.Base(full)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write note: %w", err)
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write note: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write note: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write note: %w", err)
	}
	return nil
}

func (s *FSStore) Exists(ctx context.Context, p string) (domain.FileHandle, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.FileHandle{}, false, err
	}
	full, err := s.resolve(p)
	if err != nil {
		return domain.FileHandle{}, false, err
	}
	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.FileHandle{}, false, nil
	}
	if err != nil {
		return domain.FileHandle{}, false, fmt.Errorf("stat note: %w", err)
	}
	if info.IsDir() {
		return domain.FileHandle{}, false, fmt.Errorf("%s is a folder", p)
	}
	return domain.FileHandle{Path: NormalizePath(p)}, true, nil
}

// Create makes a new note and fails if one already exists at p.
func (s *FSStore) Create(ctx context.Context, p, initial string) (domain.FileHandle, error) {
	if err := ctx.Err(); err != nil {
		return domain.FileHandle{}, err
	}
	full, err := s.resolve(p)
	if err != nil {
		return domain.FileHandle{}, err
	}
	fh, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return domain.FileHandle{}, fmt.Errorf("create note: %w", err)
	}
	if _, err := fh.WriteString(initial); err != nil {
		fh.Close()
		return domain.FileHandle{}, fmt.Errorf("create note: %w", err)
	}
	if err := fh.Close(); err != nil {
		return domain.FileHandle{}, fmt.Errorf("create note: %w", err)
	}
	s.logger.Debug("note created", "path", NormalizePath(p))
	return domain.FileHandle{Path: NormalizePath(p)}, nil
}

func (s *FSStore) CreateFolder(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(full, 0o755); err != nil {
		return fmt.Errorf("create folder: %w", err)
	}
	return nil
}

var _ domain.Store = (*FSStore)(nil)
