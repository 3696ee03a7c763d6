// Package note decides which vault note a message is written to.
package note

import (
	"context"
	"errors"
	"log/slog"

	"tginbox/internal/domain"
	"tginbox/internal/template"
	"tginbox/internal/vault"
)

// Settings is the subset of ingest settings the resolver reads.
type Settings struct {
	CustomFile     bool
	PathTemplate   string
	Cutoff         Cutoff
	ReverseOrder   bool
	HeadingEnabled bool
	Heading        string
}

// Mode returns the insertion mode the flags select.
func (s Settings) Mode() domain.InsertionMode {
	switch {
	case s.HeadingEnabled:
		return domain.AfterHeading
	case s.ReverseOrder:
		return domain.PrependAfterFrontmatter
	default:
		return domain.Append
	}
}

type Config struct {
	Store  domain.Store
	Daily  domain.DailyNoteProvider
	Logger *slog.Logger
}

type Resolver struct {
	store  domain.Store
	daily  domain.DailyNoteProvider
	logger *slog.Logger
}

// NewResolver creates a resolver over cfg.Store and cfg.Daily.
func NewResolver(cfg Config) *Resolver {
	return &Resolver{store: cfg.Store, daily: cfg.Daily, logger: cfg.Logger}
}

// Resolve returns the target for a message. Task messages always go to the daily note.
func (r *Resolver) Resolve(ctx context.Context, tc template.Context, isTask bool, s Settings) (domain.Target, error) {
	var (
		f   domain.FileHandle
		err error
	)
	if s.CustomFile && !isTask {
		f, err = r.customFile(ctx, tc, s.PathTemplate)
	} else {
		f, err = r.dailyNote(ctx, tc, s.Cutoff)
	}
	if err != nil {
		return domain.Target{}, err
	}

	t := domain.Target{File: f, Mode: s.Mode()}
	if t.Mode == domain.AfterHeading {
		t.Heading = s.Heading
	}
	return t, nil
}

func (r *Resolver) customFile(ctx context.Context, tc template.Context, tmpl string) (domain.FileHandle, error) {
	p := vault.NormalizePath(template.RenderPath(tc, tmpl))
	if p == "" {
		return domain.FileHandle{}, &domain.Error{Kind: domain.ErrTargetResolution, Op: "resolve custom file",
			Err: errors.New("path template rendered an empty path")}
	}
	p = vault.EnsureMarkdownExt(p)

	f, ok, err := r.store.Exists(ctx, p)
	if err != nil {
		return domain.FileHandle{}, &domain.Error{Kind: domain.ErrTargetResolution, Op: "lookup", Path: p, Err: err}
	}
	if ok {
		return f, nil
	}

	if dir := vault.ParentDir(p); dir != "" {
		if err := r.store.CreateFolder(ctx, dir); err != nil {
			return domain.FileHandle{}, &domain.Error{Kind: domain.ErrTargetResolution, Op: "create folder", Path: dir, Err: err}
		}
	}
	f, err = r.store.Create(ctx, p, "")
	if err != nil {
		// Another message may have created it first.
		if existing, ok, lookupErr := r.store.Exists(ctx, p); lookupErr == nil && ok {
			return existing, nil
		}
		return domain.FileHandle{}, &domain.Error{Kind: domain.ErrTargetResolution, Op: "create note", Path: p, Err: err}
	}
	r.logger.Info("custom note created", "path", p)
	return f, nil
}

func (r *Resolver) dailyNote(ctx context.Context, tc template.Context, c Cutoff) (domain.FileHandle, error) {
	date := EffectiveDate(tc.Time, c)
	f, err := r.daily.GetOrCreateDailyNote(ctx, date)
	if err != nil {
		return domain.FileHandle{}, &domain.Error{Kind: domain.ErrTargetResolution, Op: "daily note",
			Path: date.Format("2006-01-02"), Err: err}
	}
	return f, nil
}
