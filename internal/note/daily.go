package note

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"tginbox/internal/domain"
	"tginbox/internal/template"
	"tginbox/internal/vault"
)

const DefaultDailyFormat = "2006-01-02"

// DailySettings controls where daily notes live and what new ones contain.
type DailySettings struct {
	Folder string
	Format string // Go time layout for the file name
	// Template is a vault note copied into new daily notes. {{date}} and {{title}} are substituted.
	Template    string
	Frontmatter bool
	Tags        []string
}

type dailyFrontmatter struct {
	Date string   `yaml:"date"`
	Tags []string `yaml:"tags,omitempty"`
}

// DailyNotes is a domain.DailyNoteProvider backed by the vault store.
type DailyNotes struct {
	store  domain.Store
	logger *slog.Logger

	mu       sync.Mutex
	settings DailySettings
}

// NewDailyNotes creates a provider writing daily notes into store.
func NewDailyNotes(store domain.Store, settings DailySettings, logger *slog.Logger) *DailyNotes {
	d := &DailyNotes{store: store, logger: logger}
	d.SetSettings(settings)
	return d
}

// SetSettings replaces the settings used for subsequent lookups.
func (d *DailyNotes) SetSettings(s DailySettings) {
	if s.Format == "" {
		s.Format = DefaultDailyFormat
	}
	s.Folder = vault.NormalizePath(s.Folder)
	d.mu.Lock()
	d.settings = s
	d.mu.Unlock()
}

// Path returns the vault path of the note for date.
func (d *DailyNotes) Path(date time.Time) string {
	d.mu.Lock()
	s := d.settings
	d.mu.Unlock()
	return dailyPath(s, date)
}

func dailyPath(s DailySettings, date time.Time) string {
	name := vault.EnsureMarkdownExt(date.Format(s.Format))
	if s.Folder == "" {
		return vault.NormalizePath(name)
	}
	return vault.NormalizePath(s.Folder + "/" + name)
}

// GetOrCreateDailyNote holds its lock across lookup and creation so two
// messages for the same day never race to create the note.
func (d *DailyNotes) GetOrCreateDailyNote(ctx context.Context, date time.Time) (domain.FileHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.settings

	p := dailyPath(s, date)
	f, ok, err := d.store.Exists(ctx, p)
	if err != nil {
		return domain.FileHandle{}, err
	}
	if ok {
		return f, nil
	}

	initial, err := d.initialContent(ctx, s, date)
	if err != nil {
		return domain.FileHandle{}, err
	}
	if dir := vault.ParentDir(p); dir != "" {
		if err := d.store.CreateFolder(ctx, dir); err != nil {
			return domain.FileHandle{}, err
		}
	}
	f, err = d.store.Create(ctx, p, initial)
	if err != nil {
		return domain.FileHandle{}, err
	}
	d.logger.Info("daily note created", "path", p)
	return f, nil
}

func (d *DailyNotes) initialContent(ctx context.Context, s DailySettings, date time.Time) (string, error) {
	if s.Template != "" {
		tmpl, err := d.store.Read(ctx, domain.FileHandle{Path: vault.EnsureMarkdownExt(vault.NormalizePath(s.Template))})
		if err != nil {
			return "", fmt.Errorf("daily note template: %w", err)
		}
		return template.Render(tmpl, map[string]string{
			"date":  date.Format(DefaultDailyFormat),
			"title": date.Format(s.Format),
		}), nil
	}
	if !s.Frontmatter {
		return "", nil
	}
	out, err := yaml.Marshal(dailyFrontmatter{Date: date.Format(DefaultDailyFormat), Tags: s.Tags})
	if err != nil {
		return "", fmt.Errorf("daily note frontmatter: %w", err)
	}
	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(out)
	sb.WriteString("---\n")
	return sb.String(), nil
}

var _ domain.DailyNoteProvider = (*DailyNotes)(nil)
