package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tginbox/internal/note"
	"tginbox/internal/template"
)

// Config is the root configuration for tginbox.
type Config struct {
	General    GeneralConfig    `json:"general"`
	Telegram   TelegramConfig   `json:"telegram"`
	Vault      VaultConfig      `json:"vault"`
	DailyNotes DailyNotesConfig `json:"dailyNotes"`
	Ingest     IngestConfig     `json:"ingest"`
	Journal    JournalConfig    `json:"journal"`
	Metrics    MetricsConfig    `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel              string `json:"logLevel"`
	LogFile               string `json:"logFile,omitempty"` // optional log file path
	MaxConcurrentMessages int    `json:"maxConcurrentMessages"`
	Timezone              string `json:"timezone,omitempty"` // IANA name; empty = host local zone
	ShutdownTimeoutSec    int    `json:"shutdownTimeoutSeconds"`
}

type TelegramConfig struct {
	Enabled        bool           `json:"enabled"`
	Token          string         `json:"token"`
	AllowFrom      FlexStringList `json:"allowFrom"`
	PollTimeoutSec int            `json:"pollTimeoutSeconds"`
	Reaction       string         `json:"reaction"`
}

// FlexStringList is a []string that can unmarshal from JSON arrays containing
// both strings and numbers (e.g. ["123", 456] both become "123", "456").
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

type VaultConfig struct {
	Path string `json:"path"`
}

type DailyNotesConfig struct {
	Folder      string   `json:"folder"`
	Format      string   `json:"format"` // Go time layout
	Template    string   `json:"template,omitempty"`
	Frontmatter bool     `json:"frontmatter"`
	Tags        []string `json:"tags,omitempty"`
}

// IngestConfig holds the per-message settings. All of them may change while running.
type IngestConfig struct {
	MessageTemplate  string `json:"messageTemplate"`
	MarkdownEscaper  bool   `json:"markdownEscaper"`
	RemoveFormatting bool   `json:"removeFormatting"`
	CustomFile       bool   `json:"customFile"`
	CustomFilePath   string `json:"customFilePath"`
	ReverseOrder     bool   `json:"reverseOrder"`
	DailyNoteCutoff  string `json:"dailyNoteCutoff"` // "HH:MM"
	InsertAfterHead  bool   `json:"insertAfterHeading"`
	TargetHeading    string `json:"targetHeading"`
}

type JournalConfig struct {
	Enabled       bool   `json:"enabled"`
	DBPath        string `json:"dbPath"`
	RetentionDays int    `json:"retentionDays"`
}

// MetricsConfig configures the Prometheus text endpoint.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Endpoint string `json:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.tginbox).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tginbox"
	}
	return filepath.Join(home, ".tginbox")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Vault.Path = ExpandPath(cfg.Vault.Path)
	cfg.Journal.DBPath = ExpandPath(cfg.Journal.DBPath)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	// The file holds the bot token.
	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	if cfg.General.MaxConcurrentMessages < 1 || cfg.General.MaxConcurrentMessages > 100 {
		errs = append(errs, "general.maxConcurrentMessages must be between 1 and 100")
	}
	if cfg.General.ShutdownTimeoutSec < 1 {
		errs = append(errs, "general.shutdownTimeoutSeconds must be >= 1")
	}
	if _, err := cfg.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("general.timezone: %v", err))
	}

	if cfg.Telegram.Enabled && cfg.Telegram.Token == "" {
		errs = append(errs, "telegram.token is required when telegram is enabled")
	}
	if cfg.Telegram.PollTimeoutSec < 1 {
		errs = append(errs, "telegram.pollTimeoutSeconds must be >= 1")
	}

	if cfg.Vault.Path == "" {
		errs = append(errs, "vault.path is required")
	}
	if cfg.DailyNotes.Format == "" {
		errs = append(errs, "dailyNotes.format is required")
	}

	if _, err := note.ParseCutoff(cfg.Ingest.DailyNoteCutoff); err != nil {
		errs = append(errs, fmt.Sprintf("ingest.dailyNoteCutoff: %v", err))
	}
	if err := template.Validate(cfg.Ingest.MessageTemplate); err != nil {
		errs = append(errs, fmt.Sprintf("ingest.messageTemplate: %v", err))
	}
	if err := template.Validate(cfg.Ingest.CustomFilePath); err != nil {
		errs = append(errs, fmt.Sprintf("ingest.customFilePath: %v", err))
	}
	if cfg.Ingest.CustomFile && strings.TrimSpace(cfg.Ingest.CustomFilePath) == "" {
		errs = append(errs, "ingest.customFilePath is required when ingest.customFile is set")
	}
	if cfg.Ingest.InsertAfterHead && strings.TrimSpace(cfg.Ingest.TargetHeading) == "" {
		errs = append(errs, "ingest.targetHeading is required when ingest.insertAfterHeading is set")
	}

	if cfg.Journal.Enabled && cfg.Journal.DBPath == "" {
		errs = append(errs, "journal.dbPath is required when the journal is enabled")
	}
	if cfg.Journal.RetentionDays < 0 {
		errs = append(errs, "journal.retentionDays must be >= 0")
	}

	if cfg.Metrics.Enabled {
		if err := validateAddr(cfg.Metrics.Addr); err != nil {
			errs = append(errs, fmt.Sprintf("metrics.addr: %v", err))
		}
		if !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
			errs = append(errs, "metrics.endpoint must start with /")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateAddr(addr string) error {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return fmt.Errorf("%q has no port", addr)
	}
	port, err := strconv.Atoi(addr[i+1:])
	if err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535")
	}
	return nil
}

// Location returns the zone message times are rendered in.
func (c *Config) Location() (*time.Location, error) {
	if c.General.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.General.Timezone)
}

// NoteSettings converts the ingest section for the note resolver.
// The config must have passed Validate.
func (c *Config) NoteSettings() note.Settings {
	cutoff, _ := note.ParseCutoff(c.Ingest.DailyNoteCutoff)
	return note.Settings{
		CustomFile:     c.Ingest.CustomFile,
		PathTemplate:   c.Ingest.CustomFilePath,
		Cutoff:         cutoff,
		ReverseOrder:   c.Ingest.ReverseOrder,
		HeadingEnabled: c.Ingest.InsertAfterHead,
		Heading:        c.Ingest.TargetHeading,
	}
}

func (c *Config) DailySettings() note.DailySettings {
	return note.DailySettings{
		Folder:      c.DailyNotes.Folder,
		Format:      c.DailyNotes.Format,
		Template:    c.DailyNotes.Template,
		Frontmatter: c.DailyNotes.Frontmatter,
		Tags:        c.DailyNotes.Tags,
	}
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
