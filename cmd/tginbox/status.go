package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tginbox/internal/config"
	"tginbox/internal/domain"
	"tginbox/internal/journal"
	"tginbox/internal/note"
	"tginbox/internal/template"
)

func statusCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the update cursor and recently ingested messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			fmt.Printf("Config:  %s\n", cfgPath)
			fmt.Printf("Vault:   %s\n", cfg.Vault.Path)
			fmt.Printf("Target:  %s\n", describeTarget(cfg))

			if !cfg.Journal.Enabled {
				fmt.Println("Journal: disabled")
				return nil
			}
			if _, err := os.Stat(cfg.Journal.DBPath); err != nil {
				fmt.Printf("Journal: %s (not created yet)\n", cfg.Journal.DBPath)
				return nil
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			jr, err := journal.Open(cfg.Journal.DBPath, logger)
			if err != nil {
				return err
			}
			defer jr.Close()

			cursor, err := jr.Cursor(ctx, "telegram")
			if err != nil {
				return err
			}
			counts, err := jr.Counts(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Journal: %s\n", cfg.Journal.DBPath)
			fmt.Printf("Cursor:  %d\n", cursor)
			fmt.Printf("Totals:  %d written, %d failed, %d skipped\n",
				counts[journal.StatusWritten], counts[journal.StatusFailed], counts[journal.StatusSkipped])

			entries, err := jr.Recent(ctx, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return nil
			}
			fmt.Println("\nRecent:")
			for _, e := range entries {
				detail := e.Path
				if e.Status != journal.StatusWritten {
					detail = strings.TrimSpace(e.Kind + " " + e.Error)
				}
				fmt.Printf("  %s  %-7s chat=%d msg=%d  %s\n",
					e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Status, e.ChatID, e.MessageID, detail)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of recent entries to show")
	return cmd
}

func describeTarget(cfg *config.Config) string {
	s := cfg.NoteSettings()
	var where string
	if s.CustomFile {
		where = "custom file " + s.PathTemplate
	} else {
		loc, _ := cfg.Location()
		date := note.EffectiveDate(time.Now().In(loc), s.Cutoff)
		d := note.NewDailyNotes(nil, cfg.DailySettings(), logger)
		where = "daily note " + d.Path(date)
	}
	mode := s.Mode().String()
	if s.Mode() == domain.AfterHeading {
		mode += " " + s.Heading
	}
	return where + " (" + mode + ")"
}

func templateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Check and preview message and path templates",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [template]",
		Short: "Check template syntax; without an argument checks the configured templates",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if err := template.Validate(args[0]); err != nil {
					return err
				}
				fmt.Println("ok")
				return nil
			}
			// Load validates both configured templates.
			if _, err := config.Load(resolveConfigPath()); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	})

	var (
		text     string
		name     string
		username string
		asPath   bool
	)
	render := &cobra.Command{
		Use:   "render [template]",
		Short: "Render a template against a sample message sent now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := template.Validate(args[0]); err != nil {
				return err
			}
			msg := domain.InboundMessage{
				Kind:            domain.KindDirect,
				MessageID:       1,
				SenderID:        1,
				SenderUsername:  username,
				SenderFirstName: name,
				Text:            text,
				Timestamp:       time.Now().UTC(),
			}
			loc := time.Local
			if cfg, err := config.Load(resolveConfigPath()); err == nil {
				if l, err := cfg.Location(); err == nil {
					loc = l
				}
			}
			tc := template.NewContext(msg, text, loc)
			if asPath {
				fmt.Println(template.RenderPath(tc, args[0]))
			} else {
				fmt.Println(template.RenderContent(tc, args[0]))
			}
			return nil
		},
	}
	render.Flags().StringVar(&text, "text", "Hello from Telegram", "sample message text")
	render.Flags().StringVar(&name, "name", "Ann", "sample sender name")
	render.Flags().StringVar(&username, "username", "ann", "sample sender username")
	render.Flags().BoolVar(&asPath, "path", false, "render as a note path template")
	cmd.AddCommand(render)

	return cmd
}
