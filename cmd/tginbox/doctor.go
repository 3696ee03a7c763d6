package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"tginbox/internal/config"
	"tginbox/internal/journal"
	"tginbox/internal/vault"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your tginbox setup",
		Long: `Verifies that the configuration, vault, journal database and
metrics port are usable. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("tginbox doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'tginbox init' to create a default configuration.\n")
				return fmt.Errorf("config file missing")
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				fmt.Printf("\n%d passed, 1 failed\n", passed)
				return err
			}
			printPass("Config validation", "valid")
			passed++

			// 3. Telegram
			switch {
			case !cfg.Telegram.Enabled:
				printWarn("Telegram", "disabled, 'tginbox run' will refuse to start")
				warned++
			case len(cfg.Telegram.AllowFrom) == 0:
				printWarn("Telegram", "allowFrom is empty, every chat will be ignored")
				warned++
			default:
				printPass("Telegram", fmt.Sprintf("%d allowed chat(s)", len(cfg.Telegram.AllowFrom)))
				passed++
			}

			// 4. Vault writable
			if err := checkVault(cfg.Vault.Path); err != nil {
				printFail("Vault", err.Error())
				failed++
			} else {
				printPass("Vault", cfg.Vault.Path)
				passed++
			}

			// 5. Daily note template present
			if t := cfg.DailyNotes.Template; t != "" {
				p := filepath.Join(cfg.Vault.Path, filepath.FromSlash(vault.EnsureMarkdownExt(vault.NormalizePath(t))))
				if _, err := os.Stat(p); err != nil {
					printFail("Daily template", fmt.Sprintf("not found: %s", p))
					failed++
				} else {
					printPass("Daily template", p)
					passed++
				}
			}

			// 6. Journal database
			if cfg.Journal.Enabled {
				if err := checkJournal(cfg.Journal.DBPath); err != nil {
					printFail("Journal", err.Error())
					failed++
				} else {
					printPass("Journal", cfg.Journal.DBPath)
					passed++
				}
			}

			// 7. Metrics port
			if cfg.Metrics.Enabled {
				if err := checkAddr(cfg.Metrics.Addr); err != nil {
					printWarn("Metrics", fmt.Sprintf("%s may be in use: %v", cfg.Metrics.Addr, err))
					warned++
				} else {
					printPass("Metrics", cfg.Metrics.Addr+" available")
					passed++
				}
			}

			// 8. Log file writable
			if cfg.General.LogFile != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
					printWarn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
					warned++
				} else {
					printPass("Log file", cfg.General.LogFile)
					passed++
				}
			}

			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running tginbox.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned == 0 {
				fmt.Printf("\nAll checks passed! tginbox is ready to run.\n")
			}
			return nil
		},
	}
}

// checkVault creates and removes a probe file in the vault root.
func checkVault(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("not found: %s", root)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", root)
	}
	f, err := os.CreateTemp(root, ".tginbox-doctor-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func checkJournal(dbPath string) error {
	jr, err := journal.Open(dbPath, logger)
	if err != nil {
		return err
	}
	defer jr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := jr.Cursor(ctx, "telegram"); err != nil {
		return fmt.Errorf("cannot read: %w", err)
	}
	return nil
}

func checkAddr(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
