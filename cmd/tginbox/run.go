package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tginbox/internal/bus"
	"tginbox/internal/channel"
	"tginbox/internal/config"
	"tginbox/internal/journal"
	"tginbox/internal/metrics"
	"tginbox/internal/note"
	"tginbox/internal/pipeline"
	"tginbox/internal/vault"
)

const (
	busBufferSize  = 100
	reloadDebounce = 500 * time.Millisecond
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Receive Telegram messages and write them to the vault",
		Long:  "Polls Telegram and writes every accepted message into the vault. Press Ctrl+C to stop.",
		RunE:  runIngest,
	}
}

// pipelineSettings snapshots the parts of cfg the processor reads per message.
func pipelineSettings(cfg *config.Config) (*pipeline.Settings, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &pipeline.Settings{
		MessageTemplate:  cfg.Ingest.MessageTemplate,
		MarkdownEscaper:  cfg.Ingest.MarkdownEscaper,
		RemoveFormatting: cfg.Ingest.RemoveFormatting,
		Location:         loc,
		Note:             cfg.NoteSettings(),
	}, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, closeLog, err := setupLogger(cfg.General)
	if err != nil {
		return err
	}
	defer closeLog()
	logger = log

	if !cfg.Telegram.Enabled {
		return errors.New("telegram is disabled: set telegram.enabled and telegram.token")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := bus.NewEventBus(logger)
	messageBus := bus.New(busBufferSize, logger)

	// Journal: update cursor and ingest log.
	offset := 0
	if cfg.Journal.Enabled {
		jr, err := journal.Open(cfg.Journal.DBPath, logger)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		defer jr.Close()
		jr.Subscribe(events)

		cursor, err := jr.Cursor(ctx, "telegram")
		if err != nil {
			return fmt.Errorf("journal cursor: %w", err)
		}
		if cursor > 0 {
			offset = cursor + 1
		}
		if days := cfg.Journal.RetentionDays; days > 0 {
			if n, err := jr.Prune(ctx, time.Duration(days)*24*time.Hour); err != nil {
				logger.Warn("journal prune failed", "err", err)
			} else if n > 0 {
				logger.Info("journal pruned", "entries", n)
			}
		}
	}

	// Metrics
	var ingestMetrics *metrics.Ingest
	metricsDone := make(chan struct{})
	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector("tginbox")
		ingestMetrics = metrics.NewIngest(collector)
		ingestMetrics.Subscribe(events)
		go func() {
			defer close(metricsDone)
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, cfg.Metrics.Endpoint, collector, logger); err != nil {
				logger.Error("metrics server error", "err", err)
			}
		}()
	} else {
		close(metricsDone)
	}

	// Vault
	store, err := vault.NewFSStore(cfg.Vault.Path, logger)
	if err != nil {
		return fmt.Errorf("vault: %w", err)
	}
	daily := note.NewDailyNotes(store, cfg.DailySettings(), logger)
	resolver := note.NewResolver(note.Config{Store: store, Daily: daily, Logger: logger})
	coordinator := vault.NewCoordinator(store, logger)

	// Settings are swapped as one snapshot on reload.
	initial, err := pipelineSettings(cfg)
	if err != nil {
		return err
	}
	var settings atomic.Pointer[pipeline.Settings]
	settings.Store(initial)

	holder := config.NewHolder(cfg)
	holder.OnChange(func(next *config.Config) {
		s, err := pipelineSettings(next)
		if err != nil {
			logger.Warn("reloaded config rejected", "err", err)
			return
		}
		daily.SetSettings(next.DailySettings())
		settings.Store(s)
		logger.Info("ingest settings reloaded",
			"custom_file", next.Ingest.CustomFile,
			"cutoff", next.Ingest.DailyNoteCutoff,
			"mode", next.NoteSettings().Mode().String(),
		)
		if next.Telegram.Token != cfg.Telegram.Token || next.Vault.Path != cfg.Vault.Path {
			logger.Warn("telegram and vault changes take effect after restart")
		}
	})

	watcher, err := config.NewWatcher(config.WatcherConfig{
		Path: cfgPath, Holder: holder, Logger: logger, Debounce: reloadDebounce,
	})
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		logger.Warn("config hot reload disabled", "err", err)
	}
	defer watcher.Stop()

	proc := pipeline.NewProcessor(pipeline.Config{
		Resolver: resolver,
		Writer:   coordinator,
		Settings: func() pipeline.Settings { return *settings.Load() },
		Events:   events,
		Logger:   logger,
	})
	runner := pipeline.NewRunner(pipeline.RunnerConfig{
		Bus:           messageBus,
		Processor:     proc,
		MaxConcurrent: int64(cfg.General.MaxConcurrentMessages),
		Events:        events,
		Metrics:       ingestMetrics,
		Logger:        logger,
	})

	// The runner drains the bus after shutdown starts, so it does not share ctx.
	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		runner.Run(context.WithoutCancel(ctx))
	}()

	telegramCh := channel.NewTelegram(channel.TelegramConfig{
		Token:          cfg.Telegram.Token,
		AllowFrom:      cfg.Telegram.AllowFrom,
		PollTimeoutSec: cfg.Telegram.PollTimeoutSec,
		Offset:         offset,
		Reaction:       cfg.Telegram.Reaction,
		Events:         events,
		Logger:         logger,
	})
	telegramDone := make(chan error, 1)
	go func() {
		telegramDone <- telegramCh.Start(ctx, messageBus)
	}()

	logger.Info("tginbox started. Press Ctrl+C to stop.",
		"version", version,
		"vault", store.Root(),
		"offset", offset,
	)

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-telegramDone:
		// Start only returns early when the bot cannot connect.
		if err != nil {
			runErr = err
			logger.Error("telegram channel error", "err", err)
		}
		stop()
		telegramDone <- nil
	}
	logger.Info("shutting down...")

	shutdownTimeout := time.Duration(cfg.General.ShutdownTimeoutSec) * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-telegramDone
		telegramCh.Stop()
		messageBus.Close()
		<-runnerDone
		<-metricsDone
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, in-flight messages may be lost")
		if runErr == nil {
			runErr = errors.New("shutdown timed out")
		}
	}
	return runErr
}
