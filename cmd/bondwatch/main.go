package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bondwatch/internal/config"
	"bondwatch/internal/ledger"
	"bondwatch/internal/model"
	"bondwatch/internal/pipeline"
	"bondwatch/internal/poller"
	"bondwatch/internal/storage"
	"bondwatch/internal/store"
	"bondwatch/internal/store/postgres"
	"bondwatch/internal/webhook"
)

func main() {
	root := &cobra.Command{
		Use:          "bondwatch",
		Short:        "Bond withdrawal watcher and webhook notifier",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the ledger poller and webhook dispatcher",
		RunE:  runWatcher,
	}

	runCmd.Flags().String("ledger-url", "", "ledger operations API base URL")
	runCmd.Flags().String("source-account", "", "restrict withdrawal candidates to this source account")
	runCmd.Flags().Int("page-size", 100, "operations per poll page")
	runCmd.Flags().Duration("poll-interval", 30*time.Second, "delay between poll cycles")
	runCmd.Flags().String("cursor", "", "initial resumption token (overrides the stored cursor)")
	runCmd.Flags().String("cursor-file", "./data/cursor.json", "cursor file path (used without --pg-dsn)")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN for persistent stores")
	runCmd.Flags().String("archive", "", "optional JSONL archive of processed withdrawals")
	runCmd.Flags().Duration("min-delivery-gap", 100*time.Millisecond, "minimum spacing between deliveries to one webhook")
	runCmd.Flags().Int("max-retries", 3, "delivery retries after the first attempt")
	runCmd.Flags().Duration("initial-retry-delay", time.Second, "initial delivery backoff delay")
	runCmd.Flags().Duration("delivery-timeout", 5*time.Second, "per-attempt delivery timeout")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	emitCmd := &cobra.Command{
		Use:   "emit",
		Short: "Dispatch a synthetic lifecycle event to subscribers",
		RunE:  runEmit,
	}

	emitCmd.Flags().String("event", string(model.EventBondCreated), "lifecycle event type")
	emitCmd.Flags().String("address", "", "account address carried in the payload")
	emitCmd.Flags().String("amount", "0", "bonded amount carried in the payload")
	emitCmd.Flags().Bool("active", true, "active flag carried in the payload")
	emitCmd.Flags().String("pg-dsn", "", "Postgres DSN holding webhook configurations")
	emitCmd.Flags().String("url", "", "ad-hoc webhook URL (used without --pg-dsn)")
	emitCmd.Flags().String("secret", "", "ad-hoc webhook signing secret")
	emitCmd.Flags().Duration("min-delivery-gap", 100*time.Millisecond, "minimum spacing between deliveries to one webhook")
	emitCmd.Flags().Duration("delivery-timeout", 5*time.Second, "per-attempt delivery timeout")
	emitCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(emitCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runWatcher(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.LedgerURL == "" {
		return fmt.Errorf("ledger url is required")
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	var (
		bonds    store.BondStore
		webhooks store.WebhookStore
		history  store.ScoreHistoryStore
		cursors  store.CursorStore
	)
	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		bonds, webhooks, history, cursors = pg.Bonds(), pg.Webhooks(), pg.ScoreHistory(), pg.Cursor()
	} else {
		bonds = store.NewMemoryBondStore()
		webhooks = store.NewMemoryWebhookStore()
		history = store.NewMemoryScoreHistoryStore()
		cursors = store.NewFileCursorStore(cfg.CursorFile)
	}

	ledgerClient, err := ledger.NewClient(cfg.LedgerURL, 0)
	if err != nil {
		return err
	}

	opts := webhook.DeliveryOptions{
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: cfg.InitialRetryDelay,
		Timeout:      cfg.DeliveryTimeout,
	}
	dispatcher := webhook.NewDispatcher(
		webhooks,
		webhook.NewDeliverer(nil, logger),
		webhook.NewRateLimiter(cfg.MinDeliveryGap),
		opts,
		logger,
	)

	var archive storage.Archive
	if cfg.ArchivePath != "" {
		archive = storage.NewJsonlArchive(cfg.ArchivePath)
	}

	processor := pipeline.NewProcessor(bonds, history, pipeline.FixedScore(0), dispatcher, archive, logger)

	watcher := poller.New(poller.Config{
		PageSize:      cfg.PageSize,
		Interval:      cfg.PollInterval,
		SourceAccount: cfg.SourceAccount,
	}, ledgerClient, processor.HandleWithdrawal, cursors, logger)

	cursor := cfg.Cursor
	if cursor == "" {
		stored, found, err := cursors.Load(ctx)
		if err != nil {
			return fmt.Errorf("load cursor: %w", err)
		}
		if found {
			cursor = stored
			logger.Info("resume from stored cursor", zap.String("cursor", cursor))
		}
	}
	watcher.SetCursor(cursor)

	logger.Info("bondwatch start",
		zap.String("ledger_url", cfg.LedgerURL),
		zap.String("source_account", cfg.SourceAccount),
		zap.Int("page_size", cfg.PageSize),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Bool("postgres", cfg.PGDSN != ""),
	)

	watcher.Start()
	<-ctx.Done()
	watcher.Stop()

	return nil
}

func runEmit(cmd *cobra.Command, _ []string) error {
	logLevel, _ := cmd.Flags().GetString("log-level")
	logger, err := newLogger(logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	eventRaw, _ := cmd.Flags().GetString("event")
	event := model.EventType(eventRaw)
	if !event.Valid() {
		return fmt.Errorf("unknown event type: %s", eventRaw)
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	var webhooks store.WebhookStore
	pgDSN, _ := cmd.Flags().GetString("pg-dsn")
	if pgDSN != "" {
		pg, err := postgres.NewStore(ctx, pgDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		webhooks = pg.Webhooks()
	} else {
		mem := store.NewMemoryWebhookStore()
		url, _ := cmd.Flags().GetString("url")
		secret, _ := cmd.Flags().GetString("secret")
		if url == "" {
			return fmt.Errorf("either --pg-dsn or --url is required")
		}
		if _, err := mem.Set(ctx, model.WebhookConfig{
			URL:    url,
			Events: []model.EventType{event},
			Secret: secret,
			Active: true,
		}); err != nil {
			return err
		}
		webhooks = mem
	}

	gap, _ := cmd.Flags().GetDuration("min-delivery-gap")
	timeout, _ := cmd.Flags().GetDuration("delivery-timeout")
	dispatcher := webhook.NewDispatcher(
		webhooks,
		webhook.NewDeliverer(nil, logger),
		webhook.NewRateLimiter(gap),
		webhook.DeliveryOptions{Timeout: timeout},
		logger,
	)

	address, _ := cmd.Flags().GetString("address")
	amount, _ := cmd.Flags().GetString("amount")
	active, _ := cmd.Flags().GetBool("active")

	results, err := dispatcher.Emit(ctx, event, model.IdentityState{
		Address:      address,
		BondedAmount: amount,
		Active:       active,
	})
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	for _, res := range results {
		if err := encoder.Encode(res); err != nil {
			return err
		}
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
