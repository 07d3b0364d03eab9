package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"disbahn/bot"
	"disbahn/config"
	"disbahn/database"
	"disbahn/discord"
	"disbahn/feed"
	"disbahn/logger"
	"disbahn/reconciler"
	"disbahn/refresher"

	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "disbahn:", err)
		os.Exit(1)
	}
}

func run() error {
	daemon, err := parseArgs(os.Args[1:])
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.MustSetupLogger(&logger.Config{
		Level:      cfg.Log.Level,
		FormatJSON: cfg.Log.FormatJSON,
		Rotation: logger.Rotation{
			File:       cfg.Log.Rotation.File,
			MaxSize:    cfg.Log.Rotation.MaxSize,
			MaxBackups: cfg.Log.Rotation.MaxBackups,
			MaxAge:     cfg.Log.Rotation.MaxAge,
		},
	})
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.InitDB(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("Connected to database", zap.String("path", cfg.Database.Path))

	webhooks := make([]discord.Webhook, 0, len(cfg.Webhook.URLs))
	for _, rawURL := range cfg.Webhook.URLs {
		wh, err := discord.ParseWebhookURL(rawURL)
		if err != nil {
			return err
		}
		webhooks = append(webhooks, wh)
	}

	client, err := discord.NewClient(webhooks)
	if err != nil {
		return err
	}

	source, err := feed.NewSource(log, cfg.Feed.URL)
	if err != nil {
		return err
	}

	store := database.NewPostStore(db)
	engine := reconciler.New(log, store, client)
	ref := refresher.New(log, source, engine, store, client.WebhookIDs())

	if daemon {
		return bot.New(log, ref, cfg.Daemon.Cron, cfg.Daemon.RefreshAtStartup).Run(ctx)
	}
	return ref.Refresh(ctx)
}

// parseArgs accepts no arguments for a single refresh pass, or the single
// argument "daemon" for scheduled passes.
func parseArgs(args []string) (daemon bool, err error) {
	switch len(args) {
	case 0:
		return false, nil
	case 1:
		if args[0] == "daemon" {
			return true, nil
		}
		return false, fmt.Errorf("invalid argument %q; the only allowed argument is \"daemon\"", args[0])
	default:
		return false, fmt.Errorf("too many arguments")
	}
}
