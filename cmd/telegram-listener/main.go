package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kellybasil185/notification-proxy-server/internal/config"
	"github.com/kellybasil185/notification-proxy-server/internal/domain"
	"github.com/kellybasil185/notification-proxy-server/internal/metrics"
	"github.com/kellybasil185/notification-proxy-server/internal/platform"
	"github.com/kellybasil185/notification-proxy-server/internal/relay"
	"github.com/kellybasil185/notification-proxy-server/internal/session"
	"github.com/kellybasil185/notification-proxy-server/internal/sink"
)

var (
	version    = "0.1.0"
	configPath string // overridable via --config flag
)

func main() {
	root := &cobra.Command{
		Use:   "telegram-listener",
		Short: "Relay Telegram messages to the notification proxy",
		Long:  "telegram-listener watches a fixed set of Telegram chats and forwards every incoming text message to the notification-proxy-server webhook.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: ~/.telegram-listener/config.yaml)")

	root.AddCommand(initCmd())
	root.AddCommand(runCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists: %s", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			fmt.Printf("wrote %s\nEdit it to set the bot token and the watched chat IDs.\n", cfgPath)
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the relay (connect, listen, forward). Press Ctrl+C to stop.",
		RunE:  runRelay,
	}
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, closeLog, err := buildLogger(cfg.General)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := session.Open(cfg.Telegram.SessionDir, logger)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	defer store.Close()

	watched := domain.NewWatchSet(cfg.WatchedChats)

	tg := platform.NewTelegram(platform.TelegramConfig{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.Telegram.PollTimeoutSeconds,
		Watched:     watched,
		Store:       store,
		Logger:      logger,
	})

	client := sink.NewClient(cfg.Sink.URL, time.Duration(cfg.Sink.TimeoutSeconds)*time.Second, logger)

	coord := relay.NewCoordinator(relay.Config{
		Platform:  tg,
		Deliverer: client,
		Watched:   watched,
		Counters:  metrics.NewRelay(),
		Logger:    logger,
	})

	logger.Info("telegram-listener starting",
		"version", version,
		"sink", cfg.Sink.URL,
		"watched_chats", watched.Len(),
	)

	if err := coord.Run(ctx); err != nil {
		logger.Error("relay terminated", "err", err)
		return err
	}
	return nil
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Validate the config and probe the sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			fmt.Printf("config:        ok\nwatched chats: %d\nsink:          %s\n", len(cfg.WatchedChats), cfg.Sink.URL)

			// Any HTTP answer means the sink process is reachable; the
			// webhook route only accepts POSTs with a real payload.
			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get(cfg.Sink.URL)
			if err != nil {
				fmt.Printf("sink probe:    unreachable (%v)\n", err)
				return nil
			}
			defer resp.Body.Close()
			fmt.Printf("sink probe:    reachable (HTTP %d)\n", resp.StatusCode)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("telegram-listener", version)
		},
	}
}

// buildLogger creates the process logger from the general config.
// Returns a close func for the optional log file.
func buildLogger(cfg config.GeneralConfig) (*slog.Logger, func(), error) {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	closeFn := func() {}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closeFn = func() { f.Close() }
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closeFn, nil
}
