package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"skuwatch/internal/config"
	"skuwatch/internal/jdapi"
	"skuwatch/internal/notifier"
	"skuwatch/internal/repository/sqlite"
	"skuwatch/internal/services/monitor"
	"skuwatch/internal/session"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("skuwatch: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	var once, validate bool

	cmd := &cobra.Command{
		Use:           "skuwatch",
		Short:         "Watches product price, stock and listing state and reports changes to Telegram",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), once, validate)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single check cycle and exit")
	cmd.Flags().BoolVar(&validate, "validate", false, "probe the login session and exit")

	return cmd
}

func run(ctx context.Context, once, validate bool) error {
	// Create a context that will be canceled when an interrupt signal is received.
	// This allows for graceful shutdown.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()

	// Set up the logger based on the environment.
	logger := setupLogger(cfg.Env)

	cookie, err := session.LoadCredential(cfg.CookiePath)
	if err != nil {
		return fmt.Errorf("failed to load session credential: %w", err)
	}

	gate := session.NewGate(logger, cookie, session.Options{Timeout: cfg.Timeouts.Session})

	if validate {
		state := gate.Check(ctx)
		if !state.Valid {
			return errors.New("session is not usable")
		}
		logger.InfoContext(ctx, "session is usable", "account", state.Account)
		return nil
	}

	source := jdapi.NewClient(logger, cookie, jdapi.Options{
		Area:         cfg.Area,
		PageTimeout:  cfg.Timeouts.Page,
		PriceTimeout: cfg.Timeouts.Price,
		StockTimeout: cfg.Timeouts.Stock,
		DelayMin:     cfg.Delay.Min,
		DelayMax:     cfg.Delay.Max,
	})

	repo, err := sqlite.NewRepository(ctx, logger, cfg.StoragePath)
	if err != nil {
		return fmt.Errorf("failed to init state store: %w", err)
	}
	defer repo.Close()

	dispatcher, err := notifier.New(logger, cfg.Tg.Token, cfg.Tg.ChatID, cfg.Tg.Timeout, cfg.Retry.Count, cfg.Retry.Delay)
	if err != nil {
		return fmt.Errorf("failed to init notifier: %w", err)
	}

	mon := monitor.New(logger, gate, source, repo, dispatcher, cfg)

	if once {
		return mon.RunOnce(ctx)
	}

	// Log that the application has started.
	logger.InfoContext(ctx, "Application started. Press Ctrl+C to stop.")

	mon.Run(ctx)

	// Log graceful shutdown completion.
	logger.InfoContext(ctx, "Application stopped gracefully.")
	return nil
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelInfo,
				AddSource: false,
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelWarn,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelError,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}
