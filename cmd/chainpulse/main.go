// Command chainpulse is the entry point for the option-chain ingestion
// service. It loads configuration, validates it, wires dependencies, sets up
// signal handling, and starts the application in the configured mode.
//
// The seal-token subcommand encrypts a broker access token for use with
// dhan.encrypted_token_path:
//
//	chainpulse seal-token -out dhan.json
//
// The token and password are read from CHAINPULSE_SEAL_TOKEN and
// CHAINPULSE_SEAL_PASSWORD.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/chainpulse/internal/app"
	"github.com/alanyoungcy/chainpulse/internal/config"
	"github.com/alanyoungcy/chainpulse/internal/crypto"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "seal-token" {
		if err := sealToken(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "seal-token: %v\n", err)
			os.Exit(1)
		}
		return
	}

	configPath := flag.String("config", "config.toml", "path to configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("chainpulse starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
		slog.String("version", app.Version),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error",
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("chainpulse stopped")
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func sealToken(args []string) error {
	fs := flag.NewFlagSet("seal-token", flag.ContinueOnError)
	out := fs.String("out", "dhan_token.json", "file to write the sealed token to")
	if err := fs.Parse(args); err != nil {
		return err
	}

	token := os.Getenv("CHAINPULSE_SEAL_TOKEN")
	password := os.Getenv("CHAINPULSE_SEAL_PASSWORD")
	if token == "" || password == "" {
		return errors.New("CHAINPULSE_SEAL_TOKEN and CHAINPULSE_SEAL_PASSWORD must be set")
	}

	blob, err := crypto.Seal(token, password)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, blob, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	fmt.Printf("sealed token written to %s\n", *out)
	return nil
}
