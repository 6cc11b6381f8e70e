// Package main is the entrypoint for the darkwatch command line client.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kiranshivaraju/darkwatch/internal/config"
	"github.com/kiranshivaraju/darkwatch/internal/session"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(exitCode(err, os.Stderr))
}

// exitCode reports err on w and maps it to a process exit status.
func exitCode(err error, w io.Writer) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		return 2
	case errors.Is(err, session.ErrAuthExpired), errors.Is(err, session.ErrNotAuthenticated):
		fmt.Fprintln(w, "darkwatch: session expired, run `darkwatch login`")
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(w, "darkwatch: interrupted")
		return 130
	default:
		fmt.Fprintf(w, "darkwatch: %v\n", err)
	}
	return 1
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	// 1. Load config, fail fast on invalid values
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Logs go to stderr, stdout carries command output
	slog.SetDefault(newLogger(cfg.Log, cfg.SlogLevel(), stderr))

	// 3. Wire the session, client and poller
	a, err := newApp(ctx, cfg, stdout, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.run(ctx, args)
}

func newLogger(lc config.LogConfig, level slog.Level, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
