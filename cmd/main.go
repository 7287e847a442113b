package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/prism/internal/shared"
)

const (
	exitFailure = 1
	exitQuota   = 4
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{ConfigPath: "config.toml", Logger: logger})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp(runner).Run(ctx, os.Args)
	stop()

	if err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Error("prism failed", "err", err)
		os.Exit(exitCode(err))
	}
}

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "prism",
		Usage:   "Catalog music videos from Substack posts and build YouTube playlists",
		Version: "0.3.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before:   r.Before,
		After:    r.After,
		Commands: r.register(),
	}
}

// exitCode maps quota exhaustion to its own status so wrapper scripts can wait for the daily reset.
func exitCode(err error) int {
	if errors.Is(err, shared.ErrQuotaExceeded) {
		return exitQuota
	}
	return exitFailure
}
