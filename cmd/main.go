package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/plmigrate/internal/shared"
	"github.com/urfave/cli/v3"
)

func newApp(runner *Runner) *cli.Command {
	return &cli.Command{
		Name:    "plmigrate",
		Usage:   "Migrate Spotify playlists to YouTube, resuming where the last run stopped",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Before:   runner.Before,
		After:    runner.After,
		Commands: runner.register(),
	}
}

func main() {
	logger := shared.NewLogger(nil)
	app := newApp(NewRunner(RunnerOpts{Logger: logger}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.Run(ctx, os.Args)
	stop()

	if err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}
