// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand writes the config file and brings the database schema up to date
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml if missing and initialize the database",
		Action: r.Setup,
		Commands: []*cli.Command{
			{
				Name:      "secret",
				Usage:     "Store an OAuth client secret in the OS keychain",
				Arguments: []cli.Argument{&cli.StringArg{Name: "service"}},
				Action:    r.SetupSecret,
			},
		},
	}
}

// authCommand manages stored credentials
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify and YouTube credentials",
		Commands: []*cli.Command{
			{
				Name:      "login",
				Usage:     "Authorize a service through the browser (spotify or youtube)",
				Arguments: []cli.Argument{&cli.StringArg{Name: "service"}},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening it",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "session",
				Usage: "Store captured YouTube browser session headers",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "file",
						Usage: "JSON file of header name to value",
					},
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command copied from the browser's network tab",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "File containing a copied cURL command",
					},
				},
				Action: r.AuthSession,
			},
			{
				Name:      "logout",
				Usage:     "Forget the stored credentials of a service",
				Arguments: []cli.Argument{&cli.StringArg{Name: "service"}},
				Action:    r.AuthLogout,
			},
			{
				Name:  "status",
				Usage: "Show which services have stored credentials",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthStatus,
			},
		},
	}
}

func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"ls"},
		Usage:   "List Spotify playlists with their migration status",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "target",
				Usage: "List YouTube playlists instead",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.Playlists,
	}
}

// migrateCommand runs or resumes the migration of one playlist
func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "migrate",
		Usage:     "Migrate a Spotify playlist to YouTube, resuming earlier progress",
		Arguments: []cli.Argument{&cli.StringArg{Name: "playlist"}},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "reset",
				Usage: "Discard recorded progress and start over",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Emit progress events as JSON lines",
			},
		},
		Action: r.Migrate,
	}
}

func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the recorded status of every migrated playlist",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Status,
	}
}

func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "sync",
		Usage:  "Mark Spotify playlists that already exist on YouTube as migrated",
		Action: r.Sync,
	}
}

func resetCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "reset",
		Usage:     "Delete the recorded progress of a playlist",
		Arguments: []cli.Argument{&cli.StringArg{Name: "playlist"}},
		Action:    r.Reset,
	}
}

func thresholdCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "threshold",
		Usage:     "Show or set the minimum match score (0 to 1)",
		Arguments: []cli.Argument{&cli.StringArg{Name: "value"}},
		Action:    r.Threshold,
	}
}

// reportCommand exports the per-track outcome of a playlist
func reportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Export the per-track results of a playlist",
		Arguments: []cli.Argument{&cli.StringArg{Name: "playlist"}},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: csv, md, txt or json",
				Value:   "md",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file; \"-\" writes to stdout (default {playlist}_report.{format})",
			},
		},
		Action: r.Report,
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API with streaming migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default from [server] config)",
			},
		},
		Action: r.Serve,
	}
}

func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Launch interactive terminal UI for playlist migration",
		Action: r.TUI,
	}
}
