package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/desertthunder/plmigrate/internal/auth"
	"github.com/desertthunder/plmigrate/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// Setup creates the config file when missing and initializes the database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if _, err := os.Stat(r.configPath); errors.Is(err, os.ErrNotExist) {
		r.logger.Info("config file not found, creating from template", "path", r.configPath)
		if err := shared.CreateConfigFile(r.configPath); err != nil {
			return err
		}

		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return err
		}
		r.config = config
		r.logger.Info("config file created", "path", r.configPath)
	}

	db := r.config.Database
	r.logger.Info("initializing database", "driver", db.Driver, "path", db.Path)
	if _, err := r.openStore(); err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", db.Path)
	r.writePlain("✓ Setup complete\n")
	if r.config.Credentials.Spotify.ClientID == "" || r.config.Credentials.YouTube.ClientID == "" {
		r.writePlain("Next: add client ids to %s, then run `plmigrate auth login spotify`\n", r.configPath)
	}
	return nil
}

// SetupSecret stores a client secret in the OS keychain, read without echo from a terminal or from stdin.
func (r *Runner) SetupSecret(ctx context.Context, cmd *cli.Command) error {
	service := cmd.StringArg("service")
	if service == "" {
		return fmt.Errorf("%w: service is required (spotify or youtube)", shared.ErrMissingArgument)
	}
	if _, err := auth.ServiceConfigFor(r.config.Credentials, service); err != nil {
		return err
	}

	secret, err := r.readSecret(fmt.Sprintf("%s client secret: ", service))
	if err != nil {
		return err
	}
	if err := shared.StoreSecret(service, secret); err != nil {
		return err
	}

	r.logger.Info("client secret stored", "service", service, "keyring", shared.KeyringService)
	return r.writePlain("✓ %s client secret stored in keychain\n", service)
}

// readSecret reads one value without echo when input is a terminal, else the whole input.
func (r *Runner) readSecret(prompt string) (string, error) {
	if r.isTerminal() {
		r.writePlain("%s", prompt)
		b, err := term.ReadPassword(int(r.input.(*os.File).Fd()))
		r.writePlain("\n")
		if err != nil {
			return "", fmt.Errorf("failed to read secret: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	b, err := io.ReadAll(r.input)
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// isTerminal reports whether input is an interactive terminal.
func (r *Runner) isTerminal() bool {
	f, ok := r.input.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
