package main

import (
	"context"

	"github.com/desertthunder/plmigrate/internal/auth"
	"github.com/desertthunder/plmigrate/internal/server"
	"github.com/desertthunder/plmigrate/internal/shared"
	"github.com/desertthunder/plmigrate/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Serve runs the HTTP API until interrupted, then waits for running migrations to stop.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	controller, err := r.wire()
	if err != nil {
		return err
	}

	api := server.NewAPI(controller, r.provider, r.oauthConfigs(), shared.WithLogger(r.logger, "component", "server"))
	api.SetRunContext(ctx)

	if spec := r.config.Server.ResumeSchedule; spec != "" {
		resumer, err := tasks.NewResumer(controller, spec, shared.WithLogger(r.logger, "component", "resumer"))
		if err != nil {
			return err
		}
		resumer.Start(ctx)
		defer resumer.Stop()
	}

	addr := r.config.Server.Addr()
	if a := cmd.String("addr"); a != "" {
		addr = a
	}

	err = server.New(addr, api.Handler(), r.logger).Run(ctx)

	r.logger.Info("waiting for running migrations to stop")
	controller.Wait()
	return err
}

// oauthConfigs builds the login flows the server offers. Services without a usable client are left out.
func (r *Runner) oauthConfigs() map[string]*oauth2.Config {
	configs := make(map[string]*oauth2.Config)
	for _, service := range auth.Services {
		sc, err := auth.ServiceConfigFor(r.config.Credentials, service)
		if err != nil {
			continue
		}
		oc, err := auth.OAuthConfig(service, sc)
		if err != nil {
			r.logger.Warn("browser login disabled", "service", service, "error", err)
			continue
		}
		configs[service] = oc
	}
	return configs
}
