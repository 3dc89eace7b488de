package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/plmigrate/internal/auth"
	"github.com/desertthunder/plmigrate/internal/models"
	"github.com/desertthunder/plmigrate/internal/server"
	"github.com/desertthunder/plmigrate/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// loginTimeout bounds how long AuthLogin waits for the browser callback.
const loginTimeout = 5 * time.Minute

// AuthLogin runs the authorization code flow for one service.
//
// A temporary callback server listens on the configured redirect URI while the user approves access in the browser.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	service := cmd.StringArg("service")
	if service == "" {
		return fmt.Errorf("%w: service is required (spotify or youtube)", shared.ErrMissingArgument)
	}

	sc, err := auth.ServiceConfigFor(r.config.Credentials, service)
	if err != nil {
		return err
	}
	oc, err := auth.OAuthConfig(service, sc)
	if err != nil {
		return err
	}

	redirect, err := url.Parse(oc.RedirectURL)
	if err != nil || redirect.Host == "" {
		return fmt.Errorf("%w: %s redirect_uri %q is not an absolute URL", shared.ErrInvalidConfig, service, oc.RedirectURL)
	}

	provider, err := r.authProvider()
	if err != nil {
		return err
	}

	state := shared.GenerateID()
	handler := server.NewOAuthHandler(oc, state, redirect.Path)
	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger))
	router.Handler(handler)

	loginCtx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	srv := server.New(redirect.Host, router, r.logger)
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Run(loginCtx) }()

	authURL := oc.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	r.writePlain("Open this URL to authorize %s:\n\n%s\n\n", service, authURL)
	if !cmd.Bool("no-browser") {
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warn("could not open browser", "error", err)
		}
	}

	var result server.OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("callback server failed: %w", err)
		}
		return fmt.Errorf("%w: callback server stopped before authorization completed", shared.ErrAuthFailed)
	case <-loginCtx.Done():
		return fmt.Errorf("%w: no callback received: %v", shared.ErrAuthFailed, loginCtx.Err())
	}

	if err := result.Error(); err != nil {
		return err
	}
	if err := provider.StoreOAuthToken(service, result.Token); err != nil {
		return err
	}

	r.logger.Info("authorization stored", "service", service, "expires", result.Token.Expiry)
	return r.writePlain("✓ %s authenticated\n", service)
}

// AuthSession stores YouTube session headers from a JSON file, a cURL command or stdin.
//
// Stdin accepts either form; a terminal reads until EOF (Ctrl-D).
func (r *Runner) AuthSession(ctx context.Context, cmd *cli.Command) error {
	file, curl, curlFile := cmd.String("file"), cmd.String("curl"), cmd.String("curl-file")

	set := 0
	for _, v := range []string{file, curl, curlFile} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		return fmt.Errorf("%w: use only one of --file, --curl and --curl-file", shared.ErrInvalidArgument)
	}

	var raw []byte
	var err error
	switch {
	case file != "":
		raw, err = os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read headers file: %w", err)
		}
	case curl != "":
		raw, err = curlBundle(shared.ParseCurlCommand(curl))
	case curlFile != "":
		raw, err = curlBundle(shared.ParseCurlFile(curlFile))
	default:
		raw, err = r.readSession()
	}
	if err != nil {
		return err
	}

	provider, err := r.authProvider()
	if err != nil {
		return err
	}
	if err := provider.StoreSessionHeaders(models.ServiceYouTube, raw); err != nil {
		return err
	}

	r.logger.Info("session headers stored", "service", models.ServiceYouTube)
	return r.writePlain("✓ YouTube session headers stored\n")
}

func (r *Runner) readSession() ([]byte, error) {
	if r.isTerminal() {
		r.writePlain("Paste a JSON header object or a cURL command, then press Ctrl-D:\n")
	}

	b, err := io.ReadAll(r.input)
	if err != nil {
		return nil, fmt.Errorf("failed to read session headers: %w", err)
	}

	text := strings.TrimSpace(string(b))
	if text == "" {
		return nil, fmt.Errorf("%w: no session headers provided", shared.ErrMissingArgument)
	}
	if strings.HasPrefix(text, "curl") {
		return curlBundle(shared.ParseCurlCommand(text))
	}
	return []byte(text), nil
}

func curlBundle(h *shared.CurlHeaders, err error) ([]byte, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to parse cURL command: %w", err)
	}
	return json.Marshal(h.Bundle())
}

// AuthLogout forgets a service's stored credentials.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	service := cmd.StringArg("service")
	if service == "" {
		return fmt.Errorf("%w: service is required (spotify or youtube)", shared.ErrMissingArgument)
	}
	if _, err := auth.ServiceConfigFor(r.config.Credentials, service); err != nil {
		return err
	}

	provider, err := r.authProvider()
	if err != nil {
		return err
	}
	if err := provider.Forget(service); err != nil {
		return err
	}
	return r.writePlain("✓ %s credentials removed\n", service)
}

// AuthStatus lists each service's stored credentials without refreshing them.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	provider, err := r.authProvider()
	if err != nil {
		return err
	}

	statuses, err := provider.Status()
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(statuses, true)
	}

	r.writePlainHeader("Authentication")
	for _, st := range statuses {
		if !st.Authenticated {
			r.writePlain("%-8s ✗ not authenticated\n", st.Service)
			continue
		}

		detail := string(st.Mode)
		switch {
		case st.Expired && st.Refreshable:
			detail += ", expired (refreshes on next use)"
		case st.Expired:
			detail += ", expired (run `plmigrate auth login " + st.Service + "`)"
		case st.ExpiresAt != nil:
			detail += ", expires " + st.ExpiresAt.Local().Format(time.DateTime)
		}
		r.writePlain("%-8s ✓ %s\n", st.Service, detail)
	}
	return nil
}
