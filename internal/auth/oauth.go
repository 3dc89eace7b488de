package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/plmigrate/internal/models"
	"github.com/desertthunder/plmigrate/internal/shared"
	"golang.org/x/oauth2"
)

// Scopes requested during the authorization code flow, per service.
var Scopes = map[string][]string{
	models.ServiceSpotify: {"playlist-read-private", "playlist-read-collaborative"},
	models.ServiceYouTube: {"https://www.googleapis.com/auth/youtube"},
}

var defaultEndpoints = map[string]oauth2.Endpoint{
	models.ServiceSpotify: {
		AuthURL:  "https://accounts.spotify.com/authorize",
		TokenURL: "https://accounts.spotify.com/api/token",
	},
	models.ServiceYouTube: {
		AuthURL:  "https://accounts.google.com/o/oauth2/auth",
		TokenURL: "https://oauth2.googleapis.com/token",
	},
}

// OAuthConfig builds the [oauth2.Config] for service. The client secret is resolved from the config or
// the OS keychain.
func OAuthConfig(service string, sc shared.ServiceConfig) (*oauth2.Config, error) {
	endpoint, ok := defaultEndpoints[service]
	if !ok {
		return nil, fmt.Errorf("%w: unknown service %q", shared.ErrInvalidArgument, service)
	}
	if sc.ClientID == "" {
		return nil, fmt.Errorf("%w: %s client_id is not configured", shared.ErrMissingCredentials, service)
	}

	secret, err := sc.ResolveSecret(service)
	if err != nil {
		return nil, err
	}

	if sc.AuthURL != "" {
		endpoint.AuthURL = sc.AuthURL
	}
	if sc.TokenURL != "" {
		endpoint.TokenURL = sc.TokenURL
	}

	return &oauth2.Config{
		ClientID:     sc.ClientID,
		ClientSecret: secret,
		RedirectURL:  sc.RedirectURI,
		Scopes:       Scopes[service],
		Endpoint:     endpoint,
	}, nil
}

// ServiceConfigFor picks the credentials section for service.
func ServiceConfigFor(cfg shared.CredentialsConfig, service string) (shared.ServiceConfig, error) {
	switch service {
	case models.ServiceSpotify:
		return cfg.Spotify, nil
	case models.ServiceYouTube:
		return cfg.YouTube, nil
	default:
		return shared.ServiceConfig{}, fmt.Errorf("%w: unknown service %q", shared.ErrInvalidArgument, service)
	}
}

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, service, refreshToken string) (*oauth2.Token, error)
}

// OAuthRefresher refreshes tokens against each service's token endpoint.
type OAuthRefresher struct {
	configs map[string]*oauth2.Config
}

// NewOAuthRefresher creates a refresher for the configured services. Services whose OAuth client cannot
// be built are left out, and refreshing them fails.
func NewOAuthRefresher(cfg shared.CredentialsConfig) *OAuthRefresher {
	r := &OAuthRefresher{configs: make(map[string]*oauth2.Config)}
	for _, service := range []string{models.ServiceSpotify, models.ServiceYouTube} {
		sc, _ := ServiceConfigFor(cfg, service)
		if oc, err := OAuthConfig(service, sc); err == nil {
			r.configs[service] = oc
		}
	}
	return r
}

// NewOAuthRefresherFromConfigs creates a refresher from prebuilt configs.
func NewOAuthRefresherFromConfigs(configs map[string]*oauth2.Config) *OAuthRefresher {
	return &OAuthRefresher{configs: configs}
}

// Refresh forces a refresh grant. The previous refresh token is kept when the server does not rotate it.
func (r *OAuthRefresher) Refresh(ctx context.Context, service, refreshToken string) (*oauth2.Token, error) {
	oc, ok := r.configs[service]
	if !ok {
		return nil, fmt.Errorf("%w: no oauth client for %s", shared.ErrMissingCredentials, service)
	}

	stale := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Unix(1, 0)}
	return oc.TokenSource(ctx, stale).Token()
}
