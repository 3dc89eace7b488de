package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plmigrate/internal/metrics"
	"github.com/desertthunder/plmigrate/internal/models"
	"github.com/desertthunder/plmigrate/internal/repositories"
	"github.com/desertthunder/plmigrate/internal/shared"
	"golang.org/x/oauth2"
)

// Services lists the services a [Provider] reports on.
var Services = []string{models.ServiceSpotify, models.ServiceYouTube}

// Provider hands out valid credentials per service, refreshing expired OAuth tokens on demand.
type Provider struct {
	store     repositories.TokenStore
	refresher Refresher
	now       func() time.Time
	logger    *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a [Provider].
type Option func(*Provider)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// WithLogger sets the provider logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// NewProvider creates a provider over store. refresher may be nil, in which case expired tokens fail to refresh.
func NewProvider(store repositories.TokenStore, refresher Refresher, opts ...Option) *Provider {
	p := &Provider{
		store:     store,
		refresher: refresher,
		now:       time.Now,
		logger:    log.Default(),
		locks:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) lock(service string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.locks[service]
	if !ok {
		l = &sync.Mutex{}
		p.locks[service] = l
	}
	return l
}

// Credentials returns credentials for service.
//
// Errors:
//   - [shared.ErrAuthenticationRequired] when nothing is stored
//   - [shared.ErrRefreshFailed] when an expired token cannot be refreshed
//   - [shared.ErrValidation] when stored session headers are malformed
func (p *Provider) Credentials(ctx context.Context, service string) (models.Credentials, error) {
	l := p.lock(service)
	l.Lock()
	defer l.Unlock()

	rec, err := p.store.GetToken(service)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s token: %w", service, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrAuthenticationRequired, service)
	}

	if rec.AuthType == models.AuthSession {
		raw := rec.RawValue
		if raw == "" {
			raw = rec.AccessToken
		}
		return models.ParseHeaderBundle([]byte(raw))
	}

	if rec.AccessToken != "" && !rec.Expired(p.now()) {
		return models.Bearer(rec.AccessToken), nil
	}

	rec, err = p.refresh(ctx, rec)
	if err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues(service, "failed").Inc()
		return nil, err
	}
	metrics.TokenRefreshesTotal.WithLabelValues(service, "ok").Inc()
	return models.Bearer(rec.AccessToken), nil
}

func (p *Provider) refresh(ctx context.Context, rec *models.TokenRecord) (*models.TokenRecord, error) {
	if rec.RefreshToken == "" {
		return nil, fmt.Errorf("%w: %s: %w", shared.ErrRefreshFailed, rec.Service, shared.ErrNoRefreshToken)
	}
	if p.refresher == nil {
		return nil, fmt.Errorf("%w: %s: no refresher configured", shared.ErrRefreshFailed, rec.Service)
	}

	p.logger.Debug("refreshing token", "service", rec.Service)
	tok, err := p.refresher.Refresh(ctx, rec.Service, rec.RefreshToken)
	if err != nil {
		p.logger.Warn("token refresh failed", "service", rec.Service, "err", err)
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrRefreshFailed, rec.Service, err)
	}
	if tok == nil || tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: %s: empty access token", shared.ErrRefreshFailed, rec.Service)
	}

	updated := p.recordFromToken(rec.Service, tok)
	if updated.RefreshToken == "" {
		updated.RefreshToken = rec.RefreshToken
	}
	if err := p.store.UpsertToken(updated); err != nil {
		return nil, fmt.Errorf("%w: %s: failed to persist token: %v", shared.ErrRefreshFailed, rec.Service, err)
	}
	return updated, nil
}

func (p *Provider) recordFromToken(service string, tok *oauth2.Token) *models.TokenRecord {
	rec := &models.TokenRecord{
		Service:      service,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		AuthType:     models.AuthOAuth,
	}
	switch {
	case !tok.Expiry.IsZero():
		exp := tok.Expiry
		rec.ExpiresAt = &exp
	case tok.ExpiresIn > 0:
		exp := p.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
		rec.ExpiresAt = &exp
	}
	return rec
}

// StoreOAuthToken persists the result of an authorization code exchange.
func (p *Provider) StoreOAuthToken(service string, tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return fmt.Errorf("%w: empty access token", shared.ErrValidation)
	}

	l := p.lock(service)
	l.Lock()
	defer l.Unlock()

	return p.store.UpsertToken(p.recordFromToken(service, tok))
}

// StoreSessionHeaders validates and persists a captured header bundle, replacing any OAuth token.
func (p *Provider) StoreSessionHeaders(service string, raw []byte) error {
	if _, err := models.ParseHeaderBundle(raw); err != nil {
		return err
	}

	l := p.lock(service)
	l.Lock()
	defer l.Unlock()

	return p.store.UpsertToken(&models.TokenRecord{
		Service:  service,
		AuthType: models.AuthSession,
		RawValue: string(raw),
	})
}

// Forget deletes the stored credentials for service.
func (p *Provider) Forget(service string) error {
	l := p.lock(service)
	l.Lock()
	defer l.Unlock()

	return p.store.DeleteToken(service)
}

// ServiceStatus describes the stored credentials of one service.
type ServiceStatus struct {
	Service       string          `json:"service"`
	Authenticated bool            `json:"authenticated"`
	Mode          models.AuthType `json:"mode,omitempty"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
	Expired       bool            `json:"expired"`
	Refreshable   bool            `json:"refreshable"`
}

// Status reports on every known service without refreshing anything.
func (p *Provider) Status() ([]ServiceStatus, error) {
	statuses := make([]ServiceStatus, 0, len(Services))
	for _, service := range Services {
		rec, err := p.store.GetToken(service)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s token: %w", service, err)
		}

		st := ServiceStatus{Service: service}
		if rec != nil {
			st.Authenticated = true
			st.Mode = rec.AuthType
			st.ExpiresAt = rec.ExpiresAt
			st.Expired = rec.Expired(p.now())
			st.Refreshable = rec.RefreshToken != ""
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// IsAuthError reports whether err means the user has to (re)authenticate.
func IsAuthError(err error) bool {
	return errors.Is(err, shared.ErrAuthenticationRequired) || errors.Is(err, shared.ErrRefreshFailed)
}
