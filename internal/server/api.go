package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plmigrate/internal/auth"
	"github.com/desertthunder/plmigrate/internal/models"
	"github.com/desertthunder/plmigrate/internal/shared"
	"github.com/desertthunder/plmigrate/internal/tasks"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/oauth2"
)

// API exposes the migration controller and token provider over HTTP.
type API struct {
	runCtx     context.Context
	controller *tasks.Controller
	provider   *auth.Provider
	oauth      *OAuthFlows
	logger     *log.Logger
	started    time.Time
	now        func() time.Time
}

// NewAPI creates the HTTP API. oauthConfigs may be empty, in which case the login routes report 404.
func NewAPI(c *tasks.Controller, p *auth.Provider, oauthConfigs map[string]*oauth2.Config, logger *log.Logger) *API {
	return &API{
		controller: c,
		provider:   p,
		oauth:      NewOAuthFlows(oauthConfigs, p.StoreOAuthToken),
		logger:     logger,
		started:    time.Now(),
		now:        time.Now,
	}
}

// Register adds every API route to r.
func (a *API) Register(r *BasicRouter) {
	r.HandleFunc(http.MethodGet, "/health", a.Health)
	r.Handle(http.MethodGet, "/metrics", promhttp.Handler())
	r.HandleFunc(http.MethodGet, "/debug/info", a.DebugInfo)

	r.HandleFunc(http.MethodGet, "/status", a.AuthStatus)
	r.HandleFunc(http.MethodDelete, "/tokens/{service}", a.DeleteToken)
	r.HandleFunc(http.MethodPost, "/youtube/auth/session", a.StoreSession)
	r.HandleFunc(http.MethodGet, "/{service:spotify|youtube}/auth", a.oauth.Authorize)
	r.HandleFunc(http.MethodGet, "/{service:spotify|youtube}/callback", a.oauth.Callback)

	r.HandleFunc(http.MethodGet, "/spotify/playlists", a.SourcePlaylists)
	r.HandleFunc(http.MethodGet, "/youtube/playlists", a.TargetPlaylists)
	r.HandleFunc(http.MethodPost, "/sync-playlists", a.SyncPlaylists)

	r.HandleFunc(http.MethodGet, "/migration/status", a.MigrationStatus)
	r.HandleFunc(http.MethodGet, "/migrate/{id}", a.MigrateSSE)
	r.HandleFunc(http.MethodGet, "/migrate/{id}/ws", a.MigrateWS)
	r.HandleFunc(http.MethodDelete, "/migration/{id}", a.ResetMigration)

	r.HandleFunc(http.MethodGet, "/config/match_threshold", a.GetThreshold)
	r.HandleFunc(http.MethodPost, "/config/match_threshold", a.SetThreshold)
}

// Handler builds a router with the standard middleware and every API route.
func (a *API) Handler() *BasicRouter {
	r := NewBasicRouter()
	r.Use(Recover(a.logger), Metrics, Logging(a.logger))
	a.Register(r)
	return r
}

type message struct {
	Message string `json:"message"`
}

// Health reports liveness.
func (a *API) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type authStatusResponse struct {
	SpotifyAuthenticated bool                 `json:"spotifyAuthenticated"`
	YouTubeAuthenticated bool                 `json:"youtubeAuthenticated"`
	YouTubeAuthType      string               `json:"youtubeAuthType"`
	Services             []auth.ServiceStatus `json:"services"`
}

func (a *API) authStatus() (*authStatusResponse, error) {
	statuses, err := a.provider.Status()
	if err != nil {
		return nil, err
	}

	resp := &authStatusResponse{YouTubeAuthType: "disconnected", Services: statuses}
	for _, st := range statuses {
		switch st.Service {
		case models.ServiceSpotify:
			resp.SpotifyAuthenticated = st.Authenticated
		case models.ServiceYouTube:
			resp.YouTubeAuthenticated = st.Authenticated
			if st.Authenticated {
				resp.YouTubeAuthType = string(st.Mode)
			}
		}
	}
	return resp, nil
}

// AuthStatus reports which services have stored credentials.
func (a *API) AuthStatus(w http.ResponseWriter, _ *http.Request) {
	resp, err := a.authStatus()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func validService(service string) error {
	for _, s := range auth.Services {
		if s == service {
			return nil
		}
	}
	return fmt.Errorf("%w: invalid service %q", shared.ErrInvalidArgument, service)
}

// DeleteToken forgets the stored credentials of a service.
func (a *API) DeleteToken(w http.ResponseWriter, r *http.Request) {
	service := mux.Vars(r)["service"]
	if err := validService(service); err != nil {
		writeErr(w, err)
		return
	}
	if err := a.provider.Forget(service); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, message{fmt.Sprintf("%s token cleared.", service)})
}

// sessionRequest carries captured browser headers, either as a JSON object, a JSON-encoded string of one,
// or a cURL command copied from the browser's network tab.
type sessionRequest struct {
	Headers json.RawMessage `json:"headers"`
	Curl    string          `json:"curl"`
}

func (s sessionRequest) bundle() ([]byte, error) {
	if s.Curl != "" {
		parsed, err := shared.ParseCurlCommand(s.Curl)
		if err != nil {
			return nil, err
		}
		return json.Marshal(parsed.Bundle())
	}

	raw := bytes.TrimSpace(s.Headers)
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("%w: headers: %v", shared.ErrValidation, err)
		}
		raw = []byte(inner)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: headers or curl is required", shared.ErrMissingArgument)
	}
	return raw, nil
}

// StoreSession stores captured YouTube session headers.
func (a *API) StoreSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}

	raw, err := req.bundle()
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := a.provider.StoreSessionHeaders(models.ServiceYouTube, raw); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, message{"YouTube session headers stored successfully."})
}

// SourcePlaylists lists Spotify playlists with their migration status.
func (a *API) SourcePlaylists(w http.ResponseWriter, r *http.Request) {
	views, err := a.controller.SourcePlaylists(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// TargetPlaylists lists YouTube playlists.
func (a *API) TargetPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := a.controller.TargetPlaylists(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	if playlists == nil {
		playlists = []models.Playlist{}
	}
	writeJSON(w, http.StatusOK, playlists)
}

// SyncPlaylists links Spotify playlists that already exist on YouTube.
func (a *API) SyncPlaylists(w http.ResponseWriter, r *http.Request) {
	res, err := a.controller.SyncPlaylists(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// MigrationStatus maps playlist ids to migration status.
func (a *API) MigrationStatus(w http.ResponseWriter, _ *http.Request) {
	status, err := a.controller.StatusMap()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// ResetMigration clears all state for a playlist.
func (a *API) ResetMigration(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := a.controller.ResetMigration(id); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, message{fmt.Sprintf("Migration data for playlist %s cleared.", id)})
}

type thresholdResponse struct {
	MatchThreshold float64 `json:"match_threshold"`
	Message        string  `json:"message,omitempty"`
}

// GetThreshold returns the current match threshold.
func (a *API) GetThreshold(w http.ResponseWriter, _ *http.Request) {
	v, err := a.controller.MatchThreshold()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, thresholdResponse{MatchThreshold: v})
}

// SetThreshold stores a new match threshold from {"value": number}.
func (a *API) SetThreshold(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value *float64 `json:"value"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.Value == nil {
		writeErr(w, fmt.Errorf("%w: value must be a number between 0 and 1", shared.ErrValidation))
		return
	}
	if err := a.controller.SetMatchThreshold(*req.Value); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, thresholdResponse{MatchThreshold: *req.Value, Message: "Match threshold updated successfully."})
}

type debugInfo struct {
	APIStatus map[string]string `json:"apiStatus"`
	System    struct {
		Timestamp time.Time `json:"timestamp"`
		Uptime    string    `json:"uptime"`
	} `json:"systemInfo"`
	Permissions map[string][]string `json:"permissions"`
	Config      struct {
		MatchThreshold float64 `json:"matchThreshold"`
	} `json:"config"`
	YouTubeAuthType string   `json:"youtubeAuthType"`
	Running         []string `json:"running"`
}

// DebugInfo summarizes connections, scopes, config and running migrations.
func (a *API) DebugInfo(w http.ResponseWriter, _ *http.Request) {
	st, err := a.authStatus()
	if err != nil {
		writeErr(w, err)
		return
	}
	threshold, err := a.controller.MatchThreshold()
	if err != nil {
		writeErr(w, err)
		return
	}

	info := debugInfo{
		APIStatus: map[string]string{
			models.ServiceSpotify: connected(st.SpotifyAuthenticated),
			models.ServiceYouTube: connected(st.YouTubeAuthenticated),
		},
		Permissions: map[string][]string{
			"spotifyScopes": auth.Scopes[models.ServiceSpotify],
			"youtubeScopes": auth.Scopes[models.ServiceYouTube],
		},
		YouTubeAuthType: st.YouTubeAuthType,
		Running:         a.controller.Migrator().Locks().Running(),
	}
	now := a.now()
	info.System.Timestamp = now.UTC()
	info.System.Uptime = now.Sub(a.started).Round(time.Second).String()
	info.Config.MatchThreshold = threshold
	writeJSON(w, http.StatusOK, info)
}

func connected(ok bool) string {
	if ok {
		return "connected"
	}
	return "disconnected"
}
