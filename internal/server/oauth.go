package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/desertthunder/plmigrate/internal/shared"
	"github.com/gorilla/mux"
	"golang.org/x/oauth2"
)

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: {{.Color}}; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))

func renderCallback(w http.ResponseWriter, status int, ok bool, message string) {
	data := struct{ Title, Color, Message string }{"✓ Authorization Successful", "#1DB954", message}
	if !ok {
		data.Title, data.Color = "✗ Authorization Failed", "#E22134"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = callbackPage.Execute(w, data)
}

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler handles the single callback of a CLI login.
//
// It validates state, exchanges the code and delivers exactly one [OAuthResult]. Later callbacks are rejected.
type OAuthHandler struct {
	config      *oauth2.Config
	state       string
	path        string
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a handler serving path. state should be unguessable, e.g. [shared.GenerateID].
func NewOAuthHandler(config *oauth2.Config, state, path string) *OAuthHandler {
	if path == "" {
		path = "/callback"
	}
	return &OAuthHandler{
		config:     config,
		state:      state,
		path:       path,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{h.path}
}

// ServeHTTP handles the OAuth callback request.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	token, status, err := exchange(r.Context(), h.config, h.state, r)
	if err != nil {
		h.Send(OAuthResult{err: err})
		renderCallback(w, status, false, err.Error())
		return
	}

	h.Send(OAuthResult{Token: token})
	renderCallback(w, http.StatusOK, true, "You can close this window and return to the terminal.")
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}

// exchange validates the callback query and trades the code for a token.
func exchange(ctx context.Context, cfg *oauth2.Config, state string, r *http.Request) (*oauth2.Token, int, error) {
	q := r.URL.Query()
	if q.Get("state") != state {
		return nil, http.StatusBadRequest, fmt.Errorf("%w: invalid state parameter", shared.ErrAuthFailed)
	}

	code := q.Get("code")
	if code == "" {
		return nil, http.StatusBadRequest, fmt.Errorf("%w: %s - %s", shared.ErrAuthFailed, q.Get("error"), q.Get("error_description"))
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, http.StatusBadGateway, fmt.Errorf("%w: token exchange failed: %v", shared.ErrAuthFailed, err)
	}
	return token, http.StatusOK, nil
}

// stateTTL bounds how long an authorization started through the server may take.
const stateTTL = 10 * time.Minute

// OAuthFlows serves /{service}/auth and /{service}/callback for the long-running server.
type OAuthFlows struct {
	configs map[string]*oauth2.Config
	store   func(service string, tok *oauth2.Token) error
	now     func() time.Time

	mu     sync.Mutex
	states map[string]pendingAuth
}

type pendingAuth struct {
	service string
	expires time.Time
}

// NewOAuthFlows creates the flows for configs, persisting tokens with store.
func NewOAuthFlows(configs map[string]*oauth2.Config, store func(service string, tok *oauth2.Token) error) *OAuthFlows {
	return &OAuthFlows{configs: configs, store: store, now: time.Now, states: make(map[string]pendingAuth)}
}

// Authorize redirects the browser to the provider's consent page.
func (f *OAuthFlows) Authorize(w http.ResponseWriter, r *http.Request) {
	service := mux.Vars(r)["service"]
	cfg, ok := f.configs[service]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("oauth is not configured for %s", service))
		return
	}

	state := shared.GenerateID()
	f.mu.Lock()
	f.prune()
	f.states[state] = pendingAuth{service: service, expires: f.now().Add(stateTTL)}
	f.mu.Unlock()

	http.Redirect(w, r, cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), http.StatusFound)
}

// Callback completes an authorization started by [OAuthFlows.Authorize].
func (f *OAuthFlows) Callback(w http.ResponseWriter, r *http.Request) {
	service := mux.Vars(r)["service"]
	cfg, ok := f.configs[service]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("oauth is not configured for %s", service))
		return
	}

	state := r.URL.Query().Get("state")
	f.mu.Lock()
	pending, found := f.states[state]
	delete(f.states, state)
	f.mu.Unlock()

	if !found || pending.service != service || f.now().After(pending.expires) {
		renderCallback(w, http.StatusBadRequest, false, "Unknown or expired authorization request.")
		return
	}

	token, status, err := exchange(r.Context(), cfg, state, r)
	if err != nil {
		renderCallback(w, status, false, err.Error())
		return
	}
	if err := f.store(service, token); err != nil {
		renderCallback(w, statusFor(err), false, err.Error())
		return
	}
	renderCallback(w, http.StatusOK, true, fmt.Sprintf("%s is connected. You can close this window.", service))
}

// prune drops expired states. Callers hold mu.
func (f *OAuthFlows) prune() {
	now := f.now()
	for k, p := range f.states {
		if now.After(p.expires) {
			delete(f.states, k)
		}
	}
}
