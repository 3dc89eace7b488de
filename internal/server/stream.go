package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/plmigrate/internal/tasks"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	keepAliveInterval = 15 * time.Second
	writeWait         = 10 * time.Second
)

// SetRunContext sets the context migrations started over HTTP run under.
//
// Request contexts are not used so a client disconnect only detaches the stream; cancelling ctx, e.g. on
// shutdown, interrupts the runs.
func (a *API) SetRunContext(ctx context.Context) {
	a.runCtx = ctx
}

func (a *API) start(w http.ResponseWriter, r *http.Request) (*tasks.Run, bool) {
	ctx := a.runCtx
	if ctx == nil {
		ctx = context.WithoutCancel(r.Context())
	}

	run, err := a.controller.StartMigration(ctx, mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, err)
		return nil, false
	}
	a.logger.Info("migration started", "run", run.ID, "playlist", run.PlaylistID)
	return run, true
}

// MigrateSSE starts a migration and streams its events as server-sent events.
//
// Each event is a single "data:" line holding the JSON event. The stream ends after the complete or
// terminal error event.
func (a *API) MigrateSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	run, ok := a.start(w, r)
	if !ok {
		return
	}
	defer run.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	events := run.Events()
	for {
		select {
		case <-r.Context().Done():
			a.logger.Info("event stream detached", "run", run.ID)
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case ev, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				a.logger.Error("failed to encode event", "err", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// MigrateWS is [API.MigrateSSE] over a websocket. Each event is one JSON text message.
func (a *API) MigrateWS(w http.ResponseWriter, r *http.Request) {
	run, ok := a.start(w, r)
	if !ok {
		return
	}
	defer run.Close()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed", "run", run.ID, "err", err)
		return
	}
	defer conn.Close()

	// The read loop only watches for the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					a.logger.Debug("websocket read error", "run", run.ID, "err", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	events := run.Events()
	for {
		select {
		case <-gone:
			a.logger.Info("event stream detached", "run", run.ID)
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, open := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !open {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "migration finished"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				a.logger.Warn("websocket write failed", "run", run.ID, "err", err)
				return
			}
		}
	}
}
