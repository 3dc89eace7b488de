// Package server exposes the migration engine over HTTP.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] implements it on
// gorilla/mux so routes can carry path variables such as "/migrate/{id}".
//
// [Middleware] wraps handlers in reverse order (last added executes first). [Logging], [Metrics] and
// [Recover] are installed by [API.Handler].
//
// # Routes
//
//	GET    /health                    liveness
//	GET    /metrics                   Prometheus metrics
//	GET    /debug/info                connections, scopes, threshold, running migrations
//	GET    /status                    stored credentials per service
//	DELETE /tokens/{service}          forget credentials
//	POST   /youtube/auth/session      store captured browser headers ({"headers": ...} or {"curl": ...})
//	GET    /{service}/auth            start an OAuth login
//	GET    /{service}/callback        finish an OAuth login
//	GET    /spotify/playlists         source playlists with migration status
//	GET    /youtube/playlists         target playlists
//	POST   /sync-playlists            link playlists that already exist on the target
//	GET    /migration/status          playlist id to status map
//	GET    /migrate/{id}              start a migration, stream events as SSE
//	GET    /migrate/{id}/ws           start a migration, stream events over a websocket
//	DELETE /migration/{id}            reset a migration
//	GET    /config/match_threshold    read the match threshold
//	POST   /config/match_threshold    set the match threshold ({"value": 0.6})
//
// Errors are JSON objects {"error": "..."} with a status derived from the shared sentinel errors.
//
// # Event streams
//
// A stream belongs to one run. Disconnecting detaches the stream without cancelling the run, which keeps
// going and persists its progress; the next request for the same playlist resumes or reports it complete.
// Starting a playlist that is already running answers 409.
//
// # OAuth Callback Handler
//
// [OAuthHandler] serves the one-shot callback of a CLI login on a temporary local server. It validates the
// state parameter, exchanges the authorization code and delivers the token through [OAuthHandler.Result].
// [OAuthFlows] is the multi-user variant used by the long-running server.
package server
