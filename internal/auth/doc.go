// Package auth resolves per-service credentials for catalog calls.
//
// [Provider] reads the stored [models.TokenRecord] for a service and returns either a bearer token or a
// captured session header bundle. Expired OAuth tokens are refreshed through a [Refresher] and the new
// access token, expiry and any rotated refresh token are written back before use. Refreshes for the same
// service are serialized so concurrent callers never spend one refresh token twice.
//
// [OAuthConfig] builds the authorization code flow configuration used by the CLI login command and the
// server callback routes.
package auth
