// Package services defines the catalog contracts used by a migration and implements them for Spotify
// ([SourceCatalog]) and YouTube ([TargetCatalog]).
//
// # Credentials
//
// Catalog calls take [models.Credentials] explicitly. A bearer token and a captured session header
// bundle both apply themselves to the outgoing request, so the clients never branch on credential
// shape. Obtaining and refreshing credentials is the job of the auth package.
//
// # Transport
//
// Both services share [Client], a resty client paced by a token-bucket limiter. Requests that fail
// with 429 or a 5xx are retried a bounded number of times before the failure is classified.
//
// # Error Handling
//
// Every failed call returns a [*CatalogError] carrying a [ErrorKind]:
//   - AuthError: 401, or 403 that is not a quota rejection
//   - QuotaExceeded: 403 whose reason is quotaExceeded or dailyLimitExceeded
//   - NotFound: 404
//   - TransientNetwork: 408, 429, 5xx, network failures and deadlines
//   - Unknown: everything else
//
// errors.Is matches the shared sentinel for the kind, e.g. [shared.ErrQuotaExceeded]. A response that
// cannot be decoded is a [*FormatError] instead.
//
// # API Mappings
//
// Spotify playlists and playlist items map to [models.Playlist] and [models.Track]. Removed items and
// local files map to a track with an empty ID. YouTube video details map to [models.Candidate] with the
// ISO 8601 duration converted to milliseconds.
package services
