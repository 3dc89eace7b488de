package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthenticationRequired = fmt.Errorf("authentication required")
	ErrAuthFailed             = fmt.Errorf("authentication failed")
	ErrRefreshFailed          = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken         = fmt.Errorf("no refresh token available")

	// Catalog errors, one per classification kind
	ErrAuthRejected      = fmt.Errorf("credentials rejected by catalog")
	ErrQuotaExceeded     = fmt.Errorf("quota exceeded")
	ErrNotFound          = fmt.Errorf("resource not found")
	ErrTransientNetwork  = fmt.Errorf("transient network failure")
	ErrCatalogRequest    = fmt.Errorf("catalog request failed")
	ErrMalformedResponse = fmt.Errorf("malformed response")

	// Migration and storage errors
	ErrMigrationInProgress = fmt.Errorf("migration already in progress")
	ErrConflict            = fmt.Errorf("unique constraint conflict")
	ErrServiceUnavailable  = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrValidation      = fmt.Errorf("validation failed")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
