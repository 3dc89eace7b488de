package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/desertthunder/plmigrate/internal/shared"
)

// ErrorKind classifies a failed catalog call.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindAuth
	KindQuotaExceeded
	KindNotFound
	KindTransientNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "AuthError"
	case KindQuotaExceeded:
		return "QuotaExceeded"
	case KindNotFound:
		return "NotFound"
	case KindTransientNetwork:
		return "TransientNetwork"
	default:
		return "Unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindAuth:
		return shared.ErrAuthRejected
	case KindQuotaExceeded:
		return shared.ErrQuotaExceeded
	case KindNotFound:
		return shared.ErrNotFound
	case KindTransientNetwork:
		return shared.ErrTransientNetwork
	default:
		return shared.ErrCatalogRequest
	}
}

// CatalogError is returned by every failed catalog call.
//
// errors.Is matches the shared sentinel for its Kind, e.g. [shared.ErrQuotaExceeded].
type CatalogError struct {
	Service string
	Op      string
	Kind    ErrorKind
	Status  int // HTTP status, 0 when no response was received
	Message string
	Err     error
}

func (e *CatalogError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Service, e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CatalogError) Unwrap() error { return e.Err }

func (e *CatalogError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// FormatError reports a response body that could not be decoded.
type FormatError struct {
	Service string
	Op      string
	Err     error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s %s: malformed response: %v", e.Service, e.Op, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

func (e *FormatError) Is(target error) bool {
	return target == shared.ErrMalformedResponse
}

// KindOf returns the classification of err. Bare deadline errors are transient; anything unclassified is unknown.
func KindOf(err error) ErrorKind {
	var ce *CatalogError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransientNetwork
	}
	return KindUnknown
}

// apiError is the error envelope shared by the Spotify and Google APIs.
//
// Spotify sends {"error": {"status", "message"}}, Google adds "errors": [{"reason"}].
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Status  any    `json:"status"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
			Domain string `json:"domain"`
		} `json:"errors"`
	} `json:"error"`
}

func (a apiError) hasReason(reasons ...string) bool {
	for _, e := range a.Error.Errors {
		for _, r := range reasons {
			if e.Reason == r {
				return true
			}
		}
	}
	return false
}

func (a apiError) isQuota() bool {
	return a.hasReason("quotaExceeded", "dailyLimitExceeded") ||
		strings.Contains(strings.ToLower(a.Error.Message), "quota")
}

// classifyStatus maps a non-2xx response to a [CatalogError].
func classifyStatus(service, op string, status int, body []byte) *CatalogError {
	var envelope apiError
	_ = json.Unmarshal(body, &envelope)

	ce := &CatalogError{Service: service, Op: op, Status: status, Message: envelope.Error.Message}
	switch {
	case status == http.StatusForbidden && envelope.isQuota():
		ce.Kind = KindQuotaExceeded
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		ce.Kind = KindAuth
	case status == http.StatusNotFound:
		ce.Kind = KindNotFound
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		ce.Kind = KindTransientNetwork
	default:
		ce.Kind = KindUnknown
	}
	if ce.Message == "" {
		ce.Message = http.StatusText(status)
	}
	return ce
}

// classifyTransport maps an error raised before any response arrived.
// classifyWait maps a rate limiter wait failure. The limiter refuses early when the caller's deadline
// would pass before a token frees; that counts as a timeout even though ctx is not yet done.
func classifyWait(ctx context.Context, service, op string, err error) *CatalogError {
	if _, ok := ctx.Deadline(); ok && ctx.Err() == nil {
		err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return classifyTransport(service, op, err)
}

func classifyTransport(service, op string, err error) *CatalogError {
	ce := &CatalogError{Service: service, Op: op, Kind: KindUnknown, Err: err}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		ce.Kind = KindTransientNetwork
	case errors.Is(err, context.Canceled):
		ce.Kind = KindUnknown
	case errors.As(err, &netErr):
		ce.Kind = KindTransientNetwork
	}
	return ce
}
