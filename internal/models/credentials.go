package models

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/desertthunder/plmigrate/internal/shared"
)

// Credentials authenticate catalog requests. Implementations are [Bearer] and [HeaderBundle].
//
// Resolved once by the token provider so clients never branch on shape.
type Credentials interface {
	Apply(h http.Header)
	Mode() AuthType
	sealed()
}

// Bearer is an OAuth access token.
type Bearer string

// Apply sets the Authorization header.
func (b Bearer) Apply(h http.Header) { h.Set("Authorization", "Bearer "+string(b)) }

// Mode is [AuthOAuth].
func (Bearer) Mode() AuthType { return AuthOAuth }

func (Bearer) sealed() {}

// HeaderBundle is a captured set of authenticated browser headers, replayed verbatim.
type HeaderBundle map[string]string

// Apply copies every header in the bundle.
func (b HeaderBundle) Apply(h http.Header) {
	for k, v := range b {
		h.Set(k, v)
	}
}

// Mode is [AuthSession].
func (HeaderBundle) Mode() AuthType { return AuthSession }

func (HeaderBundle) sealed() {}

// ParseHeaderBundle decodes a JSON object of header names to values.
func ParseHeaderBundle(raw []byte) (HeaderBundle, error) {
	var b HeaderBundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("%w: session headers must be a JSON object of strings: %v", shared.ErrValidation, err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: session headers are empty", shared.ErrValidation)
	}
	return b, nil
}
