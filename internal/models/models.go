// package models defines the data model for the playlist migration engine
package models

import (
	"fmt"
	"strings"
	"time"
)

// Service names used as token identities and in logs.
const (
	ServiceSpotify = "spotify"
	ServiceYouTube = "youtube"
)

// PlaylistStatus is the migration state of a source playlist.
type PlaylistStatus string

const (
	// PlaylistNotStarted is never persisted; it is reported for playlists without a record.
	PlaylistNotStarted PlaylistStatus = "not_started"
	PlaylistInProgress PlaylistStatus = "in_progress"
	PlaylistCompleted  PlaylistStatus = "completed"
	PlaylistFailed     PlaylistStatus = "failed"
)

// Valid reports whether s can be persisted.
func (s PlaylistStatus) Valid() bool {
	switch s {
	case PlaylistInProgress, PlaylistCompleted, PlaylistFailed:
		return true
	}
	return false
}

// TrackStatus is the migration state of a single source track.
type TrackStatus string

const (
	TrackPending  TrackStatus = "pending"
	TrackMigrated TrackStatus = "migrated"
	TrackSkipped  TrackStatus = "skipped"
	TrackFailed   TrackStatus = "failed"
)

// Valid reports whether s can be persisted.
func (s TrackStatus) Valid() bool {
	switch s {
	case TrackPending, TrackMigrated, TrackSkipped, TrackFailed:
		return true
	}
	return false
}

// Resolved reports whether a track in this state is left alone on resume.
func (s TrackStatus) Resolved() bool {
	return s == TrackMigrated || s == TrackSkipped
}

// PlaylistRecord tracks the migration of one source playlist.
type PlaylistRecord struct {
	SourcePlaylistID string
	TargetPlaylistID string // empty until the target playlist exists
	Name             string
	Description      string
	Status           PlaylistStatus
	LastUpdated      time.Time
}

// Validate checks the fields required for persistence.
func (r *PlaylistRecord) Validate() error {
	if r.SourcePlaylistID == "" {
		return fmt.Errorf("source playlist id is required")
	}
	if !r.Status.Valid() {
		return fmt.Errorf("invalid playlist status %q", r.Status)
	}
	return nil
}

// TrackRecord tracks the migration of one source track within one source playlist.
type TrackRecord struct {
	SourcePlaylistID string
	SourceTrackID    string
	TargetTrackID    string // empty unless migrated
	Title            string
	Artists          string
	Score            *float64 // best candidate score seen, nil when nothing was scored
	Status           TrackStatus
	LastUpdated      time.Time
}

// Validate checks the fields required for persistence.
func (r *TrackRecord) Validate() error {
	if r.SourcePlaylistID == "" || r.SourceTrackID == "" {
		return fmt.Errorf("source playlist and track ids are required")
	}
	if !r.Status.Valid() {
		return fmt.Errorf("invalid track status %q", r.Status)
	}
	return nil
}

// TrackCounts aggregates track records by terminal status.
type TrackCounts struct {
	Migrated int `json:"migrated"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
	Pending  int `json:"pending"`
}

// Total is the number of recorded tracks.
func (c TrackCounts) Total() int {
	return c.Migrated + c.Skipped + c.Failed + c.Pending
}

// Add increments the bucket for status.
func (c *TrackCounts) Add(status TrackStatus) {
	switch status {
	case TrackMigrated:
		c.Migrated++
	case TrackSkipped:
		c.Skipped++
	case TrackFailed:
		c.Failed++
	case TrackPending:
		c.Pending++
	}
}

// AuthType is how a stored token authenticates requests.
type AuthType string

const (
	AuthOAuth   AuthType = "oauth"
	AuthSession AuthType = "session"
)

// ParseAuthType maps a stored value to an [AuthType]. The legacy value "browser" reads as session.
func ParseAuthType(s string) (AuthType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "oauth", "":
		return AuthOAuth, nil
	case "session", "browser":
		return AuthSession, nil
	}
	return "", fmt.Errorf("unknown auth type %q", s)
}

// TokenRecord is the stored credential for one service.
//
// For session auth AccessToken holds the captured header bundle as JSON.
type TokenRecord struct {
	Service      string
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	AuthType     AuthType
	RawValue     string
}

// Expired reports whether an oauth token is due for refresh at now. Tokens without expiry never expire.
func (t *TokenRecord) Expired(now time.Time) bool {
	if t.AuthType != AuthOAuth || t.ExpiresAt == nil {
		return false
	}
	return !now.Before(*t.ExpiresAt)
}

// Playlist is playlist metadata as returned by a catalog.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TrackCount  int    `json:"track_count"`
	Public      bool   `json:"public"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Track is a source catalog track. ID is empty for local or unavailable items.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album"`
	DurationMS int      `json:"duration_ms"`
	ISRC       string   `json:"isrc,omitempty"`
}

// Query builds the target search query from title, artist names and album.
func (t Track) Query() string {
	parts := make([]string, 0, len(t.Artists)+2)
	for _, p := range append(append([]string{t.Name}, t.Artists...), t.Album) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// ArtistNames joins the artists for display and storage.
func (t Track) ArtistNames() string {
	return strings.Join(t.Artists, ", ")
}

// Candidate is a scoreable target catalog item.
type Candidate struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ChannelTitle string `json:"channel_title"`
	DurationMS   int    `json:"duration_ms"`
}
