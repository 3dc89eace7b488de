package services

import (
	"context"

	"github.com/desertthunder/plmigrate/internal/models"
)

// SourceCatalog reads playlists from the service being migrated from.
type SourceCatalog interface {
	// Name returns the service identifier, e.g. "spotify".
	Name() string

	// Playlists lists the authenticated user's playlists.
	Playlists(ctx context.Context, creds models.Credentials) ([]models.Playlist, error)

	// Playlist fetches playlist metadata.
	Playlist(ctx context.Context, creds models.Credentials, id string) (*models.Playlist, error)

	// Tracks fetches every track of a playlist in catalog order, following pagination.
	// Unavailable items are returned with an empty ID.
	Tracks(ctx context.Context, creds models.Credentials, playlistID string) ([]models.Track, error)
}

// TargetCatalog writes playlists to the service being migrated to.
type TargetCatalog interface {
	Name() string
	Playlists(ctx context.Context, creds models.Credentials) ([]models.Playlist, error)

	// CreatePlaylist creates a private playlist and returns its id.
	CreatePlaylist(ctx context.Context, creds models.Credentials, name, description string) (string, error)

	// SearchCandidates returns at most limit item ids matching query, best first.
	SearchCandidates(ctx context.Context, creds models.Credentials, query string, limit int) ([]string, error)

	// CandidateDetails fetches scoreable details for ids, in the order the catalog returns them.
	CandidateDetails(ctx context.Context, creds models.Credentials, ids []string) ([]models.Candidate, error)

	AddTrack(ctx context.Context, creds models.Credentials, playlistID, trackID string) error
}
