package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/desertthunder/plmigrate/internal/models"
	"github.com/desertthunder/plmigrate/internal/shared"
	"github.com/mattn/go-sqlite3"
)

// ErrConflict is returned when a write would give a second record the same target id.
var ErrConflict = shared.ErrConflict

// DefaultMatchThreshold is used when no threshold has been stored.
const DefaultMatchThreshold = 0.5

const matchThresholdKey = "match_threshold"

// Store is the migration state store. Reads return nil, nil for missing records.
type Store interface {
	GetPlaylist(id string) (*models.PlaylistRecord, error)
	UpsertPlaylist(rec *models.PlaylistRecord) error
	ListPlaylists() ([]models.PlaylistRecord, error)
	GetTrack(playlistID, trackID string) (*models.TrackRecord, error)
	FindTrackByTarget(playlistID, targetID string) (*models.TrackRecord, error)
	UpsertTrack(rec *models.TrackRecord) error
	ListTracks(playlistID string) ([]models.TrackRecord, error)
	CountTracks(playlistID string) (models.TrackCounts, error)
	DeletePlaylistAndTracks(id string) error
}

// TokenStore persists per-service credentials.
type TokenStore interface {
	GetToken(service string) (*models.TokenRecord, error)
	UpsertToken(rec *models.TokenRecord) error
	DeleteToken(service string) error
	ListTokens() ([]models.TokenRecord, error)
}

// ConfigStore persists tunable settings.
type ConfigStore interface {
	MatchThreshold() (float64, error)
	SetMatchThreshold(v float64) error
}

// Backend bundles every store contract over one database handle.
type Backend interface {
	Store
	TokenStore
	ConfigStore
	io.Closer
}

// Open connects the backend selected by cfg.Driver and brings its schema up to date.
func Open(cfg shared.DatabaseConfig) (Backend, error) {
	switch cfg.Driver {
	case shared.DriverSQLite, "":
		db, err := shared.NewDatabase(cfg.Path)
		if err != nil {
			return nil, err
		}
		shared.ConfigureDatabase(db, cfg)
		if _, err := shared.RunMigrations(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return NewSQLStore(db), nil
	case shared.DriverGormSQLite, shared.DriverPostgres:
		return OpenGormStore(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown database driver %q", shared.ErrInvalidConfig, cfg.Driver)
	}
}

// ValidateThreshold rejects values outside [0,1].
func ValidateThreshold(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: match threshold must be between 0 and 1, got %v", shared.ErrValidation, v)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func stamp(t *time.Time) {
	if t.IsZero() {
		*t = time.Now()
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isUniqueViolation reports whether err is a SQLite unique or primary key constraint failure.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
