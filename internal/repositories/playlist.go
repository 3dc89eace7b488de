package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/plmigrate/internal/models"
)

// SQLStore implements [Backend] over a migrated SQLite database.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a new SQLStore with the given database connection
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// DB exposes the underlying handle for diagnostics.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *SQLStore) Close() error { return s.db.Close() }

const playlistColumns = `source_playlist_id, target_playlist_id, name, description, status, last_updated`

// GetPlaylist retrieves a playlist record by its source id
func (s *SQLStore) GetPlaylist(id string) (*models.PlaylistRecord, error) {
	row := s.db.QueryRow(`SELECT `+playlistColumns+` FROM migrated_playlists WHERE source_playlist_id = ?`, id)

	rec, err := scanPlaylist(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist: %w", err)
	}
	return rec, nil
}

// UpsertPlaylist inserts or replaces a playlist record.
//
// A target id already owned by another playlist yields [ErrConflict].
func (s *SQLStore) UpsertPlaylist(rec *models.PlaylistRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	stamp(&rec.LastUpdated)

	query := `
		INSERT INTO migrated_playlists (` + playlistColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_playlist_id) DO UPDATE SET
			target_playlist_id = excluded.target_playlist_id,
			name = excluded.name,
			description = excluded.description,
			status = excluded.status,
			last_updated = excluded.last_updated
	`

	_, err := s.db.Exec(query,
		rec.SourcePlaylistID,
		nullString(rec.TargetPlaylistID),
		rec.Name,
		rec.Description,
		string(rec.Status),
		toMillis(rec.LastUpdated),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: target playlist %s already recorded", ErrConflict, rec.TargetPlaylistID)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert playlist: %w", err)
	}
	return nil
}

// ListPlaylists returns every playlist record, most recently updated first
func (s *SQLStore) ListPlaylists() ([]models.PlaylistRecord, error) {
	rows, err := s.db.Query(`SELECT ` + playlistColumns + ` FROM migrated_playlists ORDER BY last_updated DESC, source_playlist_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var records []models.PlaylistRecord
	for rows.Next() {
		rec, err := scanPlaylist(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

// DeletePlaylistAndTracks removes every track of the playlist and then the playlist, in one transaction.
func (s *SQLStore) DeletePlaylistAndTracks(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM migrated_tracks WHERE source_playlist_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete tracks: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM migrated_playlists WHERE source_playlist_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlaylist(row scanner) (*models.PlaylistRecord, error) {
	var (
		rec         models.PlaylistRecord
		target      sql.NullString
		status      string
		lastUpdated int64
	)

	err := row.Scan(&rec.SourcePlaylistID, &target, &rec.Name, &rec.Description, &status, &lastUpdated)
	if err != nil {
		return nil, err
	}

	rec.TargetPlaylistID = target.String
	rec.Status = models.PlaylistStatus(status)
	rec.LastUpdated = fromMillis(lastUpdated)
	return &rec, nil
}
