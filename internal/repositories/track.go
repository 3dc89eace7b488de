package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/plmigrate/internal/models"
)

const trackColumns = `source_playlist_id, source_track_id, target_track_id, title, artists, score, status, last_updated`

// GetTrack retrieves the record for one track of one playlist
func (s *SQLStore) GetTrack(playlistID, trackID string) (*models.TrackRecord, error) {
	row := s.db.QueryRow(
		`SELECT `+trackColumns+` FROM migrated_tracks WHERE source_playlist_id = ? AND source_track_id = ?`,
		playlistID, trackID,
	)
	return s.getTrack(row)
}

// FindTrackByTarget returns the track of playlistID already mapped to targetID, if any.
func (s *SQLStore) FindTrackByTarget(playlistID, targetID string) (*models.TrackRecord, error) {
	row := s.db.QueryRow(
		`SELECT `+trackColumns+` FROM migrated_tracks WHERE source_playlist_id = ? AND target_track_id = ?`,
		playlistID, targetID,
	)
	return s.getTrack(row)
}

func (s *SQLStore) getTrack(row *sql.Row) (*models.TrackRecord, error) {
	rec, err := scanTrack(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get track: %w", err)
	}
	return rec, nil
}

// UpsertTrack inserts or replaces a track record.
//
// Mapping two tracks of the same playlist to one target id yields [ErrConflict].
func (s *SQLStore) UpsertTrack(rec *models.TrackRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	stamp(&rec.LastUpdated)

	var score sql.NullFloat64
	if rec.Score != nil {
		score = sql.NullFloat64{Float64: *rec.Score, Valid: true}
	}

	query := `
		INSERT INTO migrated_tracks (` + trackColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_playlist_id, source_track_id) DO UPDATE SET
			target_track_id = excluded.target_track_id,
			title = excluded.title,
			artists = excluded.artists,
			score = excluded.score,
			status = excluded.status,
			last_updated = excluded.last_updated
	`

	_, err := s.db.Exec(query,
		rec.SourcePlaylistID,
		rec.SourceTrackID,
		nullString(rec.TargetTrackID),
		rec.Title,
		rec.Artists,
		score,
		string(rec.Status),
		toMillis(rec.LastUpdated),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: target track %s already recorded in playlist %s", ErrConflict, rec.TargetTrackID, rec.SourcePlaylistID)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert track: %w", err)
	}
	return nil
}

// ListTracks returns every track record of a playlist
func (s *SQLStore) ListTracks(playlistID string) ([]models.TrackRecord, error) {
	rows, err := s.db.Query(
		`SELECT `+trackColumns+` FROM migrated_tracks WHERE source_playlist_id = ? ORDER BY last_updated, source_track_id`,
		playlistID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var records []models.TrackRecord
	for rows.Next() {
		rec, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

// CountTracks groups a playlist's track records by status
func (s *SQLStore) CountTracks(playlistID string) (models.TrackCounts, error) {
	var counts models.TrackCounts

	rows, err := s.db.Query(
		`SELECT status, COUNT(*) FROM migrated_tracks WHERE source_playlist_id = ? GROUP BY status`,
		playlistID,
	)
	if err != nil {
		return counts, fmt.Errorf("failed to count tracks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return counts, fmt.Errorf("failed to scan track count: %w", err)
		}
		switch models.TrackStatus(status) {
		case models.TrackMigrated:
			counts.Migrated = n
		case models.TrackSkipped:
			counts.Skipped = n
		case models.TrackFailed:
			counts.Failed = n
		case models.TrackPending:
			counts.Pending = n
		}
	}
	return counts, rows.Err()
}

func scanTrack(row scanner) (*models.TrackRecord, error) {
	var (
		rec         models.TrackRecord
		target      sql.NullString
		score       sql.NullFloat64
		status      string
		lastUpdated int64
	)

	err := row.Scan(&rec.SourcePlaylistID, &rec.SourceTrackID, &target, &rec.Title, &rec.Artists, &score, &status, &lastUpdated)
	if err != nil {
		return nil, err
	}

	rec.TargetTrackID = target.String
	if score.Valid {
		rec.Score = &score.Float64
	}
	rec.Status = models.TrackStatus(status)
	rec.LastUpdated = fromMillis(lastUpdated)
	return &rec, nil
}
