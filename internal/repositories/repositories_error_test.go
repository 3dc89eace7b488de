package repositories

import (
	"errors"
	"math"
	"testing"

	"github.com/desertthunder/plmigrate/internal/models"
	"github.com/desertthunder/plmigrate/internal/shared"
)

func isConflict(err error) bool   { return errors.Is(err, ErrConflict) }
func isValidation(err error) bool { return errors.Is(err, shared.ErrValidation) }

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *SQLStore {
	t.Helper()

	db, err := shared.NewDatabase(shared.InMemoryDatabase)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if _, err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(db)
}

func TestSQLStoreErrors(t *testing.T) {
	t.Run("track without playlist violates foreign key", func(t *testing.T) {
		store := setupTestDB(t)

		err := store.UpsertTrack(&models.TrackRecord{SourcePlaylistID: "ghost", SourceTrackID: "t1", Status: models.TrackPending})
		if err == nil {
			t.Fatal("expected foreign key error")
		}
		if isConflict(err) {
			t.Error("foreign key failures are not target conflicts")
		}
	})

	t.Run("track validation", func(t *testing.T) {
		store := setupTestDB(t)

		tests := []struct {
			name string
			rec  models.TrackRecord
		}{
			{name: "missing playlist", rec: models.TrackRecord{SourceTrackID: "t", Status: models.TrackPending}},
			{name: "missing track", rec: models.TrackRecord{SourcePlaylistID: "p", Status: models.TrackPending}},
			{name: "bad status", rec: models.TrackRecord{SourcePlaylistID: "p", SourceTrackID: "t", Status: "done"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if err := store.UpsertTrack(&tt.rec); err == nil {
					t.Error("expected validation error")
				}
			})
		}
	})

	t.Run("token without service", func(t *testing.T) {
		store := setupTestDB(t)
		if err := store.UpsertToken(&models.TokenRecord{AccessToken: "x"}); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("legacy browser auth type reads as session", func(t *testing.T) {
		store := setupTestDB(t)

		if _, err := store.DB().Exec(`PRAGMA ignore_check_constraints = ON`); err != nil {
			t.Fatalf("failed to relax checks: %v", err)
		}
		if _, err := store.DB().Exec(`INSERT INTO tokens (service, access_token, auth_type) VALUES ('youtube', '{}', 'browser')`); err != nil {
			t.Fatalf("failed to insert legacy row: %v", err)
		}

		rec, err := store.GetToken(models.ServiceYouTube)
		if err != nil {
			t.Fatalf("failed to read legacy token: %v", err)
		}
		if rec.AuthType != models.AuthSession {
			t.Errorf("expected session, got %s", rec.AuthType)
		}
	})

	t.Run("corrupt threshold", func(t *testing.T) {
		store := setupTestDB(t)
		if _, err := store.DB().Exec(`UPDATE config SET value = 'high' WHERE key = 'match_threshold'`); err != nil {
			t.Fatalf("failed to corrupt config: %v", err)
		}
		if _, err := store.MatchThreshold(); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("missing threshold falls back to default", func(t *testing.T) {
		store := setupTestDB(t)
		if _, err := store.DB().Exec(`DELETE FROM config`); err != nil {
			t.Fatalf("failed to clear config: %v", err)
		}
		v, err := store.MatchThreshold()
		if err != nil || v != DefaultMatchThreshold {
			t.Errorf("expected default, got %v, %v", v, err)
		}
	})

	t.Run("NaN threshold", func(t *testing.T) {
		if err := ValidateThreshold(math.NaN()); !isValidation(err) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := Open(shared.DatabaseConfig{Driver: "mysql"})
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
