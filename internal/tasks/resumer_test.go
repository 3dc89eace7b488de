package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/plmigrate/internal/models"
	"github.com/desertthunder/plmigrate/internal/shared"
	tu "github.com/desertthunder/plmigrate/internal/testing"
)

func TestResumer(t *testing.T) {
	t.Run("invalid schedule", func(t *testing.T) {
		c := NewController(newFixture(t).migrator)
		if _, err := NewResumer(c, "not a cron spec", nil); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("RunOnce retries failed playlists", func(t *testing.T) {
		f := newFixture(t, trackOne)
		f.target.AddResult(trackOne.Query(), candOne)
		f.target.CreateErr = errors.New("backend error")

		if _, err := f.migrator.Migrate(context.Background(), testPlaylist, nil); err == nil {
			t.Fatal("expected first run to fail")
		}
		f.target.CreateErr = nil

		r, err := NewResumer(NewController(f.migrator), "0 */5 * * * *", nil)
		if err != nil {
			t.Fatal(err)
		}
		if n := r.RunOnce(context.Background()); n != 1 {
			t.Errorf("expected 1 resumed playlist, got %d", n)
		}
		if s := playlistStatus(t, f.store); s != models.PlaylistCompleted {
			t.Errorf("expected completed, got %s", s)
		}
		if n := r.RunOnce(context.Background()); n != 0 {
			t.Errorf("expected nothing left to resume, got %d", n)
		}
	})

	t.Run("quota ends the pass", func(t *testing.T) {
		f := newFixture(t, trackOne)
		f.target.AddResult(trackOne.Query(), candOne)
		f.target.AddErrs["v1"] = tu.QuotaError()

		if _, err := f.migrator.Migrate(context.Background(), testPlaylist, nil); !errors.Is(err, shared.ErrQuotaExceeded) {
			t.Fatalf("expected quota error, got %v", err)
		}

		r, err := NewResumer(NewController(f.migrator), "@every 1h", nil)
		if err != nil {
			t.Fatal(err)
		}
		if n := r.RunOnce(context.Background()); n != 0 {
			t.Errorf("expected no completions, got %d", n)
		}
		if s := playlistStatus(t, f.store); s != models.PlaylistFailed {
			t.Errorf("expected playlist to stay failed, got %s", s)
		}

		r.Start(context.Background())
		r.Stop()
	})
}
