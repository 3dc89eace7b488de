package tasks

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/desertthunder/plmigrate/internal/models"
	"github.com/desertthunder/plmigrate/internal/shared"
)

func TestController(t *testing.T) {
	ctx := context.Background()

	t.Run("StartMigration streams events until done", func(t *testing.T) {
		f := newFixture(t, trackOne, trackTwo)
		f.target.AddResult(trackOne.Query(), candOne)
		c := NewController(f.migrator)

		run, err := c.StartMigration(ctx, testPlaylist)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if run.ID == "" || run.PlaylistID != testPlaylist {
			t.Errorf("unexpected run %+v", run)
		}

		var events []Event
		for ev := range run.Events() {
			events = append(events, ev)
		}
		summary, err := run.Wait()
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
		if events[len(events)-1].Type != EventComplete {
			t.Errorf("expected complete event last, got %s", events[len(events)-1].Type)
		}
		assertCounts(t, summary, 1, 1, 0, 0)
	})

	t.Run("Closing a run does not cancel it", func(t *testing.T) {
		f := newFixture(t, trackOne, trackTwo, trackFour)
		f.target.AddResult(trackOne.Query(), candOne)
		c := NewController(f.migrator)

		run, err := c.StartMigration(ctx, testPlaylist)
		if err != nil {
			t.Fatal(err)
		}
		<-run.Events()
		run.Close()

		summary, err := run.Wait()
		if err != nil {
			t.Fatalf("expected run to finish, got %v", err)
		}
		if summary.Status != models.PlaylistCompleted {
			t.Errorf("expected completed, got %s", summary.Status)
		}
	})

	t.Run("Second start is rejected synchronously", func(t *testing.T) {
		f := newFixture(t, trackOne)
		unblock := make(chan struct{})
		f.target.BeforeQuery = func(context.Context, string) { <-unblock }
		c := NewController(f.migrator)

		run, err := c.StartMigration(ctx, testPlaylist)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := c.StartMigration(ctx, testPlaylist); !errors.Is(err, shared.ErrMigrationInProgress) {
			t.Errorf("expected ErrMigrationInProgress, got %v", err)
		}
		if err := c.ResetMigration(testPlaylist); !errors.Is(err, shared.ErrMigrationInProgress) {
			t.Errorf("expected reset to be refused during a run, got %v", err)
		}

		status, err := c.StatusMap()
		if err != nil {
			t.Fatal(err)
		}
		if status[testPlaylist] != models.PlaylistInProgress {
			t.Errorf("expected in_progress, got %s", status[testPlaylist])
		}

		close(unblock)
		run.Close()
		c.Wait()
	})

	t.Run("Reset starts over", func(t *testing.T) {
		f := newFixture(t, trackOne)
		f.target.AddResult(trackOne.Query(), candOne)
		c := NewController(f.migrator)

		if _, err := f.migrator.Migrate(ctx, testPlaylist, nil); err != nil {
			t.Fatal(err)
		}
		if err := c.ResetMigration(testPlaylist); err != nil {
			t.Fatalf("reset failed: %v", err)
		}

		if s := playlistStatus(t, f.store); s != models.PlaylistNotStarted {
			t.Errorf("expected no playlist record, got %s", s)
		}
		tracks, _ := f.store.ListTracks(testPlaylist)
		if len(tracks) != 0 {
			t.Errorf("expected no track records, got %d", len(tracks))
		}

		summary, err := f.migrator.Migrate(ctx, testPlaylist, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(f.target.Created()) != 2 || summary.Migrated != 1 {
			t.Errorf("expected a fresh migration, got %+v created=%v", summary, f.target.Created())
		}
	})

	t.Run("Match threshold", func(t *testing.T) {
		c := NewController(newFixture(t).migrator)

		if v, err := c.MatchThreshold(); err != nil || v != 0.5 {
			t.Errorf("expected default 0.5, got %v %v", v, err)
		}
		for _, bad := range []float64{1.5, -0.1} {
			if err := c.SetMatchThreshold(bad); !errors.Is(err, shared.ErrValidation) {
				t.Errorf("expected validation error for %v, got %v", bad, err)
			}
		}
		if err := c.SetMatchThreshold(0.7); err != nil {
			t.Fatal(err)
		}
		if v, _ := c.MatchThreshold(); v != 0.7 {
			t.Errorf("expected 0.7, got %v", v)
		}
	})

	t.Run("Source playlists carry migration status", func(t *testing.T) {
		f := newFixture(t, trackOne)
		f.source.Lists = append(f.source.Lists, models.Playlist{ID: "pl2", Name: "Untouched"})
		f.target.AddResult(trackOne.Query(), candOne)
		c := NewController(f.migrator)

		if _, err := f.migrator.Migrate(ctx, testPlaylist, nil); err != nil {
			t.Fatal(err)
		}

		views, err := c.SourcePlaylists(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(views) != 2 {
			t.Fatalf("expected 2 playlists, got %d", len(views))
		}
		if views[0].Status != models.PlaylistCompleted || views[0].TargetPlaylistID != "PLtarget" || views[0].LastUpdated == nil {
			t.Errorf("unexpected view %+v", views[0])
		}
		if views[1].Status != models.PlaylistNotStarted {
			t.Errorf("expected not_started, got %s", views[1].Status)
		}
	})

	t.Run("Source playlists need credentials", func(t *testing.T) {
		f := newFixture(t)
		f.creds.RequireAuth(models.ServiceSpotify)
		if _, err := NewController(f.migrator).SourcePlaylists(ctx); !errors.Is(err, shared.ErrAuthenticationRequired) {
			t.Errorf("expected authentication required, got %v", err)
		}
	})

	t.Run("SyncPlaylists links by name", func(t *testing.T) {
		f := newFixture(t)
		f.source.Lists = []models.Playlist{
			{ID: "a", Name: "Road  Trip"},
			{ID: "b", Name: "Gym"},
			{ID: "c", Name: "Unmatched"},
		}
		f.target.Lists = []models.Playlist{
			{ID: "YT1", Name: "road trip"},
			{ID: "YT2", Name: "Gym"},
		}
		c := NewController(f.migrator)

		res, err := c.SyncPlaylists(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(res.Linked, []string{"a", "b"}) {
			t.Errorf("expected a and b linked, got %v", res.Linked)
		}

		rec, _ := f.store.GetPlaylist("a")
		if rec == nil || rec.Status != models.PlaylistCompleted || rec.TargetPlaylistID != "YT1" {
			t.Errorf("unexpected record %+v", rec)
		}

		res, err = c.SyncPlaylists(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Linked) != 0 {
			t.Errorf("expected second sync to be a no-op, got %v", res.Linked)
		}
	})

	t.Run("FailedPlaylists and Tracks", func(t *testing.T) {
		f := newFixture(t, trackOne)
		c := NewController(f.migrator)

		now := time.Now()
		for i, id := range []string{"x", "y", "z"} {
			status := models.PlaylistFailed
			if id == "y" {
				status = models.PlaylistCompleted
			}
			err := f.store.UpsertPlaylist(&models.PlaylistRecord{
				SourcePlaylistID: id, Name: id, Status: status, LastUpdated: now.Add(time.Duration(-i) * time.Minute),
			})
			if err != nil {
				t.Fatal(err)
			}
		}

		ids, err := c.FailedPlaylists()
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(ids, []string{"z", "x"}) {
			t.Errorf("expected oldest failure first, got %v", ids)
		}

		if _, _, err := c.Tracks("missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
		rec, tracks, err := c.Tracks("x")
		if err != nil || rec.Name != "x" || len(tracks) != 0 {
			t.Errorf("unexpected tracks result %v %v %v", rec, tracks, err)
		}
	})
}
