package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plmigrate/internal/models"
	"github.com/desertthunder/plmigrate/internal/repositories"
	"github.com/desertthunder/plmigrate/internal/shared"
)

// EventBuffer is the channel buffer of a [Run].
const EventBuffer = 64

// Run is a migration started by [Controller.StartMigration].
type Run struct {
	ID         string
	PlaylistID string
	StartedAt  time.Time

	sink    *ChanSink
	done    chan struct{}
	summary *Summary
	err     error
}

// Events streams progress until the run ends, then closes.
func (r *Run) Events() <-chan Event { return r.sink.Events() }

// Wait blocks until the run ends.
func (r *Run) Wait() (*Summary, error) {
	<-r.done
	return r.summary, r.err
}

// Done is closed when the run ends.
func (r *Run) Done() <-chan struct{} { return r.done }

// Close stops event delivery. The run itself continues.
func (r *Run) Close() { r.sink.Close() }

// PlaylistView is a source playlist together with its migration state.
type PlaylistView struct {
	models.Playlist
	Status           models.PlaylistStatus `json:"status"`
	TargetPlaylistID string                `json:"target_playlist_id,omitempty"`
	LastUpdated      *time.Time            `json:"last_updated,omitempty"`
}

// Controller is the control surface shared by the CLI, the HTTP server and the TUI.
type Controller struct {
	migrator *Migrator
	logger   *log.Logger

	wg sync.WaitGroup
}

// NewController wraps m.
func NewController(m *Migrator) *Controller {
	return &Controller{migrator: m, logger: m.logger}
}

// Migrator returns the wrapped migrator.
func (c *Controller) Migrator() *Migrator { return c.migrator }

// StartMigration starts migrating playlistID in the background.
//
// ctx bounds the run; closing the returned [Run] only detaches the event consumer. A run already in
// progress for the same id yields [shared.ErrMigrationInProgress].
func (c *Controller) StartMigration(ctx context.Context, playlistID string) (*Run, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	release, err := c.migrator.locks.TryAcquire(playlistID)
	if err != nil {
		return nil, err
	}

	run := &Run{
		ID:         shared.GenerateID(),
		PlaylistID: playlistID,
		StartedAt:  c.migrator.now(),
		sink:       NewChanSink(EventBuffer),
		done:       make(chan struct{}),
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(run.done)
		defer run.sink.finish()
		defer release()

		run.summary, run.err = c.migrator.migrateHeld(ctx, playlistID, run.sink)
		if run.err != nil {
			c.logger.Warn("migration run ended with error", "run", run.ID, "playlist", playlistID, "err", run.err)
		}
	}()
	return run, nil
}

// Wait blocks until every started run has ended.
func (c *Controller) Wait() { c.wg.Wait() }

// ResetMigration deletes all state for playlistID so the next run starts from scratch.
func (c *Controller) ResetMigration(playlistID string) error {
	release, err := c.migrator.locks.TryAcquire(playlistID)
	if err != nil {
		return err
	}
	defer release()

	if err := c.migrator.deps.Store.DeletePlaylistAndTracks(playlistID); err != nil {
		return fmt.Errorf("failed to reset migration: %w", err)
	}
	c.logger.Info("migration reset", "playlist", playlistID)
	return nil
}

// MatchThreshold returns the stored match threshold.
func (c *Controller) MatchThreshold() (float64, error) {
	return c.migrator.deps.Config.MatchThreshold()
}

// SetMatchThreshold validates and stores v. Runs already in progress keep the value they started with.
func (c *Controller) SetMatchThreshold(v float64) error {
	return c.migrator.deps.Config.SetMatchThreshold(v)
}

// StatusMap maps every known source playlist id to its status. Locked playlists report in_progress.
func (c *Controller) StatusMap() (map[string]models.PlaylistStatus, error) {
	records, err := c.migrator.deps.Store.ListPlaylists()
	if err != nil {
		return nil, err
	}

	out := make(map[string]models.PlaylistStatus, len(records))
	for _, rec := range records {
		out[rec.SourcePlaylistID] = rec.Status
	}
	for _, id := range c.migrator.locks.Running() {
		out[id] = models.PlaylistInProgress
	}
	return out, nil
}

// Tracks returns the track records of a playlist for reporting.
func (c *Controller) Tracks(playlistID string) (*models.PlaylistRecord, []models.TrackRecord, error) {
	rec, err := c.migrator.deps.Store.GetPlaylist(playlistID)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil {
		return nil, nil, fmt.Errorf("%w: no migration recorded for %s", shared.ErrNotFound, playlistID)
	}

	tracks, err := c.migrator.deps.Store.ListTracks(playlistID)
	if err != nil {
		return nil, nil, err
	}
	return rec, tracks, nil
}

// SourcePlaylists lists the user's source playlists with their migration state.
func (c *Controller) SourcePlaylists(ctx context.Context) ([]PlaylistView, error) {
	deps := c.migrator.deps
	creds, err := deps.Credentials.Credentials(ctx, deps.Source.Name())
	if err != nil {
		return nil, err
	}

	playlists, err := call(ctx, c.migrator.callTimeout, func(cc context.Context) ([]models.Playlist, error) {
		return deps.Source.Playlists(cc, creds)
	})
	if err != nil {
		return nil, err
	}

	records, err := c.recordsByID()
	if err != nil {
		return nil, err
	}

	views := make([]PlaylistView, 0, len(playlists))
	for _, p := range playlists {
		v := PlaylistView{Playlist: p, Status: models.PlaylistNotStarted}
		if rec, ok := records[p.ID]; ok {
			v.Status = rec.Status
			v.TargetPlaylistID = rec.TargetPlaylistID
			updated := rec.LastUpdated
			v.LastUpdated = &updated
		}
		if c.migrator.locks.Held(p.ID) {
			v.Status = models.PlaylistInProgress
		}
		views = append(views, v)
	}
	return views, nil
}

// TargetPlaylists lists the user's playlists on the target service.
func (c *Controller) TargetPlaylists(ctx context.Context) ([]models.Playlist, error) {
	deps := c.migrator.deps
	creds, err := deps.Credentials.Credentials(ctx, deps.Target.Name())
	if err != nil {
		return nil, err
	}
	return call(ctx, c.migrator.callTimeout, func(cc context.Context) ([]models.Playlist, error) {
		return deps.Target.Playlists(cc, creds)
	})
}

// SyncResult reports what [Controller.SyncPlaylists] changed.
type SyncResult struct {
	Linked  []string `json:"linked"`
	Skipped []string `json:"skipped,omitempty"`
}

// SyncPlaylists marks source playlists that already exist on the target, matched by normalized name, as
// completed with that target id. Playlists with a run in progress are left alone.
func (c *Controller) SyncPlaylists(ctx context.Context) (*SyncResult, error) {
	sources, err := c.SourcePlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list source playlists: %w", err)
	}
	targets, err := c.TargetPlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list target playlists: %w", err)
	}

	byName := make(map[string]string, len(targets))
	for _, t := range targets {
		key := shared.NormalizeName(t.Name)
		if _, dup := byName[key]; !dup {
			byName[key] = t.ID
		}
	}

	result := &SyncResult{Linked: []string{}}
	for _, src := range sources {
		targetID, ok := byName[shared.NormalizeName(src.Name)]
		if !ok || (src.Status == models.PlaylistCompleted && src.TargetPlaylistID == targetID) {
			continue
		}

		release, err := c.migrator.locks.TryAcquire(src.ID)
		if err != nil {
			result.Skipped = append(result.Skipped, src.ID)
			continue
		}

		rec := &models.PlaylistRecord{
			SourcePlaylistID: src.ID,
			TargetPlaylistID: targetID,
			Name:             src.Name,
			Description:      src.Description,
			Status:           models.PlaylistCompleted,
			LastUpdated:      c.migrator.now(),
		}
		err = c.migrator.deps.Store.UpsertPlaylist(rec)
		release()

		switch {
		case errors.Is(err, repositories.ErrConflict):
			c.logger.Warn("target playlist already linked", "playlist", src.ID, "target", targetID)
			result.Skipped = append(result.Skipped, src.ID)
		case err != nil:
			return result, fmt.Errorf("failed to link playlist %s: %w", src.ID, err)
		default:
			result.Linked = append(result.Linked, src.ID)
		}
	}

	sort.Strings(result.Linked)
	c.logger.Info("playlists synced", "linked", len(result.Linked), "skipped", len(result.Skipped))
	return result, nil
}

// FailedPlaylists returns the ids of playlists whose last run failed, oldest first.
func (c *Controller) FailedPlaylists() ([]string, error) {
	records, err := c.migrator.deps.Store.ListPlaylists()
	if err != nil {
		return nil, err
	}

	var failed []models.PlaylistRecord
	for _, rec := range records {
		if rec.Status == models.PlaylistFailed {
			failed = append(failed, rec)
		}
	}
	sort.SliceStable(failed, func(i, j int) bool { return failed[i].LastUpdated.Before(failed[j].LastUpdated) })

	ids := make([]string, len(failed))
	for i, rec := range failed {
		ids[i] = rec.SourcePlaylistID
	}
	return ids, nil
}

func (c *Controller) recordsByID() (map[string]models.PlaylistRecord, error) {
	records, err := c.migrator.deps.Store.ListPlaylists()
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.PlaylistRecord, len(records))
	for _, rec := range records {
		out[rec.SourcePlaylistID] = rec
	}
	return out, nil
}
