package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plmigrate/internal/matcher"
	"github.com/desertthunder/plmigrate/internal/metrics"
	"github.com/desertthunder/plmigrate/internal/models"
	"github.com/desertthunder/plmigrate/internal/repositories"
	"github.com/desertthunder/plmigrate/internal/services"
	"github.com/desertthunder/plmigrate/internal/shared"
)

// DefaultSearchLimit is the number of candidates requested per track when unconfigured.
const DefaultSearchLimit = 5

// CredentialSource resolves credentials for a service. Implemented by auth.Provider.
type CredentialSource interface {
	Credentials(ctx context.Context, service string) (models.Credentials, error)
}

// Summary is the outcome of one migration run.
//
// Migrated and Skipped include tracks resolved by earlier runs. Invalid counts source items without an id,
// which are in none of the other buckets.
type Summary struct {
	PlaylistID       string                `json:"playlist_id"`
	TargetPlaylistID string                `json:"target_playlist_id,omitempty"`
	Name             string                `json:"name"`
	Status           models.PlaylistStatus `json:"status"`
	Migrated         int                   `json:"migrated"`
	Skipped          int                   `json:"skipped"`
	Failed           int                   `json:"failed"`
	Invalid          int                   `json:"invalid"`
	Duration         time.Duration         `json:"duration"`
}

// Deps are the collaborators of a [Migrator].
type Deps struct {
	Source      services.SourceCatalog
	Target      services.TargetCatalog
	Store       repositories.Store
	Config      repositories.ConfigStore
	Credentials CredentialSource
}

// Migrator runs the resumable per-playlist migration.
type Migrator struct {
	deps        Deps
	locks       *Locks
	callTimeout time.Duration
	searchLimit int
	logger      *log.Logger
	now         func() time.Time
}

// MigratorOption configures a [Migrator].
type MigratorOption func(*Migrator)

// WithLocks shares a lock set between migrators, e.g. across a server and a scheduler.
func WithLocks(l *Locks) MigratorOption {
	return func(m *Migrator) { m.locks = l }
}

// WithLogger sets the migrator logger.
func WithLogger(l *log.Logger) MigratorOption {
	return func(m *Migrator) { m.logger = l }
}

// WithClock overrides the time source used for record timestamps and durations.
func WithClock(now func() time.Time) MigratorOption {
	return func(m *Migrator) { m.now = now }
}

// NewMigrator creates a migrator. Call timeout and search limit come from cfg.
func NewMigrator(deps Deps, cfg shared.MigrationConfig, opts ...MigratorOption) *Migrator {
	m := &Migrator{
		deps:        deps,
		locks:       NewLocks(),
		callTimeout: cfg.CallTimeout,
		searchLimit: cfg.SearchLimit,
		logger:      log.Default(),
		now:         time.Now,
	}
	if m.searchLimit <= 0 {
		m.searchLimit = DefaultSearchLimit
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Locks returns the lock set guarding playlist ids.
func (m *Migrator) Locks() *Locks { return m.locks }

// Migrate migrates the source playlist playlistID, reporting progress to sink.
//
// A completed playlist is reported from stored state without remote calls. A second concurrent call for
// the same id fails with [shared.ErrMigrationInProgress]. The returned summary is non-nil whenever the
// lock was acquired, including on error.
func (m *Migrator) Migrate(ctx context.Context, playlistID string, sink Sink) (*Summary, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	if sink == nil {
		sink = Discard
	}

	release, err := m.locks.TryAcquire(playlistID)
	if err != nil {
		return nil, err
	}
	defer release()

	return m.migrateHeld(ctx, playlistID, sink)
}

// migrateHeld runs a migration whose lock the caller already holds.
func (m *Migrator) migrateHeld(ctx context.Context, playlistID string, sink Sink) (*Summary, error) {
	metrics.MigrationsRunning.Inc()
	defer metrics.MigrationsRunning.Dec()

	mg := &migration{
		m:       m,
		id:      playlistID,
		sink:    sink,
		logger:  shared.WithLogger(m.logger, "playlist", playlistID),
		summary: &Summary{PlaylistID: playlistID, Status: models.PlaylistNotStarted},
		start:   m.now(),
	}

	err := mg.run(ctx)
	mg.summary.Duration = m.now().Sub(mg.start)

	metrics.MigrationsTotal.WithLabelValues(string(mg.summary.Status)).Inc()
	metrics.MigrationDuration.Observe(mg.summary.Duration.Seconds())
	return mg.summary, err
}

// migration is the state of a single run.
type migration struct {
	m         *Migrator
	id        string
	sink      Sink
	logger    *log.Logger
	rec       *models.PlaylistRecord
	summary   *Summary
	start     time.Time
	srcCreds  models.Credentials
	dstCreds  models.Credentials
	threshold float64
}

func (mg *migration) emit(ev Event) {
	if err := mg.sink.Send(ev); err != nil {
		mg.logger.Debug("progress event dropped", "type", ev.Type, "err", err)
	}
}

// call runs fn under the per-call timeout.
func call[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return fn(ctx)
}

func (mg *migration) run(ctx context.Context) error {
	m := mg.m

	rec, err := m.deps.Store.GetPlaylist(mg.id)
	if err != nil {
		return mg.abort("loading migration state", err)
	}
	if rec != nil && rec.Status == models.PlaylistCompleted {
		return mg.alreadyCompleted(rec)
	}
	if rec != nil {
		mg.summary.Name = rec.Name
		mg.summary.TargetPlaylistID = rec.TargetPlaylistID
		mg.summary.Status = rec.Status
	}

	if mg.srcCreds, err = m.deps.Credentials.Credentials(ctx, m.deps.Source.Name()); err != nil {
		return mg.abort("resolving "+m.deps.Source.Name()+" credentials", err)
	}
	if mg.dstCreds, err = m.deps.Credentials.Credentials(ctx, m.deps.Target.Name()); err != nil {
		return mg.abort("resolving "+m.deps.Target.Name()+" credentials", err)
	}
	if mg.threshold, err = m.deps.Config.MatchThreshold(); err != nil {
		return mg.abort("reading match threshold", err)
	}

	if err := mg.prepare(ctx, rec); err != nil {
		return err
	}

	tracks, err := call(ctx, m.callTimeout, func(c context.Context) ([]models.Track, error) {
		return m.deps.Source.Tracks(c, mg.srcCreds, mg.id)
	})
	if err != nil {
		if ctx.Err() != nil {
			return mg.interrupted(ctx.Err())
		}
		return mg.fail("fetching tracks", err)
	}
	mg.logger.Info("fetched tracks", "count", len(tracks), "threshold", mg.threshold)
	mg.emit(fetchedTracksEvent(len(tracks)))

	for i, t := range tracks {
		if err := ctx.Err(); err != nil {
			return mg.interrupted(err)
		}
		if err := mg.migrateTrack(ctx, i+1, t); err != nil {
			return err
		}
	}

	mg.rec.Status = models.PlaylistCompleted
	if err := mg.savePlaylist(); err != nil {
		return mg.fail("recording completion", err)
	}
	mg.summary.Status = models.PlaylistCompleted
	mg.logger.Info("migration complete",
		"migrated", mg.summary.Migrated, "skipped", mg.summary.Skipped, "failed", mg.summary.Failed, "invalid", mg.summary.Invalid)
	mg.emit(completeEvent(mg.summaryAt()))
	return nil
}

// summaryAt snapshots the summary for event details, so consumers never race with the run.
func (mg *migration) summaryAt() *Summary {
	s := *mg.summary
	s.Duration = mg.m.now().Sub(mg.start)
	return &s
}

func (mg *migration) alreadyCompleted(rec *models.PlaylistRecord) error {
	counts, err := mg.m.deps.Store.CountTracks(mg.id)
	if err != nil {
		return mg.abort("counting tracks", err)
	}

	mg.rec = rec
	mg.summary.Name = rec.Name
	mg.summary.TargetPlaylistID = rec.TargetPlaylistID
	mg.summary.Status = models.PlaylistCompleted
	mg.summary.Migrated = counts.Migrated
	mg.summary.Skipped = counts.Skipped
	mg.summary.Failed = counts.Failed

	mg.logger.Info("playlist already migrated")
	mg.emit(alreadyCompletedEvent(rec))
	mg.emit(completeEvent(mg.summaryAt()))
	return nil
}

// prepare moves the playlist record to in_progress and makes sure the target playlist exists.
func (mg *migration) prepare(ctx context.Context, rec *models.PlaylistRecord) error {
	m := mg.m

	if rec != nil {
		mg.rec = rec
		resumed := resumingEvent(rec)
		rec.Status = models.PlaylistInProgress
		if err := mg.savePlaylist(); err != nil {
			return mg.abort("resuming migration", err)
		}
		mg.summary.Status = models.PlaylistInProgress
		mg.logger.Info("resuming migration", "name", rec.Name, "target", rec.TargetPlaylistID)
		mg.emit(resumed)
	} else {
		pl, err := call(ctx, m.callTimeout, func(c context.Context) (*models.Playlist, error) {
			return m.deps.Source.Playlist(c, mg.srcCreds, mg.id)
		})
		if err != nil {
			return mg.abort("fetching playlist details", err)
		}

		mg.rec = &models.PlaylistRecord{
			SourcePlaylistID: mg.id,
			Name:             pl.Name,
			Description:      pl.Description,
			Status:           models.PlaylistInProgress,
		}
		if err := mg.savePlaylist(); err != nil {
			return mg.abort("recording migration start", err)
		}
		mg.summary.Name = pl.Name
		mg.summary.Status = models.PlaylistInProgress
		mg.logger.Info("starting migration", "name", pl.Name)
		mg.emit(startingEvent(pl.Name))
	}

	if mg.rec.TargetPlaylistID != "" {
		mg.summary.TargetPlaylistID = mg.rec.TargetPlaylistID
		return nil
	}

	targetID, err := call(ctx, m.callTimeout, func(c context.Context) (string, error) {
		return m.deps.Target.CreatePlaylist(c, mg.dstCreds, mg.rec.Name, mg.rec.Description)
	})
	if err != nil {
		return mg.fail("creating target playlist", err)
	}

	mg.rec.TargetPlaylistID = targetID
	if err := mg.savePlaylist(); err != nil {
		return mg.fail("recording target playlist", err)
	}
	mg.summary.TargetPlaylistID = targetID
	mg.logger.Info("created target playlist", "target", targetID)
	mg.emit(createdPlaylistEvent(mg.rec.Name, targetID))
	return nil
}

// migrateTrack processes one source track. Only errors that end the run are returned.
func (mg *migration) migrateTrack(ctx context.Context, pos int, t models.Track) error {
	m := mg.m
	logger := mg.logger.With("track", t.ID)

	if t.ID == "" {
		mg.summary.Invalid++
		logger.Debug("invalid track item", "position", pos)
		mg.emit(invalidTrackEvent(pos))
		return nil
	}

	existing, err := m.deps.Store.GetTrack(mg.id, t.ID)
	if err != nil {
		return mg.fail("loading track state", err)
	}
	if existing != nil && existing.Status.Resolved() {
		mg.count(existing.Status)
		logger.Debug("track already processed", "status", existing.Status)
		mg.emit(alreadyProcessedEvent(t, existing))
		return nil
	}

	tr := &models.TrackRecord{
		SourcePlaylistID: mg.id,
		SourceTrackID:    t.ID,
		Title:            t.Name,
		Artists:          t.ArtistNames(),
		Status:           models.TrackPending,
	}
	if err := mg.saveTrack(tr); err != nil {
		return mg.fail("recording track", err)
	}

	query := t.Query()
	mg.emit(searchingEvent(query))
	ids, err := call(ctx, m.callTimeout, func(c context.Context) ([]string, error) {
		return m.deps.Target.SearchCandidates(c, mg.dstCreds, query, m.searchLimit)
	})
	if err != nil {
		return mg.trackFailed(ctx, t, tr, err)
	}
	if len(ids) == 0 {
		return mg.resolve(tr, models.TrackSkipped, notFoundEvent(t))
	}

	candidates, err := call(ctx, m.callTimeout, func(c context.Context) ([]models.Candidate, error) {
		return m.deps.Target.CandidateDetails(c, mg.dstCreds, ids)
	})
	if err != nil {
		return mg.trackFailed(ctx, t, tr, err)
	}

	best, ok := matcher.Best(t, candidates)
	if !ok {
		return mg.resolve(tr, models.TrackSkipped, notFoundEvent(t))
	}
	score := best.Score
	tr.Score = &score
	metrics.MatchScore.Observe(score)
	logger.Debug("best candidate", "candidate", best.Candidate.ID, "score", score)

	if !matcher.Accept(best, mg.threshold) {
		return mg.resolve(tr, models.TrackSkipped, poorMatchEvent(t, tr, mg.threshold))
	}
	mg.emit(foundEvent(t, best.Candidate.Title, score))

	owner, err := m.deps.Store.FindTrackByTarget(mg.id, best.Candidate.ID)
	if err != nil {
		return mg.fail("checking target track", err)
	}
	if owner != nil && owner.SourceTrackID != t.ID {
		return mg.resolve(tr, models.TrackSkipped, duplicateTargetEvent(t, best.Candidate.ID, owner.SourceTrackID))
	}

	_, err = call(ctx, m.callTimeout, func(c context.Context) (struct{}, error) {
		return struct{}{}, m.deps.Target.AddTrack(c, mg.dstCreds, mg.rec.TargetPlaylistID, best.Candidate.ID)
	})
	if err != nil {
		return mg.trackFailed(ctx, t, tr, err)
	}

	tr.TargetTrackID = best.Candidate.ID
	tr.Status = models.TrackMigrated
	if err := mg.saveTrack(tr); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			tr.TargetTrackID = ""
			return mg.resolve(tr, models.TrackSkipped, duplicateTargetEvent(t, best.Candidate.ID, "another track"))
		}
		return mg.fail("recording migrated track", err)
	}

	mg.count(models.TrackMigrated)
	metrics.TracksProcessedTotal.WithLabelValues(string(models.TrackMigrated)).Inc()
	logger.Debug("track migrated", "target", tr.TargetTrackID)
	mg.emit(addedEvent(t, tr))
	return nil
}

// resolve persists a terminal track status, then reports it.
func (mg *migration) resolve(tr *models.TrackRecord, status models.TrackStatus, ev Event) error {
	tr.Status = status
	if err := mg.saveTrack(tr); err != nil {
		return mg.fail("recording track outcome", err)
	}
	mg.count(status)
	metrics.TracksProcessedTotal.WithLabelValues(string(status)).Inc()
	mg.logger.Debug("track resolved", "track", tr.SourceTrackID, "status", status)
	mg.emit(ev)
	return nil
}

// trackFailed records a per-track remote failure. Quota exhaustion and cancellation end the run.
func (mg *migration) trackFailed(ctx context.Context, t models.Track, tr *models.TrackRecord, cause error) error {
	if ctx.Err() != nil {
		return mg.interrupted(ctx.Err())
	}

	tr.Status = models.TrackFailed
	if err := mg.saveTrack(tr); err != nil {
		return mg.fail("recording track failure", err)
	}
	mg.count(models.TrackFailed)
	metrics.TracksProcessedTotal.WithLabelValues(string(models.TrackFailed)).Inc()
	mg.logger.Warn("track failed", "track", t.ID, "kind", services.KindOf(cause), "err", cause)

	if errors.Is(cause, shared.ErrQuotaExceeded) {
		return mg.fail("processing "+t.Name, cause)
	}
	mg.emit(trackErrorEvent(t, cause))
	return nil
}

func (mg *migration) count(status models.TrackStatus) {
	switch status {
	case models.TrackMigrated:
		mg.summary.Migrated++
	case models.TrackSkipped:
		mg.summary.Skipped++
	case models.TrackFailed:
		mg.summary.Failed++
	}
}

// abort ends the run without touching the playlist status.
func (mg *migration) abort(stage string, err error) error {
	mg.logger.Error("migration aborted", "stage", stage, "err", err)
	mg.emit(fatalEvent(stage, err))
	return fmt.Errorf("%s: %w", stage, err)
}

// fail marks the playlist failed, then ends the run.
func (mg *migration) fail(stage string, err error) error {
	if mg.rec != nil {
		mg.rec.Status = models.PlaylistFailed
		if serr := mg.savePlaylist(); serr != nil {
			mg.logger.Error("failed to record playlist failure", "err", serr)
		}
		mg.summary.Status = models.PlaylistFailed
	}
	return mg.abort(stage, err)
}

// interrupted ends a cancelled run. The playlist stays in_progress so the next run resumes it.
func (mg *migration) interrupted(err error) error {
	mg.logger.Warn("migration interrupted", "migrated", mg.summary.Migrated)
	mg.emit(fatalEvent("running", err))
	return err
}

func (mg *migration) savePlaylist() error {
	mg.rec.LastUpdated = mg.m.now()
	return mg.m.deps.Store.UpsertPlaylist(mg.rec)
}

func (mg *migration) saveTrack(tr *models.TrackRecord) error {
	tr.LastUpdated = mg.m.now()
	return mg.m.deps.Store.UpsertTrack(tr)
}
