package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plmigrate/internal/shared"
	"github.com/robfig/cron/v3"
)

// Resumer periodically retries failed migrations, one playlist at a time.
type Resumer struct {
	controller *Controller
	cron       *cron.Cron
	logger     *log.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewResumer schedules retries on spec, a cron expression with a leading seconds field.
func NewResumer(c *Controller, spec string, logger *log.Logger) (*Resumer, error) {
	if logger == nil {
		logger = c.logger
	}

	r := &Resumer{controller: c, logger: shared.WithLogger(logger, "component", "resumer")}
	cronLogger := cron.PrintfLogger(r.logger.StandardLog())
	r.cron = cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	if _, err := r.cron.AddFunc(spec, r.tick); err != nil {
		return nil, fmt.Errorf("%w: resume_schedule %q: %v", shared.ErrInvalidConfig, spec, err)
	}
	return r, nil
}

// Start begins scheduling. Runs use ctx, so cancelling it interrupts a retry in progress.
func (r *Resumer) Start(ctx context.Context) {
	r.mu.Lock()
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	r.cron.Start()
	r.logger.Info("scheduled resume of failed migrations", "entries", len(r.cron.Entries()))
}

// Stop cancels any retry in progress and waits for it to return.
func (r *Resumer) Stop() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	<-r.cron.Stop().Done()
}

func (r *Resumer) tick() {
	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	r.RunOnce(ctx)
}

// RunOnce retries every failed playlist sequentially and returns the number that completed.
// A quota rejection ends the pass early since every later playlist would hit it too.
func (r *Resumer) RunOnce(ctx context.Context) int {
	ids, err := r.controller.FailedPlaylists()
	if err != nil {
		r.logger.Error("failed to list failed migrations", "err", err)
		return 0
	}

	completed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}

		logger := shared.WithLogger(r.logger, "playlist", id)
		summary, err := r.controller.migrator.Migrate(ctx, id, LogSink(logger))
		switch {
		case errors.Is(err, shared.ErrMigrationInProgress):
			logger.Debug("skipping playlist with a run in progress")
		case errors.Is(err, shared.ErrQuotaExceeded):
			logger.Warn("quota exceeded, ending resume pass")
			return completed
		case err != nil:
			logger.Warn("resume failed", "err", err)
		default:
			completed++
			logger.Info("resumed migration completed", "migrated", summary.Migrated, "failed", summary.Failed)
		}
	}
	return completed
}
