package tasks

import (
	"fmt"
	"sync"

	"github.com/desertthunder/plmigrate/internal/shared"
	"golang.org/x/sync/semaphore"
)

// Locks is a set of per-playlist advisory locks. Different ids never contend.
type Locks struct {
	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

// NewLocks creates an empty lock set.
func NewLocks() *Locks {
	return &Locks{sems: make(map[string]*semaphore.Weighted)}
}

// TryAcquire takes the lock for id without waiting. The returned release func must be called exactly once.
func (l *Locks) TryAcquire(id string) (release func(), err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sem, ok := l.sems[id]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.sems[id] = sem
	}
	if !sem.TryAcquire(1) {
		return nil, fmt.Errorf("%w: %s", shared.ErrMigrationInProgress, id)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			sem.Release(1)
			delete(l.sems, id)
		})
	}, nil
}

// Held reports whether a run currently holds the lock for id.
func (l *Locks) Held(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.sems[id]
	return ok
}

// Running returns the ids currently locked.
func (l *Locks) Running() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := make([]string, 0, len(l.sems))
	for id := range l.sems {
		ids = append(ids, id)
	}
	return ids
}
