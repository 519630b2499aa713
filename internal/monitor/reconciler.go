package monitor

import (
	"context"
	"log/slog"
	"time"
)

// RosterSource fetches the full list of the current user's jobs.
type RosterSource interface {
	Roster(ctx context.Context) ([]MonitorJob, error)
}

// Observer sees the store snapshot after every successful poll merge.
type Observer interface {
	Observe(snapshot []MonitorJob)
}

// Reconciler periodically merges server truth into the store. Push delivery
// is best effort, so the poll is the only channel trusted to detect job
// completion reliably. One poll is awaited before the next tick fires, so
// merges for the same roster never overlap.
type Reconciler struct {
	store     *Store
	source    RosterSource
	observers []Observer
	interval  time.Duration
	logger    *slog.Logger
	wake      chan struct{}
	synced    bool
}

func NewReconciler(store *Store, source RosterSource, interval time.Duration, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:    store,
		source:   source,
		interval: interval,
		logger:   logger,
		wake:     make(chan struct{}, 1),
	}
}

// AddObserver registers an observer. Must be called before Run.
func (r *Reconciler) AddObserver(o Observer) {
	r.observers = append(r.observers, o)
}

// Nudge schedules an immediate poll, e.g. right after a job is started.
func (r *Reconciler) Nudge() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run polls once immediately, then on the fixed interval while at least one
// job is active. Stopping requires one successful poll first: an empty local
// store means nothing until the roster has been fetched at least once.
func (r *Reconciler) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	r.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if r.synced && !r.store.HasActive() {
				continue
			}
			r.poll(ctx)
		case <-r.wake:
			r.poll(ctx)
		}
	}
}

func (r *Reconciler) poll(ctx context.Context) {
	roster, err := r.source.Roster(ctx)
	if err != nil {
		// Retried on the next tick, no backoff.
		r.logger.Warn("roster poll failed", "error", err)
		return
	}
	r.synced = true
	r.store.ApplyRoster(roster)

	snap := r.store.Snapshot()
	for _, o := range r.observers {
		o.Observe(snap)
	}
}
