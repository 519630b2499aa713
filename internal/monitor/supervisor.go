package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// JobAPI is the external job service consumed by the supervisor.
type JobAPI interface {
	StartJob(ctx context.Context, req StartRequest) (string, error)
	StopJob(ctx context.Context, id string) error
	UpdateJob(ctx context.Context, id string, patch CriteriaPatch) (restarted bool, err error)
}

// Channel is one push connection scoped to a single job id.
type Channel interface {
	Connect(ctx context.Context) error
	SendStop() error
	Disconnect()
	Disconnected() bool
}

// ChannelFactory builds the push channel for a job. Events are delivered to
// the store through the given callback.
type ChannelFactory func(jobID string, deliver func(PushEvent)) Channel

// Supervisor owns the lifecycle around the store: it starts and stops jobs
// against the Job API and keeps exactly one push channel open per active
// job. It also implements Observer so the reconciler can keep the channel
// set in step with the roster.
type Supervisor struct {
	api     JobAPI
	store   *Store
	rec     *Reconciler
	factory ChannelFactory
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	channels map[string]Channel
}

func NewSupervisor(api JobAPI, store *Store, rec *Reconciler, factory ChannelFactory, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		api:      api,
		store:    store,
		rec:      rec,
		factory:  factory,
		logger:   logger,
		now:      time.Now,
		channels: make(map[string]Channel),
	}
}

// StartJob creates a job on the provider, records it pending locally before
// any progress is confirmed, and opens its push channel.
func (s *Supervisor) StartJob(ctx context.Context, req StartRequest) (string, error) {
	if err := req.Criteria.Validate(); err != nil {
		return "", fmt.Errorf("invalid criteria: %w", err)
	}
	id, err := s.api.StartJob(ctx, req)
	if err != nil {
		return "", fmt.Errorf("start job: %w", err)
	}
	s.store.Insert(MonitorJob{
		ID:        id,
		Kind:      req.Kind,
		Status:    StatusPending,
		Subject:   req.Subject,
		Criteria:  req.Criteria,
		StartedAt: s.now(),
	})
	s.openChannel(ctx, id)
	if s.rec != nil {
		s.rec.Nudge()
	}
	return id, nil
}

// StopJob sends the cancellation both ways (push frame and REST) without
// waiting for acknowledgment, then marks the job stopping. The next poll
// settles the real outcome.
func (s *Supervisor) StopJob(ctx context.Context, id string) error {
	j, ok := s.store.Get(id)
	if !ok {
		return ErrUnknownJob
	}
	if j.Status.Terminal() {
		return nil
	}

	s.mu.Lock()
	ch := s.channels[id]
	s.mu.Unlock()
	if ch != nil {
		if err := ch.SendStop(); err != nil {
			s.logger.Debug("stop frame not delivered", "job_id", id, "error", err)
		}
	}
	if err := s.api.StopJob(ctx, id); err != nil {
		s.logger.Warn("stop request failed", "job_id", id, "error", err)
	}

	s.store.MarkStopping(id)
	return nil
}

// UpdateJob pushes a criteria patch to the provider. When the provider
// restarted the job the old push channel is stale, so it is reopened.
func (s *Supervisor) UpdateJob(ctx context.Context, id string, patch CriteriaPatch) (bool, error) {
	restarted, err := s.api.UpdateJob(ctx, id, patch)
	if err != nil {
		return false, fmt.Errorf("update job: %w", err)
	}
	if restarted {
		s.openChannel(ctx, id)
		if s.rec != nil {
			s.rec.Nudge()
		}
	}
	return restarted, nil
}

// Observe keeps channels in step with the roster: active jobs discovered by
// a poll get a channel, terminal jobs get theirs torn down.
func (s *Supervisor) Observe(snapshot []MonitorJob) {
	for _, j := range snapshot {
		if j.Status.Terminal() {
			s.closeChannel(j.ID)
			continue
		}
		s.mu.Lock()
		_, ok := s.channels[j.ID]
		s.mu.Unlock()
		if !ok {
			s.openChannel(context.Background(), j.ID)
		}
	}
}

// Close tears down every push channel. Timers are owned by the reconciler's
// context and stop with it.
func (s *Supervisor) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.channels {
		ch.Disconnect()
		delete(s.channels, id)
	}
}

// openChannel guarantees at most one open channel per job id: an existing
// channel is torn down before the replacement connects. A failed connect is
// tolerated; the poll remains the safety net.
func (s *Supervisor) openChannel(ctx context.Context, id string) {
	s.mu.Lock()
	if old, ok := s.channels[id]; ok {
		old.Disconnect()
		delete(s.channels, id)
	}
	ch := s.factory(id, s.store.ApplyPush)
	s.channels[id] = ch
	s.mu.Unlock()

	if err := ch.Connect(ctx); err != nil {
		s.logger.Warn("push channel connect failed", "job_id", id, "error", err)
	}
}

func (s *Supervisor) closeChannel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.channels[id]; ok {
		ch.Disconnect()
		delete(s.channels, id)
	}
}
