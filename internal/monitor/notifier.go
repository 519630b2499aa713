package monitor

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Notification is the one user-visible signal for a job that finished.
type Notification struct {
	ID      string
	JobID   string
	Success bool
	Title   string
	Message string
	// Action is a navigation hint for the surrounding UI.
	Action string
	At     time.Time
}

// ActionBookings points the user at the bookings view after a success.
const ActionBookings = "bookings"

type Sink interface {
	Notify(n Notification)
}

type SinkFunc func(Notification)

func (f SinkFunc) Notify(n Notification) { f(n) }

// Notifier emits exactly one notification per job per running->terminal
// transition. It compares each poll-driven snapshot against a shadow copy of
// the previous one; push terminal events update the store for immediate
// feedback but never fire a notification, which is what keeps duplicate
// toasts out when both channels report the same transition.
type Notifier struct {
	mu     sync.Mutex
	sink   Sink
	logger *slog.Logger
	prev   map[string]Status
	fired  map[string]bool
	now    func() time.Time
}

func NewNotifier(sink Sink, logger *slog.Logger) *Notifier {
	return &Notifier{
		sink:   sink,
		logger: logger,
		prev:   make(map[string]Status),
		fired:  make(map[string]bool),
		now:    time.Now,
	}
}

// Observe evaluates one post-merge snapshot. Only jobs present in both the
// previous and current snapshot can fire, so a roster recovered after a
// restart never replays old toasts.
func (n *Notifier) Observe(snapshot []MonitorJob) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, j := range snapshot {
		old, seen := n.prev[j.ID]
		if seen && old == StatusRunning && j.Status.Terminal() && !n.fired[j.ID] {
			n.fired[j.ID] = true
			note := n.build(j)
			n.logger.Info("job finished",
				"job_id", j.ID,
				"member", j.Subject.DisplayName,
				"status", string(j.Status),
				"notification_id", note.ID,
			)
			n.sink.Notify(note)
		}
	}

	next := make(map[string]Status, len(snapshot))
	for _, j := range snapshot {
		next[j.ID] = j.Status
	}
	n.prev = next
}

func (n *Notifier) build(j MonitorJob) Notification {
	note := Notification{
		ID:     uuid.New().String(),
		JobID:  j.ID,
		At:     n.now(),
		Action: ActionBookings,
	}
	if j.Status == StatusCompleted && j.Result != nil && j.Result.Success {
		note.Success = true
		note.Title = fmt.Sprintf("Session booked for %s", j.Subject.DisplayName)
		note.Message = j.Criteria.Summary()
		return note
	}
	note.Title = fmt.Sprintf("Monitor for %s failed", j.Subject.DisplayName)
	if j.Result != nil && j.Result.Error != "" {
		note.Message = j.Result.Error
	} else {
		note.Message = "the search ended without a booking"
	}
	return note
}
