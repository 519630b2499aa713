package monitor

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"
)

var ErrUnknownJob = errors.New("unknown job")

// logCap bounds the per-job log; oldest entries are dropped past this.
const logCap = 200

// PushEventType tags an event received over a job's push channel.
type PushEventType string

const (
	PushStarted   PushEventType = "started"
	PushStatus    PushEventType = "status"
	PushCompleted PushEventType = "completed"
	PushError     PushEventType = "error"
)

// PushEvent is one decoded push-channel message for a single job.
type PushEvent struct {
	JobID          string
	Type           PushEventType
	Message        string
	ElapsedSeconds int
	Result         *Result
	At             time.Time
}

// Store is the authoritative local table of monitor jobs. It is a reducer
// over a closed set of events (push messages, roster snapshots, user stop,
// local insert); each event has one deterministic merge below. Every
// mutation builds a fresh job value and swaps it in whole, so readers never
// see a partial merge.
type Store struct {
	mu     sync.RWMutex
	jobs   map[string]*MonitorJob
	logger *slog.Logger
}

func NewStore(logger *slog.Logger) *Store {
	return &Store{
		jobs:   make(map[string]*MonitorJob),
		logger: logger,
	}
}

// Insert records a freshly started job as pending, before any network
// confirmation of progress. Existing ids are left untouched.
func (s *Store) Insert(j MonitorJob) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; ok {
		s.logger.Warn("insert ignored for existing job", "job_id", j.ID)
		return false
	}
	c := j.copy()
	normalize(&c)
	s.jobs[j.ID] = &c
	return true
}

func (s *Store) Get(id string) (MonitorJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return MonitorJob{}, false
	}
	return j.copy(), true
}

// HasActive reports whether any job still needs polling.
func (s *Store) HasActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, j := range s.jobs {
		if j.Active() {
			return true
		}
	}
	return false
}

// Snapshot returns a deep copy of every job, active jobs first, then most
// recently started.
func (s *Store) Snapshot() []MonitorJob {
	s.mu.RLock()
	out := make([]MonitorJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.copy())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool {
		ja, jb := out[a], out[b]
		if ja.Active() != jb.Active() {
			return ja.Active()
		}
		if !ja.StartedAt.Equal(jb.StartedAt) {
			return ja.StartedAt.After(jb.StartedAt)
		}
		return ja.ID < jb.ID
	})
	return out
}

// MarkStopping optimistically records a user cancellation. Only a running
// job can enter stopping; the server never confirms this state directly.
func (s *Store) MarkStopping(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != StatusRunning {
		return false
	}
	next := j.copy()
	next.Status = StatusStopping
	s.jobs[id] = &next
	return true
}

// ApplyPush merges one push-channel event. Push keeps the local state fresh
// between polls but is never the trigger for notifications.
func (s *Store) ApplyPush(ev PushEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[ev.JobID]
	if !ok {
		s.logger.Warn("push event for unknown job", "job_id", ev.JobID, "type", string(ev.Type))
		return
	}
	next := j.copy()

	switch ev.Type {
	case PushStarted:
		if next.Status == StatusPending {
			next.Status = StatusRunning
		}
		appendLog(&next, ev.At, ev.Message)
	case PushStatus:
		if next.Status == StatusPending {
			next.Status = StatusRunning
		}
		if !next.Status.Terminal() && ev.ElapsedSeconds > next.ElapsedSeconds {
			next.ElapsedSeconds = ev.ElapsedSeconds
		}
		appendLog(&next, ev.At, ev.Message)
	case PushCompleted, PushError:
		target := StatusCompleted
		if ev.Type == PushError {
			target = StatusError
		}
		if next.Status.Terminal() {
			// Terminal status is frozen; a matching terminal report may
			// still refine result details (last observation wins).
			if ev.Result != nil && next.Status == target {
				next.Result = copyResult(ev.Result)
			}
		} else {
			next.Status = target
			if ev.Result != nil {
				next.Result = copyResult(ev.Result)
			} else {
				next.Result = &Result{Success: target == StatusCompleted, Error: ev.Message}
			}
		}
		appendLog(&next, ev.At, ev.Message)
	default:
		s.logger.Warn("unhandled push event type", "job_id", ev.JobID, "type", string(ev.Type))
		return
	}

	normalize(&next)
	s.jobs[ev.JobID] = &next
}

// ApplyRoster merges a full server roster. The server is authoritative for
// status, elapsed time and result; logs are merged, never replaced. Jobs
// absent from the roster are left untouched. Re-applying the same roster is
// a no-op.
func (s *Store) ApplyRoster(roster []MonitorJob) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, in := range roster {
		cur, ok := s.jobs[in.ID]
		if !ok {
			c := in.copy()
			normalize(&c)
			s.jobs[in.ID] = &c
			continue
		}

		next := cur.copy()
		next.Status = mergeStatus(cur.Status, in.Status)

		if cur.Status.Terminal() {
			// Already terminal locally: accept result detail refinement
			// only when the server reports the same terminal outcome.
			if in.Status == cur.Status && in.Result != nil {
				next.Result = copyResult(in.Result)
			}
		} else {
			if in.ElapsedSeconds > next.ElapsedSeconds {
				next.ElapsedSeconds = in.ElapsedSeconds
			}
			if next.Status.Terminal() && in.Result != nil {
				next.Result = copyResult(in.Result)
			}
		}

		next.Log = mergeLogs(next.Log, in.Log)
		normalize(&next)
		s.jobs[in.ID] = &next
	}
}

// mergeStatus applies the transition rules: first observation wins for
// pending->running, terminal states never regress, stale roster statuses
// never move a job backwards, and a poll reporting running supersedes an
// unconfirmed local stopping (the stop request was lost).
func mergeStatus(local, server Status) Status {
	if local == server {
		return local
	}
	if local.Terminal() {
		return local
	}
	if server.Terminal() {
		return server
	}
	switch {
	case local == StatusPending:
		return server
	case server == StatusPending:
		return local
	case local == StatusStopping && server == StatusRunning:
		return server
	}
	return server
}

// normalize enforces the invariant that a result is present iff the job is
// terminal.
func normalize(j *MonitorJob) {
	if j.Status.Terminal() {
		if j.Result == nil {
			j.Result = &Result{Success: j.Status == StatusCompleted}
		}
		return
	}
	j.Result = nil
}

func copyResult(r *Result) *Result {
	out := *r
	if r.Slot != nil {
		s := *r.Slot
		out.Slot = &s
	}
	return &out
}

func appendLog(j *MonitorJob, at time.Time, message string) {
	if message == "" {
		return
	}
	j.Log = append(j.Log, LogEntry{At: at, Message: message})
	trimLog(j)
}

func trimLog(j *MonitorJob) {
	if len(j.Log) > logCap {
		j.Log = append([]LogEntry(nil), j.Log[len(j.Log)-logCap:]...)
	}
}

// mergeLogs appends server entries not already known locally. Local entries
// are never dropped by a merge, only by the cap.
func mergeLogs(local, server []LogEntry) []LogEntry {
	if len(server) == 0 {
		return local
	}
	known := make(map[string]bool, len(local))
	for _, e := range local {
		known[logKey(e)] = true
	}
	out := local
	for _, e := range server {
		if known[logKey(e)] {
			continue
		}
		known[logKey(e)] = true
		out = append(out, e)
	}
	if len(out) > logCap {
		out = append([]LogEntry(nil), out[len(out)-logCap:]...)
	}
	return out
}

func logKey(e LogEntry) string {
	return e.At.UTC().Format(time.RFC3339Nano) + "|" + e.Message
}
