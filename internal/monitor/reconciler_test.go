package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	mu     sync.Mutex
	calls  int
	roster []MonitorJob
	errs   int // fail this many leading calls
}

func (s *stubSource) Roster(ctx context.Context) ([]MonitorJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.errs > 0 {
		s.errs--
		return nil, errors.New("roster unavailable")
	}
	return append([]MonitorJob(nil), s.roster...), nil
}

func (s *stubSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func runReconciler(t *testing.T, r *Reconciler) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestReconcilerStartupPollThenIdle(t *testing.T) {
	src := &stubSource{}
	store := NewStore(testLogger())
	r := NewReconciler(store, src, 10*time.Millisecond, testLogger())
	runReconciler(t, r)

	// The unconditional startup poll runs even with nothing local...
	require.Eventually(t, func() bool { return src.count() == 1 }, time.Second, time.Millisecond)

	// ...and with an all-empty roster, ticks stop polling.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, src.count())
}

func TestReconcilerPollsWhileActive(t *testing.T) {
	running := pendingJob("j1")
	running.Status = StatusRunning
	src := &stubSource{roster: []MonitorJob{running}}
	store := NewStore(testLogger())
	r := NewReconciler(store, src, 10*time.Millisecond, testLogger())
	runReconciler(t, r)

	require.Eventually(t, func() bool { return src.count() >= 4 }, time.Second, time.Millisecond)
}

func TestReconcilerStopsOnceAllTerminal(t *testing.T) {
	done := pendingJob("j1")
	done.Status = StatusCompleted
	done.Result = &Result{Success: true}
	src := &stubSource{roster: []MonitorJob{done}}
	store := NewStore(testLogger())
	r := NewReconciler(store, src, 10*time.Millisecond, testLogger())
	runReconciler(t, r)

	require.Eventually(t, func() bool { return src.count() == 1 }, time.Second, time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, src.count(), "all-terminal roster stops the polling")

	// A nudge forces one more poll, e.g. after starting a new job.
	r.Nudge()
	require.Eventually(t, func() bool { return src.count() == 2 }, time.Second, time.Millisecond)
}

func TestReconcilerRetriesUntilFirstSuccess(t *testing.T) {
	src := &stubSource{errs: 3}
	store := NewStore(testLogger())
	r := NewReconciler(store, src, 10*time.Millisecond, testLogger())
	runReconciler(t, r)

	// A failed startup poll must not count as the forced session poll:
	// the reconciler keeps trying even though nothing is active locally.
	require.Eventually(t, func() bool { return src.count() >= 4 }, time.Second, time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	final := src.count()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, final, src.count(), "polling settles after the first successful empty fetch")
}

func TestReconcilerNotifiesObserversAfterMerge(t *testing.T) {
	running := pendingJob("j1")
	running.Status = StatusRunning
	src := &stubSource{roster: []MonitorJob{running}}
	store := NewStore(testLogger())

	sink := &recordingSink{}
	notifier := NewNotifier(sink, testLogger())

	r := NewReconciler(store, src, 10*time.Millisecond, testLogger())
	r.AddObserver(notifier)
	runReconciler(t, r)

	require.Eventually(t, func() bool { return src.count() >= 2 }, time.Second, time.Millisecond)

	// Flip the roster to completed; exactly one notification follows.
	done := running
	done.Status = StatusCompleted
	done.Result = &Result{Success: true}
	src.mu.Lock()
	src.roster = []MonitorJob{done}
	src.mu.Unlock()

	require.Eventually(t, func() bool { return len(sink.all()) == 1 }, time.Second, time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Len(t, sink.all(), 1)
}
