package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedQueue returns a canned sequence of status results, one per call.
// After the script is exhausted it keeps returning the last entry.
type scriptedQueue struct {
	mu     sync.Mutex
	script []scriptStep
	calls  int
}

type scriptStep struct {
	status Status
	err    error
}

func (q *scriptedQueue) Submit(_ context.Context, _ string, _ map[string]any) (string, error) {
	return "", errors.New("not used")
}

func (q *scriptedQueue) Status(_ context.Context, _ string) (Status, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.calls
	if idx >= len(q.script) {
		idx = len(q.script) - 1
	}

	q.calls++

	return q.script[idx].status, q.script[idx].err
}

func (q *scriptedQueue) callCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.calls
}

// recorder collects callback invocations for assertions.
type recorder struct {
	mu       sync.Mutex
	updates  []Status
	outcomes []Outcome
	clears   int
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		Update: func(st Status) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.updates = append(r.updates, st)
		},
		Done: func(o Outcome) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.outcomes = append(r.outcomes, o)
		},
		Clear: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.clears++
		},
	}
}

func (r *recorder) snapshot() (updates []Status, outcomes []Outcome, clears int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Status(nil), r.updates...), append([]Outcome(nil), r.outcomes...), r.clears
}

// newTestTracker builds a tracker with instant sleeps so poll ticks run
// back to back.
func newTestTracker(t *testing.T, queue Queue) *Tracker {
	t.Helper()

	tracker := NewTracker(queue, Options{}, slog.Default())
	tracker.sleepFunc = func(ctx context.Context, _ time.Duration) error {
		return ctx.Err()
	}

	return tracker
}

func waitDone(t *testing.T, h *Handle) {
	t.Helper()

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("tracker did not finish")
	}
}

func TestTrack_StartedThenSuccess(t *testing.T) {
	queue := &scriptedQueue{script: []scriptStep{
		{status: Status{State: StateStarted, Current: 4, Total: 10, Percent: 40}},
		{status: Status{State: StateSuccess, Current: 10, Total: 10, Percent: 100}},
	}}

	rec := &recorder{}
	h := newTestTracker(t, queue).Track("42", rec.callbacks())
	waitDone(t, h)

	updates, outcomes, _ := rec.snapshot()

	require.Len(t, updates, 2)
	assert.Equal(t, StateStarted, updates[0].State)
	assert.Equal(t, StateSuccess, updates[1].State)

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Success)
	assert.Equal(t, StateSuccess, outcomes[0].Final.State)

	assert.Equal(t, 2, queue.callCount(), "polling must stop at the terminal state")
}

func TestTrack_TransientErrorsKeepPolling(t *testing.T) {
	queue := &scriptedQueue{script: []scriptStep{
		{err: errors.New("connection refused")},
		{err: errors.New("bad gateway")},
		{status: Status{State: StateSuccess}},
	}}

	rec := &recorder{}
	h := newTestTracker(t, queue).Track("j1", rec.callbacks())
	waitDone(t, h)

	updates, outcomes, _ := rec.snapshot()

	// Failed queries produce no updates; polling continues through them.
	require.Len(t, updates, 1)
	assert.Equal(t, StateSuccess, updates[0].State)

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Success)
	assert.Equal(t, 3, queue.callCount())
}

func TestTrack_FailureOutcome(t *testing.T) {
	queue := &scriptedQueue{script: []scriptStep{
		{status: Status{State: StatePending}},
		{status: Status{State: StateFailure, Err: "boom"}},
	}}

	rec := &recorder{}
	h := newTestTracker(t, queue).Track("j2", rec.callbacks())
	waitDone(t, h)

	_, outcomes, _ := rec.snapshot()

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Success)
	assert.Equal(t, "boom", outcomes[0].Final.Err)
}

func TestTrack_RevokedIsTerminal(t *testing.T) {
	queue := &scriptedQueue{script: []scriptStep{
		{status: Status{State: StateRevoked}},
	}}

	rec := &recorder{}
	h := newTestTracker(t, queue).Track("j3", rec.callbacks())
	waitDone(t, h)

	_, outcomes, _ := rec.snapshot()

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Success)
	assert.Equal(t, 1, queue.callCount())
}

func TestTrack_NoUpdateAfterDone(t *testing.T) {
	queue := &scriptedQueue{script: []scriptStep{
		{status: Status{State: StateStarted}},
		{status: Status{State: StateSuccess}},
		// Anything past this point must never be read.
		{status: Status{State: StateStarted}},
	}}

	rec := &recorder{}
	h := newTestTracker(t, queue).Track("j4", rec.callbacks())
	waitDone(t, h)

	updates, outcomes, _ := rec.snapshot()

	require.Len(t, outcomes, 1)

	for i, st := range updates {
		if st.State.Terminal() {
			assert.Equal(t, len(updates)-1, i, "terminal update must be the last one")
		}
	}
}

func TestTrack_ClearFiresAfterLinger(t *testing.T) {
	queue := &scriptedQueue{script: []scriptStep{
		{status: Status{State: StateSuccess}},
	}}

	rec := &recorder{}
	h := newTestTracker(t, queue).Track("j5", rec.callbacks())
	waitDone(t, h)

	_, outcomes, clears := rec.snapshot()

	require.Len(t, outcomes, 1)
	assert.Equal(t, 1, clears)
}

func TestTrack_CancelDuringLingerSuppressesClear(t *testing.T) {
	queue := &scriptedQueue{script: []scriptStep{
		{status: Status{State: StateFailure}},
	}}

	rec := &recorder{}
	tracker := newTestTracker(t, queue)

	handleCh := make(chan *Handle, 1)
	done := make(chan struct{})

	h := tracker.Track("j6", Callbacks{
		Done: func(Outcome) {
			// Simulate the UI being torn down right after the result lands.
			(<-handleCh).Cancel()
			close(done)
		},
		Clear: rec.callbacks().Clear,
	})
	handleCh <- h

	<-done
	waitDone(t, h)

	_, _, clears := rec.snapshot()
	assert.Zero(t, clears, "clear must not fire after cancellation")
}

func TestHandle_CancelStopsPolling(t *testing.T) {
	queue := &scriptedQueue{script: []scriptStep{
		{status: Status{State: StateStarted}},
	}}

	tracker := NewTracker(queue, Options{PollInterval: time.Hour}, slog.Default())

	rec := &recorder{}
	h := tracker.Track("j7", rec.callbacks())

	// First query is immediate; the hour-long sleep parks the loop.
	require.Eventually(t, func() bool {
		return queue.callCount() >= 1
	}, 5*time.Second, time.Millisecond)

	h.Cancel()
	waitDone(t, h)

	_, outcomes, _ := rec.snapshot()
	assert.Empty(t, outcomes, "canceled tracking never reports done")
	assert.Equal(t, 1, queue.callCount())
}

func TestHandle_CancelIsIdempotent(t *testing.T) {
	queue := &scriptedQueue{script: []scriptStep{
		{status: Status{State: StateSuccess}},
	}}

	rec := &recorder{}
	h := newTestTracker(t, queue).Track("j8", rec.callbacks())
	waitDone(t, h)

	// Cancel after natural completion, repeatedly.
	for range 3 {
		assert.NotPanics(t, h.Cancel)
	}

	_, outcomes, _ := rec.snapshot()
	require.Len(t, outcomes, 1)
}

func TestTrack_IndependentJobsIndependentTimers(t *testing.T) {
	slow := &scriptedQueue{script: []scriptStep{
		{status: Status{State: StateStarted}},
	}}
	fast := &scriptedQueue{script: []scriptStep{
		{status: Status{State: StateSuccess}},
	}}

	slowTracker := NewTracker(slow, Options{PollInterval: time.Hour}, slog.Default())
	fastTracker := newTestTracker(t, fast)

	slowRec, fastRec := &recorder{}, &recorder{}

	slowHandle := slowTracker.Track("slow", slowRec.callbacks())
	fastHandle := fastTracker.Track("fast", fastRec.callbacks())

	waitDone(t, fastHandle)

	// Canceling the fast job (already complete) must not disturb the slow one.
	fastHandle.Cancel()

	select {
	case <-slowHandle.Done():
		t.Fatal("slow tracker stopped unexpectedly")
	case <-time.After(50 * time.Millisecond):
	}

	slowHandle.Cancel()
	waitDone(t, slowHandle)

	_, fastOutcomes, _ := fastRec.snapshot()
	require.Len(t, fastOutcomes, 1)

	_, slowOutcomes, _ := slowRec.snapshot()
	assert.Empty(t, slowOutcomes)
}

func TestTrack_DoneExactlyOncePerTrack(t *testing.T) {
	for i := range 5 {
		queue := &scriptedQueue{script: []scriptStep{
			{status: Status{State: StateStarted}},
			{status: Status{State: StateSuccess}},
		}}

		rec := &recorder{}
		h := newTestTracker(t, queue).Track(fmt.Sprintf("job-%d", i), rec.callbacks())
		waitDone(t, h)

		_, outcomes, _ := rec.snapshot()
		require.Len(t, outcomes, 1)
	}
}
