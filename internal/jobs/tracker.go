package jobs

import (
	"context"
	"log/slog"
	"time"
)

// Default poll cadence and display linger periods. A failed job lingers
// longer than a successful one so the user has time to read the error.
const (
	defaultPollInterval  = 2 * time.Second
	defaultSuccessLinger = 2 * time.Second
	defaultFailureLinger = 6 * time.Second
)

// Options tunes tracker timing. Zero values select the defaults.
type Options struct {
	PollInterval  time.Duration
	SuccessLinger time.Duration
	FailureLinger time.Duration
}

// Callbacks receive tracking events. All callbacks are optional and are
// invoked from the tracking goroutine, one at a time, never concurrently.
type Callbacks struct {
	// Update is invoked with every successful status read, including the
	// terminal one.
	Update func(Status)
	// Done is invoked exactly once when the job reaches a terminal state.
	// No Update follows a Done.
	Done func(Outcome)
	// Clear signals that the progress display should be dropped. It fires
	// after the linger period following Done, and never fires if the
	// handle is canceled first.
	Clear func()
}

// Tracker polls the job queue and drives callbacks for each tracked job.
// One Tracker may track any number of jobs; every Track call owns its own
// timer and goroutine, so independent jobs never share or reuse timers.
type Tracker struct {
	queue  Queue
	opts   Options
	logger *slog.Logger

	// sleepFunc waits between polls. Tests override this to avoid real
	// delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewTracker creates a Tracker polling the given queue.
func NewTracker(queue Queue, opts Options, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}

	if opts.SuccessLinger <= 0 {
		opts.SuccessLinger = defaultSuccessLinger
	}

	if opts.FailureLinger <= 0 {
		opts.FailureLinger = defaultFailureLinger
	}

	return &Tracker{
		queue:     queue,
		opts:      opts,
		logger:    logger,
		sleepFunc: sleepContext,
	}
}

// Handle controls one tracked job. Cancel stops polling; it is safe to call
// zero, one, or many times, including after the job completed naturally,
// and never affects other jobs' timers.
type Handle struct {
	jobID  string
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops polling and releases the poll timer. Idempotent.
func (h *Handle) Cancel() {
	h.cancel()
}

// Done is closed when the tracking goroutine has exited and no further
// callback will fire.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// JobID returns the id of the tracked job.
func (h *Handle) JobID() string {
	return h.jobID
}

// Track starts polling jobID and returns immediately. The first status
// query is issued without delay; subsequent queries run on the configured
// cadence until a terminal state or cancellation. Transient query errors
// are logged and polling continues on the existing cadence.
func (t *Tracker) Track(jobID string, cb Callbacks) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		jobID:  jobID,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go t.run(ctx, jobID, cb, h)

	return h
}

// run is the per-job poll loop. It owns the poll timer exclusively; exiting
// the loop (terminal state or cancellation) is the only way the timer is
// released, so release happens exactly once.
func (t *Tracker) run(ctx context.Context, jobID string, cb Callbacks, h *Handle) {
	defer close(h.done)

	for {
		st, err := t.queue.Status(ctx, jobID)

		switch {
		case err != nil && ctx.Err() != nil:
			// Canceled mid-query. No further callbacks.
			return
		case err != nil:
			// Transient transport or backend error: never terminal on its
			// own. Keep polling on the existing cadence.
			t.logger.Warn("job status query failed, retrying on next tick",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		default:
			if ctx.Err() != nil {
				// Canceled while the query was in flight. The consuming UI
				// may already be torn down — deliver nothing.
				return
			}

			if cb.Update != nil {
				cb.Update(st)
			}

			if st.State.Terminal() {
				t.finish(ctx, jobID, st, cb)
				return
			}
		}

		if sleepErr := t.sleepFunc(ctx, t.opts.PollInterval); sleepErr != nil {
			return
		}
	}
}

// finish fires Done, waits out the linger period, and fires Clear.
// Cancellation during the linger suppresses Clear — the consuming UI is
// already gone.
func (t *Tracker) finish(ctx context.Context, jobID string, st Status, cb Callbacks) {
	outcome := Outcome{
		Success: st.State == StateSuccess,
		Final:   st,
	}

	t.logger.Info("job reached terminal state",
		slog.String("job_id", jobID),
		slog.String("state", string(st.State)),
		slog.Bool("success", outcome.Success),
	)

	if cb.Done != nil {
		cb.Done(outcome)
	}

	if cb.Clear == nil {
		return
	}

	linger := t.opts.FailureLinger
	if outcome.Success {
		linger = t.opts.SuccessLinger
	}

	if err := t.sleepFunc(ctx, linger); err != nil {
		return
	}

	cb.Clear()
}

// sleepContext waits for d or until ctx is canceled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
