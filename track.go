package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/zwy923/easyEmail/internal/jobs"
)

// errJobFailed signals a terminal FAILURE/REVOKED outcome. main() maps it
// to exit code 1 without the generic error banner — the progress printer
// already showed the diagnostic.
var errJobFailed = errors.New("job failed")

// newTracker builds a job tracker from the resolved configuration.
func (cc *CLIContext) newTracker() *jobs.Tracker {
	return jobs.NewTracker(cc.Client, jobs.Options{
		PollInterval:  cc.Cfg.PollInterval,
		SuccessLinger: cc.Cfg.SuccessLinger,
		FailureLinger: cc.Cfg.FailureLinger,
	}, cc.Logger)
}

// trackJob follows jobID to completion, rendering progress as it goes.
// Returns errJobFailed for FAILURE/REVOKED outcomes and the context error
// when interrupted. The CLI's display policy is zero linger: output lives
// in scrollback, so the final line stays visible without holding the
// process open.
func trackJob(ctx context.Context, cc *CLIContext, label, jobID string) error {
	return trackJobWith(ctx, cc, newProgressPrinter(label, cc.Flags.Quiet), jobID)
}

// trackJobWith is trackJob with a caller-supplied printer, for callers that
// run several trackers at once and need plain-line rendering.
func trackJobWith(ctx context.Context, cc *CLIContext, printer *progressPrinter, jobID string) error {
	outcomeCh := make(chan jobs.Outcome, 1)

	handle := cc.newTracker().Track(jobID, jobs.Callbacks{
		Update: printer.Update,
		Done: func(o jobs.Outcome) {
			outcomeCh <- o
		},
	})
	defer handle.Cancel()

	select {
	case <-ctx.Done():
		handle.Cancel()
		// Wait for the poll goroutine so no callback races our teardown.
		<-handle.Done()

		return fmt.Errorf("tracking %s: %w", handle.JobID(), ctx.Err())

	case outcome := <-outcomeCh:
		printer.Finish(outcome)

		if !outcome.Success {
			return fmt.Errorf("%s (job %s, state %s): %w",
				printer.label, handle.JobID(), outcome.Final.State, errJobFailed)
		}

		return nil
	}
}
