package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/zwy923/easyEmail/internal/jobs"
)

// SubmitFetch enqueues a mail fetch for the given account and returns the
// job id.
func (c *Client) SubmitFetch(ctx context.Context, accountID int) (string, error) {
	return c.submit(ctx, "/email/fetch", map[string]any{"account_id": accountID})
}

// SubmitSyncStatus enqueues a read/unread state sync for the given account
// and returns the job id.
func (c *Client) SubmitSyncStatus(ctx context.Context, accountID int) (string, error) {
	return c.submit(ctx, "/email/sync-status", map[string]any{"account_id": accountID})
}

// SubmitClassify enqueues classification. With emailID > 0 a single mail is
// classified (force re-classifies an already categorized one); with
// emailID == 0 the backend picks a recent batch of unclassified mail.
// Returns the job id of the (first) classification task.
func (c *Client) SubmitClassify(ctx context.Context, emailID int, force bool) (string, error) {
	body := map[string]any{}
	if emailID > 0 {
		body["email_id"] = emailID
		body["force"] = force
	}

	return c.submit(ctx, "/email/classify", body)
}

// submit posts an enqueue request and unwraps the job id envelope.
// Submits are retried on transport errors: re-enqueueing is safe because
// the backend routes are idempotent per account.
func (c *Client) submit(ctx context.Context, path string, body map[string]any) (string, error) {
	var resp submitResponse
	if err := c.do(ctx, http.MethodPost, path, body, &resp, true); err != nil {
		return "", err
	}

	if !resp.Success || resp.TaskID == "" {
		return "", fmt.Errorf("api: submit %s rejected: %s", path, resp.Message)
	}

	c.logger.Info("job submitted",
		slog.String("path", path),
		slog.String("job_id", resp.TaskID),
	)

	return resp.TaskID, nil
}

// JobStatus reads the current state of a job. Single-shot: transient
// failures surface to the caller, which retries on its own poll cadence.
func (c *Client) JobStatus(ctx context.Context, jobID string) (jobs.Status, error) {
	var resp taskStatusResponse

	path := "/email/task/" + url.PathEscape(jobID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp, false); err != nil {
		return jobs.Status{}, err
	}

	return jobs.Status{
		State:    mapState(resp.State),
		Current:  resp.Current,
		Total:    resp.Total,
		Percent:  resp.Percent,
		Message:  resp.Status,
		Counters: resp.Counters,
		Err:      resp.Error,
	}, nil
}

// CancelJob revokes a job. Only PENDING jobs are reliably cancelable; for
// running jobs the backend attempts termination.
func (c *Client) CancelJob(ctx context.Context, jobID string) error {
	path := "/email/task/" + url.PathEscape(jobID)

	return c.do(ctx, http.MethodDelete, path, nil, nil, false)
}

// PurgeJobs clears pending jobs from the backend queue. taskName narrows
// the purge when non-empty.
func (c *Client) PurgeJobs(ctx context.Context, taskName string) error {
	body := map[string]any{}
	if taskName != "" {
		body["task_name"] = taskName
	}

	return c.do(ctx, http.MethodPost, "/email/tasks/purge", body, nil, false)
}

// mapState normalizes backend queue states to the jobs state set.
// The queue reports PROGRESS for a started job with progress meta.
func mapState(s string) jobs.State {
	switch s {
	case "PROGRESS", "STARTED":
		return jobs.StateStarted
	case "", "PENDING":
		return jobs.StatePending
	default:
		return jobs.State(s)
	}
}

// Submit implements jobs.Queue by dispatching on the job kind.
func (c *Client) Submit(ctx context.Context, kind string, params map[string]any) (string, error) {
	switch kind {
	case jobs.KindFetch:
		return c.SubmitFetch(ctx, intParam(params, "account_id"))
	case jobs.KindSyncStatus:
		return c.SubmitSyncStatus(ctx, intParam(params, "account_id"))
	case jobs.KindClassify:
		force, _ := params["force"].(bool)
		return c.SubmitClassify(ctx, intParam(params, "email_id"), force)
	default:
		return "", fmt.Errorf("api: unknown job kind %q", kind)
	}
}

// Status implements jobs.Queue.
func (c *Client) Status(ctx context.Context, jobID string) (jobs.Status, error) {
	return c.JobStatus(ctx, jobID)
}

// intParam reads an int-ish param regardless of how the literal was typed.
func intParam(params map[string]any, key string) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
