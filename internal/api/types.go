package api

import (
	"encoding/json"
	"time"
)

// authURLResponse is GET /email/auth-url/{provider}.
type authURLResponse struct {
	AuthURL string `json:"auth_url"`
	State   string `json:"state"`
}

// submitResponse is the enqueue envelope shared by the fetch, sync-status,
// and classify routes.
type submitResponse struct {
	Success bool   `json:"success"`
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

// Account is one connected mail account.
type Account struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Provider  string    `json:"provider"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// taskStatusResponse is GET /email/task/{id}. The backend flattens
// task-specific progress counters (new_count, skipped_count, synced_count,
// deleted_count, ...) into the top level next to the fixed fields, so
// decoding collects every unrecognized integer field into Counters.
type taskStatusResponse struct {
	State    string
	Current  int
	Total    int
	Percent  int
	Status   string
	Error    string
	Counters map[string]int
}

// fixedStatusKeys are the non-counter fields of a task status body.
var fixedStatusKeys = map[string]bool{
	"state": true, "current": true, "total": true,
	"percent": true, "status": true, "error": true,
}

func (t *taskStatusResponse) UnmarshalJSON(data []byte) error {
	var fixed struct {
		State   string  `json:"state"`
		Current int     `json:"current"`
		Total   int     `json:"total"`
		Percent float64 `json:"percent"`
		Status  string  `json:"status"`
		Error   string  `json:"error"`
	}

	if err := json.Unmarshal(data, &fixed); err != nil {
		return err
	}

	t.State = fixed.State
	t.Current = fixed.Current
	t.Total = fixed.Total
	t.Percent = int(fixed.Percent)
	t.Status = fixed.Status
	t.Error = fixed.Error

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	for key, val := range raw {
		if fixedStatusKeys[key] {
			continue
		}

		var n float64
		if json.Unmarshal(val, &n) != nil {
			// Non-numeric extras (task-specific strings) are not counters.
			continue
		}

		if t.Counters == nil {
			t.Counters = make(map[string]int)
		}

		t.Counters[key] = int(n)
	}

	return nil
}
