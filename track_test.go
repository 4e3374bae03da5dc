package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zwy923/easyEmail/internal/api"
	"github.com/zwy923/easyEmail/internal/config"
)

// newTestCLIContext wires a CLIContext against a fake backend with a fast
// poll cadence.
func newTestCLIContext(t *testing.T, handler http.Handler) *CLIContext {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.Default()

	cc := &CLIContext{
		Cfg: &config.Resolved{
			BaseURL:       srv.URL,
			PollInterval:  time.Millisecond,
			SuccessLinger: time.Millisecond,
			FailureLinger: time.Millisecond,
		},
		Logger: logger,
		Client: api.NewClient(srv.URL, srv.Client(), logger),
	}
	cc.Flags.Quiet = true

	return cc
}

// statusScript serves successive task status bodies, repeating the last.
type statusScript struct {
	calls  atomic.Int32
	bodies []map[string]any
}

func (s *statusScript) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	idx := int(s.calls.Add(1)) - 1
	if idx >= len(s.bodies) {
		idx = len(s.bodies) - 1
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.bodies[idx])
}

func TestTrackJob_Success(t *testing.T) {
	script := &statusScript{bodies: []map[string]any{
		{"state": "PROGRESS", "current": 5, "total": 10, "percent": 50, "new_count": 3},
		{"state": "SUCCESS", "current": 10, "total": 10, "percent": 100, "new_count": 7},
	}}

	cc := newTestCLIContext(t, script)

	err := trackJob(context.Background(), cc, "fetch 1", "job-1")

	require.NoError(t, err)
	assert.GreaterOrEqual(t, script.calls.Load(), int32(2))
}

func TestTrackJob_FailureMapsToSentinel(t *testing.T) {
	script := &statusScript{bodies: []map[string]any{
		{"state": "FAILURE", "error": "token expired"},
	}}

	cc := newTestCLIContext(t, script)

	err := trackJob(context.Background(), cc, "fetch 1", "job-2")

	require.Error(t, err)
	assert.ErrorIs(t, err, errJobFailed)
	assert.Contains(t, err.Error(), "FAILURE")
}

func TestTrackJob_ContextCancel(t *testing.T) {
	script := &statusScript{bodies: []map[string]any{
		{"state": "PROGRESS", "current": 1, "total": 100, "percent": 1},
	}}

	cc := newTestCLIContext(t, script)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := trackJob(ctx, cc, "fetch 1", "job-3")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseAccountID(t *testing.T) {
	tests := []struct {
		arg     string
		want    int
		wantErr bool
	}{
		{"1", 1, false},
		{"42", 42, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := parseAccountID(tt.arg)
		if tt.wantErr {
			assert.Error(t, err, tt.arg)
			continue
		}

		require.NoError(t, err, tt.arg)
		assert.Equal(t, tt.want, got)
	}
}

func TestNewRootCmd_RegistersSubcommands(t *testing.T) {
	cmd := newRootCmd()

	want := []string{"connect", "fetch", "sync-status", "classify", "task", "accounts"}

	var got []string
	for _, sub := range cmd.Commands() {
		got = append(got, sub.Name())
	}

	for _, name := range want {
		assert.Contains(t, got, name)
	}
}
