package handshake

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEventServer starts a WebSocket server that writes every frame from
// frames to each connecting client. Returns the ws:// URL.
func newEventServer(t *testing.T, frames <-chan eventFrame) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		for frame := range frames {
			if writeErr := wsjson.Write(r.Context(), conn, frame); writeErr != nil {
				return
			}
		}

		// Hold the connection open until the client goes away.
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func recvMessage(t *testing.T, ch <-chan Message) Message {
	t.Helper()

	select {
	case msg := <-ch:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestEventSource_DeliversMatchingType(t *testing.T) {
	frames := make(chan eventFrame, 4)
	url := newEventServer(t, frames)

	source := NewEventSource(url, slog.Default())
	t.Cleanup(func() { _ = source.Close() })

	ch, unsubscribe, err := source.Subscribe("gmail_connected")
	require.NoError(t, err)
	defer unsubscribe()

	frames <- eventFrame{Type: "sync_progress", Success: true}
	frames <- eventFrame{
		Type:    "gmail_connected",
		Success: true,
		Payload: map[string]any{"account_id": float64(3)},
	}

	msg := recvMessage(t, ch)
	assert.Equal(t, "gmail_connected", msg.Type)
	assert.True(t, msg.Success)
	assert.Equal(t, float64(3), msg.Payload["account_id"])
}

func TestEventSource_FansOutToMultipleSubscribers(t *testing.T) {
	frames := make(chan eventFrame, 2)
	url := newEventServer(t, frames)

	source := NewEventSource(url, slog.Default())
	t.Cleanup(func() { _ = source.Close() })

	ch1, unsub1, err := source.Subscribe("gmail_connected")
	require.NoError(t, err)
	defer unsub1()

	ch2, unsub2, err := source.Subscribe("gmail_connected")
	require.NoError(t, err)
	defer unsub2()

	frames <- eventFrame{Type: "gmail_connected", Success: true}

	assert.True(t, recvMessage(t, ch1).Success)
	assert.True(t, recvMessage(t, ch2).Success)
}

func TestEventSource_UnsubscribeIdempotent(t *testing.T) {
	frames := make(chan eventFrame)
	url := newEventServer(t, frames)

	source := NewEventSource(url, slog.Default())
	t.Cleanup(func() { _ = source.Close() })

	ch, unsubscribe, err := source.Subscribe("gmail_connected")
	require.NoError(t, err)

	assert.NotPanics(t, unsubscribe)
	assert.NotPanics(t, unsubscribe)

	// The channel is closed by the first unsubscribe.
	_, open := <-ch
	assert.False(t, open)
}

func TestEventSource_SubscribeAfterClose(t *testing.T) {
	frames := make(chan eventFrame)
	url := newEventServer(t, frames)

	source := NewEventSource(url, slog.Default())

	_, unsubscribe, err := source.Subscribe("gmail_connected")
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, source.Close())

	_, _, err = source.Subscribe("gmail_connected")
	assert.ErrorIs(t, err, ErrSourceClosed)

	// Close is idempotent.
	assert.NoError(t, source.Close())
}

func TestEventSource_CloseReturnsPromptly(t *testing.T) {
	frames := make(chan eventFrame)
	url := newEventServer(t, frames)

	source := NewEventSource(url, slog.Default())

	_, unsubscribe, err := source.Subscribe("gmail_connected")
	require.NoError(t, err)
	defer unsubscribe()

	// Close drops the connection without waiting on a close handshake the
	// stopped read loop could never complete.
	start := time.Now()
	require.NoError(t, source.Close())
	assert.Less(t, time.Since(start), time.Second)
}

func TestEventSource_DialFailure(t *testing.T) {
	source := NewEventSource("ws://127.0.0.1:1/events", slog.Default())

	_, _, err := source.Subscribe("gmail_connected")
	require.Error(t, err)
}

func TestEventSource_WorksWithHandshake(t *testing.T) {
	frames := make(chan eventFrame, 1)
	url := newEventServer(t, frames)

	source := NewEventSource(url, slog.Default())
	t.Cleanup(func() { _ = source.Close() })

	win := &fakeWindow{}
	hs := newTestHandshake(&fakeOpener{win: win}, source)

	frames <- eventFrame{
		Type:    "gmail_connected",
		Success: true,
		Payload: map[string]any{"account_id": float64(11)},
	}

	result, err := hs.Begin(context.Background(), "https://auth.example")

	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, result.Outcome)
	assert.Equal(t, float64(11), result.Payload["account_id"])
}
