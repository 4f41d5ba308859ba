package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"tiny-backspace/internal/dispatch"
	"tiny-backspace/internal/eventstore"
	"tiny-backspace/internal/relay"
)

var sessionIDPattern = regexp.MustCompile(`^session_[0-9]+_[0-9a-f]{32}$`)

type noopLauncher struct{ err error }

func (l *noopLauncher) Launch(task dispatch.TaskSpec, sessionID string) error { return l.err }

func newTestServer(t *testing.T, launcher dispatch.Launcher) (*Server, eventstore.Store) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store := eventstore.NewRedisStore(&redis.Options{Addr: mr.Addr()}, nil)
	t.Cleanup(func() { store.Close() })
	rel := relay.NewRedisRelay(&redis.Options{Addr: mr.Addr()}, nil)
	t.Cleanup(func() { rel.Close() })

	d := dispatch.NewDispatcher(store, launcher, nil)
	return New(Config{}, store, d, rel, nil), store
}

func postJSON(t *testing.T, handler http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func getJSON(t *testing.T, handler http.Handler, path string, out interface{}) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	return rec.Code
}

func TestTriggerEndpoint(t *testing.T) {
	s, _ := newTestServer(t, &noopLauncher{})

	rec := postJSON(t, s.Handler(), "/api/code", map[string]string{
		"repoUrl": "https://github.com/u/r",
		"prompt":  "add a hello endpoint",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success   bool   `json:"success"`
		SessionID string `json:"sessionId"`
		Status    string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, "processing", resp.Status)
	require.Regexp(t, sessionIDPattern, resp.SessionID)

	var list struct {
		Events []struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"events"`
	}
	code := getJSON(t, s.Handler(), "/api/sessions/"+resp.SessionID+"/events", &list)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, list.Events, 1)
	require.Equal(t, "start", list.Events[0].Type)
	require.Contains(t, list.Events[0].Message, "https://github.com/u/r")
}

func TestTriggerEndpointDispatchFailure(t *testing.T) {
	s, _ := newTestServer(t, &noopLauncher{err: errors.New("spawn blocked")})

	rec := postJSON(t, s.Handler(), "/api/code", map[string]string{
		"repoUrl": "https://github.com/u/r",
		"prompt":  "p",
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.Contains(t, resp.Error, "spawn blocked")
}

func TestTriggerEndpointRejectsIncompleteBody(t *testing.T) {
	s, _ := newTestServer(t, &noopLauncher{})
	rec := postJSON(t, s.Handler(), "/api/code", map[string]string{"repoUrl": "https://github.com/u/r"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionEventsUnknownSessionIsEmpty(t *testing.T) {
	s, _ := newTestServer(t, &noopLauncher{})
	var resp struct {
		Success bool              `json:"success"`
		Events  []json.RawMessage `json:"events"`
	}
	code := getJSON(t, s.Handler(), "/api/sessions/nonexistent/events", &resp)
	require.Equal(t, http.StatusOK, code)
	require.True(t, resp.Success)
	require.Empty(t, resp.Events)
}

func TestRecentFeed(t *testing.T) {
	s, store := newTestServer(t, &noopLauncher{})
	ctx := context.Background()
	for _, msg := range []string{"one", "two", "three"} {
		_, err := store.Append(ctx, "status", msg, "session_1_feed", nil)
		require.NoError(t, err)
	}

	var resp struct {
		Events []struct {
			Message string `json:"message"`
		} `json:"events"`
	}
	code := getJSON(t, s.Handler(), "/api/events?limit=2", &resp)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp.Events, 2)
	require.Equal(t, "three", resp.Events[0].Message)
	require.Equal(t, "two", resp.Events[1].Message)
}

// sseReader pulls typed frames off an SSE stream, skipping heartbeats.
type sseReader struct {
	scanner *bufio.Scanner
}

func (r *sseReader) next(t *testing.T) (string, string) {
	t.Helper()
	event, data := "", ""
	for r.scanner.Scan() {
		line := r.scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && event != "":
			return event, data
		}
	}
	t.Fatal("stream ended before next frame")
	return "", ""
}

func TestStreamDeliversLiveEventsInOrder(t *testing.T) {
	s, store := newTestServer(t, &noopLauncher{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	sessionID := "session_1_" + strings.Repeat("ab", 16)
	resp, err := http.Get(ts.URL + "/api/stream/" + sessionID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := &sseReader{scanner: bufio.NewScanner(resp.Body)}
	event, _ := reader.next(t)
	require.Equal(t, "connected", event)

	ctx := context.Background()
	for _, typ := range []string{"status", "tool_call", "success"} {
		_, err := store.Append(ctx, typ, "m: "+typ, sessionID, nil)
		require.NoError(t, err)
	}

	for _, want := range []string{"status", "tool_call", "success"} {
		event, data := reader.next(t)
		require.Equal(t, want, event)
		var ev struct {
			SessionID string `json:"sessionId"`
			Timestamp int64  `json:"timestamp"`
		}
		require.NoError(t, json.Unmarshal([]byte(data), &ev))
		require.Equal(t, sessionID, ev.SessionID)
		require.NotZero(t, ev.Timestamp)
	}
}

func TestStreamBackfillThenLive(t *testing.T) {
	s, store := newTestServer(t, &noopLauncher{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	sessionID := "session_1_" + strings.Repeat("cd", 16)
	ctx := context.Background()
	for _, msg := range []string{"first", "second"} {
		_, err := store.Append(ctx, "status", msg, sessionID, nil)
		require.NoError(t, err)
	}

	resp, err := http.Get(ts.URL + "/api/stream/" + sessionID + "?backfill=1")
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := &sseReader{scanner: bufio.NewScanner(resp.Body)}
	event, _ := reader.next(t)
	require.Equal(t, "connected", event)

	var messages []string
	for i := 0; i < 2; i++ {
		_, data := reader.next(t)
		var ev struct {
			Message string `json:"message"`
		}
		require.NoError(t, json.Unmarshal([]byte(data), &ev))
		messages = append(messages, ev.Message)
	}
	require.Equal(t, []string{"first", "second"}, messages)

	// Give the live path a moment, then confirm new appends still flow.
	time.Sleep(50 * time.Millisecond)
	_, err = store.Append(ctx, "success", "third", sessionID, nil)
	require.NoError(t, err)
	event, data := reader.next(t)
	require.Equal(t, "success", event)
	require.Contains(t, data, "third")
}

func TestStreamRejectsMalformedSessionID(t *testing.T) {
	s, _ := newTestServer(t, &noopLauncher{})
	req := httptest.NewRequest(http.MethodGet, "/api/stream/not-a-session", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, &noopLauncher{})
	var resp map[string]string
	code := getJSON(t, s.Handler(), "/healthz", &resp)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", resp["status"])
}
