package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openStream connects to a room's stream and returns its data lines as they
// arrive
func openStream(t *testing.T, srv *httptest.Server, code string, cookie *http.Cookie) (*http.Response, <-chan string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sse/rooms/"+code, nil)
	require.NoError(t, err)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	lines := make(chan string, 100)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1<<20)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data:") {
				lines <- line
			}
		}
	}()
	return resp, lines
}

// waitForLine reads lines until one contains all of want
func waitForLine(t *testing.T, lines <-chan string, want ...string) string {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream closed before %v", want)
			matched := true
			for _, w := range want {
				if !strings.Contains(line, w) {
					matched = false
					break
				}
			}
			if matched {
				return line
			}
		case <-timeout:
			t.Fatalf("no line with %v", want)
			return ""
		}
	}
}

func TestStreamRoom(t *testing.T) {
	s := newTestServer(t, Options{})
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	alice := s.create(t, "SSE001", "Alice")
	bob := s.join(t, "SSE001", "Bob")

	resp, lines := openStream(t, srv, "SSE001", bob.cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	first := waitForLine(t, lines, `"phase":"lobby"`, `"status":"connected"`)
	assert.Contains(t, first, `"playerId":"`+bob.id+`"`)

	w := s.do(t, http.MethodPost, "/api/rooms/SSE001/start", nil, alice.cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	started := waitForLine(t, lines, `"phase":"word_reveal"`)
	assert.Equal(t, 1, strings.Count(started, `"word":"`), "only the viewer's word is streamed")

	// idle streams keep reporting the connection status
	waitForLine(t, lines, `"status":"connected"`)
	assert.EqualValues(t, 1, s.handler.ActiveStreams())
}

func TestStreamRoom_Rejects(t *testing.T) {
	s := newTestServer(t, Options{MaxSSEConnections: 1})
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	alice := s.create(t, "SSE002", "Alice")

	t.Run("no cookie", func(t *testing.T) {
		resp, _ := openStream(t, srv, "SSE002", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("player not in room", func(t *testing.T) {
		resp, _ := openStream(t, srv, "SSE002", &http.Cookie{Name: "player_SSE002", Value: "ghost"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("unknown signal", func(t *testing.T) {
		resp, err := srv.Client().Get(srv.URL + `/sse/rooms/SSE002?datastar=%7B%22admin%22%3Atrue%7D`)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("connection limit", func(t *testing.T) {
		resp, lines := openStream(t, srv, "SSE002", alice.cookie)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		waitForLine(t, lines, `"status":"connected"`)

		second, _ := openStream(t, srv, "SSE002", alice.cookie)
		assert.Equal(t, http.StatusServiceUnavailable, second.StatusCode)
	})
}

func TestStreamRoom_ClosesWhenPlayerLeaves(t *testing.T) {
	s := newTestServer(t, Options{})
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	s.create(t, "SSE003", "Alice")
	bob := s.join(t, "SSE003", "Bob")

	_, lines := openStream(t, srv, "SSE003", bob.cookie)
	waitForLine(t, lines, `"phase":"lobby"`)

	w := s.do(t, http.MethodPost, "/api/rooms/SSE003/leave", nil, bob.cookie)
	require.Equal(t, http.StatusNoContent, w.Code)

	waitForLine(t, lines, `"status":"error"`, `"error":"Room or player not found"`)
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-lines:
			return !ok
		default:
			return false
		}
	}, 3*time.Second, 10*time.Millisecond, "the stream ends")
}
