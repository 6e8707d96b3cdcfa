package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jobinpjoseph707/word-game-multiplayer/internal/config"
	"github.com/jobinpjoseph707/word-game-multiplayer/internal/feed"
	"github.com/jobinpjoseph707/word-game-multiplayer/internal/game"
	"github.com/jobinpjoseph707/word-game-multiplayer/internal/session"
	"github.com/jobinpjoseph707/word-game-multiplayer/internal/store"
)

type testServer struct {
	handler *Handler
	engine  *session.Engine
	router  *chi.Mux
}

// newTestServer wires a handler to an in-memory engine with push updates
func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	logger := zerolog.Nop()
	bus := feed.NewBus()
	t.Cleanup(bus.CloseAll)

	rooms := feed.NewPublishingStore(store.NewMemoryStore(), bus, logger)
	engine := session.NewEngine(rooms, game.DefaultWordBank(), session.DefaultOptions(), logger)
	watcher := feed.NewWatcher(rooms, bus, feed.WatcherConfig{PollInterval: 20 * time.Millisecond}, logger)
	if opts.KeepAlive == 0 {
		opts.KeepAlive = 20 * time.Millisecond
	}

	h := New(engine, watcher, nil, opts, logger)
	cfg := config.DefaultConfig()
	return &testServer{
		handler: h,
		engine:  engine,
		router:  SetupRouter(h, cfg, &RouterOptions{DisableRateLimiting: true, DisableRequestLogger: true}),
	}
}

// do sends a request through the router. body is encoded as JSON unless it is
// already a string.
func (s *testServer) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// player is a joined player's cookie
type player struct {
	id     string
	cookie *http.Cookie
}

func (s *testServer) create(t *testing.T, code, name string) player {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/rooms", createRoomRequest{Code: code, Name: name})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return playerFrom(t, w)
}

func (s *testServer) join(t *testing.T, code, name string) player {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/rooms/"+code+"/join", joinRoomRequest{Name: name})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return playerFrom(t, w)
}

func playerFrom(t *testing.T, w *httptest.ResponseRecorder) player {
	t.Helper()
	view := decodeView(t, w)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	require.Equal(t, view.PlayerID, cookies[0].Value)
	return player{id: view.PlayerID, cookie: cookies[0]}
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) RoomView {
	t.Helper()
	var view RoomView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view), w.Body.String())
	return view
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Error
}
