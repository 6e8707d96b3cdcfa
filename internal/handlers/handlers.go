// Package handlers is the HTTP surface of the game: a JSON API for actions, an
// SSE stream of room snapshots per player, and a QR code for joining.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/jobinpjoseph707/word-game-multiplayer/internal/client"
	"github.com/jobinpjoseph707/word-game-multiplayer/internal/game"
)

// CheckFunc reports whether a dependency is ready to serve
type CheckFunc func(ctx context.Context) error

// Options configure a Handler
type Options struct {
	// PublicURL is the base of join links; the request's host is used when empty
	PublicURL string
	// MaxSSEConnections caps concurrent streams; 0 means no cap
	MaxSSEConnections int
	// KeepAlive is how often an idle stream re-sends the connection status
	KeepAlive time.Duration
	Client    client.Config
	// Ready checks run by /health/ready
	Ready map[string]CheckFunc
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	engine  client.Engine
	watcher client.RoomWatcher
	timers  client.Timers
	opts    Options
	logger  zerolog.Logger

	streams atomic.Int64
}

// New creates a new handler. timers may be nil, in which case no stream drives
// phase countdowns.
func New(engine client.Engine, watcher client.RoomWatcher, timers client.Timers, opts Options, logger zerolog.Logger) *Handler {
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = 15 * time.Second
	}
	return &Handler{
		engine:  engine,
		watcher: watcher,
		timers:  timers,
		opts:    opts,
		logger:  logger.With().Str("component", "handlers").Logger(),
	}
}

// ActiveStreams reports how many SSE streams are open
func (h *Handler) ActiveStreams() int64 {
	return h.streams.Load()
}

// newSession creates the client session backing one stream
func (h *Handler) newSession() *client.Session {
	return client.New(h.engine, h.watcher, h.timers, h.opts.Client, h.logger)
}

func cookieName(code string) string {
	return "player_" + game.NormalizeCode(code)
}

// playerFromCookie returns the player id stored for the room, or ""
func playerFromCookie(r *http.Request, code string) string {
	c, err := r.Cookie(cookieName(code))
	if err != nil {
		return ""
	}
	return c.Value
}

func setPlayerCookie(w http.ResponseWriter, r *http.Request, code, playerID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName(code),
		Value:    playerID,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400, // 1 day
	})
}

func clearPlayerCookie(w http.ResponseWriter, code string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName(code),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// errorResponse is the body of every failed request
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors to status codes. The body carries the message
// meant for players.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: game.Describe(err)})
}

func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, game.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrNotAdmin):
		return http.StatusForbidden
	case errors.Is(err, game.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrInvalidPhase),
		errors.Is(err, game.ErrAlreadyExists),
		errors.Is(err, game.ErrRoomFull),
		errors.Is(err, game.ErrAlreadyVoted):
		return http.StatusConflict
	case errors.Is(err, game.ErrConnectionLost):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// decode reads a JSON body into v, rejecting unknown fields. An empty body
// leaves v as it is.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return fmt.Errorf("%w: invalid request body: %v", game.ErrValidation, err)
	}
	return nil
}
