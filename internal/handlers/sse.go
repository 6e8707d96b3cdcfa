package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	datastar "github.com/starfederation/datastar-go/datastar"

	"github.com/jobinpjoseph707/word-game-multiplayer/internal/client"
	"github.com/jobinpjoseph707/word-game-multiplayer/internal/game"
)

// streamSignals is what a stream patches into the page on every change
type streamSignals struct {
	Room     *RoomView     `json:"room,omitempty"`
	PlayerID string        `json:"playerId"`
	Status   client.Status `json:"status"`
	Error    string        `json:"error"`
}

// StreamRoom pushes the caller's view of the room every time it changes. The
// stream owns a client session, so it also heartbeats for the player and, when
// the player is the admin, drives the phase countdowns.
func (h *Handler) StreamRoom(w http.ResponseWriter, r *http.Request) {
	code := game.NormalizeCode(chi.URLParam(r, "code"))
	playerID := playerFromCookie(r, code)
	if playerID == "" {
		h.writeError(w, r, notInRoom(code))
		return
	}

	if n := h.streams.Add(1); h.opts.MaxSSEConnections > 0 && n > int64(h.opts.MaxSSEConnections) {
		h.streams.Add(-1)
		h.logger.Warn().Int64("streams", n-1).Msg("stream limit reached")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}
	defer h.streams.Add(-1)

	sess := h.newSession()
	defer sess.Close()
	if err := sess.Attach(r.Context(), code, playerID); err != nil {
		h.writeError(w, r, err)
		return
	}

	logger := h.logger.With().Str("room", code).Str("player", playerID).Logger()
	logger.Debug().Msg("stream opened")
	defer logger.Debug().Msg("stream closed")

	sse := datastar.NewSSE(w, r)
	keepalive := time.NewTicker(h.opts.KeepAlive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case room, ok := <-sess.Updates():
			if !ok {
				return
			}
			if room.GetPlayer(playerID) == nil {
				// removed by leaving or by the liveness sweep
				_ = sse.MarshalAndPatchSignals(streamSignals{
					PlayerID: playerID,
					Status:   client.StatusError,
					Error:    game.Describe(game.ErrNotFound),
				})
				return
			}
			view := viewFor(room, playerID)
			if err := sse.MarshalAndPatchSignals(streamSignals{
				Room:     &view,
				PlayerID: playerID,
				Status:   sess.Status(),
				Error:    sess.Err(),
			}); err != nil {
				logger.Debug().Err(err).Msg("stream write failed")
				return
			}

		case <-keepalive.C:
			// the status may have changed without a new snapshot
			if err := sse.MarshalAndPatchSignals(streamSignals{
				PlayerID: playerID,
				Status:   sess.Status(),
				Error:    sess.Err(),
			}); err != nil {
				return
			}
			if err := sse.Send("keepalive", []string{fmt.Sprintf(`{"time":"%s"}`, time.Now().Format(time.RFC3339))}); err != nil {
				logger.Debug().Err(err).Msg("keepalive failed")
				return
			}
		}
	}
}
