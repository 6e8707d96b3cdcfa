package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jobinpjoseph707/word-game-multiplayer/internal/game"
)

type createRoomRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type joinRoomRequest struct {
	Name string `json:"name"`
}

type clueRequest struct {
	Clue string `json:"clue"`
}

type voteRequest struct {
	TargetID string `json:"targetId"`
}

type heartbeatResponse struct {
	OK bool `json:"ok"`
}

// CreateRoom opens a room and makes the caller its admin. An empty code picks a
// free one.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	room, playerID, err := h.engine.CreateRoom(r.Context(), req.Code, req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info().Str("room", room.Code).Str("player", playerID).Msg("room created")
	setPlayerCookie(w, r, room.Code, playerID)
	writeJSON(w, http.StatusCreated, viewFor(room, playerID))
}

// JoinRoom adds the caller to a room, or gives them back their seat when the
// name is already theirs
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	var req joinRoomRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	room, playerID, err := h.engine.JoinRoom(r.Context(), chi.URLParam(r, "code"), req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	setPlayerCookie(w, r, room.Code, playerID)
	writeJSON(w, http.StatusOK, viewFor(room, playerID))
}

// GetRoom returns the room as the caller may see it. Anyone can look at a room;
// only members see their own word.
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	room, err := h.engine.GetRoom(r.Context(), game.NormalizeCode(code))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	viewer := playerFromCookie(r, room.Code)
	if room.GetPlayer(viewer) == nil {
		viewer = ""
	}
	writeJSON(w, http.StatusOK, viewFor(room, viewer))
}

// UpdateSettings applies a partial settings change from the admin
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch game.SettingsPatch
	if err := decode(r, &patch); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.member(w, r, func(ctx context.Context, code, playerID string) (*game.Room, error) {
		return h.engine.UpdateSettings(ctx, code, playerID, patch)
	})
}

// StartGame deals the words and starts the first round
func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
	h.member(w, r, func(ctx context.Context, code, playerID string) (*game.Room, error) {
		return h.engine.StartGame(ctx, code, playerID)
	})
}

// SubmitClue records the caller's clue for this round
func (h *Handler) SubmitClue(w http.ResponseWriter, r *http.Request) {
	var req clueRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.member(w, r, func(ctx context.Context, code, playerID string) (*game.Room, error) {
		return h.engine.SubmitClue(ctx, code, playerID, req.Clue)
	})
}

// SubmitVote records the caller's vote
func (h *Handler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.member(w, r, func(ctx context.Context, code, playerID string) (*game.Room, error) {
		return h.engine.SubmitVote(ctx, code, playerID, req.TargetID)
	})
}

// Restart takes a finished game back to the lobby
func (h *Handler) Restart(w http.ResponseWriter, r *http.Request) {
	h.member(w, r, func(ctx context.Context, code, playerID string) (*game.Room, error) {
		return h.engine.Restart(ctx, code, playerID)
	})
}

// LeaveRoom removes the caller from the room. Leaving twice is not an error.
func (h *Handler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	code := game.NormalizeCode(chi.URLParam(r, "code"))
	playerID := playerFromCookie(r, code)
	if playerID != "" {
		if _, err := h.engine.RemovePlayer(r.Context(), code, playerID); err != nil && statusFor(err) != http.StatusNotFound {
			h.writeError(w, r, err)
			return
		}
		h.logger.Info().Str("room", code).Str("player", playerID).Msg("player left")
	}
	clearPlayerCookie(w, code)
	w.WriteHeader(http.StatusNoContent)
}

// Heartbeat keeps the caller from being swept as inactive
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	code := game.NormalizeCode(chi.URLParam(r, "code"))
	playerID := playerFromCookie(r, code)
	if playerID == "" {
		h.writeError(w, r, notInRoom(code))
		return
	}
	ok, err := h.engine.Heartbeat(r.Context(), code, playerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, heartbeatResponse{OK: ok})
}

// member runs an action on behalf of the player named by the room's cookie
// and answers with the room it returns
func (h *Handler) member(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, code, playerID string) (*game.Room, error)) {
	code := game.NormalizeCode(chi.URLParam(r, "code"))
	playerID := playerFromCookie(r, code)
	if playerID == "" {
		h.writeError(w, r, notInRoom(code))
		return
	}
	room, err := fn(r.Context(), code, playerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewFor(room, playerID))
}

func notInRoom(code string) error {
	return fmt.Errorf("%w: you are not in room %s", game.ErrNotFound, code)
}
