package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobinpjoseph707/word-game-multiplayer/internal/client"
	"github.com/jobinpjoseph707/word-game-multiplayer/internal/game"
)

func TestCreateRoom(t *testing.T) {
	s := newTestServer(t, Options{})

	t.Run("creates a room with the caller as admin", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/rooms", createRoomRequest{Code: "abc123", Name: "Alice"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		view := decodeView(t, w)
		assert.Equal(t, "ABC123", view.Code)
		assert.Equal(t, game.PhaseLobby, view.Phase)
		require.Len(t, view.Players, 1)
		assert.True(t, view.Players[0].IsAdmin)
		assert.Equal(t, view.PlayerID, view.Players[0].ID)

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "player_ABC123", cookies[0].Name)
		assert.True(t, cookies[0].HttpOnly)
	})

	t.Run("generates a code when none is given", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/rooms", createRoomRequest{Name: "Bob"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Len(t, decodeView(t, w).Code, game.RoomCodeLength)
	})

	t.Run("taken code", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/rooms", createRoomRequest{Code: "ABC123", Name: "Mallory"})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "A room with that code already exists", decodeError(t, w))
	})

	t.Run("bad input", func(t *testing.T) {
		tests := []struct {
			name string
			body any
		}{
			{"empty name", createRoomRequest{Code: "ROOM01"}},
			{"unknown field", `{"name":"Alice","admin":true}`},
			{"not json", `name=Alice`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				w := s.do(t, http.MethodPost, "/api/rooms", tt.body)
				assert.Equal(t, http.StatusBadRequest, w.Code)
				assert.NotEmpty(t, decodeError(t, w))
			})
		}
	})
}

func TestJoinRoom(t *testing.T) {
	s := newTestServer(t, Options{})
	alice := s.create(t, "JOIN01", "Alice")

	bob := s.join(t, "join01", "Bob")
	assert.NotEqual(t, alice.id, bob.id)

	t.Run("same name reconnects", func(t *testing.T) {
		again := s.join(t, "JOIN01", "bob")
		assert.Equal(t, bob.id, again.id)
	})

	t.Run("unknown room", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/rooms/NOPE42/join", joinRoomRequest{Name: "Cara"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Room or player not found", decodeError(t, w))
	})

	t.Run("game in progress", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/rooms/JOIN01/start", nil, alice.cookie)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = s.do(t, http.MethodPost, "/api/rooms/JOIN01/join", joinRoomRequest{Name: "Cara"})
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestGetRoom_HidesWords(t *testing.T) {
	s := newTestServer(t, Options{})
	alice := s.create(t, "WORDS1", "Alice")
	bob := s.join(t, "WORDS1", "Bob")
	w := s.do(t, http.MethodPost, "/api/rooms/WORDS1/start", nil, alice.cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	t.Run("a player sees only their own word", func(t *testing.T) {
		view := decodeView(t, s.do(t, http.MethodGet, "/api/rooms/WORDS1", nil, bob.cookie))
		for _, p := range view.Players {
			if p.ID == bob.id {
				assert.NotEmpty(t, p.Word)
			} else {
				assert.Empty(t, p.Word)
			}
		}
		assert.Empty(t, view.MajorityWord)
		assert.Empty(t, view.ImposterWord)
	})

	t.Run("an outsider sees no words", func(t *testing.T) {
		view := decodeView(t, s.do(t, http.MethodGet, "/api/rooms/WORDS1", nil))
		assert.Empty(t, view.PlayerID)
		for _, p := range view.Players {
			assert.Empty(t, p.Word)
		}
	})

	t.Run("a forged cookie sees no words", func(t *testing.T) {
		forged := &http.Cookie{Name: "player_WORDS1", Value: "someone-else"}
		view := decodeView(t, s.do(t, http.MethodGet, "/api/rooms/WORDS1", nil, forged))
		assert.Empty(t, view.PlayerID)
	})
}

func TestGameFlow(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t, Options{})
	alice := s.create(t, "FLOW01", "Alice")
	bob := s.join(t, "FLOW01", "Bob")

	t.Run("settings are admin only", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/rooms/FLOW01/settings", `{"roundTimeSeconds":30}`, bob.cookie)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "Only the room admin can do that", decodeError(t, w))

		w = s.do(t, http.MethodPost, "/api/rooms/FLOW01/settings", `{"roundTimeSeconds":30,"difficulty":"hard"}`, alice.cookie)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		view := decodeView(t, w)
		assert.Equal(t, 30, view.Settings.RoundTimeSeconds)
		assert.Equal(t, game.DifficultyHard, view.Settings.Difficulty)
	})

	t.Run("invalid settings", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/rooms/FLOW01/settings", `{"roundTimeSeconds":1}`, alice.cookie)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("clues before the game starts", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/rooms/FLOW01/clue", clueRequest{Clue: "early"}, bob.cookie)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "That action isn't available right now", decodeError(t, w))
	})

	w := s.do(t, http.MethodPost, "/api/rooms/FLOW01/start", nil, alice.cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, game.PhaseWordReveal, decodeView(t, w).Phase)

	// no timers run in these tests, so tick the reveal out by hand
	room, err := s.engine.GetRoom(ctx, "FLOW01")
	require.NoError(t, err)
	for room.Phase == game.PhaseWordReveal {
		room, err = s.engine.Tick(ctx, room.Code, room.Phase, room.Round)
		require.NoError(t, err)
	}
	require.Equal(t, game.PhaseClueSubmission, room.Phase)

	for _, p := range []player{alice, bob} {
		w := s.do(t, http.MethodPost, "/api/rooms/FLOW01/clue", clueRequest{Clue: "hint"}, p.cookie)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	room, err = s.engine.GetRoom(ctx, "FLOW01")
	require.NoError(t, err)
	require.Equal(t, game.PhaseVoting, room.Phase)

	t.Run("self vote", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/rooms/FLOW01/vote", voteRequest{TargetID: alice.id}, alice.cookie)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	w = s.do(t, http.MethodPost, "/api/rooms/FLOW01/vote", voteRequest{TargetID: bob.id}, alice.cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	t.Run("second vote", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/rooms/FLOW01/vote", voteRequest{TargetID: bob.id}, alice.cookie)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "You have already voted this round", decodeError(t, w))
	})

	w = s.do(t, http.MethodPost, "/api/rooms/FLOW01/vote", voteRequest{TargetID: alice.id}, bob.cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view := decodeView(t, w)
	assert.Equal(t, game.PhaseVoteReveal, view.Phase)
	assert.Equal(t, map[string]int{alice.id: 1, bob.id: 1}, view.VoteCounts)
	assert.Equal(t, "It's a tie, "+game.NoElimination, view.EliminationResult)

	t.Run("restart needs a finished game", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/rooms/FLOW01/restart", nil, alice.cookie)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestActionsNeedTheRoomCookie(t *testing.T) {
	s := newTestServer(t, Options{})
	s.create(t, "COOK01", "Alice")
	other := s.create(t, "COOK02", "Bob")

	for _, path := range []string{"settings", "start", "clue", "vote", "restart", "heartbeat"} {
		t.Run(path, func(t *testing.T) {
			// a cookie for another room does not count
			w := s.do(t, http.MethodPost, "/api/rooms/COOK01/"+path, nil, other.cookie)
			assert.Equal(t, http.StatusNotFound, w.Code)
		})
	}
}

func TestLeaveRoom(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t, Options{})
	alice := s.create(t, "LEAVE1", "Alice")
	bob := s.join(t, "LEAVE1", "Bob")

	w := s.do(t, http.MethodPost, "/api/rooms/LEAVE1/leave", nil, alice.cookie)
	assert.Equal(t, http.StatusNoContent, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0)

	room, err := s.engine.GetRoom(ctx, "LEAVE1")
	require.NoError(t, err)
	require.Len(t, room.Players, 1)
	assert.Equal(t, bob.id, room.Admin().ID, "admin passes to the remaining player")

	t.Run("leaving twice", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/rooms/LEAVE1/leave", nil, alice.cookie)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("last player deletes the room", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/rooms/LEAVE1/leave", nil, bob.cookie)
		assert.Equal(t, http.StatusNoContent, w.Code)
		_, err := s.engine.GetRoom(ctx, "LEAVE1")
		assert.ErrorIs(t, err, game.ErrNotFound)
	})
}

func TestHeartbeat(t *testing.T) {
	s := newTestServer(t, Options{})
	alice := s.create(t, "BEAT01", "Alice")

	w := s.do(t, http.MethodPost, "/api/rooms/BEAT01/heartbeat", nil, alice.cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/rooms/BEAT01/heartbeat", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: name is required", game.ErrValidation), http.StatusBadRequest},
		{client.ErrNotJoined, http.StatusBadRequest},
		{game.ErrNotAdmin, http.StatusForbidden},
		{fmt.Errorf("%w: room X", game.ErrNotFound), http.StatusNotFound},
		{game.ErrInvalidPhase, http.StatusConflict},
		{game.ErrAlreadyExists, http.StatusConflict},
		{game.ErrRoomFull, http.StatusConflict},
		{game.ErrAlreadyVoted, http.StatusConflict},
		{game.ErrConnectionLost, http.StatusServiceUnavailable},
		{&http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{game.ErrStore, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestRequestSizeLimit(t *testing.T) {
	s := newTestServer(t, Options{})
	body := `{"name":"` + strings.Repeat("a", 2<<20) + `"}`
	w := s.do(t, http.MethodPost, "/api/rooms", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestHealth(t *testing.T) {
	t.Run("live", func(t *testing.T) {
		s := newTestServer(t, Options{})
		w := s.do(t, http.MethodGet, "/health/live", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "OK", w.Body.String())
	})

	t.Run("ready", func(t *testing.T) {
		s := newTestServer(t, Options{Ready: map[string]CheckFunc{
			"store": func(context.Context) error { return nil },
		}})
		w := s.do(t, http.MethodGet, "/health/ready", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok","checks":{"store":"ok"}}`, w.Body.String())
	})

	t.Run("not ready", func(t *testing.T) {
		s := newTestServer(t, Options{Ready: map[string]CheckFunc{
			"store": func(context.Context) error { return nil },
			"feed":  func(context.Context) error { return errors.New("redis: connection refused") },
		}})
		w := s.do(t, http.MethodGet, "/health/ready", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.JSONEq(t, `{"status":"unavailable","checks":{"store":"ok","feed":"redis: connection refused"}}`, w.Body.String())
	})
}
