package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/jobinpjoseph707/word-game-multiplayer/internal/game"
)

// startAttempts bounds how often StartGame deals again after the players
// changed underneath it
const startAttempts = 3

// StartGame deals the words and moves the lobby to word_reveal. Every player's
// word is written before the phase flips, and the flip only lands while the
// room still holds exactly the players that were dealt, so nobody sees
// word_reveal without a word.
func (e *Engine) StartGame(ctx context.Context, code, playerID string) (*game.Room, error) {
	for attempt := 1; ; attempt++ {
		room, err := e.deal(ctx, code, playerID)
		if err == nil || !errors.Is(err, errPlayersChanged) {
			return room, err
		}
		if attempt == startAttempts {
			return nil, fmt.Errorf("%w: players kept changing, try again", game.ErrInvalidPhase)
		}
		e.logger.Debug().Str("room", code).Int("attempt", attempt).Msg("players changed while dealing")
	}
}

var errPlayersChanged = errors.New("players changed while dealing")

func (e *Engine) deal(ctx context.Context, code, playerID string) (*game.Room, error) {
	room, _, err := e.adminRoom(ctx, code, playerID)
	if err != nil {
		return nil, err
	}
	if room.Phase != game.PhaseLobby {
		return nil, fmt.Errorf("%w: game already started", game.ErrInvalidPhase)
	}
	if len(room.Players) < game.MinPlayers {
		return nil, fmt.Errorf("%w: at least %d players are needed to start", game.ErrValidation, game.MinPlayers)
	}

	e.mu.Lock()
	pair := e.words.Pick(e.rng, room.Settings.Difficulty)
	imposters := game.EffectiveImposterCount(room.Settings, len(room.Players))
	words := game.AssignWords(room.Players, pair, imposters, e.rng)
	e.mu.Unlock()

	lobby := game.PhaseLobby
	dealt := make([]string, 0, len(room.Players))
	patches := make(map[string]game.PlayerPatch, len(room.Players))
	for id, word := range words {
		dealt = append(dealt, id)
		patches[id] = game.PlayerPatch{
			Word:             game.Ptr(word),
			Clue:             game.Ptr(""),
			Votes:            game.Ptr(0),
			IsEliminated:     game.Ptr(false),
			HasSubmittedClue: game.Ptr(false),
			HasVoted:         game.Ptr(false),
			IfExists:         true,
			IfPhase:          &lobby,
		}
	}
	if _, err := e.store.UpsertPlayers(ctx, room.Code, patches); err != nil {
		if errors.Is(err, game.ErrNotFound) {
			// someone we dealt to left
			return nil, errPlayersChanged
		}
		return nil, err
	}

	var noVotes map[string]int
	started, err := e.store.UpsertRoom(ctx, room.Code, game.RoomPatch{
		Phase:                game.Ptr(game.PhaseWordReveal),
		Round:                game.Ptr(1),
		TimeLeft:             game.Ptr(e.opts.WordRevealSeconds),
		VoteCounts:           &noVotes,
		EliminationResult:    game.Ptr(""),
		LastEliminatedPlayer: game.Ptr(""),
		GameWinner:           game.Ptr(game.WinnerNone),
		MajorityWord:         &pair.Majority,
		ImposterWord:         &pair.Imposter,
		IfPhase:              &lobby,
		IfPlayers:            dealt,
	})
	if errors.Is(err, game.ErrInvalidPhase) {
		// either the game started elsewhere or the players changed; the next
		// attempt tells them apart
		return nil, errPlayersChanged
	}
	if err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("room", started.Code).
		Int("players", len(started.Players)).
		Int("imposters", imposters).
		Str("difficulty", string(started.Settings.Difficulty)).
		Msg("game started")
	return started, nil
}

// SubmitClue records a player's one word clue. When it is the last clue
// outstanding the room moves straight to voting.
func (e *Engine) SubmitClue(ctx context.Context, code, playerID, clue string) (*game.Room, error) {
	room, p, err := e.member(ctx, code, playerID)
	if err != nil {
		return nil, err
	}
	if room.Phase != game.PhaseClueSubmission {
		return nil, fmt.Errorf("%w: clues are not being collected", game.ErrInvalidPhase)
	}
	if !p.IsActive() {
		return nil, fmt.Errorf("%w: eliminated players cannot give clues", game.ErrValidation)
	}
	clue, err = game.ValidateClue(clue)
	if err != nil {
		return nil, err
	}

	room, err = e.store.UpsertPlayer(ctx, room.Code, playerID, game.PlayerPatch{
		Clue:             &clue,
		HasSubmittedClue: game.Ptr(true),
		IfExists:         true,
		IfPhase:          game.Ptr(game.PhaseClueSubmission),
	})
	if err != nil {
		return nil, err
	}
	return e.advanceIfComplete(ctx, room)
}

// SubmitVote records one vote per active player per round. Voting for
// yourself is not allowed. The last vote moves the room to vote_reveal.
func (e *Engine) SubmitVote(ctx context.Context, code, voterID, targetID string) (*game.Room, error) {
	room, voter, err := e.member(ctx, code, voterID)
	if err != nil {
		return nil, err
	}
	if room.Phase != game.PhaseVoting {
		return nil, fmt.Errorf("%w: voting is not open", game.ErrInvalidPhase)
	}
	if !voter.IsActive() {
		return nil, fmt.Errorf("%w: eliminated players cannot vote", game.ErrValidation)
	}
	if voter.HasVoted {
		return nil, game.ErrAlreadyVoted
	}
	if voterID == targetID {
		return nil, fmt.Errorf("%w: you cannot vote for yourself", game.ErrValidation)
	}
	target := room.GetPlayer(targetID)
	if target == nil {
		return nil, fmt.Errorf("%w: player %s not in room %s", game.ErrNotFound, targetID, room.Code)
	}
	if !target.IsActive() {
		return nil, fmt.Errorf("%w: %s is already eliminated", game.ErrValidation, target.Name)
	}

	voting := game.PhaseVoting
	room, err = e.store.UpsertPlayers(ctx, room.Code, map[string]game.PlayerPatch{
		voterID:  {HasVoted: game.Ptr(true), IfHasVoted: game.Ptr(false), IfExists: true, IfPhase: &voting},
		targetID: {AddVotes: 1, IfExists: true, IfPhase: &voting},
	})
	if err != nil {
		return nil, err
	}
	return e.advanceIfComplete(ctx, room)
}

// advanceIfComplete moves clue_submission or voting on once every active
// player is done. Losing the race to another writer is not an error.
func (e *Engine) advanceIfComplete(ctx context.Context, room *game.Room) (*game.Room, error) {
	var (
		next *game.Room
		err  error
	)
	switch {
	case room.Phase == game.PhaseClueSubmission && room.AllCluesSubmitted():
		next, err = e.enterVoting(ctx, room)
	case room.Phase == game.PhaseVoting && room.AllVoted():
		next, err = e.enterVoteReveal(ctx, room)
	default:
		return room, nil
	}
	return e.settle(ctx, room.Code, next, err)
}

// settle turns a lost precondition race into a fresh read
func (e *Engine) settle(ctx context.Context, code string, room *game.Room, err error) (*game.Room, error) {
	if errors.Is(err, game.ErrInvalidPhase) {
		e.logger.Debug().Str("room", code).Msg("transition already made by another writer")
		return e.store.GetRoom(ctx, code)
	}
	return room, err
}

func (e *Engine) enterClueSubmission(ctx context.Context, room *game.Room) (*game.Room, error) {
	return e.store.UpsertRoom(ctx, room.Code, game.RoomPatch{
		Phase:    game.Ptr(game.PhaseClueSubmission),
		TimeLeft: game.Ptr(room.Settings.RoundTimeSeconds),
		IfPhase:  game.Ptr(game.PhaseWordReveal),
		IfRound:  game.Ptr(room.Round),
	})
}

func (e *Engine) enterVoting(ctx context.Context, room *game.Room) (*game.Room, error) {
	room, err := e.store.UpsertRoom(ctx, room.Code, game.RoomPatch{
		Phase:    game.Ptr(game.PhaseVoting),
		TimeLeft: game.Ptr(room.Settings.RoundTimeSeconds),
		IfPhase:  game.Ptr(game.PhaseClueSubmission),
		IfRound:  game.Ptr(room.Round),
	})
	if err == nil {
		e.logger.Debug().Str("room", room.Code).Int("round", room.Round).Msg("voting open")
	}
	return room, err
}

// enterVoteReveal snapshots the votes and records who the tally eliminates. The
// elimination itself is applied when the reveal ends.
func (e *Engine) enterVoteReveal(ctx context.Context, room *game.Room) (*game.Room, error) {
	tally := game.TallyVotes(room.Players)
	counts := tally.Counts
	room, err := e.store.UpsertRoom(ctx, room.Code, game.RoomPatch{
		Phase:                game.Ptr(game.PhaseVoteReveal),
		TimeLeft:             game.Ptr(e.opts.VoteRevealSeconds),
		VoteCounts:           &counts,
		EliminationResult:    game.Ptr(game.EliminationMessage(tally, room.Players)),
		LastEliminatedPlayer: game.Ptr(tally.Eliminated),
		IfPhase:              game.Ptr(game.PhaseVoting),
		IfRound:              game.Ptr(room.Round),
	})
	if err == nil {
		e.logger.Info().
			Str("room", room.Code).
			Int("round", room.Round).
			Str("eliminated", tally.Eliminated).
			Bool("tied", tally.Tied).
			Msg("votes tallied")
	}
	return room, err
}

// resolveRound ends vote_reveal: the elimination lands, votes are cleared, and
// the room either finishes with a winner or starts the next round.
func (e *Engine) resolveRound(ctx context.Context, room *game.Room) (*game.Room, error) {
	reveal := game.PhaseVoteReveal
	after := room.Clone()
	patches := make(map[string]game.PlayerPatch, len(room.Players))
	for _, p := range after.Players {
		patch := game.PlayerPatch{
			Votes:    game.Ptr(0),
			HasVoted: game.Ptr(false),
			IfExists: true,
			IfPhase:  &reveal,
		}
		if p.ID == room.LastEliminatedPlayer {
			patch.IsEliminated = game.Ptr(true)
		}
		patch.Apply(p)
		patches[p.ID] = patch
	}

	pair := game.WordPair{Majority: room.MajorityWord, Imposter: room.ImposterWord}
	winner := game.EvaluateWinner(after.Players, pair)

	var noVotes map[string]int
	next := game.RoomPatch{
		VoteCounts: &noVotes,
		IfPhase:    &reveal,
		IfRound:    game.Ptr(room.Round),
	}

	if winner != game.WinnerNone {
		for _, p := range after.Players {
			if onSide(p, winner, pair) {
				patch := patches[p.ID]
				// absolute, so concurrent resolvers write the same score
				patch.Score = game.Ptr(p.Score + 1)
				patches[p.ID] = patch
			}
		}
		next.Phase = game.Ptr(game.PhaseResults)
		next.TimeLeft = game.Ptr(0)
		next.GameWinner = &winner
	} else {
		for _, p := range after.Players {
			if p.IsActive() {
				patch := patches[p.ID]
				patch.Clue = game.Ptr("")
				patch.HasSubmittedClue = game.Ptr(false)
				patches[p.ID] = patch
			}
		}
		next.Phase = game.Ptr(game.PhaseClueSubmission)
		next.Round = game.Ptr(room.Round + 1)
		next.TimeLeft = game.Ptr(room.Settings.RoundTimeSeconds)
		next.EliminationResult = game.Ptr("")
		next.LastEliminatedPlayer = game.Ptr("")
	}

	if _, err := e.store.UpsertPlayers(ctx, room.Code, patches); err != nil {
		return nil, err
	}
	room, err := e.store.UpsertRoom(ctx, room.Code, next)
	if err != nil {
		return nil, err
	}

	if winner != game.WinnerNone {
		e.logger.Info().Str("room", room.Code).Str("winner", string(winner)).Int("rounds", room.Round).Msg("game over")
	} else {
		e.logger.Info().Str("room", room.Code).Int("round", room.Round).Msg("next round")
	}
	return room, nil
}

func onSide(p *game.Player, winner game.Winner, pair game.WordPair) bool {
	switch winner {
	case game.WinnerMajority:
		return p.Word == pair.Majority
	case game.WinnerImposters:
		return p.Word == pair.Imposter
	}
	return false
}

// Tick is one second of the countdown of a timed phase. phase and round name
// the countdown the caller armed; a tick for a phase the room already left is
// ignored. When the countdown runs out the phase ends:
//
//	word_reveal     -> clue_submission
//	clue_submission -> voting (missing clues stay empty)
//	voting          -> vote_reveal (with the votes cast so far)
//	vote_reveal     -> results or the next round
func (e *Engine) Tick(ctx context.Context, code string, phase game.Phase, round int) (*game.Room, error) {
	room, err := e.store.GetRoom(ctx, game.NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	if room.Phase != phase || room.Round != round || !phase.Timed() {
		return room, nil
	}

	if room.TimeLeft > 1 {
		next, err := e.store.UpsertRoom(ctx, room.Code, game.RoomPatch{
			TimeLeft: game.Ptr(room.TimeLeft - 1),
			IfPhase:  &phase,
			IfRound:  &round,
		})
		return e.settle(ctx, room.Code, next, err)
	}

	var next *game.Room
	switch phase {
	case game.PhaseWordReveal:
		next, err = e.enterClueSubmission(ctx, room)
	case game.PhaseClueSubmission:
		next, err = e.enterVoting(ctx, room)
	case game.PhaseVoting:
		next, err = e.enterVoteReveal(ctx, room)
	case game.PhaseVoteReveal:
		next, err = e.resolveRound(ctx, room)
	}
	return e.settle(ctx, room.Code, next, err)
}

// Restart takes a finished game back to the lobby, keeping the settings and
// the players but clearing everything the game dealt or scored.
func (e *Engine) Restart(ctx context.Context, code, playerID string) (*game.Room, error) {
	room, _, err := e.adminRoom(ctx, code, playerID)
	if err != nil {
		return nil, err
	}
	if room.Phase != game.PhaseResults {
		return nil, fmt.Errorf("%w: the game has not finished", game.ErrInvalidPhase)
	}

	results := game.PhaseResults
	patches := make(map[string]game.PlayerPatch, len(room.Players))
	for _, p := range room.Players {
		patches[p.ID] = game.PlayerPatch{
			Word:             game.Ptr(""),
			Clue:             game.Ptr(""),
			Votes:            game.Ptr(0),
			IsEliminated:     game.Ptr(false),
			HasSubmittedClue: game.Ptr(false),
			HasVoted:         game.Ptr(false),
			Score:            game.Ptr(0),
			IfExists:         true,
			IfPhase:          &results,
		}
	}
	if _, err := e.store.UpsertPlayers(ctx, room.Code, patches); err != nil {
		return nil, err
	}

	var noVotes map[string]int
	room, err = e.store.UpsertRoom(ctx, room.Code, game.RoomPatch{
		Phase:                game.Ptr(game.PhaseLobby),
		Round:                game.Ptr(1),
		TimeLeft:             game.Ptr(0),
		VoteCounts:           &noVotes,
		EliminationResult:    game.Ptr(""),
		LastEliminatedPlayer: game.Ptr(""),
		GameWinner:           game.Ptr(game.WinnerNone),
		MajorityWord:         game.Ptr(""),
		ImposterWord:         game.Ptr(""),
		IfPhase:              &results,
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info().Str("room", room.Code).Msg("game restarted")
	return room, nil
}
