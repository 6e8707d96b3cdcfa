package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jobinpjoseph707/word-game-multiplayer/internal/game"
	"github.com/jobinpjoseph707/word-game-multiplayer/internal/scheduler"
)

// Ticker advances a timed phase by one tick
type Ticker interface {
	Tick(ctx context.Context, code string, phase game.Phase, round int) (*game.Room, error)
}

type countdown struct {
	phase game.Phase
	round int
	owner string
}

// Orchestrator runs the phase countdowns of the rooms whose admin is connected
// through this process. There is no dedicated coordinator: whoever holds the
// admin role arms the timers when it observes a timed phase, and a newly
// promoted admin picks the countdown up from the stored timeLeft.
type Orchestrator struct {
	ticker   Ticker
	sched    scheduler.Scheduler
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger

	mu    sync.Mutex
	armed map[string]countdown
}

// NewOrchestrator creates an orchestrator that ticks every interval
func NewOrchestrator(t Ticker, sched scheduler.Scheduler, interval time.Duration, logger zerolog.Logger) *Orchestrator {
	if interval <= 0 {
		interval = time.Second
	}
	return &Orchestrator{
		ticker:   t,
		sched:    sched,
		interval: interval,
		timeout:  5 * time.Second,
		logger:   logger.With().Str("component", "orchestrator").Logger(),
		armed:    make(map[string]countdown),
	}
}

// Observe is called with every snapshot a connected player sees. It arms the
// room's countdown when selfID is the admin and the phase is timed, and drops
// a countdown selfID armed once it is no longer admin.
func (o *Orchestrator) Observe(room *game.Room, selfID string) {
	if room == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	current, armed := o.armed[room.Code]
	self := room.GetPlayer(selfID)
	if self == nil || !self.IsAdmin || !room.Phase.Timed() {
		if armed && current.owner == selfID {
			o.disarmLocked(room.Code)
		}
		return
	}

	if armed && current.phase == room.Phase && current.round == room.Round && current.owner == selfID {
		return
	}
	// a countdown armed by a previous admin is taken over, not left to its owner
	o.armLocked(room.Code, countdown{phase: room.Phase, round: room.Round, owner: selfID})
}

// Forget drops the room's countdown if selfID armed it
func (o *Orchestrator) Forget(code, selfID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if c, ok := o.armed[code]; ok && c.owner == selfID {
		o.disarmLocked(code)
	}
}

// Armed reports the phase and round of a room's running countdown
func (o *Orchestrator) Armed(code string) (game.Phase, int, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	c, ok := o.armed[code]
	return c.phase, c.round, ok
}

// Stop cancels every countdown
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for code := range o.armed {
		o.disarmLocked(code)
	}
}

func (o *Orchestrator) armLocked(code string, c countdown) {
	o.armed[code] = c
	o.sched.Schedule(code, o.interval, func() { o.fire(code, c) })
	o.logger.Debug().Str("room", code).Str("phase", c.phase.String()).Int("round", c.round).Msg("countdown armed")
}

func (o *Orchestrator) disarmLocked(code string) {
	delete(o.armed, code)
	o.sched.Cancel(code)
}

func (o *Orchestrator) fire(code string, c countdown) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	room, err := o.ticker.Tick(ctx, code, c.phase, c.round)

	o.mu.Lock()
	if o.armed[code] != c {
		// disarmed or re-armed while the tick ran
		o.mu.Unlock()
		return
	}
	delete(o.armed, code)
	o.mu.Unlock()

	switch {
	case errors.Is(err, game.ErrNotFound):
		o.logger.Debug().Str("room", code).Msg("room gone, countdown stopped")
		return
	case err != nil:
		// keep the countdown alive and try again on the next tick
		o.logger.Warn().Err(err).Str("room", code).Msg("tick failed")
		o.mu.Lock()
		if _, ok := o.armed[code]; !ok {
			o.armLocked(code, c)
		}
		o.mu.Unlock()
		return
	}
	o.Observe(room, c.owner)
}
