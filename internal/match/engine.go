package match

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Engine owns one match and its clocks. Every method takes the match lock,
// so ticks and requests against the same match never interleave.
type Engine struct {
	mu   sync.Mutex
	m    Match
	deps Deps

	clockRef time.Time // last time the player clocks were charged
	turnRef  time.Time // last time the turn window was charged

	// latched is set once one side has moved inside the current
	// ALTERNATELY window.
	latched bool

	closed bool
}

// NewEngine wraps m. A started match resumes with its clocks referenced
// to now.
func NewEngine(m Match, deps Deps) *Engine {
	now := deps.now()
	return &Engine{m: m.Clone(), deps: deps, clockRef: now, turnRef: now}
}

func (e *Engine) ID() int64 {
	return e.m.ID
}

// Snapshot returns a copy of the current match state.
func (e *Engine) Snapshot() Match {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.m.Clone()
}

// Update runs fn against the match inside its critical section. It is the
// path lobby operations (seats, presence, chat) use to mutate a match.
func (e *Engine) Update(fn func(m *Match) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errClosed
	}
	return fn(&e.m)
}

// Persist saves the current state through Deps.Store and returns it. A
// closed engine is never written again.
func (e *Engine) Persist(ctx context.Context) Match {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.persist(ctx)
	}
	return e.m.Clone()
}

// persist writes the current state. Caller holds mu.
func (e *Engine) persist(ctx context.Context) {
	if e.deps.Store == nil {
		return
	}
	if err := e.deps.Store.SaveMatch(ctx, e.m.Clone()); err != nil {
		log.Printf("[match %d] persist: %v", e.m.ID, err)
	}
}

// Close retires the engine and returns its final state. When check is not
// nil it vets the state first and its error aborts the close. Every later
// operation fails with ErrNotFound.
func (e *Engine) Close(check func(m *Match) error) (Match, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return Match{}, errClosed
	}
	if check != nil {
		if err := check(&e.m); err != nil {
			return Match{}, err
		}
	}
	e.closed = true
	return e.m.Clone(), nil
}

// Start moves a pending match with both seats filled to running. Starting a
// started match is a no-op.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errClosed
	}
	if e.m.Started {
		return nil
	}
	if !e.m.SeatsFilled() {
		return fmt.Errorf("%w: both seats must be taken", ErrDenied)
	}
	now := e.deps.now()
	e.m.Started = true
	e.m.TimeByTurn = e.m.DefaultTimeByTurn
	e.clockRef, e.turnRef = now, now
	e.latched = false
	return nil
}

// SubmitMove plays uci for actor. Illegal input is reported as ErrDenied.
func (e *Engine) SubmitMove(ctx context.Context, actor int64, uci string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errClosed
	}
	if !e.m.Started {
		return fmt.Errorf("%w: match not started", ErrDenied)
	}
	if e.m.Finished() {
		return fmt.Errorf("%w: match already finished", ErrDenied)
	}

	now := e.deps.now()
	e.advance(ctx, now)
	if e.m.Finished() {
		return fmt.Errorf("%w: time is over", ErrDenied)
	}

	side, err := e.deps.Rules.SideToMove(e.m.FEN)
	if err != nil {
		return fmt.Errorf("%w: stored position unreadable: %v", ErrSecurityBreach, err)
	}
	if e.m.Seat(side) != actor {
		return fmt.Errorf("%w: not your turn", ErrDenied)
	}

	applied, err := e.deps.Rules.Apply(e.m.FEN, uci)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDenied, err)
	}

	e.m.Moves = append(e.m.Moves, Move{Player: actor, Color: side, UCI: uci, Time: millis(now)})
	e.m.FEN = applied.FEN
	if side == Black {
		e.m.Turn++
	}

	if e.m.DefaultTimeByTurn != Unlimited {
		if e.m.TurnMode == Alternately && !e.latched {
			e.latched = true
		} else {
			e.latched = false
			e.m.TimeByTurn = e.m.DefaultTimeByTurn
		}
	}
	e.clockRef, e.turnRef = now, now

	result := applied.Result
	if result == NoResult && e.m.MaxTurn != -1 && e.m.Turn > e.m.MaxTurn {
		result = Drawn
	}
	if result != NoResult {
		e.conclude(ctx, result, now)
	}
	return nil
}

// Resign ends a running match in the opponent's favour.
func (e *Engine) Resign(ctx context.Context, actor int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errClosed
	}
	if !e.m.Running() {
		return fmt.Errorf("%w: match not running", ErrDenied)
	}
	side, ok := e.m.SeatOf(actor)
	if !ok {
		return fmt.Errorf("%w: not a player", ErrDenied)
	}
	e.conclude(ctx, VictoryFor(side.Opponent()), e.deps.now())
	return nil
}

// Tick charges elapsed time to the side to move. It reports whether the
// match was running.
func (e *Engine) Tick(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || !e.m.Running() {
		return false
	}
	e.advance(ctx, e.deps.now())
	return true
}

// advance brings both clocks up to now. Caller holds mu.
func (e *Engine) advance(ctx context.Context, now time.Time) {
	side, err := e.deps.Rules.SideToMove(e.m.FEN)
	if err != nil {
		log.Printf("[match %d] DEFECT: %v: %v", e.m.ID, ErrSecurityBreach, err)
		return
	}

	if clock := e.m.clock(side); *clock != Unlimited {
		*clock -= elapsed(e.clockRef, now)
		e.clockRef = now
		if *clock <= 0 {
			*clock = 0
			e.conclude(ctx, VictoryFor(side.Opponent()), now)
			return
		}
	} else {
		e.clockRef = now
	}

	if e.m.DefaultTimeByTurn == Unlimited {
		e.turnRef = now
		return
	}
	e.m.TimeByTurn -= elapsed(e.turnRef, now)
	e.turnRef = now
	if e.m.TimeByTurn > 0 {
		return
	}
	if e.m.TurnMode == Alternately && e.latched {
		e.latched = false
		e.m.TimeByTurn = e.m.DefaultTimeByTurn
		return
	}
	e.m.TimeByTurn = 0
	e.conclude(ctx, VictoryFor(side.Opponent()), now)
}

func elapsed(ref, now time.Time) int64 {
	d := now.Sub(ref).Milliseconds()
	if d < 0 {
		return 0
	}
	return d
}

// conclude is the only place a result is set. The first call wins; later
// calls are ignored, so settlement runs exactly once. Caller holds mu.
func (e *Engine) conclude(ctx context.Context, result Result, now time.Time) {
	if e.m.Result != NoResult || result == NoResult {
		return
	}
	e.m.Result = result
	e.m.FinishTime = millis(now)
	e.latched = false
	if err := e.settle(ctx); err != nil {
		log.Printf("[match %d] DEFECT: settlement of %s failed: %v", e.m.ID, result, err)
	}
	e.persist(ctx)
}

func (e *Engine) settle(ctx context.Context) error {
	unlock := e.deps.Ledger.Lock(e.m.WhiteID, e.m.BlackID)
	defer unlock()

	white, err := e.deps.Accounts.Get(ctx, e.m.WhiteID)
	if err != nil {
		return fmt.Errorf("load white %d: %w", e.m.WhiteID, err)
	}
	black, err := e.deps.Accounts.Get(ctx, e.m.BlackID)
	if err != nil {
		return fmt.Errorf("load black %d: %w", e.m.BlackID, err)
	}

	switch e.m.Result {
	case Drawn:
		half := e.m.Sponsored / 2
		white.Coins += half
		black.Coins += e.m.Sponsored - half
	case WhiteVictory, BlackVictory:
		winner, loser := &white, &black
		if e.m.Result == BlackVictory {
			winner, loser = &black, &white
		}
		winner.Coins += e.m.Sponsored
		if e.m.RankType != Unranked && e.deps.Rating != nil {
			w, l := winner.Rating(string(e.m.RankType)), loser.Rating(string(e.m.RankType))
			if w != nil && l != nil {
				newW, newL := e.deps.Rating.Update(*w, *l)
				e.m.RankPlus = abs(newW - *w)
				e.m.RankMinus = abs(*l - newL)
				*w, *l = newW, newL
			}
		}
	}

	if err := e.deps.Accounts.Save(ctx, white); err != nil {
		return fmt.Errorf("save white %d: %w", white.ID, err)
	}
	if err := e.deps.Accounts.Save(ctx, black); err != nil {
		return fmt.Errorf("save black %d: %w", black.ID, err)
	}
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
