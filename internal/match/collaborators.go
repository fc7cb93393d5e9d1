package match

import (
	"context"
	"errors"
	"time"

	"github.com/elmerdema/chessgame/internal/account"
)

var (
	ErrIllegalMove       = errors.New("illegal move")
	ErrPromotionMismatch = errors.New("promotion does not match move")
)

// Applied is the position reached after a legal move.
type Applied struct {
	FEN    string
	Result Result
}

// RuleEngine answers board questions. Implementations must be pure.
type RuleEngine interface {
	// Validate reports whether fen is a structurally valid, playable position.
	Validate(fen string) error
	SideToMove(fen string) (Color, error)
	// Apply plays uci on fen. Errors wrap ErrIllegalMove or ErrPromotionMismatch.
	Apply(fen, uci string) (Applied, error)
}

// RatingCalculator returns updated ratings after winner beat loser.
type RatingCalculator interface {
	Update(winner, loser int) (int, int)
}

// Accounts is the part of account.Store settlement needs.
type Accounts interface {
	Get(ctx context.Context, id int64) (account.Account, error)
	Save(ctx context.Context, a account.Account) error
}

// Saver persists match snapshots. The engine calls it with the match lock
// held, so stored snapshots follow the order of in-memory changes.
type Saver interface {
	SaveMatch(ctx context.Context, m Match) error
}

type Deps struct {
	Rules    RuleEngine
	Rating   RatingCalculator
	Accounts Accounts
	// Ledger guards balance updates shared with the lobby. Optional.
	Ledger *account.Locks
	// Store receives a snapshot after every persisted change. Optional.
	Store Saver
	Now   func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}
