// Package rules answers chess questions for the match engine using
// github.com/corentings/chess.
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/corentings/chess"

	"github.com/elmerdema/chessgame/internal/match"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var promotions = map[string]chess.PieceType{
	"q": chess.Queen,
	"r": chess.Rook,
	"b": chess.Bishop,
	"n": chess.Knight,
}

// Engine implements match.RuleEngine.
type Engine struct{}

func New() Engine {
	return Engine{}
}

func load(fen string) (*chess.Game, error) {
	fenFunc, err := chess.FEN(fen)
	if err != nil {
		return nil, err
	}
	return chess.NewGame(fenFunc), nil
}

func (Engine) Validate(fen string) error {
	game, err := load(fen)
	if err != nil {
		return fmt.Errorf("invalid fen: %w", err)
	}
	var whiteKings, blackKings int
	for _, piece := range game.Position().Board().SquareMap() {
		switch piece {
		case chess.WhiteKing:
			whiteKings++
		case chess.BlackKing:
			blackKings++
		}
	}
	if whiteKings != 1 || blackKings != 1 {
		return errors.New("each side needs exactly one king")
	}
	if game.Outcome() != chess.NoOutcome {
		return errors.New("position is already decided")
	}
	return nil
}

func (Engine) SideToMove(fen string) (match.Color, error) {
	game, err := load(fen)
	if err != nil {
		return "", err
	}
	if game.Position().Turn() == chess.White {
		return match.White, nil
	}
	return match.Black, nil
}

func (Engine) Apply(fen, uci string) (match.Applied, error) {
	game, err := load(fen)
	if err != nil {
		return match.Applied{}, err
	}

	uci = strings.ToLower(strings.TrimSpace(uci))
	if len(uci) != 4 && len(uci) != 5 {
		return match.Applied{}, fmt.Errorf("%w: %q", match.ErrIllegalMove, uci)
	}
	from, to := uci[:2], uci[2:4]
	promo := chess.NoPieceType
	if len(uci) == 5 {
		p, ok := promotions[uci[4:]]
		if !ok {
			return match.Applied{}, fmt.Errorf("%w: bad promotion %q", match.ErrIllegalMove, uci[4:])
		}
		promo = p
	}

	var found *chess.Move
	candidates := 0
	for _, mv := range game.ValidMoves() {
		if mv.S1().String() != from || mv.S2().String() != to {
			continue
		}
		candidates++
		if mv.Promo() == promo {
			found = mv
			break
		}
	}
	if candidates == 0 {
		return match.Applied{}, fmt.Errorf("%w: %s", match.ErrIllegalMove, uci)
	}
	if found == nil {
		return match.Applied{}, fmt.Errorf("%w: %s", match.ErrPromotionMismatch, uci)
	}

	if err := game.Move(found); err != nil {
		return match.Applied{}, fmt.Errorf("%w: %v", match.ErrIllegalMove, err)
	}
	return match.Applied{FEN: game.FEN(), Result: outcome(game.Outcome())}, nil
}

func outcome(o chess.Outcome) match.Result {
	switch o {
	case chess.WhiteWon:
		return match.WhiteVictory
	case chess.BlackWon:
		return match.BlackVictory
	case chess.Draw:
		return match.Drawn
	}
	return match.NoResult
}

// IsStandard reports whether fen is the standard initial position, ignoring
// the move counters.
func IsStandard(fen string) bool {
	fields := strings.Fields(fen)
	want := strings.Fields(StartFEN)
	if len(fields) < 4 {
		return false
	}
	return strings.Join(fields[:4], " ") == strings.Join(want[:4], " ")
}
