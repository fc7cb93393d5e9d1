package lobby

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/elmerdema/chessgame/internal/account"
	"github.com/elmerdema/chessgame/internal/match"
	"github.com/elmerdema/chessgame/internal/rules"
)

// Spec is a match creation request. Times are milliseconds, -1 unlimited.
type Spec struct {
	Name        string         `json:"name"`
	FEN         string         `json:"fen"`
	TimeByWhite int64          `json:"timeByWhite"`
	TimeByBlack int64          `json:"timeByBlack"`
	TimeByTurn  int64          `json:"timeByTurn"`
	TurnMode    match.TurnMode `json:"turnMode"`
	MaxTurn     int            `json:"maxTurn"`
	Sponsored   int64          `json:"sponsored"`
	RankType    match.RankType `json:"rankType"`
	RandomColor bool           `json:"randomColor"`
	// Color seats the creator right away when set.
	Color match.Color `json:"color,omitempty"`
}

const maxNameLength = 64

func denied(format string, args ...any) error {
	return fmt.Errorf("%w: %s", match.ErrDenied, fmt.Sprintf(format, args...))
}

// band returns the rank band a per-player time belongs to.
func band(t int64) match.RankType {
	d := time.Duration(t) * time.Millisecond
	switch {
	case d <= 3*time.Minute:
		return match.Bullet
	case d <= 10*time.Minute:
		return match.Blitz
	case d <= 60*time.Minute:
		return match.Rapid
	}
	return match.Long
}

func validClock(t int64) bool {
	return t == match.Unlimited || t > 0
}

// normalize fills defaults and checks spec against creation policy. It may
// downgrade the rank type to unranked for custom positions.
func (c *Controller) normalize(spec *Spec) error {
	spec.Name = strings.TrimSpace(spec.Name)
	if len(spec.Name) > maxNameLength {
		return denied("name longer than %d characters", maxNameLength)
	}
	if spec.FEN == "" {
		spec.FEN = rules.StartFEN
	}
	if err := c.deps.Rules.Validate(spec.FEN); err != nil {
		return denied("starting position: %v", err)
	}
	if spec.TurnMode == "" {
		spec.TurnMode = match.Concurrent
	}
	switch spec.TurnMode {
	case match.Alternately, match.AlternatelyFast, match.Concurrent:
	default:
		return denied("unknown turn mode %q", spec.TurnMode)
	}
	if spec.RankType == "" {
		spec.RankType = match.Unranked
	}
	switch spec.RankType {
	case match.Unranked, match.Bullet, match.Blitz, match.Rapid, match.Long:
	default:
		return denied("unknown rank type %q", spec.RankType)
	}
	switch spec.Color {
	case "", match.White, match.Black:
	default:
		return denied("unknown color %q", spec.Color)
	}

	if !validClock(spec.TimeByWhite) || !validClock(spec.TimeByBlack) || !validClock(spec.TimeByTurn) {
		return denied("times must be positive or unlimited")
	}
	if spec.TimeByWhite != spec.TimeByBlack {
		return denied("both players need the same time")
	}
	if spec.MaxTurn != -1 && spec.MaxTurn < 5 {
		return denied("turn limit must be unlimited or at least 5")
	}
	if spec.Sponsored < 0 {
		return denied("negative stake")
	}

	if spec.RankType != match.Unranked && !rules.IsStandard(spec.FEN) {
		spec.RankType = match.Unranked
	}
	if spec.RankType != match.Unranked {
		if spec.RankType == match.Long {
			return denied("long games cannot be ranked")
		}
		if spec.TimeByWhite == match.Unlimited || band(spec.TimeByWhite) != spec.RankType {
			return denied("time per player does not fit %s", spec.RankType)
		}
	}
	if spec.RankType == match.Bullet && spec.TimeByTurn != match.Unlimited {
		return denied("bullet games have no time per turn")
	}
	if spec.TurnMode == match.Alternately && (spec.RankType == match.Bullet || spec.RankType == match.Blitz) {
		return denied("%s games cannot alternate", spec.RankType)
	}
	return nil
}

// Create validates spec, debits the stake from the creator, registers the
// new match and enters the creator into its lobby.
func (c *Controller) Create(ctx context.Context, creator int64, spec Spec) (match.Match, error) {
	if err := c.normalize(&spec); err != nil {
		return match.Match{}, err
	}

	unlock := c.deps.Ledger.Lock(creator)
	acc, err := c.deps.Accounts.Get(ctx, creator)
	if err != nil {
		unlock()
		if errors.Is(err, account.ErrNotFound) {
			return match.Match{}, fmt.Errorf("%w: account %d", match.ErrNotFound, creator)
		}
		return match.Match{}, err
	}
	if spec.Sponsored > acc.Coins {
		unlock()
		return match.Match{}, denied("stake %d exceeds balance %d", spec.Sponsored, acc.Coins)
	}

	now := c.now()
	c.mu.Lock()
	if c.cfg.MaxLiveMatches > 0 && len(c.engines) >= c.cfg.MaxLiveMatches {
		c.mu.Unlock()
		unlock()
		return match.Match{}, denied("server is hosting the maximum of %d matches", c.cfg.MaxLiveMatches)
	}
	id := c.nextID
	c.nextID++
	m := match.Match{
		ID:                id,
		Name:              spec.Name,
		CreatorID:         creator,
		WhiteID:           match.Unassigned,
		BlackID:           match.Unassigned,
		RandomColor:       spec.RandomColor,
		Entered:           []int64{},
		TimeByWhite:       spec.TimeByWhite,
		TimeByBlack:       spec.TimeByBlack,
		TimeByTurn:        spec.TimeByTurn,
		DefaultTimeByTurn: spec.TimeByTurn,
		TurnMode:          spec.TurnMode,
		MaxTurn:           spec.MaxTurn,
		Turn:              1,
		Result:            match.NoResult,
		StartFEN:          spec.FEN,
		FEN:               spec.FEN,
		Moves:             []match.Move{},
		Sponsored:         spec.Sponsored,
		RankType:          spec.RankType,
		CreatedTime:       now.UnixMilli(),
		FinishTime:        -1,
		IdleSince:         -1,
		Chat:              []match.ChatLine{},
	}
	e := match.NewEngine(m, c.deps)
	c.engines[id] = e
	c.mu.Unlock()

	if spec.Sponsored > 0 {
		acc.Coins -= spec.Sponsored
		if err := c.deps.Accounts.Save(ctx, acc); err != nil {
			unlock()
			c.mu.Lock()
			delete(c.engines, id)
			c.mu.Unlock()
			e.Close(nil)
			return match.Match{}, fmt.Errorf("debit stake: %w", err)
		}
	}
	unlock()

	if err := c.enter(e, acc, now); err != nil {
		return match.Match{}, err
	}
	if spec.Color != "" {
		if err := c.seat(e, creator, spec.Color); err != nil {
			return match.Match{}, err
		}
	}
	log.Printf("[lobby] %s created match %d (%s, %s)", acc.Name, id, spec.RankType, spec.TurnMode)
	return c.changed(ctx, e), nil
}
