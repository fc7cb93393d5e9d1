package lobby

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/elmerdema/chessgame/internal/account"
	"github.com/elmerdema/chessgame/internal/match"
)

const maxChatLength = 500

func (c *Controller) account(ctx context.Context, id int64) (account.Account, error) {
	a, err := c.deps.Accounts.Get(ctx, id)
	if errors.Is(err, account.ErrNotFound) {
		return account.Account{}, fmt.Errorf("%w: account %d", match.ErrNotFound, id)
	}
	return a, err
}

func (c *Controller) appendChat(m *match.Match, line match.ChatLine) {
	m.Chat = append(m.Chat, line)
	if limit := c.cfg.ChatLimit; limit > 0 && len(m.Chat) > limit {
		m.Chat = slices.Clone(m.Chat[len(m.Chat)-limit:])
	}
}

// enter adds acc to the entered set. Re-entering changes nothing.
func (c *Controller) enter(e *match.Engine, acc account.Account, now time.Time) error {
	return e.Update(func(m *match.Match) error {
		if m.IsEntered(acc.ID) {
			return nil
		}
		m.Entered = append(m.Entered, acc.ID)
		m.TouchIdle(now)
		c.appendChat(m, match.ChatLine{
			Author: match.SystemAuthor,
			Text:   acc.Name + " entered the game",
			Time:   now.UnixMilli(),
		})
		return nil
	})
}

// seat places account on a seat of a pending match. With random colors
// the requested color is ignored and an open seat is drawn.
func (c *Controller) seat(e *match.Engine, id int64, color match.Color) error {
	return e.Update(func(m *match.Match) error {
		if m.Started {
			return denied("match already started")
		}
		if !m.IsEntered(id) {
			return denied("enter the game before joining")
		}
		if _, ok := m.SeatOf(id); ok {
			return denied("already seated")
		}
		if m.RandomColor {
			var open []match.Color
			for _, side := range []match.Color{match.White, match.Black} {
				if m.Seat(side) == match.Unassigned {
					open = append(open, side)
				}
			}
			if len(open) == 0 {
				return denied("no free seat")
			}
			color = open[rand.IntN(len(open))]
		}
		switch color {
		case match.White:
			if m.WhiteID != match.Unassigned {
				return denied("white is taken")
			}
			m.WhiteID = id
		case match.Black:
			if m.BlackID != match.Unassigned {
				return denied("black is taken")
			}
			m.BlackID = id
		default:
			return fmt.Errorf("%w: unknown color %q", match.ErrIncorrectData, color)
		}
		m.TouchIdle(c.now())
		return nil
	})
}

func (c *Controller) Enter(ctx context.Context, accountID, id int64) (match.Match, error) {
	e, err := c.engine(id)
	if err != nil {
		return match.Match{}, err
	}
	acc, err := c.account(ctx, accountID)
	if err != nil {
		return match.Match{}, err
	}
	if err := c.enter(e, acc, c.now()); err != nil {
		return match.Match{}, err
	}
	return c.changed(ctx, e), nil
}

// Exit removes accountID from the entered set. Seats are kept.
func (c *Controller) Exit(ctx context.Context, accountID, id int64) (match.Match, error) {
	e, err := c.engine(id)
	if err != nil {
		return match.Match{}, err
	}
	var left bool
	err = e.Update(func(m *match.Match) error {
		i := slices.Index(m.Entered, accountID)
		if i < 0 {
			return nil
		}
		m.Entered = slices.Delete(m.Entered, i, i+1)
		m.TouchIdle(c.now())
		left = true
		return nil
	})
	if err != nil {
		return match.Match{}, err
	}
	if !left {
		return e.Snapshot(), nil
	}
	return c.changed(ctx, e), nil
}

func (c *Controller) Join(ctx context.Context, accountID, id int64, color match.Color) (match.Match, error) {
	e, err := c.engine(id)
	if err != nil {
		return match.Match{}, err
	}
	if err := c.seat(e, accountID, color); err != nil {
		return match.Match{}, err
	}
	return c.changed(ctx, e), nil
}

func (c *Controller) Disjoin(ctx context.Context, accountID, id int64) (match.Match, error) {
	e, err := c.engine(id)
	if err != nil {
		return match.Match{}, err
	}
	err = e.Update(func(m *match.Match) error {
		if m.Started {
			return denied("match already started")
		}
		switch accountID {
		case m.WhiteID:
			m.WhiteID = match.Unassigned
		case m.BlackID:
			m.BlackID = match.Unassigned
		default:
			return denied("not seated")
		}
		m.TouchIdle(c.now())
		return nil
	})
	if err != nil {
		return match.Match{}, err
	}
	return c.changed(ctx, e), nil
}

// RequestStart starts a match on behalf of its creator or an admin.
func (c *Controller) RequestStart(ctx context.Context, accountID, id int64) (match.Match, error) {
	e, err := c.engine(id)
	if err != nil {
		return match.Match{}, err
	}
	acc, err := c.account(ctx, accountID)
	if err != nil {
		return match.Match{}, err
	}
	m := e.Snapshot()
	if m.CreatorID != accountID && !acc.Admin {
		return match.Match{}, denied("only the creator can start the game")
	}
	if err := e.Start(); err != nil {
		return match.Match{}, err
	}
	log.Printf("[lobby] match %d started by %s", id, acc.Name)
	return c.changed(ctx, e), nil
}

// Remove deletes a match. The creator may remove it before it starts;
// admins may remove it at any time.
func (c *Controller) Remove(ctx context.Context, accountID, id int64) error {
	e, err := c.engine(id)
	if err != nil {
		return err
	}
	acc, err := c.account(ctx, accountID)
	if err != nil {
		return err
	}
	_, err = c.evict(ctx, e, func(m *match.Match) error {
		if !acc.Admin && (m.CreatorID != accountID || m.Started) {
			return denied("cannot remove this game")
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Printf("[lobby] match %d removed by %s", id, acc.Name)
	c.listChanged()
	return nil
}

func (c *Controller) Move(ctx context.Context, accountID, id int64, uci string) (match.Match, error) {
	e, err := c.engine(id)
	if err != nil {
		return match.Match{}, err
	}
	if err := e.SubmitMove(ctx, accountID, uci); err != nil {
		return match.Match{}, err
	}
	return c.changed(ctx, e), nil
}

func (c *Controller) Resign(ctx context.Context, accountID, id int64) (match.Match, error) {
	e, err := c.engine(id)
	if err != nil {
		return match.Match{}, err
	}
	if err := e.Resign(ctx, accountID); err != nil {
		return match.Match{}, err
	}
	return c.changed(ctx, e), nil
}

// Say appends a user line to the lobby chat of a match the account entered.
func (c *Controller) Say(ctx context.Context, accountID, id int64, text string) (match.Match, error) {
	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > maxChatLength {
		return match.Match{}, fmt.Errorf("%w: chat line must be 1..%d characters", match.ErrIncorrectData, maxChatLength)
	}
	e, err := c.engine(id)
	if err != nil {
		return match.Match{}, err
	}
	now := c.now()
	err = e.Update(func(m *match.Match) error {
		if !m.IsEntered(accountID) {
			return denied("enter the game before chatting")
		}
		c.appendChat(m, match.ChatLine{Author: accountID, Text: text, Time: now.UnixMilli()})
		return nil
	})
	if err != nil {
		return match.Match{}, err
	}
	m := e.Persist(ctx)
	c.matchUpdated(m)
	return m, nil
}
