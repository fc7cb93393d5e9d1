package match

import (
	"slices"
	"time"
)

// Unassigned marks an empty seat. Unlimited marks a clock without a limit.
const (
	Unassigned int64 = -1
	Unlimited  int64 = -1
)

// SystemAuthor is the author id of lobby lines written by the server.
const SystemAuthor int64 = -1

type Color string

const (
	White Color = "WHITE"
	Black Color = "BLACK"
)

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

type TurnMode string

const (
	Alternately     TurnMode = "ALTERNATELY"
	AlternatelyFast TurnMode = "ALTERNATELY_FAST"
	Concurrent      TurnMode = "CONCURRENT"
)

type RankType string

const (
	Unranked RankType = "UNRANKED"
	Bullet   RankType = "BULLET"
	Blitz    RankType = "BLITZ"
	Rapid    RankType = "RAPID"
	Long     RankType = "LONG"
)

type Result string

const (
	NoResult     Result = "NONE"
	WhiteVictory Result = "WHITE_VICTORY"
	BlackVictory Result = "BLACK_VICTORY"
	Drawn        Result = "DRAWN"
)

// VictoryFor returns the decisive result won by c.
func VictoryFor(c Color) Result {
	if c == White {
		return WhiteVictory
	}
	return BlackVictory
}

// Move is one entry of the move history.
type Move struct {
	Player int64  `json:"player"`
	Color  Color  `json:"color"`
	UCI    string `json:"uci"`
	Time   int64  `json:"time"`
}

type ChatLine struct {
	Author int64  `json:"author"`
	Text   string `json:"text"`
	Time   int64  `json:"time"`
}

// Match is the persisted state of one game instance. Times are milliseconds.
type Match struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	CreatorID   int64  `json:"creatorId"`
	WhiteID     int64  `json:"whiteId"`
	BlackID     int64  `json:"blackId"`
	RandomColor bool   `json:"randomColor"`

	Entered []int64 `json:"entered"`

	TimeByWhite       int64    `json:"timeByWhite"`
	TimeByBlack       int64    `json:"timeByBlack"`
	TimeByTurn        int64    `json:"timeByTurn"`
	DefaultTimeByTurn int64    `json:"defaultTimeByTurn"`
	TurnMode          TurnMode `json:"turnMode"`
	MaxTurn           int      `json:"maxTurn"`

	Turn     int    `json:"turn"`
	Started  bool   `json:"started"`
	Result   Result `json:"result"`
	StartFEN string `json:"startFen"`
	FEN      string `json:"fen"`
	Moves    []Move `json:"moves"`

	Sponsored int64    `json:"sponsored"`
	RankType  RankType `json:"rankType"`
	RankPlus  int      `json:"rankPlus"`
	RankMinus int      `json:"rankMinus"`

	CreatedTime int64 `json:"createdTime"`
	FinishTime  int64 `json:"finishTime"`
	// IdleSince is when a pending match last lost its seats and visitors,
	// -1 while anyone is seated or entered.
	IdleSince int64 `json:"idleSince"`

	Chat []ChatLine `json:"chat"`
}

// SeatOf returns the color account holds, if any.
func (m *Match) SeatOf(account int64) (Color, bool) {
	switch {
	case account == Unassigned:
		return "", false
	case m.WhiteID == account:
		return White, true
	case m.BlackID == account:
		return Black, true
	}
	return "", false
}

func (m *Match) Seat(c Color) int64 {
	if c == White {
		return m.WhiteID
	}
	return m.BlackID
}

func (m *Match) setSeat(c Color, account int64) {
	if c == White {
		m.WhiteID = account
	} else {
		m.BlackID = account
	}
}

func (m *Match) SeatsFilled() bool {
	return m.WhiteID != Unassigned && m.BlackID != Unassigned
}

func (m *Match) SeatsEmpty() bool {
	return m.WhiteID == Unassigned && m.BlackID == Unassigned
}

func (m *Match) IsEntered(account int64) bool {
	return slices.Contains(m.Entered, account)
}

// Idle reports a pending match with empty seats and nobody entered.
func (m *Match) Idle() bool {
	return !m.Started && m.SeatsEmpty() && len(m.Entered) == 0
}

// TouchIdle keeps IdleSince in step with Idle after a change at now.
func (m *Match) TouchIdle(now time.Time) {
	switch {
	case !m.Idle():
		m.IdleSince = -1
	case m.IdleSince < 0:
		m.IdleSince = millis(now)
	}
}

func (m *Match) Running() bool {
	return m.Started && m.Result == NoResult
}

func (m *Match) Finished() bool {
	return m.Result != NoResult
}

func (m *Match) clock(c Color) *int64 {
	if c == White {
		return &m.TimeByWhite
	}
	return &m.TimeByBlack
}

// Clone returns a deep copy safe to hand outside the match lock.
func (m *Match) Clone() Match {
	c := *m
	c.Entered = slices.Clone(m.Entered)
	c.Moves = slices.Clone(m.Moves)
	c.Chat = slices.Clone(m.Chat)
	return c
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}
