package lobby

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/elmerdema/chessgame/internal/account"
	"github.com/elmerdema/chessgame/internal/account/accounttest"
	"github.com/elmerdema/chessgame/internal/match"
	"github.com/elmerdema/chessgame/internal/rating"
	"github.com/elmerdema/chessgame/internal/rules"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type memoryMatches struct {
	mu      sync.Mutex
	matches map[int64]match.Match
	// onSave, when set, runs before a snapshot is stored.
	onSave func(m match.Match)
}

func (s *memoryMatches) SaveMatch(_ context.Context, m match.Match) error {
	s.mu.Lock()
	hook := s.onSave
	s.mu.Unlock()
	if hook != nil {
		hook(m)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[m.ID] = m
	return nil
}

func (s *memoryMatches) DeleteMatch(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.matches, id)
	return nil
}

func (s *memoryMatches) get(id int64) (match.Match, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	return m, ok
}

func (s *memoryMatches) Matches(context.Context) ([]match.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []match.Match
	for _, m := range s.matches {
		out = append(out, m)
	}
	return out, nil
}

type recorder struct {
	mu      sync.Mutex
	updates []match.Match
	lists   int
	removed []int64
}

func (r *recorder) MatchRemoved(id int64) {
	r.mu.Lock()
	r.removed = append(r.removed, id)
	r.mu.Unlock()
}

func (r *recorder) MatchUpdated(m match.Match) {
	r.mu.Lock()
	r.updates = append(r.updates, m)
	r.mu.Unlock()
}

func (r *recorder) ListChanged() {
	r.mu.Lock()
	r.lists++
	r.mu.Unlock()
}

type env struct {
	cfg      Config
	ctrl     *Controller
	clock    *fakeClock
	accounts *accounttest.MemoryStore
	store    *memoryMatches
	notes    *recorder
	alice    int64
	bob      int64
	carol    int64
	admin    int64
}

func newEnv(t *testing.T, edit func(cfg *Config)) *env {
	t.Helper()
	ctx := context.Background()
	accounts := accounttest.NewMemoryStore()
	mk := func(name string, coins int64, admin bool) int64 {
		a, err := accounts.Create(ctx, account.Account{Name: name, Coins: coins, Admin: admin, Blitz: 1200})
		if err != nil {
			t.Fatal(err)
		}
		return a.ID
	}

	cfg := DefaultConfig()
	if edit != nil {
		edit(&cfg)
	}
	clock := &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := &memoryMatches{matches: make(map[int64]match.Match)}
	e := &env{
		cfg:      cfg,
		clock:    clock,
		accounts: accounts,
		store:    store,
	}
	e.restart(t)
	e.alice = mk("alice", 500, false)
	e.bob = mk("bob", 500, false)
	e.carol = mk("carol", 500, false)
	e.admin = mk("root", 0, true)
	return e
}

// restart replaces the controller with a fresh one over the same accounts
// and match store, the way a process restart would.
func (e *env) restart(t *testing.T) {
	t.Helper()
	e.ctrl = New(e.cfg, match.Deps{
		Rules:    rules.New(),
		Rating:   rating.NewElo(),
		Accounts: e.accounts,
		Ledger:   account.NewLocks(),
		Now:      e.clock.Now,
	}, e.store)
	e.notes = &recorder{}
	e.ctrl.SetNotifier(e.notes)
}

func blitzSpec() Spec {
	return Spec{
		TimeByWhite: 5 * 60_000,
		TimeByBlack: 5 * 60_000,
		TimeByTurn:  match.Unlimited,
		MaxTurn:     -1,
		RankType:    match.Blitz,
		TurnMode:    match.AlternatelyFast,
	}
}

// seated creates a match by alice with alice white and bob black.
func (e *env) seated(t *testing.T) match.Match {
	t.Helper()
	ctx := context.Background()
	spec := blitzSpec()
	spec.Color = match.White
	m, err := e.ctrl.Create(ctx, e.alice, spec)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.ctrl.Enter(ctx, e.bob, m.ID); err != nil {
		t.Fatalf("enter: %v", err)
	}
	m, err = e.ctrl.Join(ctx, e.bob, m.ID, match.Black)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	return m
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name string
		edit func(s *Spec)
	}{
		{name: "bullet with turn limit", edit: func(s *Spec) {
			s.RankType = match.Bullet
			s.TimeByWhite, s.TimeByBlack = 60_000, 60_000
			s.TimeByTurn = 10_000
		}},
		{name: "bullet band with twenty minutes", edit: func(s *Spec) {
			s.RankType = match.Bullet
			s.TimeByWhite, s.TimeByBlack = 20*60_000, 20*60_000
		}},
		{name: "ranked without clock", edit: func(s *Spec) {
			s.TimeByWhite, s.TimeByBlack = match.Unlimited, match.Unlimited
		}},
		{name: "long is disabled", edit: func(s *Spec) {
			s.RankType = match.Long
			s.TimeByWhite, s.TimeByBlack = 90*60_000, 90*60_000
		}},
		{name: "unequal clocks", edit: func(s *Spec) { s.TimeByBlack = 4 * 60_000 }},
		{name: "zero clock", edit: func(s *Spec) {
			s.RankType = match.Unranked
			s.TimeByWhite, s.TimeByBlack = 0, 0
		}},
		{name: "short turn limit", edit: func(s *Spec) { s.MaxTurn = 4 }},
		{name: "alternating blitz", edit: func(s *Spec) { s.TurnMode = match.Alternately }},
		{name: "broken position", edit: func(s *Spec) { s.FEN = "8/8/8/8/8/8/8/8 w - - 0 1" }},
		{name: "stake above balance", edit: func(s *Spec) { s.Sponsored = 501 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, nil)
			spec := blitzSpec()
			tt.edit(&spec)
			if _, err := e.ctrl.Create(context.Background(), e.alice, spec); !errors.Is(err, match.ErrDenied) {
				t.Fatalf("err = %v, want ErrDenied", err)
			}
			if n := len(e.ctrl.List()); n != 0 {
				t.Fatalf("%d matches registered after rejection", n)
			}
		})
	}
}

func TestCreateForcesCustomPositionUnranked(t *testing.T) {
	e := newEnv(t, nil)
	spec := blitzSpec()
	spec.FEN = "4k3/8/8/8/8/8/4P3/4K3 w - - 0 1"
	m, err := e.ctrl.Create(context.Background(), e.alice, spec)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.RankType != match.Unranked {
		t.Fatalf("rankType = %s, want UNRANKED", m.RankType)
	}
}

func TestCreateDebitsStakeAndEntersCreator(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	spec := blitzSpec()
	spec.Sponsored = 200
	m, err := e.ctrl.Create(ctx, e.alice, spec)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	alice, _ := e.accounts.Get(ctx, e.alice)
	if alice.Coins != 300 {
		t.Fatalf("coins = %d, want 300", alice.Coins)
	}
	if !m.IsEntered(e.alice) || len(m.Chat) != 1 || m.Chat[0].Author != match.SystemAuthor {
		t.Fatalf("creator not entered: %+v", m)
	}
	if m.WhiteID != match.Unassigned || m.BlackID != match.Unassigned {
		t.Fatal("creator seated without a color")
	}
	if _, ok := e.store.matches[m.ID]; !ok {
		t.Fatal("match not persisted")
	}
	if e.notes.lists == 0 {
		t.Fatal("no list push after create")
	}
}

func TestCreateRespectsGlobalCap(t *testing.T) {
	e := newEnv(t, func(cfg *Config) { cfg.MaxLiveMatches = 1 })
	ctx := context.Background()
	if _, err := e.ctrl.Create(ctx, e.alice, blitzSpec()); err != nil {
		t.Fatal(err)
	}
	if _, err := e.ctrl.Create(ctx, e.bob, blitzSpec()); !errors.Is(err, match.ErrDenied) {
		t.Fatalf("err = %v, want ErrDenied", err)
	}
}

func TestEnterExitAreIdempotent(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	m, _ := e.ctrl.Create(ctx, e.alice, blitzSpec())
	for i := 0; i < 2; i++ {
		if _, err := e.ctrl.Enter(ctx, e.bob, m.ID); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := e.ctrl.Get(m.ID)
	if len(got.Entered) != 2 || len(got.Chat) != 2 {
		t.Fatalf("entered = %v, chat lines = %d", got.Entered, len(got.Chat))
	}
	for i := 0; i < 2; i++ {
		if _, err := e.ctrl.Exit(ctx, e.bob, m.ID); err != nil {
			t.Fatal(err)
		}
	}
	got, _ = e.ctrl.Get(m.ID)
	if got.IsEntered(e.bob) || !got.IsEntered(e.alice) {
		t.Fatalf("entered = %v", got.Entered)
	}
}

func TestJoinRules(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	spec := blitzSpec()
	spec.Color = match.White
	m, _ := e.ctrl.Create(ctx, e.alice, spec)

	if _, err := e.ctrl.Join(ctx, e.bob, m.ID, match.Black); !errors.Is(err, match.ErrDenied) {
		t.Fatalf("join without entering: %v", err)
	}
	e.ctrl.Enter(ctx, e.bob, m.ID)
	if _, err := e.ctrl.Join(ctx, e.bob, m.ID, match.White); !errors.Is(err, match.ErrDenied) {
		t.Fatalf("join taken seat: %v", err)
	}
	if _, err := e.ctrl.Join(ctx, e.bob, m.ID, match.Black); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := e.ctrl.RequestStart(ctx, e.alice, m.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	e.ctrl.Enter(ctx, e.carol, m.ID)
	if _, err := e.ctrl.Disjoin(ctx, e.bob, m.ID); !errors.Is(err, match.ErrDenied) {
		t.Fatalf("disjoin after start: %v", err)
	}
	if _, err := e.ctrl.Join(ctx, e.carol, m.ID, match.Black); !errors.Is(err, match.ErrDenied) {
		t.Fatalf("join after start: %v", err)
	}
	got, _ := e.ctrl.Get(m.ID)
	if got.WhiteID != e.alice || got.BlackID != e.bob {
		t.Fatalf("seats = %d/%d", got.WhiteID, got.BlackID)
	}
}

func TestJoinRandomColor(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	spec := blitzSpec()
	spec.RandomColor = true
	m, _ := e.ctrl.Create(ctx, e.alice, spec)
	e.ctrl.Enter(ctx, e.bob, m.ID)
	e.ctrl.Enter(ctx, e.carol, m.ID)

	if _, err := e.ctrl.Join(ctx, e.alice, m.ID, ""); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := e.ctrl.Join(ctx, e.bob, m.ID, match.White); err != nil {
		t.Fatalf("join: %v", err)
	}
	got, _ := e.ctrl.Get(m.ID)
	if !got.SeatsFilled() || got.WhiteID == got.BlackID {
		t.Fatalf("seats = %d/%d", got.WhiteID, got.BlackID)
	}
	if _, err := e.ctrl.Join(ctx, e.carol, m.ID, ""); !errors.Is(err, match.ErrDenied) {
		t.Fatalf("join full match: %v", err)
	}
}

func TestDisjoinFreesSeat(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	m := e.seated(t)
	got, err := e.ctrl.Disjoin(ctx, e.bob, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.BlackID != match.Unassigned {
		t.Fatalf("black = %d", got.BlackID)
	}
	if _, err := e.ctrl.Disjoin(ctx, e.bob, m.ID); !errors.Is(err, match.ErrDenied) {
		t.Fatalf("second disjoin: %v", err)
	}
}

func TestRequestStartPermissions(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	m := e.seated(t)
	if _, err := e.ctrl.RequestStart(ctx, e.bob, m.ID); !errors.Is(err, match.ErrDenied) {
		t.Fatalf("start by player: %v", err)
	}
	got, err := e.ctrl.RequestStart(ctx, e.admin, m.ID)
	if err != nil {
		t.Fatalf("start by admin: %v", err)
	}
	if !got.Started {
		t.Fatal("not started")
	}

	pending, _ := e.ctrl.Create(ctx, e.carol, blitzSpec())
	if _, err := e.ctrl.RequestStart(ctx, e.carol, pending.ID); !errors.Is(err, match.ErrDenied) {
		t.Fatalf("start with empty seats: %v", err)
	}
}

func TestRemove(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	spec := blitzSpec()
	spec.Sponsored = 100
	m, _ := e.ctrl.Create(ctx, e.alice, spec)

	if err := e.ctrl.Remove(ctx, e.bob, m.ID); !errors.Is(err, match.ErrDenied) {
		t.Fatalf("remove by stranger: %v", err)
	}
	if err := e.ctrl.Remove(ctx, e.alice, m.ID); err != nil {
		t.Fatalf("remove by creator: %v", err)
	}
	if n := len(e.ctrl.List()); n != 0 {
		t.Fatalf("%d matches listed after removal", n)
	}
	if _, err := e.ctrl.Get(m.ID); !errors.Is(err, match.ErrNotFound) {
		t.Fatalf("get removed: %v", err)
	}
	if _, ok := e.store.matches[m.ID]; ok {
		t.Fatal("removed match still stored")
	}
	alice, _ := e.accounts.Get(ctx, e.alice)
	if alice.Coins != 500 {
		t.Fatalf("stake not refunded: coins = %d", alice.Coins)
	}
}

func TestRemoveStartedNeedsAdmin(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	m := e.seated(t)
	e.ctrl.RequestStart(ctx, e.alice, m.ID)
	if err := e.ctrl.Remove(ctx, e.alice, m.ID); !errors.Is(err, match.ErrDenied) {
		t.Fatalf("creator removed started match: %v", err)
	}
	if err := e.ctrl.Remove(ctx, e.admin, m.ID); err != nil {
		t.Fatalf("admin remove: %v", err)
	}
}

func TestTickAllFlagsAndSweeps(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	m := e.seated(t)
	e.ctrl.RequestStart(ctx, e.alice, m.ID)
	abandoned, _ := e.ctrl.Create(ctx, e.carol, blitzSpec())
	e.ctrl.Exit(ctx, e.carol, abandoned.ID)

	e.clock.Advance(time.Minute)
	e.notes.updates = nil
	e.ctrl.TickAll(ctx)
	got, _ := e.ctrl.Get(m.ID)
	if got.TimeByWhite != 4*60_000 {
		t.Fatalf("timeByWhite = %d", got.TimeByWhite)
	}
	if len(e.notes.updates) != 1 || e.notes.updates[0].ID != m.ID {
		t.Fatalf("tick pushes = %d", len(e.notes.updates))
	}

	e.clock.Advance(4 * time.Minute)
	e.ctrl.TickAll(ctx)
	if _, err := e.ctrl.Get(abandoned.ID); !errors.Is(err, match.ErrNotFound) {
		t.Fatalf("abandoned match kept: %v", err)
	}
	got, _ = e.ctrl.Get(m.ID)
	if got.Result != match.BlackVictory {
		t.Fatalf("result = %s, want white flagged", got.Result)
	}
	if stored := e.store.matches[m.ID]; stored.Result != match.BlackVictory {
		t.Fatal("finished match not persisted")
	}

	e.clock.Advance(9 * time.Minute)
	e.ctrl.TickAll(ctx)
	if _, err := e.ctrl.Get(m.ID); err != nil {
		t.Fatal("finished match swept before grace window")
	}
	e.clock.Advance(time.Minute)
	e.ctrl.TickAll(ctx)
	if _, err := e.ctrl.Get(m.ID); !errors.Is(err, match.ErrNotFound) {
		t.Fatal("finished match kept after grace window")
	}
}

func TestMoveThroughController(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	m := e.seated(t)
	e.ctrl.RequestStart(ctx, e.alice, m.ID)
	if _, err := e.ctrl.Move(ctx, e.bob, m.ID, "e7e5"); !errors.Is(err, match.ErrDenied) {
		t.Fatalf("out of turn: %v", err)
	}
	got, err := e.ctrl.Move(ctx, e.alice, m.ID, "e2e4")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Moves) != 1 || e.store.matches[m.ID].FEN != got.FEN {
		t.Fatal("move not applied and persisted")
	}
	got, err = e.ctrl.Resign(ctx, e.bob, m.ID)
	if err != nil || got.Result != match.WhiteVictory {
		t.Fatalf("resign: %v %s", err, got.Result)
	}
}

func TestSay(t *testing.T) {
	e := newEnv(t, func(cfg *Config) { cfg.ChatLimit = 2 })
	ctx := context.Background()
	m, _ := e.ctrl.Create(ctx, e.alice, blitzSpec())
	if _, err := e.ctrl.Say(ctx, e.bob, m.ID, "hi"); !errors.Is(err, match.ErrDenied) {
		t.Fatalf("chat without entering: %v", err)
	}
	if _, err := e.ctrl.Say(ctx, e.alice, m.ID, "   "); !errors.Is(err, match.ErrIncorrectData) {
		t.Fatalf("empty chat: %v", err)
	}
	e.ctrl.Say(ctx, e.alice, m.ID, "one")
	got, _ := e.ctrl.Say(ctx, e.alice, m.ID, "two")
	if len(got.Chat) != 2 || got.Chat[0].Text != "one" || got.Chat[1].Text != "two" {
		t.Fatalf("chat = %+v", got.Chat)
	}
}

func TestLoadResumesSequence(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	e.store.matches[41] = match.Match{ID: 41, WhiteID: match.Unassigned, BlackID: match.Unassigned, Result: match.NoResult, FEN: rules.StartFEN, FinishTime: -1}
	if err := e.ctrl.Load(ctx); err != nil {
		t.Fatal(err)
	}
	m, err := e.ctrl.Create(ctx, e.alice, blitzSpec())
	if err != nil {
		t.Fatal(err)
	}
	if m.ID != 42 {
		t.Fatalf("id = %d, want 42", m.ID)
	}
}

func TestStoredResultNeverGoesBack(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	spec := blitzSpec()
	spec.Color = match.White
	spec.Sponsored = 100
	m, err := e.ctrl.Create(ctx, e.alice, spec)
	if err != nil {
		t.Fatal(err)
	}
	e.ctrl.Enter(ctx, e.bob, m.ID)
	e.ctrl.Join(ctx, e.bob, m.ID, match.Black)
	if _, err := e.ctrl.RequestStart(ctx, e.alice, m.ID); err != nil {
		t.Fatal(err)
	}
	e.clock.Advance(5 * time.Minute)

	// The tick that flags white runs while the chat save is still in flight.
	var once sync.Once
	ticked := make(chan struct{})
	e.store.mu.Lock()
	e.store.onSave = func(match.Match) {
		once.Do(func() {
			go func() {
				e.ctrl.TickAll(ctx)
				close(ticked)
			}()
			time.Sleep(20 * time.Millisecond)
		})
	}
	e.store.mu.Unlock()
	if _, err := e.ctrl.Say(ctx, e.alice, m.ID, "good luck"); err != nil {
		t.Fatal(err)
	}
	<-ticked

	stored, _ := e.store.get(m.ID)
	if stored.Result != match.BlackVictory {
		t.Fatalf("stored result = %s, want %s", stored.Result, match.BlackVictory)
	}
	bob, _ := e.accounts.Get(ctx, e.bob)
	if bob.Coins != 600 {
		t.Fatalf("bob coins = %d, want 600", bob.Coins)
	}

	e.store.mu.Lock()
	e.store.onSave = nil
	e.store.mu.Unlock()
	e.restart(t)
	if err := e.ctrl.Load(ctx); err != nil {
		t.Fatal(err)
	}
	e.clock.Advance(time.Minute)
	e.ctrl.TickAll(ctx)
	bob, _ = e.accounts.Get(ctx, e.bob)
	if bob.Coins != 600 {
		t.Fatalf("bob coins after restart = %d, want 600", bob.Coins)
	}
}

func TestLoadClearsEnteredSets(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	m, _ := e.ctrl.Create(ctx, e.alice, blitzSpec())

	e.restart(t)
	if err := e.ctrl.Load(ctx); err != nil {
		t.Fatal(err)
	}
	got, err := e.ctrl.Get(m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Entered) != 0 || !got.Idle() {
		t.Fatalf("entered after restart = %v", got.Entered)
	}
	if stored, _ := e.store.get(m.ID); len(stored.Entered) != 0 {
		t.Fatalf("stored entered = %v", stored.Entered)
	}

	e.clock.Advance(e.cfg.AbandonedGrace)
	e.ctrl.TickAll(ctx)
	if _, err := e.ctrl.Get(m.ID); !errors.Is(err, match.ErrNotFound) {
		t.Fatalf("reloaded idle match kept: %v", err)
	}
}

func TestIdleGraceStartsWhenMatchEmpties(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	m, _ := e.ctrl.Create(ctx, e.alice, blitzSpec())
	if m.IdleSince != -1 {
		t.Fatalf("idleSince = %d for an occupied match", m.IdleSince)
	}

	e.clock.Advance(20 * time.Minute)
	got, _ := e.ctrl.Exit(ctx, e.alice, m.ID)
	if got.IdleSince != e.clock.Now().UnixMilli() {
		t.Fatalf("idleSince = %d, want the exit time", got.IdleSince)
	}
	e.clock.Advance(time.Second)
	e.ctrl.TickAll(ctx)
	if _, err := e.ctrl.Get(m.ID); err != nil {
		t.Fatalf("match swept a second after emptying: %v", err)
	}

	// Coming back resets the window.
	e.clock.Advance(4 * time.Minute)
	e.ctrl.Enter(ctx, e.bob, m.ID)
	e.ctrl.Exit(ctx, e.bob, m.ID)
	e.clock.Advance(e.cfg.AbandonedGrace - time.Second)
	e.ctrl.TickAll(ctx)
	if _, err := e.ctrl.Get(m.ID); err != nil {
		t.Fatalf("match swept before a full idle window: %v", err)
	}
	e.clock.Advance(time.Second)
	e.ctrl.TickAll(ctx)
	if _, err := e.ctrl.Get(m.ID); !errors.Is(err, match.ErrNotFound) {
		t.Fatalf("idle match kept: %v", err)
	}
	if len(e.notes.removed) != 1 || e.notes.removed[0] != m.ID {
		t.Fatalf("removal notices = %v", e.notes.removed)
	}
}

func TestRemoveRacingStart(t *testing.T) {
	for i := 0; i < 50; i++ {
		e := newEnv(t, nil)
		ctx := context.Background()
		spec := blitzSpec()
		spec.Color = match.White
		spec.Sponsored = 100
		m, _ := e.ctrl.Create(ctx, e.alice, spec)
		e.ctrl.Enter(ctx, e.bob, m.ID)
		e.ctrl.Join(ctx, e.bob, m.ID, match.Black)

		var wg sync.WaitGroup
		var startErr, removeErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, startErr = e.ctrl.RequestStart(ctx, e.alice, m.ID)
		}()
		go func() {
			defer wg.Done()
			removeErr = e.ctrl.Remove(ctx, e.alice, m.ID)
		}()
		wg.Wait()

		if startErr == nil && removeErr == nil {
			t.Fatal("a started match was removed by its creator")
		}
		alice, _ := e.accounts.Get(ctx, e.alice)
		if removeErr == nil && alice.Coins != 500 {
			t.Fatalf("removed match not refunded: coins = %d", alice.Coins)
		}
		if startErr == nil && alice.Coins != 400 {
			t.Fatalf("running match refunded: coins = %d", alice.Coins)
		}
	}
}
