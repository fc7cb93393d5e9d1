// Package lobby is the policy gate around live matches: creation, seats,
// presence, start and removal, plus the periodic tick over every match.
package lobby

import (
	"cmp"
	"context"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/elmerdema/chessgame/internal/match"
)

type Config struct {
	MaxLiveMatches int
	TickPeriod     time.Duration
	FinishedGrace  time.Duration
	AbandonedGrace time.Duration
	ChatLimit      int
}

func DefaultConfig() Config {
	return Config{
		MaxLiveMatches: 500,
		TickPeriod:     700 * time.Millisecond,
		FinishedGrace:  10 * time.Minute,
		AbandonedGrace: 5 * time.Minute,
		ChatLimit:      200,
	}
}

// MatchStore persists match snapshots.
type MatchStore interface {
	SaveMatch(ctx context.Context, m match.Match) error
	DeleteMatch(ctx context.Context, id int64) error
	Matches(ctx context.Context) ([]match.Match, error)
}

// Notifier receives push triggers. MatchUpdated goes to the match's entered
// sessions, ListChanged to everyone. MatchRemoved follows every eviction.
type Notifier interface {
	MatchUpdated(m match.Match)
	ListChanged()
	MatchRemoved(id int64)
}

type Controller struct {
	cfg   Config
	deps  match.Deps
	store MatchStore

	notifyMu sync.RWMutex
	notifier Notifier

	mu      sync.RWMutex
	engines map[int64]*match.Engine
	nextID  int64
}

func New(cfg Config, deps match.Deps, store MatchStore) *Controller {
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = DefaultConfig().TickPeriod
	}
	if store != nil {
		deps.Store = store
	}
	return &Controller{
		cfg:     cfg,
		deps:    deps,
		store:   store,
		engines: make(map[int64]*match.Engine),
		nextID:  1,
	}
}

// SetNotifier installs the push target. The gateway is built after the
// controller, so this is not a constructor argument.
func (c *Controller) SetNotifier(n Notifier) {
	c.notifyMu.Lock()
	c.notifier = n
	c.notifyMu.Unlock()
}

func (c *Controller) matchUpdated(m match.Match) {
	c.notifyMu.RLock()
	n := c.notifier
	c.notifyMu.RUnlock()
	if n != nil {
		n.MatchUpdated(m)
	}
}

func (c *Controller) matchRemoved(id int64) {
	c.notifyMu.RLock()
	n := c.notifier
	c.notifyMu.RUnlock()
	if n != nil {
		n.MatchRemoved(id)
	}
}

func (c *Controller) listChanged() {
	c.notifyMu.RLock()
	n := c.notifier
	c.notifyMu.RUnlock()
	if n != nil {
		n.ListChanged()
	}
}

func (c *Controller) now() time.Time {
	if c.deps.Now == nil {
		return time.Now()
	}
	return c.deps.Now()
}

// Load registers every stored match and resumes the id sequence after the
// highest stored id. No session outlives a restart, so entered sets start
// empty and idle matches get a fresh grace window.
func (c *Controller) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	stored, err := c.store.Matches(ctx)
	if err != nil {
		return fmt.Errorf("load matches: %w", err)
	}
	now := c.now()
	for _, m := range stored {
		m.Entered = []int64{}
		m.IdleSince = -1
		m.TouchIdle(now)
		e := match.NewEngine(m, c.deps)
		if err := c.register(e); err != nil {
			log.Printf("[lobby] DEFECT: %v", err)
			continue
		}
		e.Persist(ctx)
		c.mu.Lock()
		if m.ID >= c.nextID {
			c.nextID = m.ID + 1
		}
		c.mu.Unlock()
	}
	log.Printf("[lobby] loaded %d matches", len(stored))
	return nil
}

func (c *Controller) register(e *match.Engine) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.engines[e.ID()]; ok {
		return fmt.Errorf("%w: engine for match %d already registered", match.ErrSecurityBreach, e.ID())
	}
	c.engines[e.ID()] = e
	return nil
}

func (c *Controller) engine(id int64) (*match.Engine, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.engines[id]
	if !ok {
		return nil, fmt.Errorf("%w: match %d", match.ErrNotFound, id)
	}
	return e, nil
}

// live copies the registry so callers never hold the registry lock while
// taking a match lock.
func (c *Controller) live() []*match.Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*match.Engine, 0, len(c.engines))
	for _, e := range c.engines {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *match.Engine) int {
		return cmp.Compare(a.ID(), b.ID())
	})
	return out
}

// Get returns a snapshot of one live match.
func (c *Controller) Get(id int64) (match.Match, error) {
	e, err := c.engine(id)
	if err != nil {
		return match.Match{}, err
	}
	return e.Snapshot(), nil
}

// List returns snapshots of every live match ordered by id.
func (c *Controller) List() []match.Match {
	engines := c.live()
	out := make([]match.Match, 0, len(engines))
	for _, e := range engines {
		out = append(out, e.Snapshot())
	}
	return out
}

// changed persists and pushes a snapshot after a lifecycle change.
func (c *Controller) changed(ctx context.Context, e *match.Engine) match.Match {
	m := e.Persist(ctx)
	c.matchUpdated(m)
	c.listChanged()
	return m
}

// evict closes a match once check accepts its state under the match lock,
// then deregisters and deletes it, refunding the stake to the creator when
// the match never settled.
func (c *Controller) evict(ctx context.Context, e *match.Engine, check func(m *match.Match) error) (match.Match, error) {
	final, err := e.Close(check)
	if err != nil {
		return match.Match{}, err
	}
	c.mu.Lock()
	if c.engines[e.ID()] == e {
		delete(c.engines, e.ID())
	}
	c.mu.Unlock()

	if final.Result == match.NoResult && final.Sponsored > 0 {
		if err := c.credit(ctx, final.CreatorID, final.Sponsored); err != nil {
			log.Printf("[lobby] DEFECT: refund of match %d to %d failed: %v", final.ID, final.CreatorID, err)
		}
	}
	if c.store != nil {
		if err := c.store.DeleteMatch(ctx, final.ID); err != nil {
			log.Printf("[lobby] delete match %d: %v", final.ID, err)
		}
	}
	c.matchRemoved(final.ID)
	return final, nil
}

func (c *Controller) credit(ctx context.Context, id, amount int64) error {
	unlock := c.deps.Ledger.Lock(id)
	defer unlock()
	a, err := c.deps.Accounts.Get(ctx, id)
	if err != nil {
		return err
	}
	a.Coins += amount
	return c.deps.Accounts.Save(ctx, a)
}
