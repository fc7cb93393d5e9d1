package lobby

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/elmerdema/chessgame/internal/match"
)

var errNotExpired = errors.New("not expired")

// expired reports whether m is due for automatic removal at now.
func (c *Controller) expired(m *match.Match, now time.Time) bool {
	nowMs := now.UnixMilli()
	if m.Finished() {
		return nowMs-m.FinishTime >= c.cfg.FinishedGrace.Milliseconds()
	}
	if m.Idle() && m.IdleSince >= 0 {
		return nowMs-m.IdleSince >= c.cfg.AbandonedGrace.Milliseconds()
	}
	return false
}

// TickAll sweeps expired matches, then ticks every running match and pushes
// its snapshot.
func (c *Controller) TickAll(ctx context.Context) {
	now := c.now()
	listChanged := false

	var remaining []*match.Engine
	for _, e := range c.live() {
		final, err := c.evict(ctx, e, func(m *match.Match) error {
			if !c.expired(m, now) {
				return errNotExpired
			}
			return nil
		})
		switch {
		case errors.Is(err, errNotExpired):
			remaining = append(remaining, e)
		case err == nil:
			log.Printf("[lobby] match %d expired (result %s)", final.ID, final.Result)
			listChanged = true
		}
	}

	// A tick that finishes a match has already persisted it.
	for _, e := range remaining {
		if !e.Tick(ctx) {
			continue
		}
		m := e.Snapshot()
		if m.Finished() {
			listChanged = true
		}
		c.matchUpdated(m)
	}

	if listChanged {
		c.listChanged()
	}
}

// Run drives TickAll every TickPeriod until ctx is done. A tick that
// overruns the period delays the next one rather than overlapping it.
func (c *Controller) Run(ctx context.Context) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(c.cfg.TickPeriod),
		gocron.NewTask(func() { c.TickAll(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule tick: %w", err)
	}
	s.Start()
	log.Printf("[lobby] ticking every %s", c.cfg.TickPeriod)

	<-ctx.Done()
	return s.Shutdown()
}
