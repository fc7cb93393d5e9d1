package gateway

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Presence tracks, per account and match, the sessions that entered the
// match. Every read-modify-act sequence for an account runs under that
// account's lock, so two sessions closing at once agree on which one was
// the last.
type Presence struct {
	mu      sync.Mutex
	entered map[int64]map[int64]map[uuid.UUID]struct{}
	locks   map[int64]*accountLock
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

func NewPresence() *Presence {
	return &Presence{
		entered: make(map[int64]map[int64]map[uuid.UUID]struct{}),
		locks:   make(map[int64]*accountLock),
	}
}

func (p *Presence) lock(acc int64) (unlock func()) {
	p.mu.Lock()
	l, ok := p.locks[acc]
	if !ok {
		l = &accountLock{}
		p.locks[acc] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(p.locks, acc)
		}
		p.mu.Unlock()
	}
}

func (p *Presence) add(acc, matchID int64, sess uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	byMatch, ok := p.entered[acc]
	if !ok {
		byMatch = make(map[int64]map[uuid.UUID]struct{})
		p.entered[acc] = byMatch
	}
	set, ok := byMatch[matchID]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		byMatch[matchID] = set
	}
	set[sess] = struct{}{}
}

// drop removes sess and reports how many sessions of acc remain in matchID.
func (p *Presence) drop(acc, matchID int64, sess uuid.UUID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	set := p.entered[acc][matchID]
	delete(set, sess)
	left := len(set)
	if left == 0 {
		delete(p.entered[acc], matchID)
		if len(p.entered[acc]) == 0 {
			delete(p.entered, acc)
		}
	}
	return left
}

func (p *Presence) matchesOf(acc int64, sess uuid.UUID) []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ids []int64
	for id, set := range p.entered[acc] {
		if _, ok := set[sess]; ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Enter runs act and, if it succeeds, records sess as present in matchID.
func (p *Presence) Enter(acc, matchID int64, sess uuid.UUID, act func() error) error {
	unlock := p.lock(acc)
	defer unlock()
	if err := act(); err != nil {
		return err
	}
	p.add(acc, matchID, sess)
	return nil
}

// Record marks sess present in matchID for an account the lobby already
// entered.
func (p *Presence) Record(acc, matchID int64, sess uuid.UUID) {
	unlock := p.lock(acc)
	defer unlock()
	p.add(acc, matchID, sess)
}

// Leave forgets sess in matchID and runs act only when no other session of
// the account remains there.
func (p *Presence) Leave(acc, matchID int64, sess uuid.UUID, act func() error) error {
	unlock := p.lock(acc)
	defer unlock()
	if p.drop(acc, matchID, sess) > 0 {
		return nil
	}
	return act()
}

// DropSession forgets sess everywhere and runs act for every match it was
// the account's last session in.
func (p *Presence) DropSession(acc int64, sess uuid.UUID, act func(matchID int64)) {
	unlock := p.lock(acc)
	defer unlock()
	for _, id := range p.matchesOf(acc, sess) {
		if p.drop(acc, id, sess) == 0 {
			act(id)
		}
	}
}

// Entered reports how many sessions of acc are present in matchID.
func (p *Presence) Entered(acc, matchID int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entered[acc][matchID])
}

// ForgetMatch drops every entry of a removed match.
func (p *Presence) ForgetMatch(matchID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for acc, byMatch := range p.entered {
		delete(byMatch, matchID)
		if len(byMatch) == 0 {
			delete(p.entered, acc)
		}
	}
}
