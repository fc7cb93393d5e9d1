package account

import (
	"slices"
	"sync"
)

// Locks serializes read-modify-write cycles on account balances. Locking a
// set of ids always acquires them in ascending order.
type Locks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewLocks() *Locks {
	return &Locks{locks: make(map[int64]*sync.Mutex)}
}

// Lock acquires the locks for ids and returns the function releasing them.
// A nil *Locks locks nothing.
func (l *Locks) Lock(ids ...int64) (unlock func()) {
	if l == nil {
		return func() {}
	}
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	held := make([]*sync.Mutex, 0, len(ids))
	for _, id := range ids {
		l.mu.Lock()
		m, ok := l.locks[id]
		if !ok {
			m = &sync.Mutex{}
			l.locks[id] = m
		}
		l.mu.Unlock()
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
