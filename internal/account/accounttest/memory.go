// Package accounttest provides an in-memory account store for tests.
package accounttest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/elmerdema/chessgame/internal/account"
)

// MemoryStore is an in-process account.Store and account.AvatarStore.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]account.Account
	avatars map[int64][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:  1,
		byID:    make(map[int64]account.Account),
		avatars: make(map[int64][]byte),
	}
}

func (s *MemoryStore) Get(_ context.Context, id int64) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) ByName(_ context.Context, name string) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.byID {
		if a.Name == name {
			return a, nil
		}
	}
	return account.Account{}, account.ErrNotFound
}

func (s *MemoryStore) Create(_ context.Context, a account.Account) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.Name == a.Name {
			return account.Account{}, account.ErrExists
		}
	}
	a.ID = s.nextID
	s.nextID++
	if a.CreatedAt == 0 {
		a.CreatedAt = time.Now().UnixMilli()
	}
	s.byID[a.ID] = a
	return a, nil
}

func (s *MemoryStore) Save(_ context.Context, a account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[a.ID]; !ok {
		return account.ErrNotFound
	}
	s.byID[a.ID] = a
	return nil
}

func (s *MemoryStore) PutAvatar(_ context.Context, id int64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return account.ErrNotFound
	}
	s.avatars[id] = slices.Clone(data)
	return nil
}

func (s *MemoryStore) Avatar(_ context.Context, id int64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.avatars[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	return slices.Clone(data), nil
}

var (
	_ account.Store       = (*MemoryStore)(nil)
	_ account.AvatarStore = (*MemoryStore)(nil)
)
