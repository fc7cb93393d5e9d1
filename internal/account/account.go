// Package account holds player accounts and the stores that keep them.
package account

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("account not found")
	ErrExists   = errors.New("account already exists")
)

// Account is a registered player. Ratings are kept per time band.
type Account struct {
	ID           int64  `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	PasswordHash string `json:"-" db:"password_hash"`
	Coins        int64  `json:"coins" db:"coins"`
	Admin        bool   `json:"admin" db:"admin"`
	Bullet       int    `json:"bullet" db:"bullet"`
	Blitz        int    `json:"blitz" db:"blitz"`
	Rapid        int    `json:"rapid" db:"rapid"`
	Long         int    `json:"long" db:"long"`
	CreatedAt    int64  `json:"createdAt" db:"created_at"`
}

// Rating returns a pointer to the rating kept for band, or nil for an
// unknown band.
func (a *Account) Rating(band string) *int {
	switch band {
	case "BULLET":
		return &a.Bullet
	case "BLITZ":
		return &a.Blitz
	case "RAPID":
		return &a.Rapid
	case "LONG":
		return &a.Long
	}
	return nil
}

// Store is the account persistence collaborator.
type Store interface {
	Get(ctx context.Context, id int64) (Account, error)
	ByName(ctx context.Context, name string) (Account, error)
	Create(ctx context.Context, a Account) (Account, error)
	Save(ctx context.Context, a Account) error
}

// AvatarStore keeps opaque avatar images per account.
type AvatarStore interface {
	PutAvatar(ctx context.Context, id int64, data []byte) error
	Avatar(ctx context.Context, id int64) ([]byte, error)
}
