package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/elmerdema/chessgame/internal/account"
	"github.com/elmerdema/chessgame/internal/match"
)

const accountColumns = `id, name, password_hash, coins, admin, bullet, blitz, rapid, long, created_at`

func (s *Store) Get(ctx context.Context, id int64) (account.Account, error) {
	return s.oneAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
}

func (s *Store) ByName(ctx context.Context, name string) (account.Account, error) {
	return s.oneAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE name = ?`, name)
}

func (s *Store) oneAccount(ctx context.Context, query string, arg any) (account.Account, error) {
	var a account.Account
	err := s.db.GetContext(ctx, &a, s.db.Rebind(query), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return account.Account{}, account.ErrNotFound
	}
	if err != nil {
		return account.Account{}, fmt.Errorf("load account: %w", err)
	}
	return a, nil
}

func (s *Store) Create(ctx context.Context, a account.Account) (account.Account, error) {
	query := s.db.Rebind(`INSERT INTO accounts
		(name, password_hash, coins, admin, bullet, blitz, rapid, long, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	err := s.db.QueryRowxContext(ctx, query,
		a.Name, a.PasswordHash, a.Coins, a.Admin, a.Bullet, a.Blitz, a.Rapid, a.Long, a.CreatedAt,
	).Scan(&a.ID)
	if isUniqueViolation(err) {
		return account.Account{}, account.ErrExists
	}
	if err != nil {
		return account.Account{}, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

func (s *Store) Save(ctx context.Context, a account.Account) error {
	res, err := s.db.NamedExecContext(ctx, `UPDATE accounts SET
		name = :name, password_hash = :password_hash, coins = :coins, admin = :admin,
		bullet = :bullet, blitz = :blitz, rapid = :rapid, long = :long
		WHERE id = :id`, a)
	if err != nil {
		return fmt.Errorf("save account %d: %w", a.ID, err)
	}
	return affected(res, account.ErrNotFound)
}

func (s *Store) PutAvatar(ctx context.Context, id int64, data []byte) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE accounts SET avatar = ? WHERE id = ?`), data, id)
	if err != nil {
		return fmt.Errorf("save avatar %d: %w", id, err)
	}
	return affected(res, account.ErrNotFound)
}

func (s *Store) Avatar(ctx context.Context, id int64) ([]byte, error) {
	var data []byte
	err := s.db.GetContext(ctx, &data, s.db.Rebind(`SELECT avatar FROM accounts WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && len(data) == 0) {
		return nil, account.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load avatar %d: %w", id, err)
	}
	return data, nil
}

func affected(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}

// LeaderboardEntry is one row of a band's rating table.
type LeaderboardEntry struct {
	ID     int64  `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Rating int    `json:"rating" db:"rating"`
}

var ratingColumns = map[match.RankType]string{
	match.Bullet: "bullet",
	match.Blitz:  "blitz",
	match.Rapid:  "rapid",
	match.Long:   "long",
}

// Leaderboard returns the best rated accounts of a band.
func (s *Store) Leaderboard(ctx context.Context, band match.RankType, limit int) ([]LeaderboardEntry, error) {
	column, ok := ratingColumns[band]
	if !ok {
		return nil, fmt.Errorf("%w: unknown rating band %q", match.ErrIncorrectData, band)
	}
	query := s.db.Rebind(`SELECT id, name, ` + column + ` AS rating FROM accounts
		ORDER BY ` + column + ` DESC, id ASC LIMIT ?`)
	entries := []LeaderboardEntry{}
	if err := s.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return entries, nil
}

var (
	_ account.Store       = (*Store)(nil)
	_ account.AvatarStore = (*Store)(nil)
)
