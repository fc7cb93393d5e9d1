// Package storage persists accounts, avatars and match snapshots in
// Postgres or SQLite.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const (
	Postgres = "postgres"
	SQLite   = "sqlite"
)

type Store struct {
	db     *sqlx.DB
	driver string
}

var schema = map[string][]string{
	Postgres: {
		`CREATE TABLE IF NOT EXISTS accounts (
			id            BIGSERIAL PRIMARY KEY,
			name          TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			coins         BIGINT NOT NULL DEFAULT 0,
			admin         BOOLEAN NOT NULL DEFAULT FALSE,
			bullet        INTEGER NOT NULL DEFAULT 0,
			blitz         INTEGER NOT NULL DEFAULT 0,
			rapid         INTEGER NOT NULL DEFAULT 0,
			long          INTEGER NOT NULL DEFAULT 0,
			created_at    BIGINT NOT NULL,
			avatar        BYTEA
		)`,
		`CREATE TABLE IF NOT EXISTS matches (
			id         BIGINT PRIMARY KEY,
			doc        TEXT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
	},
	SQLite: {
		`CREATE TABLE IF NOT EXISTS accounts (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			name          TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			coins         INTEGER NOT NULL DEFAULT 0,
			admin         INTEGER NOT NULL DEFAULT 0,
			bullet        INTEGER NOT NULL DEFAULT 0,
			blitz         INTEGER NOT NULL DEFAULT 0,
			rapid         INTEGER NOT NULL DEFAULT 0,
			long          INTEGER NOT NULL DEFAULT 0,
			created_at    INTEGER NOT NULL,
			avatar        BLOB
		)`,
		`CREATE TABLE IF NOT EXISTS matches (
			id         INTEGER PRIMARY KEY,
			doc        TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
	},
}

// Open connects to the database and creates missing tables.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	stmts, ok := schema[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == SQLite {
		// One connection keeps writers serialized and in-memory databases alive.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	log.Printf("[storage] connected to %s", driver)
	return &Store{db: db, driver: driver}, nil
}

func (s *Store) Close() {
	if err := s.db.Close(); err != nil {
		log.Println("[storage] error closing database:", err)
	}
}

// isUniqueViolation recognises duplicate keys from either driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}
