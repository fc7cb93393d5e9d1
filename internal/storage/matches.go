package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elmerdema/chessgame/internal/lobby"
	"github.com/elmerdema/chessgame/internal/match"
)

// SaveMatch upserts the snapshot as a JSON document.
func (s *Store) SaveMatch(ctx context.Context, m match.Match) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode match %d: %w", m.ID, err)
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO matches (id, doc, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`),
		m.ID, string(doc), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save match %d: %w", m.ID, err)
	}
	return nil
}

func (s *Store) DeleteMatch(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM matches WHERE id = ?`), id); err != nil {
		return fmt.Errorf("delete match %d: %w", id, err)
	}
	return nil
}

// Matches returns every stored snapshot ordered by id.
func (s *Store) Matches(ctx context.Context) ([]match.Match, error) {
	var docs []string
	if err := s.db.SelectContext(ctx, &docs, `SELECT doc FROM matches ORDER BY id`); err != nil {
		return nil, fmt.Errorf("load matches: %w", err)
	}
	out := make([]match.Match, 0, len(docs))
	for _, doc := range docs {
		var m match.Match
		if err := json.Unmarshal([]byte(doc), &m); err != nil {
			return nil, fmt.Errorf("decode match: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

var _ lobby.MatchStore = (*Store)(nil)
