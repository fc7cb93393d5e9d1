package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/elmerdema/chessgame/internal/account"
	"github.com/elmerdema/chessgame/internal/match"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), SQLite, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", ""); err == nil {
		t.Fatal("expected an error")
	}
}

func TestAccounts(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	a, err := s.Create(ctx, account.Account{Name: "alice", PasswordHash: "h", Coins: 100, Blitz: 1200, CreatedAt: 1})
	if err != nil {
		t.Fatal(err)
	}
	if a.ID == 0 {
		t.Fatal("no id assigned")
	}
	if _, err := s.Create(ctx, account.Account{Name: "alice", PasswordHash: "h"}); !errors.Is(err, account.ErrExists) {
		t.Fatalf("duplicate name: %v", err)
	}

	a.Coins = 42
	a.Admin = true
	a.Blitz = 1216
	if err := s.Save(ctx, a); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != a {
		t.Fatalf("Get = %+v, want %+v", got, a)
	}
	if byName, err := s.ByName(ctx, "alice"); err != nil || byName.ID != a.ID {
		t.Fatalf("ByName = %+v, %v", byName, err)
	}

	if _, err := s.Get(ctx, 999); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("missing account: %v", err)
	}
	if err := s.Save(ctx, account.Account{ID: 999, Name: "ghost"}); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("save missing account: %v", err)
	}
}

func TestAvatars(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	a, err := s.Create(ctx, account.Account{Name: "alice", PasswordHash: "h"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Avatar(ctx, a.ID); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("no avatar yet: %v", err)
	}
	if err := s.PutAvatar(ctx, a.ID, []byte("png")); err != nil {
		t.Fatal(err)
	}
	if data, err := s.Avatar(ctx, a.ID); err != nil || string(data) != "png" {
		t.Fatalf("Avatar = %q, %v", data, err)
	}
	if err := s.PutAvatar(ctx, 999, []byte("png")); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("avatar for missing account: %v", err)
	}
}

func TestLeaderboard(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	for _, p := range []struct {
		name  string
		blitz int
	}{{"alice", 1300}, {"bobby", 1500}, {"carol", 1300}} {
		if _, err := s.Create(ctx, account.Account{Name: p.name, PasswordHash: "h", Blitz: p.blitz}); err != nil {
			t.Fatal(err)
		}
	}

	top, err := s.Leaderboard(ctx, match.Blitz, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 || top[0].Name != "bobby" || top[1].Name != "alice" || top[1].Rating != 1300 {
		t.Fatalf("leaderboard = %+v", top)
	}
	if _, err := s.Leaderboard(ctx, match.Unranked, 10); !errors.Is(err, match.ErrIncorrectData) {
		t.Fatalf("unranked band: %v", err)
	}
}

func TestMatches(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	m := match.Match{ID: 7, Name: "casual", WhiteID: 1, BlackID: match.Unassigned, Result: match.NoResult, FinishTime: -1}
	if err := s.SaveMatch(ctx, m); err != nil {
		t.Fatal(err)
	}
	m.Result = match.Drawn
	m.FinishTime = 99
	if err := s.SaveMatch(ctx, m); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveMatch(ctx, match.Match{ID: 3, Name: "other"}); err != nil {
		t.Fatal(err)
	}

	all, err := s.Matches(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].ID != 3 || all[1].Result != match.Drawn || all[1].FinishTime != 99 {
		t.Fatalf("Matches = %+v", all)
	}

	if err := s.DeleteMatch(ctx, 7); err != nil {
		t.Fatal(err)
	}
	all, _ = s.Matches(ctx)
	if len(all) != 1 || all[0].ID != 3 {
		t.Fatalf("after delete = %+v", all)
	}
}
