// Package gateway maps wire requests from connected sessions onto lobby
// operations and fans server pushes out to the sessions that must see them.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/elmerdema/chessgame/internal/account"
	"github.com/elmerdema/chessgame/internal/auth"
	"github.com/elmerdema/chessgame/internal/lobby"
	"github.com/elmerdema/chessgame/internal/match"
)

// Lobby is the set of lifecycle operations the gateway dispatches to.
type Lobby interface {
	Create(ctx context.Context, creator int64, spec lobby.Spec) (match.Match, error)
	Get(id int64) (match.Match, error)
	List() []match.Match
	Enter(ctx context.Context, accountID, id int64) (match.Match, error)
	Exit(ctx context.Context, accountID, id int64) (match.Match, error)
	Join(ctx context.Context, accountID, id int64, color match.Color) (match.Match, error)
	Disjoin(ctx context.Context, accountID, id int64) (match.Match, error)
	RequestStart(ctx context.Context, accountID, id int64) (match.Match, error)
	Remove(ctx context.Context, accountID, id int64) error
	Move(ctx context.Context, accountID, id int64, uci string) (match.Match, error)
	Resign(ctx context.Context, accountID, id int64) (match.Match, error)
	Say(ctx context.Context, accountID, id int64, text string) (match.Match, error)
}

type Config struct {
	InitialCoins  int64
	InitialRating int
	ChatHistory   int
}

const (
	minNameLength     = 5
	maxNameLength     = 32
	minPasswordLength = 5
)

type Gateway struct {
	cfg      Config
	lobby    Lobby
	accounts account.Store
	avatars  account.AvatarStore
	tokens   *auth.Tokens

	sessions *Sessions
	presence *Presence
	chat     *mainChat
	now      func() time.Time
}

func New(cfg Config, l Lobby, accounts account.Store, avatars account.AvatarStore, tokens *auth.Tokens) *Gateway {
	return &Gateway{
		cfg:      cfg,
		lobby:    l,
		accounts: accounts,
		avatars:  avatars,
		tokens:   tokens,
		sessions: NewSessions(),
		presence: NewPresence(),
		chat:     newMainChat(cfg.ChatHistory),
		now:      time.Now,
	}
}

func (g *Gateway) Sessions() *Sessions { return g.sessions }

func (g *Gateway) Presence() *Presence { return g.presence }

// Connect registers a new anonymous session on conn.
func (g *Gateway) Connect(conn Conn) *Session {
	s := NewSession(conn)
	g.sessions.add(s)
	log.Printf("[gateway] session %s connected (%d live)", s.ID, g.sessions.Len())
	return s
}

// Disconnect deregisters s and exits the account from every match this was
// its last session in. Safe to call more than once.
func (g *Gateway) Disconnect(s *Session) {
	if !g.sessions.remove(s) {
		return
	}
	if acc, ok := s.Account(); ok {
		g.leaveAll(context.Background(), acc, s)
	}
	s.conn.Close()
	log.Printf("[gateway] session %s disconnected", s.ID)
}

func (g *Gateway) leaveAll(ctx context.Context, acc int64, s *Session) {
	g.presence.DropSession(acc, s.ID, func(id int64) {
		if _, err := g.lobby.Exit(ctx, acc, id); err != nil && !errors.Is(err, match.ErrNotFound) {
			log.Printf("[gateway] exit account %d from match %d: %v", acc, id, err)
		}
	})
}

// Bind attaches an account to s. A session switching accounts first
// leaves everything the previous account entered through it.
func (g *Gateway) Bind(ctx context.Context, s *Session, accountID int64) (account.Account, error) {
	acc, err := g.accounts.Get(ctx, accountID)
	if err != nil {
		return account.Account{}, err
	}
	if prev := s.bind(acc.ID); prev != match.Unassigned && prev != acc.ID {
		g.leaveAll(ctx, prev, s)
	}
	return acc, nil
}

// Audience selects push recipients by account id. Anonymous sessions are
// offered match.Unassigned.
type Audience func(accountID int64) bool

func Everyone(int64) bool { return true }

// Push sends r to every session whose account satisfies to. A failed send
// drops that session.
func (g *Gateway) Push(to Audience, r Reply) {
	for _, s := range g.sessions.snapshot() {
		acc, _ := s.Account()
		if !to(acc) {
			continue
		}
		if err := s.send(r); err != nil {
			log.Printf("[gateway] push %s to %s: %v", r.Route, s.ID, err)
			go g.Disconnect(s)
		}
	}
}

// MatchUpdated pushes the snapshot to the accounts entered in m.
func (g *Gateway) MatchUpdated(m match.Match) {
	g.Push(func(acc int64) bool { return m.IsEntered(acc) }, update(RouteGame, m))
}

// MatchRemoved forgets every session's presence in a deleted match.
func (g *Gateway) MatchRemoved(id int64) {
	g.presence.ForgetMatch(id)
}

// ListChanged pushes the live match list to every session.
func (g *Gateway) ListChanged() {
	g.Push(Everyone, update(RouteGames, g.lobby.List()))
}

// Dispatch decodes and runs one textual request from s.
func (g *Gateway) Dispatch(ctx context.Context, s *Session, raw []byte) Reply {
	if !g.sessions.registered(s) {
		return reply("", StatusSocketNotFound)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return reply("", StatusIncorrectData)
	}
	req, err := Decode(env)
	if err != nil {
		return reply(Route(env.Route), statusOf(Route(env.Route), err))
	}
	acc, ok := s.Account()
	if req.NeedsAccount() && !ok {
		return reply(req.Route(), StatusDenied)
	}
	result, err := g.handle(ctx, s, acc, req)
	if err != nil {
		return reply(req.Route(), statusOf(req.Route(), err))
	}
	if result == nil {
		return reply(req.Route(), StatusDone)
	}
	return withResult(req.Route(), StatusDone, result)
}

type loginResult struct {
	Account account.Account `json:"account"`
	Token   string          `json:"token"`
}

func (g *Gateway) handle(ctx context.Context, s *Session, acc int64, req Request) (any, error) {
	switch req := req.(type) {
	case RegisterRequest:
		return g.register(ctx, req.Name, req.Password)

	case LoginRequest:
		found, err := g.accounts.ByName(ctx, req.Name)
		if errors.Is(err, account.ErrNotFound) || (err == nil && !auth.CheckPasswordHash(req.Password, found.PasswordHash)) {
			return nil, fmt.Errorf("%w: invalid name or password", auth.ErrUnauthorized)
		}
		if err != nil {
			return nil, err
		}
		return g.login(ctx, s, found.ID)

	case AuthRequest:
		id, err := g.tokens.Verify(req.Token)
		if err != nil {
			return nil, err
		}
		return g.login(ctx, s, id)

	case LogoutRequest:
		if prev := s.bind(match.Unassigned); prev != match.Unassigned {
			g.leaveAll(ctx, prev, s)
		}
		return nil, nil

	case AccountRequest:
		return g.accounts.Get(ctx, req.ID)

	case GamesRequest:
		return g.lobby.List(), nil

	case GameRequest:
		return g.lobby.Get(req.ID)

	case CreateRequest:
		m, err := g.lobby.Create(ctx, acc, req.Spec)
		if err != nil {
			return nil, err
		}
		// The creator is entered by Create itself.
		g.presence.Record(acc, m.ID, s.ID)
		return m, nil

	case EnterRequest:
		var m match.Match
		err := g.presence.Enter(acc, req.ID, s.ID, func() (err error) {
			m, err = g.lobby.Enter(ctx, acc, req.ID)
			return err
		})
		return m, err

	case ExitRequest:
		err := g.presence.Leave(acc, req.ID, s.ID, func() error {
			_, err := g.lobby.Exit(ctx, acc, req.ID)
			return err
		})
		if err != nil {
			return nil, err
		}
		return g.lobby.Get(req.ID)

	case JoinRequest:
		return g.lobby.Join(ctx, acc, req.ID, req.Color)

	case DisjoinRequest:
		return g.lobby.Disjoin(ctx, acc, req.ID)

	case StartRequest:
		return g.lobby.RequestStart(ctx, acc, req.ID)

	case RemoveRequest:
		return nil, g.lobby.Remove(ctx, acc, req.ID)

	case MoveRequest:
		return g.lobby.Move(ctx, acc, req.ID, req.UCI)

	case ResignRequest:
		return g.lobby.Resign(ctx, acc, req.ID)

	case GameChatRequest:
		return g.lobby.Say(ctx, acc, req.ID, req.Text)

	case ChatSendRequest:
		author, err := g.accounts.Get(ctx, acc)
		if err != nil {
			return nil, err
		}
		line, err := g.chat.append(ChatLine{Author: acc, AuthorName: author.Name, Text: req.Text, Time: g.now().UnixMilli()})
		if err != nil {
			return nil, err
		}
		g.Push(Everyone, update(RouteChatSend, line))
		return line, nil

	case ChatListRequest:
		return g.chat.history(), nil
	}
	return nil, fmt.Errorf("%w: unhandled request %T", match.ErrSecurityBreach, req)
}

func (g *Gateway) register(ctx context.Context, name, password string) (account.Account, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < minNameLength || n > maxNameLength {
		return account.Account{}, fmt.Errorf("%w: name must be %d..%d characters", match.ErrIncorrectData, minNameLength, maxNameLength)
	}
	if len(password) < minPasswordLength {
		return account.Account{}, fmt.Errorf("%w: password must be at least %d characters", match.ErrIncorrectData, minPasswordLength)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return account.Account{}, fmt.Errorf("hash password: %w", err)
	}
	r := g.cfg.InitialRating
	acc, err := g.accounts.Create(ctx, account.Account{
		Name:         name,
		PasswordHash: hash,
		Coins:        g.cfg.InitialCoins,
		Bullet:       r,
		Blitz:        r,
		Rapid:        r,
		Long:         r,
		CreatedAt:    g.now().UnixMilli(),
	})
	if err != nil {
		return account.Account{}, err
	}
	log.Printf("[gateway] registered account %d %q", acc.ID, acc.Name)
	return acc, nil
}

// Register creates an account. It backs both the channel route and the
// HTTP endpoint.
func (g *Gateway) Register(ctx context.Context, name, password string) (account.Account, error) {
	return g.register(ctx, name, password)
}

func (g *Gateway) login(ctx context.Context, s *Session, id int64) (loginResult, error) {
	acc, err := g.Bind(ctx, s, id)
	if err != nil {
		return loginResult{}, err
	}
	token, err := g.tokens.Issue(acc.ID)
	if err != nil {
		return loginResult{}, err
	}
	return loginResult{Account: acc, Token: token}, nil
}
