package gateway

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/elmerdema/chessgame/internal/lobby"
	"github.com/elmerdema/chessgame/internal/match"
)

type Route string

const (
	RouteRegister Route = "/accounts/register"
	RouteLogin    Route = "/accounts/login"
	RouteAuth     Route = "/accounts/auth"
	RouteLogout   Route = "/accounts/logout"
	RouteAccount  Route = "/accounts/get"
	RouteGames    Route = "/games/list"
	RouteGame     Route = "/games/get"
	RouteCreate   Route = "/games/create"
	RouteEnter    Route = "/games/enter"
	RouteExit     Route = "/games/exit"
	RouteJoin     Route = "/games/join"
	RouteDisjoin  Route = "/games/disjoin"
	RouteStart    Route = "/games/start"
	RouteRemove   Route = "/games/remove"
	RouteMove     Route = "/games/move"
	RouteResign   Route = "/games/resign"
	RouteGameChat Route = "/games/chat"
	RouteChatSend Route = "/chat/send"
	RouteChatList Route = "/chat/list"
)

// Request is the closed set of decoded requests. Each kind carries its
// typed parameters.
type Request interface {
	Route() Route
	// NeedsAccount reports whether the session must be logged in.
	NeedsAccount() bool
}

type public struct{}

func (public) NeedsAccount() bool { return false }

type private struct{}

func (private) NeedsAccount() bool { return true }

type (
	RegisterRequest struct {
		public
		Name, Password string
	}
	LoginRequest struct {
		public
		Name, Password string
	}
	AuthRequest struct {
		public
		Token string
	}
	LogoutRequest  struct{ private }
	AccountRequest struct {
		public
		ID int64
	}
	GamesRequest struct{ public }
	GameRequest  struct {
		public
		ID int64
	}
	CreateRequest struct {
		private
		Spec lobby.Spec
	}
	EnterRequest struct {
		private
		ID int64
	}
	ExitRequest struct {
		private
		ID int64
	}
	JoinRequest struct {
		private
		ID    int64
		Color match.Color
	}
	DisjoinRequest struct {
		private
		ID int64
	}
	StartRequest struct {
		private
		ID int64
	}
	RemoveRequest struct {
		private
		ID int64
	}
	MoveRequest struct {
		private
		ID  int64
		UCI string
	}
	ResignRequest struct {
		private
		ID int64
	}
	GameChatRequest struct {
		private
		ID   int64
		Text string
	}
	ChatSendRequest struct {
		private
		Text string
	}
	ChatListRequest struct{ public }
)

func (RegisterRequest) Route() Route { return RouteRegister }
func (LoginRequest) Route() Route    { return RouteLogin }
func (AuthRequest) Route() Route     { return RouteAuth }
func (LogoutRequest) Route() Route   { return RouteLogout }
func (AccountRequest) Route() Route  { return RouteAccount }
func (GamesRequest) Route() Route    { return RouteGames }
func (GameRequest) Route() Route     { return RouteGame }
func (CreateRequest) Route() Route   { return RouteCreate }
func (EnterRequest) Route() Route    { return RouteEnter }
func (ExitRequest) Route() Route     { return RouteExit }
func (JoinRequest) Route() Route     { return RouteJoin }
func (DisjoinRequest) Route() Route  { return RouteDisjoin }
func (StartRequest) Route() Route    { return RouteStart }
func (RemoveRequest) Route() Route   { return RouteRemove }
func (MoveRequest) Route() Route     { return RouteMove }
func (ResignRequest) Route() Route   { return RouteResign }
func (GameChatRequest) Route() Route { return RouteGameChat }
func (ChatSendRequest) Route() Route { return RouteChatSend }
func (ChatListRequest) Route() Route { return RouteChatList }

func params(env Envelope, n int) error {
	if len(env.Params) != n {
		return fmt.Errorf("%w: %s takes %d parameters, got %d", match.ErrIncorrectData, env.Route, n, len(env.Params))
	}
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad id %q", match.ErrIncorrectData, s)
	}
	return id, nil
}

// Decode turns an envelope into a typed request. Unknown routes wrap
// match.ErrNotFound, malformed parameters match.ErrIncorrectData.
func Decode(env Envelope) (Request, error) {
	route := Route(env.Route)

	// Routes with a single id parameter.
	single := map[Route]func(int64) Request{
		RouteAccount: func(id int64) Request { return AccountRequest{ID: id} },
		RouteGame:    func(id int64) Request { return GameRequest{ID: id} },
		RouteEnter:   func(id int64) Request { return EnterRequest{ID: id} },
		RouteExit:    func(id int64) Request { return ExitRequest{ID: id} },
		RouteDisjoin: func(id int64) Request { return DisjoinRequest{ID: id} },
		RouteStart:   func(id int64) Request { return StartRequest{ID: id} },
		RouteRemove:  func(id int64) Request { return RemoveRequest{ID: id} },
		RouteResign:  func(id int64) Request { return ResignRequest{ID: id} },
	}
	if build, ok := single[route]; ok {
		if err := params(env, 1); err != nil {
			return nil, err
		}
		id, err := parseID(env.Params[0])
		if err != nil {
			return nil, err
		}
		return build(id), nil
	}

	switch route {
	case RouteRegister, RouteLogin:
		if err := params(env, 2); err != nil {
			return nil, err
		}
		name, password := strings.TrimSpace(env.Params[0]), env.Params[1]
		if route == RouteRegister {
			return RegisterRequest{Name: name, Password: password}, nil
		}
		return LoginRequest{Name: name, Password: password}, nil

	case RouteAuth:
		if err := params(env, 1); err != nil {
			return nil, err
		}
		return AuthRequest{Token: env.Params[0]}, nil

	case RouteLogout:
		return LogoutRequest{}, nil

	case RouteGames:
		return GamesRequest{}, nil

	case RouteChatList:
		return ChatListRequest{}, nil

	case RouteCreate:
		if err := params(env, 1); err != nil {
			return nil, err
		}
		var spec lobby.Spec
		if err := json.Unmarshal([]byte(env.Params[0]), &spec); err != nil {
			return nil, fmt.Errorf("%w: game spec: %v", match.ErrIncorrectData, err)
		}
		return CreateRequest{Spec: spec}, nil

	case RouteJoin:
		if err := params(env, 2); err != nil {
			return nil, err
		}
		id, err := parseID(env.Params[0])
		if err != nil {
			return nil, err
		}
		color := match.Color(strings.ToUpper(strings.TrimSpace(env.Params[1])))
		switch color {
		case match.White, match.Black, "":
		default:
			return nil, fmt.Errorf("%w: bad color %q", match.ErrIncorrectData, env.Params[1])
		}
		return JoinRequest{ID: id, Color: color}, nil

	case RouteMove:
		if err := params(env, 2); err != nil {
			return nil, err
		}
		id, err := parseID(env.Params[0])
		if err != nil {
			return nil, err
		}
		return MoveRequest{ID: id, UCI: strings.TrimSpace(env.Params[1])}, nil

	case RouteGameChat:
		if err := params(env, 2); err != nil {
			return nil, err
		}
		id, err := parseID(env.Params[0])
		if err != nil {
			return nil, err
		}
		return GameChatRequest{ID: id, Text: env.Params[1]}, nil

	case RouteChatSend:
		if err := params(env, 1); err != nil {
			return nil, err
		}
		return ChatSendRequest{Text: env.Params[0]}, nil
	}
	return nil, fmt.Errorf("%w: route %q", match.ErrNotFound, env.Route)
}
