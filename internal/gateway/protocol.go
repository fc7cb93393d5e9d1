package gateway

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/elmerdema/chessgame/internal/account"
	"github.com/elmerdema/chessgame/internal/auth"
	"github.com/elmerdema/chessgame/internal/match"
)

type Status string

const (
	StatusDone             Status = "DONE"
	StatusDenied           Status = "DENIED"
	StatusNotFound         Status = "NOT_FOUND"
	StatusIncorrectData    Status = "INCORRECT_DATA"
	StatusExists           Status = "EXISTS"
	StatusSecurityBreach   Status = "SECURITY_BREACH"
	StatusSocketNotFound   Status = "SOCKET_NOT_FOUND"
	StatusUpdateFromServer Status = "UPDATE_FROM_SERVER"
)

// Envelope is an inbound request as sent by clients.
type Envelope struct {
	Route  string   `json:"route"`
	Params []string `json:"params"`
}

// Reply is both the answer to a request and, with StatusUpdateFromServer,
// an unsolicited push. Result holds an embedded JSON document.
type Reply struct {
	Status Status  `json:"status"`
	Result *string `json:"result"`
	Route  string  `json:"route"`
}

func reply(route Route, status Status) Reply {
	return Reply{Status: status, Route: string(route)}
}

// withResult embeds payload as a JSON string.
func withResult(route Route, status Status, payload any) Reply {
	r := reply(route, status)
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[gateway] encode %s result: %v", route, err)
		return reply(route, StatusSecurityBreach)
	}
	s := string(data)
	r.Result = &s
	return r
}

func update(route Route, payload any) Reply {
	return withResult(route, StatusUpdateFromServer, payload)
}

// statusOf maps a business error onto the wire taxonomy.
func statusOf(route Route, err error) Status {
	switch {
	case err == nil:
		return StatusDone
	case errors.Is(err, match.ErrDenied), errors.Is(err, auth.ErrUnauthorized):
		return StatusDenied
	case errors.Is(err, match.ErrNotFound), errors.Is(err, account.ErrNotFound):
		return StatusNotFound
	case errors.Is(err, match.ErrIncorrectData):
		return StatusIncorrectData
	case errors.Is(err, account.ErrExists):
		return StatusExists
	case errors.Is(err, match.ErrSecurityBreach):
		log.Printf("[gateway] DEFECT on %s: %v", route, err)
		return StatusSecurityBreach
	}
	log.Printf("[gateway] %s failed: %v", route, err)
	return StatusDenied
}
