package main

import (
	"time"

	"github.com/elmerdema/chessgame/internal/account"
	"github.com/elmerdema/chessgame/internal/auth"
	"github.com/elmerdema/chessgame/internal/gateway"
	"github.com/elmerdema/chessgame/internal/storage"
)

type Server struct {
	store    *storage.Store
	gateway  *gateway.Gateway
	tokens   *auth.Tokens
	tokenTTL time.Duration
}

type LoginResponse struct {
	Token   string          `json:"token"`
	Account account.Account `json:"account"`
}

type AuthStatus struct {
	IsLoggedIn bool            `json:"isLoggedIn"`
	Username   string          `json:"username"`
	Account    account.Account `json:"account"`
}

const leaderboardSize = 10
