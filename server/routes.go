package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/elmerdema/chessgame/internal/account"
	"github.com/elmerdema/chessgame/internal/auth"
	"github.com/elmerdema/chessgame/internal/gateway"
	"github.com/elmerdema/chessgame/internal/match"
)

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")

	_, err := s.gateway.Register(r.Context(), username, password)
	switch {
	case errors.Is(err, account.ErrExists):
		http.Error(w, "User already exists", http.StatusConflict)
		return
	case errors.Is(err, match.ErrIncorrectData):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		log.Println("DB Register Error:", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	fmt.Fprintln(w, "User registered successfully!")
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	acc, err := s.store.ByName(r.Context(), username)
	if errors.Is(err, account.ErrNotFound) || (err == nil && !auth.CheckPasswordHash(password, acc.PasswordHash)) {
		http.Error(w, "Invalid username or password", http.StatusUnauthorized)
		return
	} else if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	token, err := s.tokens.Issue(acc.ID)
	if err != nil {
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     gateway.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(s.tokenTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	sendJSONResponse(w, http.StatusOK, LoginResponse{Token: token, Account: acc})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     gateway.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour),
		HttpOnly: true,
	})

	fmt.Fprintln(w, "Logged out successfully!")
}

func (s *Server) checkAuth(w http.ResponseWriter, r *http.Request) {
	id, ok := GetAccountFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	acc, err := s.store.Get(r.Context(), id)
	if errors.Is(err, account.ErrNotFound) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	} else if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	sendJSONResponse(w, http.StatusOK, AuthStatus{IsLoggedIn: true, Username: acc.Name, Account: acc})
}

func (s *Server) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	band := match.Blitz
	if rank := r.URL.Query().Get("rank"); rank != "" {
		band = match.RankType(strings.ToUpper(rank))
	}

	leaderboard, err := s.store.Leaderboard(r.Context(), band, leaderboardSize)
	if errors.Is(err, match.ErrIncorrectData) {
		http.Error(w, "Unknown rank", http.StatusBadRequest)
		return
	} else if err != nil {
		log.Println("Leaderboard Error:", err)
		http.Error(w, "DB Error", http.StatusInternalServerError)
		return
	}
	sendJSONResponse(w, http.StatusOK, leaderboard)
}

func (s *Server) getAvatar(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid account id", http.StatusBadRequest)
		return
	}

	data, err := s.store.Avatar(r.Context(), id)
	if errors.Is(err, account.ErrNotFound) {
		http.Error(w, "Avatar not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, "DB Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Write(data)
}
