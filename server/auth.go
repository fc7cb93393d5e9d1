package main

import (
	"context"
	"net/http"

	"github.com/elmerdema/chessgame/internal/gateway"
)

// contextKey is a custom type to use as a key for context values.
// This prevents collisions with other packages' context keys.
type contextKey string

const accountContextKey = contextKey("account")

func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionCookie, err := r.Cookie(gateway.SessionCookie)
		if err != nil {
			http.Error(w, "Unauthorized: No session cookie", http.StatusUnauthorized)
			return
		}

		accountID, err := s.tokens.Verify(sessionCookie.Value)
		if err != nil {
			http.Error(w, "Unauthorized: Invalid session token", http.StatusUnauthorized)
			return
		}

		//  Add the account id to the context for downstream handlers.
		ctx := context.WithValue(r.Context(), accountContextKey, accountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetAccountFromContext(r *http.Request) (int64, bool) {
	id, ok := r.Context().Value(accountContextKey).(int64)
	return id, ok
}
