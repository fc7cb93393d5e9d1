package main

// CHESS_TOKEN_SECRET=dev go run ./server
// curl -X POST -d "username=testuser&password=testpass" "http://localhost:8081/register"
// curl -X POST -c jar -d "username=testuser&password=testpass" "http://localhost:8081/login"
import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/elmerdema/chessgame/internal/account"
	"github.com/elmerdema/chessgame/internal/auth"
	"github.com/elmerdema/chessgame/internal/config"
	"github.com/elmerdema/chessgame/internal/gateway"
	"github.com/elmerdema/chessgame/internal/lobby"
	"github.com/elmerdema/chessgame/internal/match"
	"github.com/elmerdema/chessgame/internal/rating"
	"github.com/elmerdema/chessgame/internal/rules"
	"github.com/elmerdema/chessgame/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.DBDriver, cfg.DSN)
	if err != nil {
		log.Fatal("storage: ", err)
	}
	defer store.Close()

	tokens := auth.NewTokens(cfg.TokenSecret, cfg.TokenTTL)
	ctrl := lobby.New(lobby.Config{
		MaxLiveMatches: cfg.MaxLiveMatches,
		TickPeriod:     cfg.TickPeriod,
		FinishedGrace:  cfg.FinishedGrace,
		AbandonedGrace: cfg.AbandonedGrace,
		ChatLimit:      cfg.ChatLimit,
	}, match.Deps{
		Rules:    rules.New(),
		Rating:   rating.NewElo(),
		Accounts: store,
		Ledger:   account.NewLocks(),
	}, store)
	if err := ctrl.Load(ctx); err != nil {
		log.Fatal("load matches: ", err)
	}

	gw := gateway.New(gateway.Config{
		InitialCoins:  cfg.InitialCoins,
		InitialRating: cfg.InitialRating,
	}, ctrl, store, store, tokens)
	ctrl.SetNotifier(gw)

	// get the tick loop going
	go func() {
		if err := ctrl.Run(ctx); err != nil {
			log.Println("[lobby] tick loop:", err)
			stop()
		}
	}()

	s := &Server{store: store, gateway: gw, tokens: tokens, tokenTTL: cfg.TokenTTL}
	handler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}).Handler(s.routes())

	srv := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Println("Shutdown:", err)
		}
	}()

	// start the web server
	log.Println("Starting web server on", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("ListenAndServe:", err)
	}
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	// One persistent connection per client carries every game request.
	r.Handle("/ws", s.gateway)

	r.HandleFunc("/register", s.register).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/login", s.login).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/logout", s.logout).Methods(http.MethodPost)
	r.Handle("/me", s.AuthMiddleware(http.HandlerFunc(s.checkAuth))).Methods(http.MethodGet)
	r.HandleFunc("/leaderboard", s.getLeaderboard).Methods(http.MethodGet)
	r.HandleFunc("/avatars/{id}", s.getAvatar).Methods(http.MethodGet)

	// Serve all static files from the 'www' directory.
	r.PathPrefix("/").Handler(http.FileServer(http.Dir("./www")))
	return r
}
