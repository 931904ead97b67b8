// Copyright (c) 2026 Callum-CMc.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"
	"sync"

	"github.com/Callum-CMc/triviapool/cliparse"
	"github.com/Callum-CMc/triviapool/escrow"
	"github.com/Callum-CMc/triviapool/handlers"
	"github.com/Callum-CMc/triviapool/middleware"
	"github.com/Callum-CMc/triviapool/token"
)

func NewRouter(db *sql.DB, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Shared collaborators and the single execution lock serializing
	// every state-mutating operation.
	ledger := escrow.NewSQLLedger()
	scheme := token.NewScheme(cfg)
	issuer := token.NewSQLIssuer(scheme)
	var mu sync.Mutex

	// Initialize handlers
	roundHandler := handlers.NewRoundHandler(db, cfg, ledger, issuer, &mu)
	playHandler := handlers.NewPlayHandler(db, cfg, ledger, issuer, &mu)
	queryHandler := handlers.NewQueryHandler(db, cfg, ledger)
	tokenHandler := handlers.NewTokenHandler(db, scheme)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Round lifecycle (admin operations)
	mux.HandleFunc("POST /rounds", middleware.WithLogging(roundHandler.StartRound))
	mux.HandleFunc("POST /rounds/current/answers", middleware.WithLogging(roundHandler.UpdateAnswers))
	mux.HandleFunc("POST /rounds/current/economics", middleware.WithLogging(roundHandler.UpdateEconomics))
	mux.HandleFunc("POST /rounds/{id}/fund", middleware.WithLogging(roundHandler.FundPrize))
	mux.HandleFunc("POST /rounds/current/cancel", middleware.WithLogging(roundHandler.CancelRound))
	mux.HandleFunc("POST /treasury/withdraw", middleware.WithLogging(roundHandler.Withdraw))
	mux.HandleFunc("POST /players/{id}/ban", middleware.WithLogging(roundHandler.Ban))
	mux.HandleFunc("POST /accounts/{id}/deposit", middleware.WithLogging(roundHandler.Deposit))

	// Participant operations
	mux.HandleFunc("POST /players/register", middleware.WithLogging(playHandler.Register))
	mux.HandleFunc("POST /rounds/current/commitments", middleware.WithLogging(playHandler.Commit))
	mux.HandleFunc("POST /rounds/current/reveals", middleware.WithLogging(playHandler.Reveal))

	// Permissionless cleanup
	mux.HandleFunc("DELETE /rounds/{id}/commitments/{player}", middleware.WithLogging(playHandler.ClearExpired))

	// Query surface
	mux.HandleFunc("GET /rounds/current", middleware.WithLogging(queryHandler.GetCurrentRound))
	mux.HandleFunc("GET /rounds/{id}", middleware.WithLogging(queryHandler.GetRound))
	mux.HandleFunc("GET /rounds/{id}/commitments/{player}", middleware.WithLogging(queryHandler.GetCommitStatus))
	mux.HandleFunc("GET /rounds/{id}/players", middleware.WithLogging(queryHandler.ListPlayers))
	mux.HandleFunc("GET /accounts/{id}", middleware.WithLogging(queryHandler.GetBalance))

	// Outcome-token metadata
	mux.HandleFunc("GET /tokens/{id}/metadata", middleware.WithLogging(tokenHandler.GetMetadata))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("triviapool API v1"))
	})

	return mux
}
