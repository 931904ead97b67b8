// Copyright (c) 2026 Callum-CMc.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Callum-CMc/triviapool/cliparse"
	"github.com/Callum-CMc/triviapool/escrow"
	"github.com/Callum-CMc/triviapool/middleware"
	"github.com/Callum-CMc/triviapool/models"
)

// Player enumeration page bounds.
const (
	defaultPlayersLimit = 100
	maxPlayersLimit     = 1000
)

// QueryHandler serves the read-only projections: round status, commit
// status, player enumeration and escrow balances. No state changes.
type QueryHandler struct {
	db     *sql.DB
	cfg    cliparse.Config
	ledger escrow.Ledger
	now    func() time.Time
}

func NewQueryHandler(db *sql.DB, cfg cliparse.Config, ledger escrow.Ledger) *QueryHandler {
	return &QueryHandler{db: db, cfg: cfg, ledger: ledger, now: time.Now}
}

// GetCurrentRound handles GET /rounds/current
func (h *QueryHandler) GetCurrentRound(w http.ResponseWriter, r *http.Request) {
	rd, err := loadCurrentRound(h.db)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, models.CodeNoActiveRound, "No round has been started")
		return
	}
	if err != nil {
		slog.Error("failed to query round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}
	h.writeRoundStatus(w, rd, true)
}

// GetRound handles GET /rounds/{id}
func (h *QueryHandler) GetRound(w http.ResponseWriter, r *http.Request) {
	roundID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || roundID <= 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeUnknownRound, "invalid round id")
		return
	}

	rd, err := loadRound(h.db, roundID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, models.CodeUnknownRound, "Round not found")
		return
	}
	if err != nil {
		slog.Error("failed to query round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}

	current, err := currentRoundID(h.db)
	if err != nil {
		slog.Error("failed to read current round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}
	h.writeRoundStatus(w, rd, rd.ID == current)
}

func (h *QueryHandler) writeRoundStatus(w http.ResponseWriter, rd round, isCurrent bool) {
	middleware.JSONResponse(w, http.StatusOK, models.RoundStatus{
		RoundID:        rd.ID,
		EntryFee:       rd.EntryFee,
		PrizeAmount:    rd.PrizeAmount,
		PrizeFunded:    rd.PrizeFunded,
		Active:         isCurrent && !rd.Won,
		Funded:         rd.PrizeFunded >= rd.PrizeAmount,
		Completed:      rd.Won,
		Cancelled:      rd.Cancelled,
		Winner:         rd.Winner.String,
		WinnerName:     rd.WinnerName.String,
		MinRevealDelay: rd.MinRevealDelay,
		MaxRevealDelay: rd.MaxRevealDelay,
	})
}

// GetCommitStatus handles GET /rounds/{id}/commitments/{player}
func (h *QueryHandler) GetCommitStatus(w http.ResponseWriter, r *http.Request) {
	roundID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || roundID <= 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeUnknownRound, "invalid round id")
		return
	}
	playerID := r.PathValue("player")
	if playerID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeZeroAddress, "player id required")
		return
	}

	rd, err := loadRound(h.db, roundID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, models.CodeUnknownRound, "Round not found")
		return
	}
	if err != nil {
		slog.Error("failed to query round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}

	cm, err := loadCommitment(h.db, roundID, playerID)
	if err == sql.ErrNoRows {
		middleware.JSONResponse(w, http.StatusOK, models.CommitStatus{
			RoundID:  roundID,
			PlayerID: playerID,
			Present:  false,
		})
		return
	}
	if err != nil {
		slog.Error("failed to query commitment", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.CommitStatus{
		RoundID:     roundID,
		PlayerID:    playerID,
		Present:     true,
		Revealed:    cm.Revealed,
		Expired:     h.now().Unix() > cm.CommittedAt+rd.MaxRevealDelay,
		CommittedAt: cm.CommittedAt,
		DisplayName: cm.DisplayName,
		CommitHash:  cm.CommitHash,
	})
}

// ListPlayers handles GET /rounds/{id}/players?offset=&limit=
//
// Returns a bounded page of committed identities in registration order;
// an offset at or past the total yields an empty page.
func (h *QueryHandler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	roundID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || roundID <= 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeUnknownRound, "invalid round id")
		return
	}

	offset := parseQueryInt(r, "offset", 0)
	limit := parseQueryInt(r, "limit", defaultPlayersLimit)
	if offset < 0 || limit <= 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeInvalidRequest, "offset must be >= 0 and limit > 0")
		return
	}
	if limit > maxPlayersLimit {
		limit = maxPlayersLimit
	}

	if _, err := loadRound(h.db, roundID); err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, models.CodeUnknownRound, "Round not found")
		return
	} else if err != nil {
		slog.Error("failed to query round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}

	var total int64
	if err := h.db.QueryRow(`SELECT COUNT(*) FROM round_player WHERE round_id = $1`, roundID).Scan(&total); err != nil {
		slog.Error("failed to count players", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}

	rows, err := h.db.Query(`
		SELECT player_id FROM round_player
		WHERE round_id = $1 AND position >= $2
		ORDER BY position
		LIMIT $3
	`, roundID, offset, limit)
	if err != nil {
		slog.Error("failed to enumerate players", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}
	defer rows.Close()

	players := []string{}
	for rows.Next() {
		var playerID string
		if err := rows.Scan(&playerID); err != nil {
			slog.Error("failed to scan player", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
			return
		}
		players = append(players, playerID)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to enumerate players", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.PlayersPageResponse{
		RoundID: roundID,
		Offset:  offset,
		Limit:   limit,
		Total:   total,
		Players: players,
	})
}

// GetBalance handles GET /accounts/{id}
func (h *QueryHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")
	if accountID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeZeroAddress, "account id required")
		return
	}

	balance, err := h.ledger.Balance(h.db, accountID)
	if err != nil {
		slog.Error("failed to read balance", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.BalanceResponse{
		AccountID: accountID,
		Balance:   balance,
	})
}

func parseQueryInt(r *http.Request, key string, fallback int64) int64 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return -1
	}
	return n
}
