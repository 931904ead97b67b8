// Copyright (c) 2026 Callum-CMc.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Callum-CMc/triviapool/cliparse"
	"github.com/Callum-CMc/triviapool/commitment"
	"github.com/Callum-CMc/triviapool/escrow"
	"github.com/Callum-CMc/triviapool/middleware"
	"github.com/Callum-CMc/triviapool/models"
	"github.com/Callum-CMc/triviapool/token"
)

// defaultCancelLimit bounds how many players a single cancellation call
// resolves; cancellation is resumable from the stored cursor.
const defaultCancelLimit = 500

// RoundHandler owns the administrative round lifecycle: start,
// reconfigure, fund, cancel, plus treasury and ban operations.
type RoundHandler struct {
	db     *sql.DB
	cfg    cliparse.Config
	ledger escrow.Ledger
	issuer token.Issuer
	mu     *sync.Mutex
	now    func() time.Time
}

func NewRoundHandler(db *sql.DB, cfg cliparse.Config, ledger escrow.Ledger, issuer token.Issuer, mu *sync.Mutex) *RoundHandler {
	return &RoundHandler{db: db, cfg: cfg, ledger: ledger, issuer: issuer, mu: mu, now: time.Now}
}

// StartRound handles POST /rounds
func (h *RoundHandler) StartRound(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r, h.cfg.AdminKeySalt) {
		return
	}

	var req models.StartRoundRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeInvalidRequest, "Invalid JSON")
		return
	}

	if _, err := commitment.ParseSalt(req.AnswerSalt); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeInvalidCommitment, "answer_salt must be nonzero hex")
		return
	}
	if len(req.AnswerHashes) != models.NumQuestions {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeInvalidCommitment, "exactly 10 answer hashes required")
		return
	}
	for i, hash := range req.AnswerHashes {
		if _, err := commitment.ParseDigest(hash); err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeInvalidCommitment, "answer hash "+strconv.Itoa(i)+" is not a hex digest")
			return
		}
	}

	minDelay := req.MinRevealDelay
	maxDelay := req.MaxRevealDelay
	if minDelay == 0 && maxDelay == 0 {
		minDelay = int64(h.cfg.MinRevealDelay.Seconds())
		maxDelay = int64(h.cfg.MaxRevealDelay.Seconds())
	}
	if minDelay < 0 || minDelay >= maxDelay {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeInvalidTimingWindow, "min_reveal_delay must be below max_reveal_delay")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}
	defer tx.Rollback()

	current, err := currentRoundID(tx)
	if err != nil {
		slog.Error("failed to read current round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}
	roundID := current + 1
	now := h.now()

	_, err = tx.Exec(`
		INSERT INTO round (id, entry_fee, prize_amount, answer_salt, min_reveal_delay,
		                   max_reveal_delay, prize_funded, won, cancelled, cancel_cursor, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, FALSE, FALSE, 0, $7)
	`, roundID, req.EntryFee, req.PrizeAmount, req.AnswerSalt, minDelay, maxDelay, now.Unix())
	if err != nil {
		slog.Error("failed to insert round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to start round")
		return
	}

	for i, hash := range req.AnswerHashes {
		_, err = tx.Exec(`
			INSERT INTO round_answer (round_id, idx, answer_hash)
			VALUES ($1, $2, $3)
		`, roundID, i, hash)
		if err != nil {
			slog.Error("failed to insert answer hash", "error", err, "idx", i)
			middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to start round")
			return
		}
	}

	err = emitEvent(tx, roundID, "round_started", "", map[string]int64{
		"entry_fee":        req.EntryFee,
		"prize_amount":     req.PrizeAmount,
		"min_reveal_delay": minDelay,
		"max_reveal_delay": maxDelay,
	}, now)
	if err != nil {
		slog.Error("failed to emit event", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to start round")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to start round")
		return
	}

	slog.Info("round started", "round_id", roundID, "entry_fee", req.EntryFee, "prize", req.PrizeAmount)

	middleware.JSONResponse(w, http.StatusCreated, models.StartRoundResponse{
		RoundID:        roundID,
		MinRevealDelay: minDelay,
		MaxRevealDelay: maxDelay,
	})
}

// UpdateAnswers handles POST /rounds/current/answers
func (h *RoundHandler) UpdateAnswers(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r, h.cfg.AdminKeySalt) {
		return
	}

	var req models.UpdateAnswersRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeInvalidRequest, "Invalid JSON")
		return
	}
	if len(req.AnswerHashes) != models.NumQuestions {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeInvalidCommitment, "exactly 10 answer hashes required")
		return
	}
	for i, hash := range req.AnswerHashes {
		if _, err := commitment.ParseDigest(hash); err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeInvalidCommitment, "answer hash "+strconv.Itoa(i)+" is not a hex digest")
			return
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}
	defer tx.Rollback()

	rd, ok := h.unresolvedCurrentRound(w, tx)
	if !ok {
		return
	}

	if _, err := tx.Exec(`DELETE FROM round_answer WHERE round_id = $1`, rd.ID); err != nil {
		slog.Error("failed to clear answer hashes", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to update answers")
		return
	}
	for i, hash := range req.AnswerHashes {
		if _, err := tx.Exec(`
			INSERT INTO round_answer (round_id, idx, answer_hash)
			VALUES ($1, $2, $3)
		`, rd.ID, i, hash); err != nil {
			slog.Error("failed to insert answer hash", "error", err, "idx", i)
			middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to update answers")
			return
		}
	}

	if err := emitEvent(tx, rd.ID, "answers_updated", "", struct{}{}, h.now()); err != nil {
		slog.Error("failed to emit event", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to update answers")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to update answers")
		return
	}

	slog.Info("answers updated", "round_id", rd.ID)
	middleware.JSONResponse(w, http.StatusOK, map[string]int64{"round_id": rd.ID})
}

// UpdateEconomics handles POST /rounds/current/economics
func (h *RoundHandler) UpdateEconomics(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r, h.cfg.AdminKeySalt) {
		return
	}

	var req models.UpdateEconomicsRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeInvalidRequest, "Invalid JSON")
		return
	}
	if req.MinRevealDelay < 0 || req.MinRevealDelay >= req.MaxRevealDelay {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeInvalidTimingWindow, "min_reveal_delay must be below max_reveal_delay")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}
	defer tx.Rollback()

	rd, ok := h.unresolvedCurrentRound(w, tx)
	if !ok {
		return
	}

	_, err = tx.Exec(`
		UPDATE round
		SET entry_fee = $1, prize_amount = $2, min_reveal_delay = $3, max_reveal_delay = $4
		WHERE id = $5
	`, req.EntryFee, req.PrizeAmount, req.MinRevealDelay, req.MaxRevealDelay, rd.ID)
	if err != nil {
		slog.Error("failed to update economics", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to update economics")
		return
	}

	if err := emitEvent(tx, rd.ID, "economics_updated", "", req, h.now()); err != nil {
		slog.Error("failed to emit event", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to update economics")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to update economics")
		return
	}

	slog.Info("economics updated", "round_id", rd.ID, "entry_fee", req.EntryFee, "prize", req.PrizeAmount)
	middleware.JSONResponse(w, http.StatusOK, map[string]int64{"round_id": rd.ID})
}

// FundPrize handles POST /rounds/{id}/fund
//
// Any past or current round id is valid, not only the current one.
func (h *RoundHandler) FundPrize(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r, h.cfg.AdminKeySalt) {
		return
	}

	roundID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || roundID <= 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeUnknownRound, "invalid round id")
		return
	}

	var req models.FundPrizeRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeInvalidRequest, "Invalid JSON")
		return
	}
	if req.Amount <= 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeZeroAmount, "amount must be positive")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}
	defer tx.Rollback()

	rd, err := loadRound(tx, roundID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, models.CodeUnknownRound, "Round not found")
		return
	}
	if err != nil {
		slog.Error("failed to query round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}

	if err := h.ledger.Pull(tx, escrow.AdminAccount, req.Amount); err != nil {
		if errors.Is(err, escrow.ErrTransferFailed) {
			middleware.ErrorResponse(w, http.StatusConflict, models.CodeEscrowTransferFailed, "Escrow pull failed")
			return
		}
		slog.Error("escrow pull failed", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}

	funded := rd.PrizeFunded + req.Amount
	if _, err := tx.Exec(`UPDATE round SET prize_funded = $1 WHERE id = $2`, funded, roundID); err != nil {
		slog.Error("failed to update prize funding", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to fund prize")
		return
	}

	if err := emitEvent(tx, roundID, "prize_funded", "", map[string]int64{"amount": req.Amount, "prize_funded": funded}, h.now()); err != nil {
		slog.Error("failed to emit event", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to fund prize")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to fund prize")
		return
	}

	slog.Info("prize funded", "round_id", roundID, "amount", req.Amount, "prize_funded", funded)
	middleware.JSONResponse(w, http.StatusOK, models.FundPrizeResponse{RoundID: roundID, PrizeFunded: funded})
}

// Withdraw handles POST /treasury/withdraw - emergency/treasury sweep
// of custody funds.
func (h *RoundHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r, h.cfg.AdminKeySalt) {
		return
	}

	var req models.WithdrawRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeInvalidRequest, "Invalid JSON")
		return
	}
	if req.To == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeZeroAddress, "destination account required")
		return
	}
	if req.Amount <= 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeZeroAmount, "amount must be positive")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}
	defer tx.Rollback()

	if err := h.ledger.Push(tx, req.To, req.Amount); err != nil {
		if errors.Is(err, escrow.ErrTransferFailed) {
			middleware.ErrorResponse(w, http.StatusConflict, models.CodeEscrowTransferFailed, "Escrow push failed")
			return
		}
		slog.Error("escrow push failed", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}

	if err := emitEvent(tx, 0, "withdrawal", "", req, h.now()); err != nil {
		slog.Error("failed to emit event", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to withdraw")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to withdraw")
		return
	}

	slog.Info("treasury withdrawal", "to", req.To, "amount", req.Amount)
	middleware.JSONResponse(w, http.StatusOK, map[string]any{"to": req.To, "amount": req.Amount})
}

// Deposit handles POST /accounts/{id}/deposit - credits an escrow
// account from outside the system.
func (h *RoundHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r, h.cfg.AdminKeySalt) {
		return
	}

	accountID := r.PathValue("id")
	if accountID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeZeroAddress, "account id required")
		return
	}

	var req models.DepositRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeInvalidRequest, "Invalid JSON")
		return
	}
	if req.Amount <= 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeZeroAmount, "amount must be positive")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}
	defer tx.Rollback()

	if err := h.ledger.Deposit(tx, accountID, req.Amount); err != nil {
		slog.Error("deposit failed", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to deposit")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to deposit")
		return
	}

	slog.Info("account credited", "account", accountID, "amount", req.Amount)
	middleware.JSONResponse(w, http.StatusOK, map[string]any{"account_id": accountID, "amount": req.Amount})
}

// Ban handles POST /players/{id}/ban
func (h *RoundHandler) Ban(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r, h.cfg.AdminKeySalt) {
		return
	}

	playerID := r.PathValue("id")
	if playerID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeZeroAddress, "player id required")
		return
	}

	var req models.BanRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeInvalidRequest, "Invalid JSON")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	res, err := h.db.Exec(`UPDATE player SET banned = $1 WHERE id = $2`, req.Banned, playerID)
	if err != nil {
		slog.Error("failed to update ban flag", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}
	n, err := res.RowsAffected()
	if err != nil {
		slog.Error("failed to update ban flag", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}
	if n == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, models.CodeNotFound, "Player not found")
		return
	}

	slog.Info("ban flag updated", "player_id", playerID, "banned", req.Banned)
	middleware.JSONResponse(w, http.StatusOK, map[string]any{"player_id": playerID, "banned": req.Banned})
}

// CancelRound handles POST /rounds/current/cancel
//
// The first call marks the round won+cancelled with no winner and
// resolves up to limit committers; while unresolved committers remain,
// repeat calls continue from the stored cursor. Once every committer is
// resolved further calls fail round_already_resolved.
func (h *RoundHandler) CancelRound(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r, h.cfg.AdminKeySalt) {
		return
	}

	var req models.CancelRoundRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeInvalidRequest, "Invalid JSON")
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultCancelLimit
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}
	defer tx.Rollback()

	rd, err := loadCurrentRound(tx)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusConflict, models.CodeNoActiveRound, "No round has been started")
		return
	}
	if err != nil {
		slog.Error("failed to query round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}

	var total int64
	if err := tx.QueryRow(`SELECT COUNT(*) FROM round_player WHERE round_id = $1`, rd.ID).Scan(&total); err != nil {
		slog.Error("failed to count players", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}

	now := h.now()
	switch {
	case rd.Won && !rd.Cancelled:
		// Resolved by a real win; nothing to cancel.
		middleware.ErrorResponse(w, http.StatusConflict, models.CodeRoundAlreadyResolved, "Round already resolved")
		return
	case rd.Cancelled && rd.CancelCursor >= total:
		middleware.ErrorResponse(w, http.StatusConflict, models.CodeRoundAlreadyResolved, "Round already cancelled")
		return
	case !rd.Cancelled:
		// Terminal state first: no further commits or reveals can land
		// on this round while the batches run.
		if _, err := tx.Exec(`
			UPDATE round SET won = TRUE, cancelled = TRUE WHERE id = $1
		`, rd.ID); err != nil {
			slog.Error("failed to mark round cancelled", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to cancel round")
			return
		}
	}

	rows, err := tx.Query(`
		SELECT player_id FROM round_player
		WHERE round_id = $1 AND position >= $2
		ORDER BY position
		LIMIT $3
	`, rd.ID, rd.CancelCursor, limit)
	if err != nil {
		slog.Error("failed to enumerate players", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}
	var batch []string
	for rows.Next() {
		var playerID string
		if err := rows.Scan(&playerID); err != nil {
			rows.Close()
			slog.Error("failed to scan player", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
			return
		}
		batch = append(batch, playerID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		slog.Error("failed to enumerate players", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}

	// Forced resolution: every unrevealed committer in the batch is
	// marked revealed without verification and receives a loss token.
	var resolved int64
	for _, playerID := range batch {
		res, err := tx.Exec(`
			UPDATE commitment SET revealed = TRUE
			WHERE round_id = $1 AND player_id = $2 AND revealed = FALSE
		`, rd.ID, playerID)
		if err != nil {
			slog.Error("failed to resolve commitment", "error", err, "player_id", playerID)
			middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to cancel round")
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			slog.Error("failed to resolve commitment", "error", err, "player_id", playerID)
			middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to cancel round")
			return
		}
		if n == 0 {
			// Already revealed, or the commitment was purged by cleanup.
			continue
		}
		if _, err := h.issuer.Mint(tx, rd.ID, playerID, false, now); err != nil {
			slog.Error("failed to mint loss token", "error", err, "player_id", playerID)
			middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to cancel round")
			return
		}
		resolved++
	}

	cursor := rd.CancelCursor + int64(len(batch))
	if _, err := tx.Exec(`UPDATE round SET cancel_cursor = $1 WHERE id = $2`, cursor, rd.ID); err != nil {
		slog.Error("failed to advance cancel cursor", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to cancel round")
		return
	}

	remaining := total - cursor
	if err := emitEvent(tx, rd.ID, "round_cancelled", "", map[string]int64{
		"resolved":  resolved,
		"remaining": remaining,
	}, now); err != nil {
		slog.Error("failed to emit event", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to cancel round")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to cancel round")
		return
	}

	slog.Info("round cancelled", "round_id", rd.ID, "resolved", resolved, "remaining", remaining)
	middleware.JSONResponse(w, http.StatusOK, models.CancelRoundResponse{
		RoundID:   rd.ID,
		Resolved:  resolved,
		Remaining: remaining,
	})
}

// unresolvedCurrentRound loads the current round for mutation, writing
// the no_active_round / round_already_resolved errors itself.
func (h *RoundHandler) unresolvedCurrentRound(w http.ResponseWriter, tx *sql.Tx) (round, bool) {
	rd, err := loadCurrentRound(tx)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusConflict, models.CodeNoActiveRound, "No round has been started")
		return round{}, false
	}
	if err != nil {
		slog.Error("failed to query round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return round{}, false
	}
	if rd.Won {
		middleware.ErrorResponse(w, http.StatusConflict, models.CodeRoundAlreadyResolved, "Round already resolved")
		return round{}, false
	}
	return rd, true
}
