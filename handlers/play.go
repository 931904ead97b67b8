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

	"github.com/Callum-CMc/triviapool/auth"
	"github.com/Callum-CMc/triviapool/cliparse"
	"github.com/Callum-CMc/triviapool/commitment"
	"github.com/Callum-CMc/triviapool/escrow"
	"github.com/Callum-CMc/triviapool/middleware"
	"github.com/Callum-CMc/triviapool/models"
	"github.com/Callum-CMc/triviapool/token"
)

// PlayHandler owns the participant surface (register, commit, reveal)
// and the permissionless expired-commitment cleanup.
type PlayHandler struct {
	db     *sql.DB
	cfg    cliparse.Config
	ledger escrow.Ledger
	issuer token.Issuer
	mu     *sync.Mutex
	now    func() time.Time
}

func NewPlayHandler(db *sql.DB, cfg cliparse.Config, ledger escrow.Ledger, issuer token.Issuer, mu *sync.Mutex) *PlayHandler {
	return &PlayHandler{db: db, cfg: cfg, ledger: ledger, issuer: issuer, mu: mu, now: time.Now}
}

// Register handles POST /players/register
func (h *PlayHandler) Register(w http.ResponseWriter, r *http.Request) {
	playerID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate player ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to register")
		return
	}
	playerToken, err := auth.GeneratePlayerToken()
	if err != nil {
		slog.Error("failed to generate player token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to register")
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

	if _, err := tx.Exec(`
		INSERT INTO player (id, token, banned, created_at)
		VALUES ($1, $2, FALSE, $3)
	`, playerID, playerToken, h.now().Unix()); err != nil {
		slog.Error("failed to insert player", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to register")
		return
	}
	if _, err := tx.Exec(`
		INSERT INTO account (id, balance) VALUES ($1, 0)
	`, playerID); err != nil {
		slog.Error("failed to create account", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to register")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to register")
		return
	}

	slog.Info("player registered", "player_id", playerID)
	middleware.JSONResponse(w, http.StatusCreated, models.RegisterPlayerResponse{
		PlayerID:    playerID,
		PlayerToken: playerToken,
	})
}

// Commit handles POST /rounds/current/commitments
func (h *PlayHandler) Commit(w http.ResponseWriter, r *http.Request) {
	playerID, ok := requirePlayer(w, r, h.db)
	if !ok {
		return
	}

	var req models.CommitRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeInvalidRequest, "Invalid JSON")
		return
	}

	if _, err := commitment.ParseDigest(req.CommitHash); err != nil || commitment.IsZeroDigest(req.CommitHash) {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeInvalidCommitment, "commit_hash must be a nonzero hex digest")
		return
	}
	if !validDisplayName(req.DisplayName) {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeInvalidDisplayName, "display name must be 1-32 chars of [a-zA-Z0-9 _.-]")
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
	if rd.Won {
		middleware.ErrorResponse(w, http.StatusConflict, models.CodeRoundAlreadyResolved, "Round already resolved")
		return
	}

	now := h.now()

	// A live (unrevealed, unexpired) commitment must not be replaced:
	// overwriting would let a player dodge an already-broadcast hash.
	existing, err := loadCommitment(tx, rd.ID, playerID)
	switch {
	case err == nil:
		expired := now.Unix() > existing.CommittedAt+rd.MaxRevealDelay
		if !existing.Revealed && !expired {
			middleware.ErrorResponse(w, http.StatusConflict, models.CodeActiveCommitExists, "An active commitment already exists")
			return
		}
	case err == sql.ErrNoRows:
	default:
		slog.Error("failed to query commitment", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}

	if rd.EntryFee > 0 {
		if err := h.ledger.Pull(tx, playerID, rd.EntryFee); err != nil {
			if errors.Is(err, escrow.ErrTransferFailed) {
				middleware.ErrorResponse(w, http.StatusConflict, models.CodeEscrowTransferFailed, "Entry fee pull failed")
				return
			}
			slog.Error("escrow pull failed", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
			return
		}
	}

	if _, err := tx.Exec(`
		DELETE FROM commitment WHERE round_id = $1 AND player_id = $2
	`, rd.ID, playerID); err != nil {
		slog.Error("failed to replace commitment", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to commit")
		return
	}
	if _, err := tx.Exec(`
		INSERT INTO commitment (round_id, player_id, commit_hash, display_name, committed_at, revealed)
		VALUES ($1, $2, $3, $4, $5, FALSE)
	`, rd.ID, playerID, req.CommitHash, req.DisplayName, now.Unix()); err != nil {
		slog.Error("failed to insert commitment", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to commit")
		return
	}

	// First commitment per round registers the player in the index;
	// index entries are never removed.
	var indexed bool
	err = tx.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM round_player WHERE round_id = $1 AND player_id = $2)
	`, rd.ID, playerID).Scan(&indexed)
	if err != nil {
		slog.Error("failed to query player index", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}
	if !indexed {
		if _, err := tx.Exec(`
			INSERT INTO round_player (round_id, player_id, position)
			VALUES ($1, $2, (SELECT COUNT(*) FROM round_player WHERE round_id = $1))
		`, rd.ID, playerID); err != nil {
			slog.Error("failed to register player", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to commit")
			return
		}
	}

	if err := emitEvent(tx, rd.ID, "commit", playerID, map[string]string{
		"commit_hash":  req.CommitHash,
		"display_name": req.DisplayName,
	}, now); err != nil {
		slog.Error("failed to emit event", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to commit")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to commit")
		return
	}

	slog.Info("commitment placed", "round_id", rd.ID, "player_id", playerID)
	middleware.JSONResponse(w, http.StatusCreated, models.CommitResponse{
		RoundID:     rd.ID,
		PlayerID:    playerID,
		CommitHash:  req.CommitHash,
		DisplayName: req.DisplayName,
		CommittedAt: now.Unix(),
	})
}

// Reveal handles POST /rounds/current/reveals
func (h *PlayHandler) Reveal(w http.ResponseWriter, r *http.Request) {
	playerID, ok := requirePlayer(w, r, h.db)
	if !ok {
		return
	}

	var req models.RevealRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeInvalidRequest, "Invalid JSON")
		return
	}
	if len(req.Answers) != models.NumQuestions {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeInvalidCommitment, "exactly 10 answers required")
		return
	}
	revealSalt, err := commitment.ParseSalt(req.RevealSalt)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeInvalidCommitment, "reveal_salt must be nonzero hex")
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
	if rd.Won {
		middleware.ErrorResponse(w, http.StatusConflict, models.CodeRoundAlreadyResolved, "Round already resolved")
		return
	}

	cm, err := loadCommitment(tx, rd.ID, playerID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusConflict, models.CodeNoCommitment, "No commitment for this round")
		return
	}
	if err != nil {
		slog.Error("failed to query commitment", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}
	if cm.Revealed {
		middleware.ErrorResponse(w, http.StatusConflict, models.CodeAlreadyRevealed, "Commitment already revealed")
		return
	}

	// Reveal window is [commit+min, commit+max). The lower bound blocks
	// same-instant front-running of a just-broadcast reveal; the upper
	// bound limits how long entry fees sit unresolved.
	now := h.now()
	if now.Unix() < cm.CommittedAt+rd.MinRevealDelay {
		middleware.ErrorResponse(w, http.StatusConflict, models.CodeTooEarlyToReveal, "Reveal window not yet open")
		return
	}
	if now.Unix() >= cm.CommittedAt+rd.MaxRevealDelay {
		middleware.ErrorResponse(w, http.StatusConflict, models.CodeCommitmentExpired, "Reveal window has closed")
		return
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = cm.DisplayName
	}

	match, err := commitment.Matches(cm.CommitHash, playerID, displayName, req.Answers, revealSalt)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeInvalidCommitment, "malformed reveal data")
		return
	}
	if !match {
		middleware.ErrorResponse(w, http.StatusConflict, models.CodeCommitmentMismatch, "Revealed data does not match commitment")
		return
	}

	// Consume the commitment before any outcome handling.
	if _, err := tx.Exec(`
		UPDATE commitment SET revealed = TRUE
		WHERE round_id = $1 AND player_id = $2
	`, rd.ID, playerID); err != nil {
		slog.Error("failed to mark revealed", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to reveal")
		return
	}

	roundSalt, err := commitment.ParseSalt(rd.AnswerSalt)
	if err != nil {
		slog.Error("stored round salt is invalid", "error", err, "round_id", rd.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to reveal")
		return
	}
	hashes, err := loadAnswerHashes(tx, rd.ID)
	if err != nil {
		slog.Error("failed to load answer hashes", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}
	correct, err := commitment.CheckAnswers(roundSalt, req.Answers, hashes)
	if err != nil {
		slog.Error("answer verification failed", "error", err, "round_id", rd.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to reveal")
		return
	}

	if !correct {
		tokenID, err := h.issuer.Mint(tx, rd.ID, playerID, false, now)
		if err != nil {
			slog.Error("failed to mint loss token", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to reveal")
			return
		}
		if err := h.finishReveal(w, tx, rd.ID, playerID, false, tokenID, displayName, now); err != nil {
			return
		}
		slog.Info("reveal resolved", "round_id", rd.ID, "player_id", playerID, "correct", false, "token_id", tokenID)
		middleware.JSONResponse(w, http.StatusOK, models.RevealResponse{
			RoundID:     rd.ID,
			PlayerID:    playerID,
			Correct:     false,
			TokenID:     tokenID,
			DisplayName: displayName,
		})
		return
	}

	if rd.PrizeFunded < rd.PrizeAmount {
		// Deliberate forfeiture: the reveal is consumed even though no
		// prize or token is issued. Committing here is the one place an
		// error response persists a state change.
		if err := emitEvent(tx, rd.ID, "reveal_forfeited", playerID, map[string]int64{
			"prize_funded": rd.PrizeFunded,
			"prize_amount": rd.PrizeAmount,
		}, now); err != nil {
			slog.Error("failed to emit event", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to reveal")
			return
		}
		if err := tx.Commit(); err != nil {
			slog.Error("failed to commit transaction", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to reveal")
			return
		}
		slog.Warn("correct reveal forfeited, prize underfunded",
			"round_id", rd.ID, "player_id", playerID,
			"prize_funded", rd.PrizeFunded, "prize_amount", rd.PrizeAmount)
		middleware.ErrorResponse(w, http.StatusConflict, models.CodePrizeNotFunded, "Prize escrow is underfunded; commitment consumed")
		return
	}

	// Winning reveal: deduct the earmark, pay out, terminate the round.
	if _, err := tx.Exec(`
		UPDATE round SET prize_funded = prize_funded - $1 WHERE id = $2
	`, rd.PrizeAmount, rd.ID); err != nil {
		slog.Error("failed to deduct prize earmark", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to reveal")
		return
	}
	if rd.PrizeAmount > 0 {
		if err := h.ledger.Push(tx, playerID, rd.PrizeAmount); err != nil {
			if errors.Is(err, escrow.ErrTransferFailed) {
				middleware.ErrorResponse(w, http.StatusConflict, models.CodeEscrowTransferFailed, "Prize payout failed")
				return
			}
			slog.Error("escrow push failed", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
			return
		}
	}
	if _, err := tx.Exec(`
		UPDATE round SET won = TRUE, winner = $1, winner_name = $2 WHERE id = $3
	`, playerID, displayName, rd.ID); err != nil {
		slog.Error("failed to record winner", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to reveal")
		return
	}

	tokenID, err := h.issuer.Mint(tx, rd.ID, playerID, true, now)
	if err != nil {
		slog.Error("failed to mint win token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to reveal")
		return
	}
	if err := h.finishReveal(w, tx, rd.ID, playerID, true, tokenID, displayName, now); err != nil {
		return
	}

	slog.Info("reveal resolved", "round_id", rd.ID, "player_id", playerID, "correct", true, "token_id", tokenID)
	middleware.JSONResponse(w, http.StatusOK, models.RevealResponse{
		RoundID:     rd.ID,
		PlayerID:    playerID,
		Correct:     true,
		TokenID:     tokenID,
		DisplayName: displayName,
		PrizePaid:   rd.PrizeAmount,
	})
}

// finishReveal emits the resolution notification and commits. The error
// response is written here so callers just return on failure.
func (h *PlayHandler) finishReveal(w http.ResponseWriter, tx *sql.Tx, roundID int64, playerID string, correct bool, tokenID int64, displayName string, now time.Time) error {
	err := emitEvent(tx, roundID, "reveal", playerID, map[string]any{
		"correct":      correct,
		"token_id":     tokenID,
		"display_name": displayName,
	}, now)
	if err != nil {
		slog.Error("failed to emit event", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to reveal")
		return err
	}
	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to reveal")
		return err
	}
	return nil
}

// ClearExpired handles DELETE /rounds/{id}/commitments/{player}
//
// Permissionless garbage collection of expired, never-revealed
// commitments. The forfeited entry fee stays in the pool.
func (h *PlayHandler) ClearExpired(w http.ResponseWriter, r *http.Request) {
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

	cm, err := loadCommitment(tx, roundID, playerID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusConflict, models.CodeNoCommitment, "No commitment to clear")
		return
	}
	if err != nil {
		slog.Error("failed to query commitment", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}
	if cm.Revealed {
		middleware.ErrorResponse(w, http.StatusConflict, models.CodeAlreadyRevealed, "Commitment already revealed")
		return
	}

	// Inverted check vs. reveal: only fully elapsed windows qualify.
	now := h.now()
	if now.Unix() <= cm.CommittedAt+rd.MaxRevealDelay {
		middleware.ErrorResponse(w, http.StatusConflict, models.CodeCommitNotExpired, "Commitment has not expired yet")
		return
	}

	if _, err := tx.Exec(`
		DELETE FROM commitment WHERE round_id = $1 AND player_id = $2
	`, roundID, playerID); err != nil {
		slog.Error("failed to delete commitment", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to clear commitment")
		return
	}

	if err := emitEvent(tx, roundID, "commit_cleared", playerID, struct{}{}, now); err != nil {
		slog.Error("failed to emit event", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to clear commitment")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Failed to clear commitment")
		return
	}

	slog.Info("expired commitment cleared", "round_id", roundID, "player_id", playerID)
	middleware.JSONResponse(w, http.StatusOK, map[string]any{
		"round_id":  roundID,
		"player_id": playerID,
		"cleared":   true,
	})
}
