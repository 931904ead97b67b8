// Copyright (c) 2026 Callum-CMc.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Callum-CMc/triviapool/auth"
	"github.com/Callum-CMc/triviapool/middleware"
	"github.com/Callum-CMc/triviapool/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
}

// round mirrors one row of the round table.
type round struct {
	ID             int64
	EntryFee       int64
	PrizeAmount    int64
	AnswerSalt     string
	MinRevealDelay int64
	MaxRevealDelay int64
	PrizeFunded    int64
	Won            bool
	Cancelled      bool
	Winner         sql.NullString
	WinnerName     sql.NullString
	CancelCursor   int64
	StartedAt      int64
}

const roundColumns = `id, entry_fee, prize_amount, answer_salt, min_reveal_delay,
	       max_reveal_delay, prize_funded, won, cancelled, winner, winner_name,
	       cancel_cursor, started_at`

func scanRound(row *sql.Row) (round, error) {
	var rd round
	err := row.Scan(
		&rd.ID, &rd.EntryFee, &rd.PrizeAmount, &rd.AnswerSalt, &rd.MinRevealDelay,
		&rd.MaxRevealDelay, &rd.PrizeFunded, &rd.Won, &rd.Cancelled, &rd.Winner,
		&rd.WinnerName, &rd.CancelCursor, &rd.StartedAt,
	)
	return rd, err
}

// currentRoundID returns the highest assigned round id, 0 when no round
// has ever been started. Round ids only increase.
func currentRoundID(q querier) (int64, error) {
	var id int64
	err := q.QueryRow(`SELECT COALESCE(MAX(id), 0) FROM round`).Scan(&id)
	return id, err
}

func loadRound(q querier, id int64) (round, error) {
	return scanRound(q.QueryRow(`SELECT `+roundColumns+` FROM round WHERE id = $1`, id))
}

// loadCurrentRound returns the current round, or sql.ErrNoRows when no
// round has been started yet.
func loadCurrentRound(q querier) (round, error) {
	return scanRound(q.QueryRow(`
		SELECT ` + roundColumns + ` FROM round
		WHERE id = (SELECT MAX(id) FROM round)
	`))
}

func loadAnswerHashes(q querier, roundID int64) ([]string, error) {
	rows, err := q.Query(`
		SELECT answer_hash FROM round_answer WHERE round_id = $1 ORDER BY idx
	`, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// commitRow mirrors one row of the commitment table.
type commitRow struct {
	CommitHash  string
	DisplayName string
	CommittedAt int64
	Revealed    bool
}

func loadCommitment(q querier, roundID int64, playerID string) (commitRow, error) {
	var c commitRow
	err := q.QueryRow(`
		SELECT commit_hash, display_name, committed_at, revealed
		FROM commitment WHERE round_id = $1 AND player_id = $2
	`, roundID, playerID).Scan(&c.CommitHash, &c.DisplayName, &c.CommittedAt, &c.Revealed)
	return c, err
}

// requireAdmin validates the X-Admin-Key header; writes the error
// response and returns false on failure.
func requireAdmin(w http.ResponseWriter, r *http.Request, salt string) bool {
	if err := auth.ValidateAdminKey(r.Header.Get("X-Admin-Key"), salt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, models.CodeNotAdmin, "Invalid admin key")
		return false
	}
	return true
}

// requirePlayer resolves the X-Player-Token header to a player id and
// enforces the ban gate; writes the error response and returns false on
// failure.
func requirePlayer(w http.ResponseWriter, r *http.Request, db *sql.DB) (string, bool) {
	token := r.Header.Get("X-Player-Token")
	if token == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, models.CodeInvalidToken, "X-Player-Token header required")
		return "", false
	}

	var playerID string
	var banned bool
	err := db.QueryRow(`SELECT id, banned FROM player WHERE token = $1`, token).Scan(&playerID, &banned)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusUnauthorized, models.CodeInvalidToken, "Unknown player token")
		return "", false
	}
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return "", false
	}
	if banned {
		middleware.ErrorResponse(w, http.StatusForbidden, models.CodeBanned, "Player is banned")
		return "", false
	}
	return playerID, true
}

// validDisplayName enforces length 1-32 and the restricted charset:
// alphanumerics, space, underscore, period, hyphen.
func validDisplayName(name string) bool {
	if len(name) < 1 || len(name) > 32 {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == ' ' || c == '_' || c == '.' || c == '-':
		default:
			return false
		}
	}
	return true
}

// emitEvent persists a notification row in the caller's transaction.
func emitEvent(tx *sql.Tx, roundID int64, kind, playerID string, payload any, now time.Time) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", kind, err)
	}

	var pid any
	if playerID != "" {
		pid = playerID
	}
	_, err = tx.Exec(`
		INSERT INTO event (id, round_id, kind, player_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.NewString(), roundID, kind, pid, string(body), now.Unix())
	if err != nil {
		return fmt.Errorf("insert %s event: %w", kind, err)
	}
	return nil
}
