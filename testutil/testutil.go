// Copyright (c) 2026 Callum-CMc.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Callum-CMc/triviapool/auth"
	"github.com/Callum-CMc/triviapool/cliparse"
	"github.com/Callum-CMc/triviapool/commitment"
	"github.com/Callum-CMc/triviapool/db"
)

// TestAnswerSalt is the round salt used by test fixtures (hex).
const TestAnswerSalt = "a1b2c3d4e5f60718"

// TestAnswers is the canonical correct answer set used by fixtures.
var TestAnswers = []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}

// SetupTestDB creates a fresh in-memory SQLite database with the full
// schema. A single connection is enforced so every test statement sees
// the same in-memory database.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	conn.SetMaxOpenConns(1)

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:           3419,
		DatabaseURL:    ":memory:",
		DatabaseType:   "sqlite",
		AdminKeySalt:   "test-admin-salt",
		TokenScheme:    cliparse.SchemeRound,
		MinRevealDelay: 60 * time.Second,
		MaxRevealDelay: 3600 * time.Second,
	}
}

// AdminKey returns the admin key matching GetTestConfig.
func AdminKey() string {
	return auth.GenerateAdminKey(GetTestConfig().AdminKeySalt)
}

// SaltedAnswerHashes computes the stored per-question digests for a
// salt and answer set.
func SaltedAnswerHashes(t *testing.T, saltHex string, answers []string) []string {
	t.Helper()

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		t.Fatalf("bad salt hex: %v", err)
	}
	hashes := make([]string, len(answers))
	for i, a := range answers {
		sum := commitment.AnswerHash(salt, a)
		hashes[i] = hex.EncodeToString(sum[:])
	}
	return hashes
}

// CreateTestRound inserts a round with the standard answer key and
// returns its id. startedAt and the reveal window are unix seconds.
func CreateTestRound(t *testing.T, conn *sql.DB, entryFee, prizeAmount int64, minDelay, maxDelay int64, startedAt int64) int64 {
	t.Helper()

	var roundID int64
	if err := conn.QueryRow(`SELECT COALESCE(MAX(id), 0) + 1 FROM round`).Scan(&roundID); err != nil {
		t.Fatalf("Failed to assign round id: %v", err)
	}

	_, err := conn.Exec(`
		INSERT INTO round (id, entry_fee, prize_amount, answer_salt, min_reveal_delay,
		                   max_reveal_delay, prize_funded, won, cancelled, cancel_cursor, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, FALSE, FALSE, 0, $7)
	`, roundID, entryFee, prizeAmount, TestAnswerSalt, minDelay, maxDelay, startedAt)
	if err != nil {
		t.Fatalf("Failed to create test round: %v", err)
	}

	for i, h := range SaltedAnswerHashes(t, TestAnswerSalt, TestAnswers) {
		_, err := conn.Exec(`
			INSERT INTO round_answer (round_id, idx, answer_hash)
			VALUES ($1, $2, $3)
		`, roundID, i, h)
		if err != nil {
			t.Fatalf("Failed to insert answer hash: %v", err)
		}
	}

	return roundID
}

// RegisterTestPlayer inserts a player with an escrow account and
// returns its id and bearer token.
func RegisterTestPlayer(t *testing.T, conn *sql.DB) (playerID, playerToken string) {
	t.Helper()

	playerID, _ = auth.GenerateID(16)
	playerToken, _ = auth.GeneratePlayerToken()

	_, err := conn.Exec(`
		INSERT INTO player (id, token, banned, created_at)
		VALUES ($1, $2, FALSE, $3)
	`, playerID, playerToken, time.Now().Unix())
	if err != nil {
		t.Fatalf("Failed to create test player: %v", err)
	}
	_, err = conn.Exec(`INSERT INTO account (id, balance) VALUES ($1, 0)`, playerID)
	if err != nil {
		t.Fatalf("Failed to create test account: %v", err)
	}

	return playerID, playerToken
}

// FundTestAccount sets an account balance directly, creating the
// account row if needed.
func FundTestAccount(t *testing.T, conn *sql.DB, accountID string, balance int64) {
	t.Helper()

	res, err := conn.Exec(`UPDATE account SET balance = $1 WHERE id = $2`, balance, accountID)
	if err != nil {
		t.Fatalf("Failed to fund account: %v", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := conn.Exec(`INSERT INTO account (id, balance) VALUES ($1, $2)`, accountID, balance); err != nil {
			t.Fatalf("Failed to create account: %v", err)
		}
	}
}

// CommitmentHex computes the commitment digest a client would submit.
func CommitmentHex(t *testing.T, playerID, displayName string, answers []string, revealSaltHex string) string {
	t.Helper()

	salt, err := hex.DecodeString(revealSaltHex)
	if err != nil {
		t.Fatalf("bad reveal salt hex: %v", err)
	}
	digest, err := commitment.Compute(playerID, displayName, answers, salt)
	if err != nil {
		t.Fatalf("Failed to compute commitment: %v", err)
	}
	return hex.EncodeToString(digest[:])
}

// PlaceTestCommitment inserts a commitment row directly, bypassing the
// handler (no fee pull), and registers the player in the round index.
func PlaceTestCommitment(t *testing.T, conn *sql.DB, roundID int64, playerID, commitHash, displayName string, committedAt int64) {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO commitment (round_id, player_id, commit_hash, display_name, committed_at, revealed)
		VALUES ($1, $2, $3, $4, $5, FALSE)
	`, roundID, playerID, commitHash, displayName, committedAt)
	if err != nil {
		t.Fatalf("Failed to create test commitment: %v", err)
	}
	_, err = conn.Exec(`
		INSERT INTO round_player (round_id, player_id, position)
		VALUES ($1, $2, (SELECT COUNT(*) FROM round_player WHERE round_id = $1))
	`, roundID, playerID)
	if err != nil {
		t.Fatalf("Failed to register test player in index: %v", err)
	}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
