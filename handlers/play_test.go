package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Callum-CMc/triviapool/cliparse"
	"github.com/Callum-CMc/triviapool/escrow"
	"github.com/Callum-CMc/triviapool/models"
	"github.com/Callum-CMc/triviapool/testutil"
	"github.com/Callum-CMc/triviapool/token"
)

const testRevealSalt = "0102030405060708"

// testEnv wires the full handler set over one in-memory database with a
// controllable clock.
type testEnv struct {
	db     *sql.DB
	cfg    cliparse.Config
	ledger escrow.Ledger
	rounds *RoundHandler
	play   *PlayHandler
	query  *QueryHandler
	clock  time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { db.Close() })

	cfg := testutil.GetTestConfig()
	ledger := escrow.NewSQLLedger()
	scheme := token.NewScheme(cfg)
	issuer := token.NewSQLIssuer(scheme)
	var mu sync.Mutex

	env := &testEnv{
		db:     db,
		cfg:    cfg,
		ledger: ledger,
		rounds: NewRoundHandler(db, cfg, ledger, issuer, &mu),
		play:   NewPlayHandler(db, cfg, ledger, issuer, &mu),
		query:  NewQueryHandler(db, cfg, ledger),
		clock:  time.Unix(1_000_000, 0),
	}
	now := func() time.Time { return env.clock }
	env.rounds.now = now
	env.play.now = now
	env.query.now = now
	return env
}

func (e *testEnv) advance(d time.Duration) {
	e.clock = e.clock.Add(d)
}

// startRound creates a round through the fixture (min delay 60s, max
// delay 3600s) anchored at the current test clock.
func (e *testEnv) startRound(t *testing.T, entryFee, prizeAmount int64) int64 {
	t.Helper()
	return testutil.CreateTestRound(t, e.db, entryFee, prizeAmount, 60, 3600, e.clock.Unix())
}

func (e *testEnv) fundPrizeDirect(t *testing.T, roundID, amount int64) {
	t.Helper()
	if _, err := e.db.Exec(`UPDATE round SET prize_funded = $1 WHERE id = $2`, amount, roundID); err != nil {
		t.Fatalf("Failed to fund prize: %v", err)
	}
	testutil.FundTestAccount(t, e.db, escrow.CustodyAccount, amount)
}

func (e *testEnv) commit(token string, body models.CommitRequest) *httptest.ResponseRecorder {
	req := testutil.MakeRequest("POST", "/rounds/current/commitments", body, map[string]string{
		"X-Player-Token": token,
	})
	w := httptest.NewRecorder()
	e.play.Commit(w, req)
	return w
}

func (e *testEnv) reveal(token string, body models.RevealRequest) *httptest.ResponseRecorder {
	req := testutil.MakeRequest("POST", "/rounds/current/reveals", body, map[string]string{
		"X-Player-Token": token,
	})
	w := httptest.NewRecorder()
	e.play.Reveal(w, req)
	return w
}

func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	testutil.AssertStatus(t, w, status)
	var resp models.ErrorResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Error != code {
		t.Errorf("Expected error code %q, got %q (message: %s)", code, resp.Error, resp.Message)
	}
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	req := testutil.MakeRequest("POST", "/players/register", nil, nil)
	w := httptest.NewRecorder()
	env.play.Register(w, req)

	testutil.AssertStatus(t, w, http.StatusCreated)
	var resp models.RegisterPlayerResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.PlayerID == "" || resp.PlayerToken == "" {
		t.Fatal("Expected non-empty player id and token")
	}

	// Registration opens an escrow account at zero.
	balance, err := env.ledger.Balance(env.db, resp.PlayerID)
	if err != nil || balance != 0 {
		t.Errorf("Balance = %d, %v; want 0, nil", balance, err)
	}
}

func TestCommit(t *testing.T) {
	env := newTestEnv(t)
	roundID := env.startRound(t, 5, 100)

	playerID, playerToken := testutil.RegisterTestPlayer(t, env.db)
	testutil.FundTestAccount(t, env.db, playerID, 50)

	commitHash := testutil.CommitmentHex(t, playerID, "Alice", testutil.TestAnswers, testRevealSalt)

	w := env.commit(playerToken, models.CommitRequest{CommitHash: commitHash, DisplayName: "Alice"})
	testutil.AssertStatus(t, w, http.StatusCreated)

	var resp models.CommitResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.RoundID != roundID || resp.CommittedAt != env.clock.Unix() {
		t.Errorf("unexpected commit response: %+v", resp)
	}

	// Entry fee moved into custody.
	if balance, _ := env.ledger.Balance(env.db, playerID); balance != 45 {
		t.Errorf("player balance = %d, want 45", balance)
	}
	if balance, _ := env.ledger.Balance(env.db, escrow.CustodyAccount); balance != 5 {
		t.Errorf("custody balance = %d, want 5", balance)
	}

	// Player registered in the round index.
	var indexed bool
	if err := env.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM round_player WHERE round_id = $1 AND player_id = $2)
	`, roundID, playerID).Scan(&indexed); err != nil || !indexed {
		t.Errorf("player not indexed (err=%v)", err)
	}
}

func TestCommitValidation(t *testing.T) {
	env := newTestEnv(t)
	env.startRound(t, 5, 100)

	playerID, playerToken := testutil.RegisterTestPlayer(t, env.db)
	testutil.FundTestAccount(t, env.db, playerID, 50)
	goodHash := testutil.CommitmentHex(t, playerID, "Alice", testutil.TestAnswers, testRevealSalt)

	tests := []struct {
		name   string
		body   models.CommitRequest
		status int
		code   string
	}{
		{
			name:   "zero commit hash",
			body:   models.CommitRequest{CommitHash: "0000000000000000000000000000000000000000000000000000000000000000", DisplayName: "Alice"},
			status: http.StatusBadRequest,
			code:   models.CodeInvalidCommitment,
		},
		{
			name:   "malformed commit hash",
			body:   models.CommitRequest{CommitHash: "not-hex", DisplayName: "Alice"},
			status: http.StatusBadRequest,
			code:   models.CodeInvalidCommitment,
		},
		{
			name:   "empty display name",
			body:   models.CommitRequest{CommitHash: goodHash, DisplayName: ""},
			status: http.StatusBadRequest,
			code:   models.CodeInvalidDisplayName,
		},
		{
			name:   "display name too long",
			body:   models.CommitRequest{CommitHash: goodHash, DisplayName: "this display name is well beyond thirty two characters"},
			status: http.StatusBadRequest,
			code:   models.CodeInvalidDisplayName,
		},
		{
			name:   "display name bad charset",
			body:   models.CommitRequest{CommitHash: goodHash, DisplayName: "al!ce"},
			status: http.StatusBadRequest,
			code:   models.CodeInvalidDisplayName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.commit(playerToken, tt.body)
			assertErrorCode(t, w, tt.status, tt.code)
		})
	}
}

func TestCommitNoActiveRound(t *testing.T) {
	env := newTestEnv(t)
	playerID, playerToken := testutil.RegisterTestPlayer(t, env.db)
	hash := testutil.CommitmentHex(t, playerID, "Alice", testutil.TestAnswers, testRevealSalt)

	w := env.commit(playerToken, models.CommitRequest{CommitHash: hash, DisplayName: "Alice"})
	assertErrorCode(t, w, http.StatusConflict, models.CodeNoActiveRound)
}

func TestCommitBannedPlayer(t *testing.T) {
	env := newTestEnv(t)
	env.startRound(t, 5, 100)

	playerID, playerToken := testutil.RegisterTestPlayer(t, env.db)
	if _, err := env.db.Exec(`UPDATE player SET banned = TRUE WHERE id = $1`, playerID); err != nil {
		t.Fatalf("Failed to ban player: %v", err)
	}
	hash := testutil.CommitmentHex(t, playerID, "Alice", testutil.TestAnswers, testRevealSalt)

	w := env.commit(playerToken, models.CommitRequest{CommitHash: hash, DisplayName: "Alice"})
	assertErrorCode(t, w, http.StatusForbidden, models.CodeBanned)
}

func TestCommitInsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	env.startRound(t, 50, 100)

	playerID, playerToken := testutil.RegisterTestPlayer(t, env.db)
	testutil.FundTestAccount(t, env.db, playerID, 10)
	hash := testutil.CommitmentHex(t, playerID, "Alice", testutil.TestAnswers, testRevealSalt)

	w := env.commit(playerToken, models.CommitRequest{CommitHash: hash, DisplayName: "Alice"})
	assertErrorCode(t, w, http.StatusConflict, models.CodeEscrowTransferFailed)

	// Aborted with nothing changed: no commitment, no index entry.
	var n int
	env.db.QueryRow(`SELECT COUNT(*) FROM commitment`).Scan(&n)
	if n != 0 {
		t.Errorf("expected no commitment rows, got %d", n)
	}
	if balance, _ := env.ledger.Balance(env.db, playerID); balance != 10 {
		t.Errorf("player balance = %d, want 10", balance)
	}
}

func TestCommitLiveCommitmentNotReplaceable(t *testing.T) {
	env := newTestEnv(t)
	env.startRound(t, 5, 100)

	playerID, playerToken := testutil.RegisterTestPlayer(t, env.db)
	testutil.FundTestAccount(t, env.db, playerID, 50)
	hash := testutil.CommitmentHex(t, playerID, "Alice", testutil.TestAnswers, testRevealSalt)

	w := env.commit(playerToken, models.CommitRequest{CommitHash: hash, DisplayName: "Alice"})
	testutil.AssertStatus(t, w, http.StatusCreated)

	// Still inside the reveal window: replacement refused.
	env.advance(10 * time.Minute)
	w = env.commit(playerToken, models.CommitRequest{CommitHash: hash, DisplayName: "Alice"})
	assertErrorCode(t, w, http.StatusConflict, models.CodeActiveCommitExists)
}

func TestCommitExpiredCommitmentReplaceable(t *testing.T) {
	env := newTestEnv(t)
	env.startRound(t, 5, 100)

	playerID, playerToken := testutil.RegisterTestPlayer(t, env.db)
	testutil.FundTestAccount(t, env.db, playerID, 50)
	hash := testutil.CommitmentHex(t, playerID, "Alice", testutil.TestAnswers, testRevealSalt)

	w := env.commit(playerToken, models.CommitRequest{CommitHash: hash, DisplayName: "Alice"})
	testutil.AssertStatus(t, w, http.StatusCreated)

	// Past the max reveal delay the stale commitment no longer blocks;
	// a second entry fee is pulled.
	env.advance(2 * time.Hour)
	w = env.commit(playerToken, models.CommitRequest{CommitHash: hash, DisplayName: "Alice"})
	testutil.AssertStatus(t, w, http.StatusCreated)

	if balance, _ := env.ledger.Balance(env.db, playerID); balance != 40 {
		t.Errorf("player balance = %d, want 40 after two entry fees", balance)
	}
}

// Full winning flow: fund, commit, reveal correct answers inside the
// window. Round resolves, prize is paid, a win token is issued.
func TestRevealWin(t *testing.T) {
	env := newTestEnv(t)
	roundID := env.startRound(t, 1, 100)
	env.fundPrizeDirect(t, roundID, 100)

	playerID, playerToken := testutil.RegisterTestPlayer(t, env.db)
	testutil.FundTestAccount(t, env.db, playerID, 1)
	hash := testutil.CommitmentHex(t, playerID, "Alice", testutil.TestAnswers, testRevealSalt)

	w := env.commit(playerToken, models.CommitRequest{CommitHash: hash, DisplayName: "Alice"})
	testutil.AssertStatus(t, w, http.StatusCreated)

	env.advance(2 * time.Minute)
	w = env.reveal(playerToken, models.RevealRequest{
		Answers:    testutil.TestAnswers,
		RevealSalt: testRevealSalt,
	})
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.RevealResponse
	testutil.AssertJSON(t, w, &resp)
	if !resp.Correct {
		t.Fatal("expected a correct reveal")
	}
	if resp.TokenID != roundID {
		t.Errorf("win token id = %d, want round id %d (round scheme)", resp.TokenID, roundID)
	}
	if resp.PrizePaid != 100 {
		t.Errorf("prize paid = %d, want 100", resp.PrizePaid)
	}

	// Round terminal state.
	var won, cancelled bool
	var winner, winnerName sql.NullString
	var prizeFunded int64
	err := env.db.QueryRow(`
		SELECT won, cancelled, winner, winner_name, prize_funded FROM round WHERE id = $1
	`, roundID).Scan(&won, &cancelled, &winner, &winnerName, &prizeFunded)
	if err != nil {
		t.Fatalf("Failed to query round: %v", err)
	}
	if !won || cancelled || winner.String != playerID || winnerName.String != "Alice" {
		t.Errorf("unexpected round state: won=%v cancelled=%v winner=%v name=%v", won, cancelled, winner, winnerName)
	}
	if prizeFunded != 0 {
		t.Errorf("prize_funded = %d, want 0 after payout", prizeFunded)
	}

	// Prize landed in the player's account (1 entry fee out, 100 in).
	if balance, _ := env.ledger.Balance(env.db, playerID); balance != 100 {
		t.Errorf("player balance = %d, want 100", balance)
	}

	// Win token recorded.
	var winTokens int
	env.db.QueryRow(`
		SELECT COUNT(*) FROM issued_token WHERE round_id = $1 AND player_id = $2 AND win = TRUE
	`, roundID, playerID).Scan(&winTokens)
	if winTokens != 1 {
		t.Errorf("win tokens = %d, want 1", winTokens)
	}
}

// One wrong answer is a loss: round stays open, prize untouched, loss
// token issued, and a later committer can still win.
func TestRevealLossKeepsRoundOpen(t *testing.T) {
	env := newTestEnv(t)
	roundID := env.startRound(t, 1, 100)
	env.fundPrizeDirect(t, roundID, 100)

	playerID, playerToken := testutil.RegisterTestPlayer(t, env.db)
	testutil.FundTestAccount(t, env.db, playerID, 1)

	wrongAnswers := append([]string(nil), testutil.TestAnswers...)
	wrongAnswers[4] = "WRONG"
	hash := testutil.CommitmentHex(t, playerID, "Alice", wrongAnswers, testRevealSalt)

	w := env.commit(playerToken, models.CommitRequest{CommitHash: hash, DisplayName: "Alice"})
	testutil.AssertStatus(t, w, http.StatusCreated)

	env.advance(2 * time.Minute)
	w = env.reveal(playerToken, models.RevealRequest{
		Answers:    wrongAnswers,
		RevealSalt: testRevealSalt,
	})
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.RevealResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Correct {
		t.Fatal("expected an incorrect reveal")
	}
	if resp.TokenID != 0 {
		t.Errorf("loss token id = %d, want 0 (round scheme)", resp.TokenID)
	}

	var won bool
	var prizeFunded int64
	env.db.QueryRow(`SELECT won, prize_funded FROM round WHERE id = $1`, roundID).Scan(&won, &prizeFunded)
	if won {
		t.Error("round should stay unresolved after a losing reveal")
	}
	if prizeFunded != 100 {
		t.Errorf("prize_funded = %d, want 100 unchanged", prizeFunded)
	}

	// A second player can still win the round.
	secondID, secondToken := testutil.RegisterTestPlayer(t, env.db)
	testutil.FundTestAccount(t, env.db, secondID, 1)
	hash2 := testutil.CommitmentHex(t, secondID, "Bob", testutil.TestAnswers, testRevealSalt)
	w = env.commit(secondToken, models.CommitRequest{CommitHash: hash2, DisplayName: "Bob"})
	testutil.AssertStatus(t, w, http.StatusCreated)

	env.advance(2 * time.Minute)
	w = env.reveal(secondToken, models.RevealRequest{Answers: testutil.TestAnswers, RevealSalt: testRevealSalt})
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSON(t, w, &resp)
	if !resp.Correct {
		t.Error("second player should win the round")
	}
}

func TestRevealTimingWindow(t *testing.T) {
	env := newTestEnv(t)
	roundID := env.startRound(t, 0, 100)
	env.fundPrizeDirect(t, roundID, 100)

	playerID, playerToken := testutil.RegisterTestPlayer(t, env.db)
	hash := testutil.CommitmentHex(t, playerID, "Alice", testutil.TestAnswers, testRevealSalt)
	w := env.commit(playerToken, models.CommitRequest{CommitHash: hash, DisplayName: "Alice"})
	testutil.AssertStatus(t, w, http.StatusCreated)

	body := models.RevealRequest{Answers: testutil.TestAnswers, RevealSalt: testRevealSalt}

	// Strictly before commit+min: too early.
	env.advance(59 * time.Second)
	assertErrorCode(t, env.reveal(playerToken, body), http.StatusConflict, models.CodeTooEarlyToReveal)

	// At commit+max: expired (window is inclusive of min, exclusive of max).
	env.advance(3600*time.Second - 59*time.Second)
	assertErrorCode(t, env.reveal(playerToken, body), http.StatusConflict, models.CodeCommitmentExpired)
}

func TestRevealAtWindowOpen(t *testing.T) {
	env := newTestEnv(t)
	roundID := env.startRound(t, 0, 100)
	env.fundPrizeDirect(t, roundID, 100)

	playerID, playerToken := testutil.RegisterTestPlayer(t, env.db)
	hash := testutil.CommitmentHex(t, playerID, "Alice", testutil.TestAnswers, testRevealSalt)
	w := env.commit(playerToken, models.CommitRequest{CommitHash: hash, DisplayName: "Alice"})
	testutil.AssertStatus(t, w, http.StatusCreated)

	// Exactly commit+min proceeds to verification.
	env.advance(60 * time.Second)
	w = env.reveal(playerToken, models.RevealRequest{Answers: testutil.TestAnswers, RevealSalt: testRevealSalt})
	testutil.AssertStatus(t, w, http.StatusOK)
}

func TestRevealCommitmentMismatch(t *testing.T) {
	env := newTestEnv(t)
	roundID := env.startRound(t, 0, 100)
	env.fundPrizeDirect(t, roundID, 100)

	playerID, playerToken := testutil.RegisterTestPlayer(t, env.db)
	hash := testutil.CommitmentHex(t, playerID, "Alice", testutil.TestAnswers, testRevealSalt)
	w := env.commit(playerToken, models.CommitRequest{CommitHash: hash, DisplayName: "Alice"})
	testutil.AssertStatus(t, w, http.StatusCreated)

	// Different salt than the one bound into the commitment.
	env.advance(2 * time.Minute)
	w = env.reveal(playerToken, models.RevealRequest{Answers: testutil.TestAnswers, RevealSalt: "ffff"})
	assertErrorCode(t, w, http.StatusConflict, models.CodeCommitmentMismatch)

	// The mismatch rolled back: commitment is still consumable.
	var revealed bool
	env.db.QueryRow(`
		SELECT revealed FROM commitment WHERE round_id = $1 AND player_id = $2
	`, roundID, playerID).Scan(&revealed)
	if revealed {
		t.Error("mismatched reveal must not consume the commitment")
	}
}

func TestRevealAtMostOnce(t *testing.T) {
	env := newTestEnv(t)
	roundID := env.startRound(t, 0, 100)
	env.fundPrizeDirect(t, roundID, 100)

	playerID, playerToken := testutil.RegisterTestPlayer(t, env.db)
	wrongAnswers := append([]string(nil), testutil.TestAnswers...)
	wrongAnswers[0] = "X"
	hash := testutil.CommitmentHex(t, playerID, "Alice", wrongAnswers, testRevealSalt)
	w := env.commit(playerToken, models.CommitRequest{CommitHash: hash, DisplayName: "Alice"})
	testutil.AssertStatus(t, w, http.StatusCreated)

	env.advance(2 * time.Minute)
	body := models.RevealRequest{Answers: wrongAnswers, RevealSalt: testRevealSalt}
	testutil.AssertStatus(t, env.reveal(playerToken, body), http.StatusOK)

	assertErrorCode(t, env.reveal(playerToken, body), http.StatusConflict, models.CodeAlreadyRevealed)
}

// A correct reveal against an underfunded prize forfeits the
// commitment: no payout, no token, and the reveal is consumed.
func TestRevealPrizeNotFundedForfeits(t *testing.T) {
	env := newTestEnv(t)
	roundID := env.startRound(t, 0, 100)

	playerID, playerToken := testutil.RegisterTestPlayer(t, env.db)
	hash := testutil.CommitmentHex(t, playerID, "Alice", testutil.TestAnswers, testRevealSalt)
	w := env.commit(playerToken, models.CommitRequest{CommitHash: hash, DisplayName: "Alice"})
	testutil.AssertStatus(t, w, http.StatusCreated)

	env.advance(2 * time.Minute)
	body := models.RevealRequest{Answers: testutil.TestAnswers, RevealSalt: testRevealSalt}
	assertErrorCode(t, env.reveal(playerToken, body), http.StatusConflict, models.CodePrizeNotFunded)

	// The commitment is consumed despite the error response.
	var revealed bool
	env.db.QueryRow(`
		SELECT revealed FROM commitment WHERE round_id = $1 AND player_id = $2
	`, roundID, playerID).Scan(&revealed)
	if !revealed {
		t.Error("forfeited reveal must consume the commitment")
	}

	assertErrorCode(t, env.reveal(playerToken, body), http.StatusConflict, models.CodeAlreadyRevealed)

	// No token, no payout, round still open.
	var tokens int
	env.db.QueryRow(`SELECT COUNT(*) FROM issued_token WHERE round_id = $1`, roundID).Scan(&tokens)
	if tokens != 0 {
		t.Errorf("issued tokens = %d, want 0", tokens)
	}
	var won bool
	env.db.QueryRow(`SELECT won FROM round WHERE id = $1`, roundID).Scan(&won)
	if won {
		t.Error("round must stay unresolved after a forfeited reveal")
	}
}

func TestClearExpiredCommit(t *testing.T) {
	env := newTestEnv(t)
	roundID := env.startRound(t, 0, 100)

	playerID, playerToken := testutil.RegisterTestPlayer(t, env.db)
	hash := testutil.CommitmentHex(t, playerID, "Alice", testutil.TestAnswers, testRevealSalt)
	w := env.commit(playerToken, models.CommitRequest{CommitHash: hash, DisplayName: "Alice"})
	testutil.AssertStatus(t, w, http.StatusCreated)

	clear := func() *httptest.ResponseRecorder {
		req := testutil.MakeRequest("DELETE", "/rounds/1/commitments/"+playerID, nil, nil)
		req.SetPathValue("id", "1")
		req.SetPathValue("player", playerID)
		rec := httptest.NewRecorder()
		env.play.ClearExpired(rec, req)
		return rec
	}

	// Inside the window: cleanup refused.
	env.advance(10 * time.Minute)
	assertErrorCode(t, clear(), http.StatusConflict, models.CodeCommitNotExpired)

	// Fully elapsed: anyone may purge it. No refund is issued.
	env.advance(2 * time.Hour)
	testutil.AssertStatus(t, clear(), http.StatusOK)

	var n int
	env.db.QueryRow(`SELECT COUNT(*) FROM commitment WHERE round_id = $1`, roundID).Scan(&n)
	if n != 0 {
		t.Errorf("commitment rows = %d, want 0", n)
	}

	// The index entry survives cleanup.
	env.db.QueryRow(`SELECT COUNT(*) FROM round_player WHERE round_id = $1`, roundID).Scan(&n)
	if n != 1 {
		t.Errorf("index rows = %d, want 1", n)
	}

	// Nothing left to clear.
	assertErrorCode(t, clear(), http.StatusConflict, models.CodeNoCommitment)
}
