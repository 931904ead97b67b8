package handlers

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/Callum-CMc/triviapool/models"
	"github.com/Callum-CMc/triviapool/testutil"
)

func (e *testEnv) getCurrentRound() *httptest.ResponseRecorder {
	req := testutil.MakeRequest("GET", "/rounds/current", nil, nil)
	w := httptest.NewRecorder()
	e.query.GetCurrentRound(w, req)
	return w
}

func (e *testEnv) getRound(id string) *httptest.ResponseRecorder {
	req := testutil.MakeRequest("GET", "/rounds/"+id, nil, nil)
	req.SetPathValue("id", id)
	w := httptest.NewRecorder()
	e.query.GetRound(w, req)
	return w
}

func TestGetCurrentRound(t *testing.T) {
	env := newTestEnv(t)

	assertErrorCode(t, env.getCurrentRound(), http.StatusNotFound, models.CodeNoActiveRound)

	roundID := env.startRound(t, 5, 100)

	w := env.getCurrentRound()
	testutil.AssertStatus(t, w, http.StatusOK)
	var resp models.RoundStatus
	testutil.AssertJSON(t, w, &resp)
	if resp.RoundID != roundID || !resp.Active || resp.Funded || resp.Completed {
		t.Errorf("unexpected status: %+v", resp)
	}

	// Fully funded flips the funded flag.
	env.fundPrizeDirect(t, roundID, 100)
	w = env.getCurrentRound()
	testutil.AssertJSON(t, w, &resp)
	if !resp.Funded {
		t.Error("expected funded round")
	}
}

func TestGetRoundProjections(t *testing.T) {
	env := newTestEnv(t)
	first := env.startRound(t, 5, 100)
	second := env.startRound(t, 5, 100)

	// A superseded round reads as inactive even though unresolved.
	w := env.getRound(strconv.FormatInt(first, 10))
	testutil.AssertStatus(t, w, http.StatusOK)
	var resp models.RoundStatus
	testutil.AssertJSON(t, w, &resp)
	if resp.Active || resp.Completed {
		t.Errorf("superseded round: %+v", resp)
	}

	// A won round carries the winner identity.
	env.db.Exec(`
		UPDATE round SET won = TRUE, winner = 'p1', winner_name = 'Alice' WHERE id = $1
	`, second)
	w = env.getRound(strconv.FormatInt(second, 10))
	testutil.AssertJSON(t, w, &resp)
	if resp.Active || !resp.Completed || resp.Winner != "p1" || resp.WinnerName != "Alice" {
		t.Errorf("won round: %+v", resp)
	}

	assertErrorCode(t, env.getRound("99"), http.StatusNotFound, models.CodeUnknownRound)
	assertErrorCode(t, env.getRound("abc"), http.StatusBadRequest, models.CodeUnknownRound)
}

func TestGetCommitStatus(t *testing.T) {
	env := newTestEnv(t)
	roundID := env.startRound(t, 0, 100)

	playerID, playerToken := testutil.RegisterTestPlayer(t, env.db)

	status := func() models.CommitStatus {
		req := testutil.MakeRequest("GET", "/rounds/1/commitments/"+playerID, nil, nil)
		req.SetPathValue("id", "1")
		req.SetPathValue("player", playerID)
		w := httptest.NewRecorder()
		env.query.GetCommitStatus(w, req)
		testutil.AssertStatus(t, w, http.StatusOK)
		var resp models.CommitStatus
		testutil.AssertJSON(t, w, &resp)
		return resp
	}

	// Absent is a 200 with present=false, not an error.
	if resp := status(); resp.Present {
		t.Errorf("expected absent commitment, got %+v", resp)
	}

	hash := testutil.CommitmentHex(t, playerID, "Alice", testutil.TestAnswers, testRevealSalt)
	cw := env.commit(playerToken, models.CommitRequest{CommitHash: hash, DisplayName: "Alice"})
	testutil.AssertStatus(t, cw, http.StatusCreated)

	resp := status()
	if !resp.Present || resp.Revealed || resp.Expired {
		t.Errorf("live commitment: %+v", resp)
	}
	if resp.CommitHash != hash || resp.DisplayName != "Alice" || resp.RoundID != roundID {
		t.Errorf("commitment fields: %+v", resp)
	}

	// Past the max reveal delay the projection reports expiry.
	env.advance(2 * time.Hour)
	if resp := status(); !resp.Expired {
		t.Error("expected expired commitment")
	}
}

func TestListPlayers(t *testing.T) {
	env := newTestEnv(t)
	roundID := env.startRound(t, 0, 100)

	var playerIDs []string
	for i := 0; i < 5; i++ {
		playerID, _ := testutil.RegisterTestPlayer(t, env.db)
		hash := testutil.CommitmentHex(t, playerID, "P"+strconv.Itoa(i), testutil.TestAnswers, testRevealSalt)
		testutil.PlaceTestCommitment(t, env.db, roundID, playerID, hash, "P"+strconv.Itoa(i), env.clock.Unix())
		playerIDs = append(playerIDs, playerID)
	}

	list := func(query string) *httptest.ResponseRecorder {
		req := testutil.MakeRequest("GET", "/rounds/1/players"+query, nil, nil)
		req.SetPathValue("id", "1")
		w := httptest.NewRecorder()
		env.query.ListPlayers(w, req)
		return w
	}

	// Full enumeration in registration order.
	w := list("")
	testutil.AssertStatus(t, w, http.StatusOK)
	var resp models.PlayersPageResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Total != 5 || len(resp.Players) != 5 {
		t.Fatalf("full page: %+v", resp)
	}
	for i, id := range playerIDs {
		if resp.Players[i] != id {
			t.Errorf("position %d = %s, want %s", i, resp.Players[i], id)
		}
	}

	// A bounded middle page.
	w = list("?offset=1&limit=2")
	testutil.AssertJSON(t, w, &resp)
	if len(resp.Players) != 2 || resp.Players[0] != playerIDs[1] || resp.Players[1] != playerIDs[2] {
		t.Errorf("middle page: %+v", resp)
	}

	// Offset past the total is an empty page, not an error.
	w = list("?offset=10")
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSON(t, w, &resp)
	if resp.Players == nil || len(resp.Players) != 0 || resp.Total != 5 {
		t.Errorf("past-end page: %+v", resp)
	}

	assertErrorCode(t, list("?offset=-1"), http.StatusBadRequest, models.CodeInvalidRequest)
	assertErrorCode(t, list("?limit=0"), http.StatusBadRequest, models.CodeInvalidRequest)
	assertErrorCode(t, list("?limit=junk"), http.StatusBadRequest, models.CodeInvalidRequest)
}

func TestListPlayersUnknownRound(t *testing.T) {
	env := newTestEnv(t)

	req := testutil.MakeRequest("GET", "/rounds/7/players", nil, nil)
	req.SetPathValue("id", "7")
	w := httptest.NewRecorder()
	env.query.ListPlayers(w, req)
	assertErrorCode(t, w, http.StatusNotFound, models.CodeUnknownRound)
}

func TestGetBalance(t *testing.T) {
	env := newTestEnv(t)
	testutil.FundTestAccount(t, env.db, "alice", 42)

	get := func(id string) *httptest.ResponseRecorder {
		req := testutil.MakeRequest("GET", "/accounts/"+id, nil, nil)
		req.SetPathValue("id", id)
		w := httptest.NewRecorder()
		env.query.GetBalance(w, req)
		return w
	}

	w := get("alice")
	testutil.AssertStatus(t, w, http.StatusOK)
	var resp models.BalanceResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Balance != 42 {
		t.Errorf("balance = %d, want 42", resp.Balance)
	}

	// Unknown accounts read zero.
	w = get("ghost")
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSON(t, w, &resp)
	if resp.Balance != 0 {
		t.Errorf("ghost balance = %d, want 0", resp.Balance)
	}
}
