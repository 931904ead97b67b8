// Copyright (c) 2026 Callum-CMc.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package token

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Callum-CMc/triviapool/cliparse"
)

// Kind of an issued or resolvable outcome token.
const (
	KindWin  = "win"
	KindLoss = "loss"
)

// Scheme maps round outcomes to token ids and back. The reverse mapping
// drives metadata resolution.
type Scheme struct {
	Name     string
	LossBase int64
	WinBase  int64
}

func NewScheme(cfg cliparse.Config) Scheme {
	return Scheme{
		Name:     cfg.TokenScheme,
		LossBase: cfg.LossTokenBase,
		WinBase:  cfg.WinTokenBase,
	}
}

// WinID returns the token id minted to the winner of roundID.
func (s Scheme) WinID(roundID int64) int64 {
	switch s.Name {
	case cliparse.SchemeOffset:
		return s.WinBase + roundID
	case cliparse.SchemeRound:
		return roundID
	default: // static
		return 1
	}
}

// LossID returns the token id minted to a losing participant of roundID.
func (s Scheme) LossID(roundID int64) int64 {
	switch s.Name {
	case cliparse.SchemeOffset:
		return s.LossBase + roundID
	default: // static, round
		return 0
	}
}

// Resolve maps a token id back to its kind and, for round-bound ids,
// the round it refers to. currentRound bounds the issued range; ids
// outside it report ok=false. Round-unbound kinds return roundID 0.
func (s Scheme) Resolve(id, currentRound int64) (kind string, roundID int64, ok bool) {
	switch s.Name {
	case cliparse.SchemeOffset:
		if id > s.WinBase && id-s.WinBase <= currentRound {
			return KindWin, id - s.WinBase, true
		}
		if id > s.LossBase && id-s.LossBase <= currentRound && id <= s.WinBase {
			return KindLoss, id - s.LossBase, true
		}
		return "", 0, false
	case cliparse.SchemeRound:
		if id == 0 {
			return KindLoss, 0, true
		}
		if id >= 1 && id <= currentRound {
			return KindWin, id, true
		}
		return "", 0, false
	default: // static
		switch id {
		case 0:
			return KindLoss, 0, true
		case 1:
			return KindWin, 0, true
		}
		return "", 0, false
	}
}

// Issuer is the outcome-token collaborator: mints exactly one win or
// loss unit to a player, on the caller's transaction.
type Issuer interface {
	Mint(tx *sql.Tx, roundID int64, playerID string, win bool, now time.Time) (int64, error)
}

// SQLIssuer records issued tokens in the issued_token table, numbering
// them under the configured scheme.
type SQLIssuer struct {
	scheme Scheme
}

func NewSQLIssuer(scheme Scheme) *SQLIssuer {
	return &SQLIssuer{scheme: scheme}
}

func (i *SQLIssuer) Mint(tx *sql.Tx, roundID int64, playerID string, win bool, now time.Time) (int64, error) {
	tokenID := i.scheme.LossID(roundID)
	if win {
		tokenID = i.scheme.WinID(roundID)
	}

	_, err := tx.Exec(`
		INSERT INTO issued_token (id, token_id, round_id, player_id, win, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.NewString(), tokenID, roundID, playerID, win, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("mint token %d: %w", tokenID, err)
	}

	return tokenID, nil
}
