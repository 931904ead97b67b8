// Copyright (c) 2026 Callum-CMc.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package token

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/Callum-CMc/triviapool/models"
)

// ErrUnknownToken is returned for ids outside any issued range.
var ErrUnknownToken = errors.New("unknown token id")

// Metadata resolves a token id to its descriptor: a static descriptor
// for loss tokens, a dynamic one embedding round number and winner
// display name for win tokens, a pending placeholder when the round the
// id refers to is not yet resolved.
func Metadata(db *sql.DB, scheme Scheme, id int64) (models.TokenMetadata, error) {
	var currentRound int64
	if err := db.QueryRow(`SELECT COALESCE(MAX(id), 0) FROM round`).Scan(&currentRound); err != nil {
		return models.TokenMetadata{}, fmt.Errorf("current round: %w", err)
	}

	kind, roundID, ok := scheme.Resolve(id, currentRound)
	if !ok {
		return models.TokenMetadata{}, ErrUnknownToken
	}

	if kind == KindLoss {
		return models.TokenMetadata{
			TokenID:     id,
			Status:      "resolved",
			Name:        "Trivia Loss",
			Description: "Participation token for an unsuccessful trivia reveal.",
			Round:       roundID,
		}, nil
	}

	// Round-unbound win token (static scheme): no round to embed.
	if roundID == 0 {
		return models.TokenMetadata{
			TokenID:     id,
			Status:      "resolved",
			Name:        "Trivia Winner",
			Description: "Winner token for a trivia round.",
		}, nil
	}

	var won bool
	var winnerName sql.NullString
	var prizeAmount int64
	err := db.QueryRow(`
		SELECT won, winner_name, prize_amount FROM round WHERE id = $1
	`, roundID).Scan(&won, &winnerName, &prizeAmount)
	if err == sql.ErrNoRows {
		return models.TokenMetadata{}, ErrUnknownToken
	}
	if err != nil {
		return models.TokenMetadata{}, fmt.Errorf("round %d: %w", roundID, err)
	}

	if !won {
		return models.TokenMetadata{
			TokenID: id,
			Status:  "pending",
			Round:   roundID,
		}, nil
	}

	name := winnerName.String
	if name == "" {
		name = "anonymous"
	}
	return models.TokenMetadata{
		TokenID: id,
		Status:  "resolved",
		Name:    fmt.Sprintf("Trivia Round %d Winner", roundID),
		Description: fmt.Sprintf("%s answered all ten questions of round %d correctly and claimed the %s unit prize.",
			name, roundID, humanize.Comma(prizeAmount)),
		Round:  roundID,
		Winner: name,
	}, nil
}
