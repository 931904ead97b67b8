// Copyright (c) 2026 Callum-CMc.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
//
// Timestamps are stored as unix seconds and amounts as integer escrow
// units so the same DDL works on both PostgreSQL and SQLite.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const schema = `
-- Rounds. Ids are assigned by the registry (current + 1); 0 means "no round".
CREATE TABLE IF NOT EXISTS round (
    id BIGINT PRIMARY KEY,
    entry_fee BIGINT NOT NULL,
    prize_amount BIGINT NOT NULL,
    answer_salt TEXT NOT NULL,
    min_reveal_delay BIGINT NOT NULL,
    max_reveal_delay BIGINT NOT NULL,
    prize_funded BIGINT NOT NULL DEFAULT 0,
    won BOOLEAN NOT NULL DEFAULT FALSE,
    cancelled BOOLEAN NOT NULL DEFAULT FALSE,
    winner TEXT,
    winner_name TEXT,
    cancel_cursor BIGINT NOT NULL DEFAULT 0,
    started_at BIGINT NOT NULL
);

-- Correct answer hashes, one row per question position (0-9).
CREATE TABLE IF NOT EXISTS round_answer (
    round_id BIGINT NOT NULL REFERENCES round(id) ON DELETE CASCADE,
    idx INTEGER NOT NULL,
    answer_hash TEXT NOT NULL,
    PRIMARY KEY (round_id, idx)
);

-- Registered players. The id doubles as the commitment identity.
CREATE TABLE IF NOT EXISTS player (
    id TEXT PRIMARY KEY,
    token TEXT NOT NULL UNIQUE,
    banned BOOLEAN NOT NULL DEFAULT FALSE,
    created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_player_token ON player(token);

-- Commitments. Deleted only by expired-commitment cleanup.
CREATE TABLE IF NOT EXISTS commitment (
    round_id BIGINT NOT NULL REFERENCES round(id) ON DELETE CASCADE,
    player_id TEXT NOT NULL REFERENCES player(id),
    commit_hash TEXT NOT NULL,
    display_name TEXT NOT NULL,
    committed_at BIGINT NOT NULL,
    revealed BOOLEAN NOT NULL DEFAULT FALSE,
    PRIMARY KEY (round_id, player_id)
);

-- Append-only per-round player index; survives commitment cleanup so
-- cancellation stays idempotent and auditable.
CREATE TABLE IF NOT EXISTS round_player (
    round_id BIGINT NOT NULL REFERENCES round(id) ON DELETE CASCADE,
    player_id TEXT NOT NULL REFERENCES player(id),
    position BIGINT NOT NULL,
    PRIMARY KEY (round_id, player_id)
);

CREATE INDEX IF NOT EXISTS idx_round_player_position ON round_player(round_id, position);

-- Escrow accounts. The custody account holds entry fees and funded prizes.
CREATE TABLE IF NOT EXISTS account (
    id TEXT PRIMARY KEY,
    balance BIGINT NOT NULL DEFAULT 0
);

-- Issued outcome tokens (win/loss units).
CREATE TABLE IF NOT EXISTS issued_token (
    id TEXT PRIMARY KEY,
    token_id BIGINT NOT NULL,
    round_id BIGINT NOT NULL,
    player_id TEXT NOT NULL,
    win BOOLEAN NOT NULL,
    issued_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_issued_token_round ON issued_token(round_id);
CREATE INDEX IF NOT EXISTS idx_issued_token_player ON issued_token(player_id);

-- Emitted notifications, persisted in the same transaction as the
-- state change they describe.
CREATE TABLE IF NOT EXISTS event (
    id TEXT PRIMARY KEY,
    round_id BIGINT NOT NULL,
    kind TEXT NOT NULL,
    player_id TEXT,
    payload TEXT NOT NULL,
    created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_event_round ON event(round_id);
`
