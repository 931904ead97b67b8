// Copyright (c) 2026 Callum-CMc.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database schema creation.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and
indexes. The DDL sticks to types that behave identically on PostgreSQL
and SQLite: BIGINT unix-second timestamps and TEXT hex digests.

# Tables

The schema includes:

  - round: round economics, reveal window, resolution state
  - round_answer: the ten salted answer digests per round
  - player: registered identities with bearer tokens and the ban flag
  - commitment: one live commitment per player per round
  - round_player: append-only enumeration index in commit order
  - account: the internal escrow ledger
  - issued_token: minted win/loss outcome tokens
  - event: append-only audit trail of state changes

# Relationships

	round 1──* round_answer
	round 1──* commitment
	round 1──* round_player
	round 1──* issued_token
	player 1──1 account

# Indexes

Performance indexes on:

  - player.token
  - round_player.(round_id, position)
  - issued_token.round_id and issued_token.player_id
  - event.round_id
*/
package db
