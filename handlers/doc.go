// Copyright (c) 2026 Callum-CMc.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the triviapool API.

# Handler Types

Each handler is a struct with database, config and ledger dependencies:

  - RoundHandler: round lifecycle, funding, treasury, bans, cancellation
  - PlayHandler: registration, commit, reveal, expired-commit cleanup
  - QueryHandler: read-only projections (round/commit status, players, balances)
  - TokenHandler: outcome-token metadata

Handlers are created via constructor functions; the mutating handlers
additionally share a single sync.Mutex that serializes every
state-changing operation:

	roundHandler := handlers.NewRoundHandler(db, cfg, ledger, issuer, &mu)

# Round Lifecycle

	POST /rounds                  → StartRound (id = current + 1)
	POST /rounds/current/answers  → UpdateAnswers
	POST /rounds/current/economics → UpdateEconomics
	POST /rounds/{id}/fund        → FundPrize (any round id)
	POST /rounds/current/cancel   → CancelRound (chunked, resumable)

Admin operations require the X-Admin-Key header.

# Play Flow

	POST /players/register            → Register (returns bearer token)
	POST /rounds/current/commitments  → Commit (pulls the entry fee)
	POST /rounds/current/reveals      → Reveal

Player operations require the X-Player-Token header; banned players are
rejected before any state is touched. Reveals are accepted only inside
the window [commit+min, commit+max) and are verified against the stored
commitment digest before the answers are checked.

# Outcomes

A fully correct reveal pays the escrowed prize, records the winner and
mints a win token. Any wrong answer mints a loss token and leaves the
round open. A correct reveal against an underfunded prize is forfeited:
the commitment is consumed but nothing is paid or minted.

# Cleanup

	DELETE /rounds/{id}/commitments/{player} → ClearExpired

Permissionless removal of expired, never-revealed commitments. Entry
fees are not refunded.
*/
package handlers
