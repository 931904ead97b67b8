// Copyright (c) 2026 Callum-CMc.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - StartRoundRequest: economics, answer salt, the ten answer hashes
  - UpdateAnswersRequest / UpdateEconomicsRequest: mid-round edits
  - FundPrizeRequest / WithdrawRequest / DepositRequest: escrow movement
  - CancelRoundRequest: batch limit for chunked cancellation
  - BanRequest: ban flag
  - CommitRequest: commitment digest plus display name
  - RevealRequest: plaintext answers and the reveal salt

# Response Types

Types for JSON responses:

  - RegisterPlayerResponse: player_id, player_token
  - StartRoundResponse: round_id and the effective reveal window
  - FundPrizeResponse / CancelRoundResponse
  - CommitResponse / RevealResponse
  - BalanceResponse / PlayersPageResponse
  - ErrorResponse: error (machine code), message

# Domain Types

  - RoundStatus: full projection of a round's lifecycle state
  - CommitStatus: presence, reveal and expiry state of a commitment
  - TokenMetadata: descriptor for an issued outcome token

# Error Codes

Every error response carries one of the Code* constants, grouped into
validation (invalid_commitment, invalid_timing_window, ...), state
conflict (no_active_round, already_revealed, commitment_expired, ...),
access control (not_admin, banned, invalid_token) and dependency
failure (escrow_transfer_failed).
*/
package models
