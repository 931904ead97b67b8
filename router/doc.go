// Copyright (c) 2026 Callum-CMc.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the triviapool API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(db, cfg)

# Endpoints

Health:

	GET /health

Round lifecycle (admin, requires X-Admin-Key):

	POST /rounds                   - Start a round
	POST /rounds/current/answers   - Replace the answer key
	POST /rounds/current/economics - Adjust fee, prize and window
	POST /rounds/{id}/fund         - Escrow prize funds
	POST /rounds/current/cancel    - Cancel and force-resolve committers
	POST /treasury/withdraw        - Sweep custody funds
	POST /players/{id}/ban         - Set or clear the ban flag
	POST /accounts/{id}/deposit    - Credit an escrow account

Play (requires X-Player-Token):

	POST /players/register           - Create a player identity
	POST /rounds/current/commitments - Place a commitment
	POST /rounds/current/reveals     - Reveal answers

Cleanup (permissionless):

	DELETE /rounds/{id}/commitments/{player} - Purge an expired commitment

Queries (public):

	GET /rounds/current                   - Current round status
	GET /rounds/{id}                      - Any round's status
	GET /rounds/{id}/commitments/{player} - Commit status projection
	GET /rounds/{id}/players              - Paged player enumeration
	GET /accounts/{id}                    - Escrow balance
	GET /tokens/{id}/metadata             - Outcome-token descriptor

# Handler Initialization

The router builds the shared collaborators (ledger, token scheme and
issuer) and the single mutex serializing mutations, then wires them
into the handler structs:

	roundHandler := handlers.NewRoundHandler(db, cfg, ledger, issuer, &mu)
	playHandler := handlers.NewPlayHandler(db, cfg, ledger, issuer, &mu)
	queryHandler := handlers.NewQueryHandler(db, cfg, ledger)
	tokenHandler := handlers.NewTokenHandler(db, scheme)
*/
package router
