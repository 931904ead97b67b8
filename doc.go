// Copyright (c) 2026 Callum-CMc.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the triviapool API server.

triviapool runs commit-reveal trivia contests: players escrow an entry
fee, commit a hidden answer set, and later reveal it inside a timed
window. A fully correct reveal wins the escrowed prize and a win token;
anything else earns a loss token.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=postgres://... go run main.go

Or with flags:

	go run main.go -p 3419 -d "postgres://..." -t postgres

# Configuration

Required settings:

  - DATABASE_URL (-d): database connection string
  - ADMIN_KEY_SALT (-admin-salt): secret for admin key HMAC

Optional settings:

  - PORT (-p): server port (default: 3419)
  - DATABASE_TYPE (-t): "postgres" or "sqlite" (default: sqlite)
  - TOKEN_SCHEME (-token-scheme): outcome-token numbering policy
  - MIN_REVEAL_DELAY / MAX_REVEAL_DELAY: default reveal window

# Architecture

The server uses a handler-based architecture with dependency injection:

  - handlers: HTTP request handlers (rounds, play, queries, tokens)
  - router: route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers
  - models: request/response types and error codes
  - commitment: hashing and verification of answer commitments
  - escrow: the internal account ledger
  - token: outcome-token numbering and metadata
  - auth: key and token generation
  - db: schema creation
  - cliparse: configuration parsing

See package documentation for each component.
*/
package main
