// Copyright (c) 2026 Callum-CMc.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

A .env file in the working directory is loaded first if present.

# CLI Flags

	-p             Server port
	-d             Database URL
	-t             Database type (sqlite or postgres)
	-admin-salt    Admin key salt
	-token-scheme  Outcome-token scheme: static, offset or round
	-loss-base     Loss token base id (offset scheme)
	-win-base      Win token base id (offset scheme)
	-min-reveal    Default minimum reveal delay
	-max-reveal    Default maximum reveal delay

# Environment Variables

Flags fall back to environment variables:

	PORT             → -p
	DATABASE_URL     → -d
	DATABASE_TYPE    → -t
	ADMIN_KEY_SALT   → -admin-salt
	TOKEN_SCHEME     → -token-scheme
	MIN_REVEAL_DELAY → -min-reveal
	MAX_REVEAL_DELAY → -max-reveal

CLI flags take precedence over environment variables.

# Validation

ParseFlags returns an error if required values are missing or
inconsistent:

  - DATABASE_URL must be provided
  - ADMIN_KEY_SALT must be provided
  - TOKEN_SCHEME must be one of static, offset, round
  - the win token base must exceed the loss token base (offset scheme)
  - the minimum reveal delay must be below the maximum
*/
package cliparse
