// Copyright (c) 2026 Callum-CMc.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides authentication and token generation utilities.

# Admin Keys

The service admin key is derived with HMAC-SHA256 from the configured
salt:

	adminKey := auth.GenerateAdminKey(salt)
	err := auth.ValidateAdminKey(adminKey, salt)

The key is URL-safe base64 encoded without padding. Since it's
deterministic, validation needs no database lookup; rotating the salt
rotates the key.

# Player Tokens

Player tokens are random 24-byte (192-bit) bearer secrets:

	token, err := auth.GeneratePlayerToken()

Tokens are URL-safe base64 encoded and authenticate commit and reveal
submissions via the X-Player-Token header.

# ID Generation

Random hex IDs for database records:

	id, err := auth.GenerateID(16)  // 32 hex characters

Player identities are such hex IDs; their ASCII bytes are what gets
bound into answer commitments.
*/
package auth
