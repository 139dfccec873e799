// Package token generates the opaque secrets handed out by vanish (drop links,
// invite secrets, session ids) and derives the digests stored in their place.
//
// Drop tokens are public lookup keys and are stored as issued. Invite secrets
// and session ids are only ever persisted as Digest output.
//
// Environment:
// - VANISH_TOKEN_HMAC_KEY: when set, Digest uses HMAC-SHA256 with this key.
package token
