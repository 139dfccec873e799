// Package session mints and resolves vanish sessions.
//
// A session id is an opaque 32-byte random bearer secret handed to the client once. The store
// keeps only its digest (HMAC-SHA256 when VANISH_TOKEN_HMAC_KEY is set, SHA-256 otherwise), so a
// leaked table cannot be replayed. There are no access tokens and no refresh rotation: a session is
// valid until it expires or is destroyed on logout.
package session
