// Package password hashes account passwords with Argon2id and enforces the
// length policy applied at signup.
//
// Hashes use the PHC string format. Stored hashes are treated as untrusted on
// verify: parameters far above the configured cost are refused.
package password
