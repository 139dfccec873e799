// Package auth is the credential lifecycle: bootstrapping the single owner, inviting users,
// redeeming invites into password accounts, logging in and out, and resolving sessions.
//
// Every operation that creates more than one row goes through a single identity.Store call, so the
// owner/user, the invite mark and the first session commit together or not at all.
package auth
