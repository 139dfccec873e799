// Package identity owns vanish accounts: users, their sessions and the invites
// that create them.
//
// All credential transitions that touch more than one row (bootstrapping the
// owner, redeeming an invite) are single Store calls so each backend can make
// them atomic. Session ids and invite secrets reach this package only as digests.
package identity
