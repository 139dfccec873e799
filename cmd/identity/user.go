package identity

import "time"

// Role is a user's authority level.
type Role string

const (
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleUser:
		return true
	}
	return false
}

// Privileged reports whether r may administer other users' drops and invites.
func (r Role) Privileged() bool {
	return r == RoleOwner || r == RoleAdmin
}

// User is an account as seen by the rest of the service. The password hash never leaves the store
// except through UserAuth.
type User struct {
	ID          string
	Email       *string
	DisplayName string
	Role        Role
	CreatedAt   time.Time
}

// Caller returns the request-scoped identity for u.
func (u User) Caller() *Caller {
	return &Caller{UserID: u.ID, Role: u.Role}
}

// UserAuth is a user plus the credential material needed to log in or to be inserted.
type UserAuth struct {
	User         User
	PasswordHash *string
}

// Caller is the resolved identity of the current request. A nil *Caller is anonymous.
type Caller struct {
	UserID string
	Role   Role
}

// Authenticated reports whether c carries a user.
func (c *Caller) Authenticated() bool {
	return c != nil && c.UserID != ""
}

// Privileged reports whether c is an owner or admin.
func (c *Caller) Privileged() bool {
	return c.Authenticated() && c.Role.Privileged()
}

// Owns reports whether c is the owner of a resource owned by ownerID.
func (c *Caller) Owns(ownerID *string) bool {
	return c.Authenticated() && ownerID != nil && *ownerID == c.UserID
}
