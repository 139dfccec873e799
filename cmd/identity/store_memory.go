package identity

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a single-process Store. One mutex covers every predicate and its mutation.
type MemoryStore struct {
	mu sync.Mutex

	users        map[string]UserAuth // by id
	byEmail      map[string]string   // normalized email -> id
	sessions     map[string]Session  // by digest
	invites      map[string]Invite   // by token hash
	bootstrapped bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]UserAuth),
		byEmail:  make(map[string]string),
		sessions: make(map[string]Session),
		invites:  make(map[string]Invite),
	}
}

func (s *MemoryStore) BootstrapOwner(ctx context.Context, in BootstrapRecord) (User, error) {
	const op = "identity.BootstrapOwner"

	if s == nil {
		return User{}, nilStore(op)
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if err := validBootstrap(op, in); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bootstrapped || len(s.users) > 0 {
		return User{}, ConflictError{Op: op, Field: "owner"}
	}

	s.putUserLocked(in.Owner)
	s.sessions[in.Session.Digest] = in.Session
	s.bootstrapped = true
	return normalizedUser(in.Owner.User), nil
}

func (s *MemoryStore) RedeemInvite(ctx context.Context, in RedeemRecord) (User, Invite, error) {
	const op = "identity.RedeemInvite"

	if s == nil {
		return User{}, Invite{}, nilStore(op)
	}
	if err := ctx.Err(); err != nil {
		return User{}, Invite{}, err
	}
	if err := validRedeem(op, in); err != nil {
		return User{}, Invite{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invites[in.TokenHash]
	if !ok || !inv.Redeemable(in.Now) {
		return User{}, Invite{}, notActive(op, "invite unknown, used or expired")
	}
	if _, taken := s.users[in.User.User.ID]; taken {
		return User{}, Invite{}, ConflictError{Op: op, Field: "id"}
	}
	if in.User.User.Email != nil {
		if _, taken := s.byEmail[NormalizeEmail(*in.User.User.Email)]; taken {
			return User{}, Invite{}, ConflictError{Op: op, Field: "email"}
		}
	}
	if _, taken := s.sessions[in.Session.Digest]; taken {
		return User{}, Invite{}, ConflictError{Op: op, Field: "session"}
	}

	usedBy := in.User.User.ID
	usedAt := in.Now
	inv.UsedBy = &usedBy
	inv.UsedAt = &usedAt
	s.invites[in.TokenHash] = inv

	s.putUserLocked(in.User)
	s.sessions[in.Session.Digest] = in.Session
	return normalizedUser(in.User.User), inv, nil
}

func (s *MemoryStore) CreateInvite(ctx context.Context, in Invite) (Invite, error) {
	const op = "identity.CreateInvite"

	if s == nil {
		return Invite{}, nilStore(op)
	}
	if err := ctx.Err(); err != nil {
		return Invite{}, err
	}
	if err := validInvite(op, in); err != nil {
		return Invite{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[in.CreatedBy]; !ok {
		return Invite{}, NotFoundError{Op: op, Resource: "user"}
	}
	if _, dup := s.invites[in.TokenHash]; dup {
		return Invite{}, ConflictError{Op: op, Field: "token"}
	}
	in.UsedBy, in.UsedAt = nil, nil
	s.invites[in.TokenHash] = in
	return in, nil
}

func (s *MemoryStore) GetInviteByTokenHash(ctx context.Context, tokenHash string) (Invite, error) {
	const op = "identity.GetInviteByTokenHash"

	if s == nil {
		return Invite{}, nilStore(op)
	}
	if err := ctx.Err(); err != nil {
		return Invite{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invites[tokenHash]
	if !ok {
		return Invite{}, NotFoundError{Op: op, Resource: "invite"}
	}
	return inv, nil
}

func (s *MemoryStore) CreateSession(ctx context.Context, in Session) error {
	const op = "identity.CreateSession"

	if s == nil {
		return nilStore(op)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validSession(op, in, in.UserID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[in.UserID]; !ok {
		return NotFoundError{Op: op, Resource: "user"}
	}
	if _, dup := s.sessions[in.Digest]; dup {
		return ConflictError{Op: op, Field: "session"}
	}
	s.sessions[in.Digest] = in
	return nil
}

func (s *MemoryStore) DeleteSession(ctx context.Context, digest string) error {
	const op = "identity.DeleteSession"

	if s == nil {
		return nilStore(op)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.sessions, digest)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ResolveSession(ctx context.Context, digest string, now time.Time) (User, error) {
	const op = "identity.ResolveSession"

	if s == nil {
		return User{}, nilStore(op)
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[digest]
	if !ok || !sess.ExpiresAt.After(now) {
		return User{}, notActive(op, "session missing or expired")
	}
	ua, ok := s.users[sess.UserID]
	if !ok {
		return User{}, notActive(op, "session user missing")
	}
	return copyUser(ua.User), nil
}

func (s *MemoryStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	const op = "identity.GetUserAuthByEmail"

	if s == nil {
		return UserAuth{}, nilStore(op)
	}
	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
	}
	ua := s.users[id]
	return UserAuth{User: copyUser(ua.User), PasswordHash: cloneString(ua.PasswordHash)}, nil
}

func (s *MemoryStore) putUserLocked(ua UserAuth) {
	ua.User = normalizedUser(ua.User)
	ua.PasswordHash = cloneString(ua.PasswordHash)
	if ua.User.Email != nil {
		s.byEmail[*ua.User.Email] = ua.User.ID
	}
	s.users[ua.User.ID] = ua
}

func copyUser(u User) User {
	u.Email = cloneString(u.Email)
	return u
}
