package identity

import "strings"

func validUserAuth(op string, ua UserAuth) error {
	u := ua.User
	if strings.TrimSpace(u.ID) == "" {
		return Invalid(op, "user.id", "missing id")
	}
	if NormalizeDisplayName(u.DisplayName) == "" {
		return Invalid(op, "display_name", "required")
	}
	if !u.Role.Valid() {
		return Invalid(op, "role", "unknown role")
	}
	if u.Email != nil && !ValidEmail(*u.Email) {
		return Invalid(op, "email", "invalid email")
	}
	if u.CreatedAt.IsZero() {
		return Invalid(op, "created_at", "missing timestamp")
	}
	return nil
}

func validSession(op string, s Session, userID string) error {
	if len(s.Digest) != 64 {
		return Invalid(op, "session.digest", "malformed digest")
	}
	if s.UserID != userID {
		return Invalid(op, "session.user_id", "session does not belong to user")
	}
	if !s.ExpiresAt.After(s.CreatedAt) {
		return Invalid(op, "session.expires_at", "must be after created_at")
	}
	return nil
}

func validBootstrap(op string, in BootstrapRecord) error {
	if err := validUserAuth(op, in.Owner); err != nil {
		return err
	}
	if in.Owner.User.Role != RoleOwner {
		return Invalid(op, "role", "bootstrap user must be owner")
	}
	return validSession(op, in.Session, in.Owner.User.ID)
}

func validRedeem(op string, in RedeemRecord) error {
	if len(in.TokenHash) != 64 {
		return Invalid(op, "token", "malformed digest")
	}
	if in.Now.IsZero() {
		return Invalid(op, "now", "missing timestamp")
	}
	if err := validUserAuth(op, in.User); err != nil {
		return err
	}
	if in.User.User.Role != RoleUser {
		return Invalid(op, "role", "invited users start as user")
	}
	return validSession(op, in.Session, in.User.User.ID)
}

func validInvite(op string, in Invite) error {
	switch {
	case strings.TrimSpace(in.ID) == "":
		return Invalid(op, "invite.id", "missing id")
	case len(in.TokenHash) != 64:
		return Invalid(op, "invite.token_hash", "malformed digest")
	case strings.TrimSpace(in.CreatedBy) == "":
		return Invalid(op, "invite.created_by", "missing creator")
	case !in.ExpiresAt.After(in.CreatedAt):
		return Invalid(op, "invite.expires_at", "must be after created_at")
	case in.MaxUses != 1:
		return Invalid(op, "invite.max_uses", "must be 1")
	}
	return nil
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
