package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"vanish/cmd/identity"
	"vanish/cmd/internal/auth/session"
	"vanish/cmd/internal/clock"
	"vanish/cmd/internal/invite"
	"vanish/cmd/security/password"
)

var t0 = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

func cheapPasswords() password.Config {
	cfg := password.DefaultConfig()
	cfg.Params = password.Argon2idParams{
		MemoryKiB:   8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
	cfg.Policy.RejectVeryWeak = true
	return cfg
}

type harness struct {
	svc   *Service
	store *identity.MemoryStore
	clk   *clock.Manual
}

func newHarness(t *testing.T) harness {
	t.Helper()

	st := identity.NewMemoryStore()
	inv, err := invite.NewService(st, invite.WithBaseURL("https://vanish.test"))
	if err != nil {
		t.Fatalf("invite service: %v", err)
	}
	clk := clock.NewManual(t0)
	svc, err := NewService(st, session.NewManager(session.DefaultConfig(), st), inv,
		WithClock(clk),
		WithPasswordConfig(cheapPasswords()),
	)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	return harness{svc: svc, store: st, clk: clk}
}

func (h harness) bootstrap(t *testing.T) Issued {
	t.Helper()
	iss, err := h.svc.BootstrapOwner(context.Background(), BootstrapInput{
		DisplayName: "Root",
		Email:       "root@example.com",
		Password:    "correct horse battery",
	})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return iss
}

func (h harness) inviteSecret(t *testing.T, owner *identity.Caller, minutes int) string {
	t.Helper()
	link, err := h.svc.CreateInvite(context.Background(), owner, minutes)
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	u, err := url.Parse(link.URL)
	if err != nil {
		t.Fatalf("parse invite url: %v", err)
	}
	return u.Query().Get("token")
}

func TestBootstrapOwner(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	iss := h.bootstrap(t)
	if iss.User.Role != identity.RoleOwner || iss.SessionID == "" {
		t.Fatalf("unexpected issued: %+v", iss)
	}
	if !iss.ExpiresAt.Equal(t0.Add(7 * 24 * time.Hour)) {
		t.Fatalf("expiresAt=%v", iss.ExpiresAt)
	}

	me, err := h.svc.ResolveSession(ctx, iss.SessionID)
	if err != nil || me == nil || me.ID != iss.User.ID {
		t.Fatalf("me=(%+v,%v)", me, err)
	}

	_, err = h.svc.BootstrapOwner(ctx, BootstrapInput{DisplayName: "Second"})
	if !errors.Is(err, ErrAlreadyBootstrapped) {
		t.Fatalf("second bootstrap err=%v", err)
	}
}

func TestBootstrapOwner_Race(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	const n = 10
	var wins, lost atomic.Int32
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := h.svc.BootstrapOwner(context.Background(), BootstrapInput{DisplayName: fmt.Sprintf("racer %d", i)})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrAlreadyBootstrapped):
				lost.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("race: %v", err)
	}
	if wins.Load() != 1 || lost.Load() != n-1 {
		t.Fatalf("wins=%d lost=%d", wins.Load(), lost.Load())
	}
}

func TestBootstrapOwner_Validation(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	cases := []BootstrapInput{
		{DisplayName: "   "},
		{DisplayName: "Root", Email: "root@example.com"},
		{DisplayName: "Root", Password: "long enough pw"},
		{DisplayName: "Root", Email: "not-an-email", Password: "long enough pw"},
		{DisplayName: "Root", Email: "root@example.com", Password: "abc"},
	}
	for i, in := range cases {
		if _, err := h.svc.BootstrapOwner(ctx, in); !identity.IsInvalidInput(err) {
			t.Fatalf("case %d err=%v want invalid input", i, err)
		}
	}

	// Rejected input must not burn the bootstrap.
	h.bootstrap(t)
}

func TestCreateInvite_RequiresPrivilege(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	owner := h.bootstrap(t)
	ctx := context.Background()

	for _, c := range []*identity.Caller{nil, {UserID: "u1", Role: identity.RoleUser}} {
		if _, err := h.svc.CreateInvite(ctx, c, 60); !identity.IsUnauthorized(err) {
			t.Fatalf("caller %+v err=%v", c, err)
		}
	}

	link, err := h.svc.CreateInvite(ctx, owner.User.Caller(), 0)
	if err != nil {
		t.Fatalf("owner invite: %v", err)
	}
	if !link.ExpiresAt.Equal(t0.Add(time.Hour)) {
		t.Fatalf("expiresAt=%v", link.ExpiresAt)
	}

	if _, err := h.svc.CreateInvite(ctx, owner.User.Caller(), 10081); !identity.IsInvalidInput(err) {
		t.Fatalf("out of range err=%v", err)
	}
}

func TestConsumeInvite_FlowAndReuse(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	owner := h.bootstrap(t)
	ctx := context.Background()
	secret := h.inviteSecret(t, owner.User.Caller(), 30)

	if exp, err := h.svc.CheckInvite(ctx, secret); err != nil || !exp.Equal(t0.Add(30*time.Minute)) {
		t.Fatalf("check=(%v,%v)", exp, err)
	}

	iss, err := h.svc.ConsumeInvite(ctx, ConsumeInviteInput{
		Token:       secret,
		DisplayName: "Ada",
		Email:       "Ada@Example.com",
		Password:    "analytical engine",
	})
	if err != nil {
		t.Fatalf("consume invite: %v", err)
	}
	if iss.User.Role != identity.RoleUser || iss.User.Email == nil || *iss.User.Email != "ada@example.com" {
		t.Fatalf("unexpected user: %+v", iss.User)
	}
	caller, err := h.svc.Caller(ctx, iss.SessionID)
	if err != nil || caller == nil || caller.UserID != iss.User.ID || caller.Role != identity.RoleUser {
		t.Fatalf("caller=(%+v,%v)", caller, err)
	}

	_, err = h.svc.ConsumeInvite(ctx, ConsumeInviteInput{Token: secret, DisplayName: "Eve", Password: "another password"})
	if !errors.Is(err, ErrInvalidOrUsedInvite) {
		t.Fatalf("reuse err=%v", err)
	}
	if _, err := h.svc.CheckInvite(ctx, secret); !errors.Is(err, ErrInvalidOrUsedInvite) {
		t.Fatalf("check used err=%v", err)
	}

	if _, err := h.svc.LoginWithPassword(ctx, "ada@example.com", "analytical engine"); err != nil {
		t.Fatalf("invitee login: %v", err)
	}
}

func TestConsumeInvite_Race(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	owner := h.bootstrap(t)
	secret := h.inviteSecret(t, owner.User.Caller(), 30)

	const n = 6
	var wins, lost atomic.Int32
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := h.svc.ConsumeInvite(context.Background(), ConsumeInviteInput{
				Token:       secret,
				DisplayName: fmt.Sprintf("racer %d", i),
				Password:    "racing password",
			})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrInvalidOrUsedInvite):
				lost.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("race: %v", err)
	}
	if wins.Load() != 1 || lost.Load() != n-1 {
		t.Fatalf("wins=%d lost=%d", wins.Load(), lost.Load())
	}
}

func TestConsumeInvite_ValidationBeforeStore(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	owner := h.bootstrap(t)
	ctx := context.Background()
	secret := h.inviteSecret(t, owner.User.Caller(), 30)

	bad := []ConsumeInviteInput{
		{Token: secret, DisplayName: "", Password: "fine password"},
		{Token: secret, DisplayName: "Bob", Email: "bob@", Password: "fine password"},
		{Token: secret, DisplayName: "Bob", Password: "short"},
		{Token: secret, DisplayName: "Bob", Password: "password"},
	}
	for i, in := range bad {
		if _, err := h.svc.ConsumeInvite(ctx, in); !identity.IsInvalidInput(err) {
			t.Fatalf("case %d err=%v want invalid input", i, err)
		}
	}

	_, err := h.svc.ConsumeInvite(ctx, ConsumeInviteInput{Token: secret, DisplayName: "Bob", Email: "ROOT@example.com", Password: "fine password"})
	if field, ok := identity.ConflictField(err); !ok || field != "email" {
		t.Fatalf("err=%v want email conflict", err)
	}

	if _, err := h.svc.ConsumeInvite(ctx, ConsumeInviteInput{Token: secret, DisplayName: "Bob", Password: "fine password"}); err != nil {
		t.Fatalf("invite should survive rejected attempts: %v", err)
	}
}

func TestConsumeInvite_Expired(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	owner := h.bootstrap(t)
	secret := h.inviteSecret(t, owner.User.Caller(), 1)

	h.clk.Advance(time.Minute)
	_, err := h.svc.ConsumeInvite(context.Background(), ConsumeInviteInput{Token: secret, DisplayName: "Late", Password: "fine password"})
	if !errors.Is(err, ErrInvalidOrUsedInvite) {
		t.Fatalf("err=%v", err)
	}
	if _, err := h.svc.ConsumeInvite(context.Background(), ConsumeInviteInput{Token: "", DisplayName: "x", Password: "fine password"}); !errors.Is(err, ErrInvalidOrUsedInvite) {
		t.Fatalf("empty token err=%v", err)
	}
}

func TestLoginWithPassword(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	owner := h.bootstrap(t)
	ctx := context.Background()

	iss, err := h.svc.LoginWithPassword(ctx, "  ROOT@example.com ", "correct horse battery")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if iss.User.ID != owner.User.ID || iss.SessionID == owner.SessionID {
		t.Fatalf("unexpected login: %+v", iss)
	}

	for _, tc := range []struct{ email, pw string }{
		{"root@example.com", "wrong horse battery"},
		{"nobody@example.com", "correct horse battery"},
		{"", "correct horse battery"},
		{"root@example.com", ""},
	} {
		if _, err := h.svc.LoginWithPassword(ctx, tc.email, tc.pw); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("%q/%q err=%v", tc.email, tc.pw, err)
		}
	}
}

func TestLoginWithPassword_NoMatchingAccount(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	owner, err := h.svc.BootstrapOwner(ctx, BootstrapInput{DisplayName: "Root"})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	secret := h.inviteSecret(t, owner.User.Caller(), 5)
	if _, err := h.svc.ConsumeInvite(ctx, ConsumeInviteInput{Token: secret, DisplayName: "NoMail", Password: "fine password"}); err != nil {
		t.Fatalf("consume: %v", err)
	}

	if _, err := h.svc.LoginWithPassword(ctx, "root@example.com", "anything at all"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err=%v", err)
	}
}

func TestLogoutAndExpiry(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	owner := h.bootstrap(t)
	ctx := context.Background()

	login, err := h.svc.LoginWithPassword(ctx, "root@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := h.svc.Logout(ctx, login.SessionID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if me, err := h.svc.ResolveSession(ctx, login.SessionID); err != nil || me != nil {
		t.Fatalf("me after logout=(%+v,%v)", me, err)
	}
	if err := h.svc.Logout(ctx, login.SessionID); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if err := h.svc.Logout(ctx, "never-existed"); err != nil {
		t.Fatalf("unknown logout: %v", err)
	}

	if me, _ := h.svc.ResolveSession(ctx, owner.SessionID); me == nil {
		t.Fatalf("other session must survive logout")
	}
	h.clk.Advance(7 * 24 * time.Hour)
	if me, err := h.svc.ResolveSession(ctx, owner.SessionID); err != nil || me != nil {
		t.Fatalf("me after expiry=(%+v,%v)", me, err)
	}
	if c, err := h.svc.Caller(ctx, ""); err != nil || c != nil {
		t.Fatalf("empty sid caller=(%+v,%v)", c, err)
	}
}
