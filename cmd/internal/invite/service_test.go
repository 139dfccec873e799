package invite

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"vanish/cmd/identity"
	"vanish/cmd/identity/ids"
	"vanish/cmd/security/token"
)

func newOwnerStore(t *testing.T, now time.Time) (*identity.MemoryStore, string) {
	t.Helper()

	st := identity.NewMemoryStore()
	ownerID := ids.MustULID(now)
	sid, _ := token.New(token.SessionBytes)
	_, err := st.BootstrapOwner(context.Background(), identity.BootstrapRecord{
		Owner: identity.UserAuth{User: identity.User{
			ID: ownerID, DisplayName: "Owner", Role: identity.RoleOwner, CreatedAt: now,
		}},
		Session: identity.Session{
			Digest: token.Digest(sid), UserID: ownerID, CreatedAt: now, ExpiresAt: now.Add(time.Hour),
		},
	})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return st, ownerID
}

func TestCreate_StoresDigestAndBuildsURL(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	st, ownerID := newOwnerStore(t, now)
	svc, err := NewService(st, WithBaseURL("https://vanish.example/"))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	link, err := svc.Create(context.Background(), CreateInput{CreatedBy: ownerID, Now: now})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(link.Secret) != 32 {
		t.Fatalf("secret length=%d want 32", len(link.Secret))
	}
	if link.Invite.TokenHash == link.Secret || link.Invite.TokenHash != Digest(link.Secret) {
		t.Fatalf("store must only see the digest")
	}
	if !link.Invite.ExpiresAt.Equal(now.Add(60 * time.Minute)) {
		t.Fatalf("default expiry=%v", link.Invite.ExpiresAt)
	}

	u, err := url.Parse(link.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if u.Scheme != "https" || u.Host != "vanish.example" || u.Path != "/signup" || u.Query().Get("token") != link.Secret {
		t.Fatalf("unexpected url %q", link.URL)
	}
}

func TestCreate_MinutesBounds(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	st, ownerID := newOwnerStore(t, now)
	svc, _ := NewService(st)

	for _, m := range []int{-1, 10081} {
		if _, err := svc.Create(context.Background(), CreateInput{CreatedBy: ownerID, Minutes: m, Now: now}); !identity.IsInvalidInput(err) {
			t.Fatalf("minutes=%d err=%v", m, err)
		}
	}
	for _, m := range []int{1, 10080} {
		link, err := svc.Create(context.Background(), CreateInput{CreatedBy: ownerID, Minutes: m, Now: now})
		if err != nil {
			t.Fatalf("minutes=%d: %v", m, err)
		}
		if got := link.Invite.ExpiresAt.Sub(now); got != time.Duration(m)*time.Minute {
			t.Fatalf("minutes=%d ttl=%v", m, got)
		}
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	st, ownerID := newOwnerStore(t, now)
	svc, _ := NewService(st)
	ctx := context.Background()

	link, err := svc.Create(ctx, CreateInput{CreatedBy: ownerID, Minutes: 5, Now: now})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Check(ctx, link.Secret, now.Add(4*time.Minute)); err != nil {
		t.Fatalf("check live invite: %v", err)
	}
	if _, err := svc.Check(ctx, link.Secret, now.Add(5*time.Minute)); !errors.Is(err, ErrNotActive) {
		t.Fatalf("check expired err=%v", err)
	}
	if _, err := svc.Check(ctx, "bogus", now); !errors.Is(err, ErrNotActive) {
		t.Fatalf("check unknown err=%v", err)
	}
}

func TestNewService_Options(t *testing.T) {
	t.Parallel()

	if _, err := NewService(nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("nil store err=%v", err)
	}
	if _, err := NewService(identity.NewMemoryStore(), WithTokenBytes(8)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("short token err=%v", err)
	}
}
