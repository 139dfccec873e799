// Package drop implements ephemeral drops: short texts or links that stop resolving once they are
// revoked, expired or out of views.
//
// Every consume is one conditional transition in the Store. The service never reads a drop and
// then decides whether to spend a view.
package drop

import (
	"time"
)

// Kind discriminates a drop's payload.
type Kind string

const (
	KindText Kind = "text"
	KindURL  Kind = "url"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindText || k == KindURL
}

// Payload is the content of a drop. It is either a TextPayload or a URLPayload.
type Payload interface {
	Kind() Kind
	// Content is the stored representation: the text itself or the redirect target.
	Content() string
	isPayload()
}

// TextPayload is inline text shown to the viewer.
type TextPayload struct {
	Body string
}

func (TextPayload) Kind() Kind        { return KindText }
func (p TextPayload) Content() string { return p.Body }
func (TextPayload) isPayload()        {}

// URLPayload is a redirect target.
type URLPayload struct {
	Target string
}

func (URLPayload) Kind() Kind        { return KindURL }
func (p URLPayload) Content() string { return p.Target }
func (URLPayload) isPayload()        {}

// payloadOf rebuilds a payload from its stored form. Unknown kinds read back as text.
func payloadOf(kind Kind, content string) Payload {
	if kind == KindURL {
		return URLPayload{Target: content}
	}
	return TextPayload{Body: content}
}

// Drop is the stored envelope plus its payload.
type Drop struct {
	ID        string
	Token     string
	OwnerID   *string
	Title     string
	Payload   Payload
	TTL       time.Duration
	MaxViews  int
	UsedViews int

	CreatedAt     time.Time
	ExpiresAt     time.Time
	RevokedAt     *time.Time
	FirstViewedAt *time.Time
	LastViewedAt  *time.Time
	ExhaustedAt   *time.Time
}

// Kind returns the payload kind.
func (d Drop) Kind() Kind {
	if d.Payload == nil {
		return KindText
	}
	return d.Payload.Kind()
}

// Remaining is the number of views left.
func (d Drop) Remaining() int {
	if r := d.MaxViews - d.UsedViews; r > 0 {
		return r
	}
	return 0
}

// ExpiresIn is the time left at now, never negative.
func (d Drop) ExpiresIn(now time.Time) time.Duration {
	if left := d.ExpiresAt.Sub(now); left > 0 {
		return left
	}
	return 0
}

// Status derives the lifecycle state at now.
func (d Drop) Status(now time.Time) Status {
	switch {
	case d.RevokedAt != nil:
		return StatusRevoked
	case !now.Before(d.ExpiresAt):
		return StatusExpired
	case d.UsedViews >= d.MaxViews:
		return StatusExhausted
	default:
		return StatusActive
	}
}

// consumable is the consume predicate.
func (d Drop) consumable(now time.Time) bool {
	return d.RevokedAt == nil && now.Before(d.ExpiresAt) && d.UsedViews < d.MaxViews
}

// View is one successful consume.
type View struct {
	ID        string
	DropID    string
	ViewedAt  time.Time
	UserAgent *string
	IP        *string
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (d Drop) clone() Drop {
	d.OwnerID = clonePtr(d.OwnerID)
	d.RevokedAt = clonePtr(d.RevokedAt)
	d.FirstViewedAt = clonePtr(d.FirstViewedAt)
	d.LastViewedAt = clonePtr(d.LastViewedAt)
	d.ExhaustedAt = clonePtr(d.ExhaustedAt)
	return d
}
