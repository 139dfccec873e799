package api

import (
	"time"

	"vanish/cmd/identity"
	"vanish/cmd/internal/drop"
	"vanish/cmd/internal/report"
)

type dropCreateRequest struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Kind     string `json:"kind"`
	TTLMs    int64  `json:"ttl_ms"`
	MaxViews int    `json:"max_views"`
}

type dropCreateResponse struct {
	OK        bool      `json:"ok"`
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type dropResponse struct {
	ID            string     `json:"id"`
	Token         string     `json:"token"`
	URL           string     `json:"url"`
	OwnerID       *string    `json:"owner_id"`
	Kind          string     `json:"kind"`
	Title         string     `json:"title"`
	Status        string     `json:"status"`
	MaxViews      int        `json:"max_views"`
	UsedViews     int        `json:"used_views"`
	Remaining     int        `json:"remaining"`
	TTLMs         int64      `json:"ttl_ms"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	RevokedAt     *time.Time `json:"revoked_at"`
	FirstViewedAt *time.Time `json:"first_viewed_at"`
	LastViewedAt  *time.Time `json:"last_viewed_at"`
	ExhaustedAt   *time.Time `json:"exhausted_at"`
}

type dropListResponse struct {
	OK    bool           `json:"ok"`
	Items []dropResponse `json:"items"`
}

type consumeResponse struct {
	OK        bool    `json:"ok"`
	Title     string  `json:"title"`
	Kind      string  `json:"kind"`
	Body      *string `json:"body,omitempty"`
	URL       *string `json:"url,omitempty"`
	Remaining int     `json:"remaining"`
	ExpiresMs int64   `json:"expires_in_ms"`
}

type bootstrapRequest struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

type inviteCreateRequest struct {
	ExpiresMinutes int `json:"expires_minutes"`
}

type inviteCreateResponse struct {
	OK        bool      `json:"ok"`
	InviteID  string    `json:"invite_id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type inviteCheckResponse struct {
	OK        bool      `json:"ok"`
	ExpiresAt time.Time `json:"expires_at"`
}

type inviteConsumeRequest struct {
	Token       string `json:"token"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID          string    `json:"id"`
	Email       *string   `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

type sessionResponse struct {
	OK        bool         `json:"ok"`
	User      userResponse `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type meResponse struct {
	OK   bool          `json:"ok"`
	User *userResponse `json:"user"`
}

type bucketResponse struct {
	Minute time.Time `json:"minute"`
	Count  int       `json:"count"`
}

type dropStatsResponse struct {
	OK            bool             `json:"ok"`
	DropID        string           `json:"drop_id"`
	WindowMinutes int              `json:"window_minutes"`
	CreatedAt     time.Time        `json:"created_at"`
	FirstViewedAt *time.Time       `json:"first_viewed_at"`
	ExhaustedAt   *time.Time       `json:"exhausted_at"`
	MaxViews      int              `json:"max_views"`
	UsedViews     int              `json:"used_views"`
	TimeToFirstS  *int64           `json:"time_to_first_sec"`
	TimeToExhaust *int64           `json:"time_to_exhaust_sec"`
	PerMinute     []bucketResponse `json:"per_minute"`
	PeakRPM       int              `json:"peak_rpm"`
	TotalInWindow int              `json:"total_in_window"`
	UniqueIPs     int              `json:"unique_ips"`
}

type overviewResponse struct {
	OK             bool `json:"ok"`
	WindowMinutes  int  `json:"window_minutes"`
	TotalDrops     int  `json:"total_drops"`
	ExhaustedDrops int  `json:"exhausted_drops"`
	TotalViews     int  `json:"total_views"`
}

func toDropResponse(d drop.Drop, prefix string, now time.Time) dropResponse {
	return dropResponse{
		ID:            d.ID,
		Token:         d.Token,
		URL:           prefix + d.Token,
		OwnerID:       d.OwnerID,
		Kind:          string(d.Kind()),
		Title:         d.Title,
		Status:        string(d.Status(now)),
		MaxViews:      d.MaxViews,
		UsedViews:     d.UsedViews,
		Remaining:     d.Remaining(),
		TTLMs:         d.TTL.Milliseconds(),
		CreatedAt:     d.CreatedAt,
		ExpiresAt:     d.ExpiresAt,
		RevokedAt:     d.RevokedAt,
		FirstViewedAt: d.FirstViewedAt,
		LastViewedAt:  d.LastViewedAt,
		ExhaustedAt:   d.ExhaustedAt,
	}
}

func toConsumeResponse(res drop.ConsumeResult) consumeResponse {
	out := consumeResponse{
		OK:        true,
		Title:     res.Title,
		Remaining: res.Remaining,
		ExpiresMs: res.ExpiresIn.Milliseconds(),
	}
	if res.Payload == nil {
		out.Kind = string(drop.KindText)
		return out
	}
	content := res.Payload.Content()
	out.Kind = string(res.Payload.Kind())
	out.Body = &content
	if res.Payload.Kind() == drop.KindURL {
		out.URL = &content
	}
	return out
}

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        string(u.Role),
		CreatedAt:   u.CreatedAt,
	}
}

func toDropStatsResponse(s report.DropStats) dropStatsResponse {
	buckets := make([]bucketResponse, len(s.PerMinute))
	for i, b := range s.PerMinute {
		buckets[i] = bucketResponse{Minute: b.Start, Count: b.Count}
	}
	return dropStatsResponse{
		OK:            true,
		DropID:        s.DropID,
		WindowMinutes: s.WindowMinutes,
		CreatedAt:     s.CreatedAt,
		FirstViewedAt: s.FirstViewedAt,
		ExhaustedAt:   s.ExhaustedAt,
		MaxViews:      s.MaxViews,
		UsedViews:     s.UsedViews,
		TimeToFirstS:  s.TimeToFirst,
		TimeToExhaust: s.TimeToExhaust,
		PerMinute:     buckets,
		PeakRPM:       s.PeakPerMinute,
		TotalInWindow: s.TotalInWindow,
		UniqueIPs:     s.UniqueIPs,
	}
}
