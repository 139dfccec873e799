// Package metrics holds the Prometheus collectors exported on /metrics.
//
// A nil *Metrics is valid and records nothing, so services can be built without a registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vanish"

// Consume outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// Metrics groups every collector the service records.
type Metrics struct {
	dropsCreated    *prometheus.CounterVec
	consumes        *prometheus.CounterVec
	revocations     prometheus.Counter
	sessionsIssued  *prometheus.CounterVec
	invitesCreated  prometheus.Counter
	invitesRedeemed prometheus.Counter
	authFailures    *prometheus.CounterVec
	httpRequests    *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg (when non-nil).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		dropsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drops_created_total",
			Help:      "Drops created, by payload kind.",
		}, []string{"kind"}),
		consumes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drop_consumes_total",
			Help:      "Consume attempts, by outcome.",
		}, []string{"outcome"}),
		revocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drop_revocations_total",
			Help:      "Successful revoke calls.",
		}),
		sessionsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_issued_total",
			Help:      "Sessions minted, by reason (bootstrap, invite, login).",
		}, []string{"reason"}),
		invitesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invites_created_total",
			Help:      "Invites minted.",
		}),
		invitesRedeemed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invites_redeemed_total",
			Help:      "Invites redeemed into accounts.",
		}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Rejected credential operations, by reason.",
		}, []string{"reason"}),
		httpRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by method, route pattern and status class.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "class"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.dropsCreated,
			m.consumes,
			m.revocations,
			m.sessionsIssued,
			m.invitesCreated,
			m.invitesRedeemed,
			m.authFailures,
			m.httpRequests,
		)
	}
	return m
}

func (m *Metrics) DropCreated(kind string) {
	if m == nil {
		return
	}
	m.dropsCreated.WithLabelValues(kind).Inc()
}

func (m *Metrics) Consumed(outcome string) {
	if m == nil {
		return
	}
	m.consumes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Revoked() {
	if m == nil {
		return
	}
	m.revocations.Inc()
}

func (m *Metrics) SessionIssued(reason string) {
	if m == nil {
		return
	}
	m.sessionsIssued.WithLabelValues(reason).Inc()
}

func (m *Metrics) InviteCreated() {
	if m == nil {
		return
	}
	m.invitesCreated.Inc()
}

func (m *Metrics) InviteRedeemed() {
	if m == nil {
		return
	}
	m.invitesRedeemed.Inc()
}

func (m *Metrics) AuthFailure(reason string) {
	if m == nil {
		return
	}
	m.authFailures.WithLabelValues(reason).Inc()
}

// ObserveHTTP records one finished request. route is the router pattern, never the raw path.
func (m *Metrics) ObserveHTTP(method, route, class string, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, class).Observe(d.Seconds())
}
