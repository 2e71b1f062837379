package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AuthMetrics aggregates the Prometheus counters the auth core emits.
type AuthMetrics struct {
	LoginAttempts      *prometheus.CounterVec
	LockoutRejections  prometheus.Counter
	SuspiciousActivity prometheus.Counter
	RoleSwitches       prometheus.Counter
	SessionEvents      *prometheus.CounterVec
}

// NewAuthMetrics registers the auth counters on the supplied registerer.
func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &AuthMetrics{
		LoginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_login_attempts_total",
			Help: "Login attempts grouped by outcome.",
		}, []string{"outcome"}),
		LockoutRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "auth_lockout_rejections_total",
			Help: "Login calls rejected locally because the identifier was locked out.",
		}),
		SuspiciousActivity: factory.NewCounter(prometheus.CounterOpts{
			Name: "auth_suspicious_activity_total",
			Help: "Identifiers flagged by the rapid-fire attempt heuristic.",
		}),
		RoleSwitches: factory.NewCounter(prometheus.CounterOpts{
			Name: "auth_role_switches_total",
			Help: "Successful active-role switches.",
		}),
		SessionEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_session_events_total",
			Help: "Session events applied from the event bus, by kind.",
		}, []string{"kind"}),
	}
}

// ObserveLogin records a login outcome: "success", "invalid_credentials",
// "locked_out" or "error".
func (m *AuthMetrics) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}
