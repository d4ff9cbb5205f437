// Package metrics defines the identity service's domain collectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Login and refresh outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeReused  = "reused"
)

// Auth counts authentication events. A nil *Auth is valid and records
// nothing.
type Auth struct {
	registrations prometheus.Counter
	logins        *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	logouts       prometheus.Counter
}

func NewAuth(reg prometheus.Registerer, namespace string) *Auth {
	m := &Auth{
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Accounts created.",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "Refresh token rotations by outcome.",
		}, []string{"outcome"}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logouts_total",
			Help:      "Sessions ended by logout or password change.",
		}),
	}
	reg.MustRegister(m.registrations, m.logins, m.refreshes, m.logouts)
	return m
}

func (m *Auth) Registered() {
	if m != nil {
		m.registrations.Inc()
	}
}

func (m *Auth) Login(outcome string) {
	if m != nil {
		m.logins.WithLabelValues(outcome).Inc()
	}
}

func (m *Auth) Refresh(outcome string) {
	if m != nil {
		m.refreshes.WithLabelValues(outcome).Inc()
	}
}

func (m *Auth) Logout() {
	if m != nil {
		m.logouts.Inc()
	}
}
