package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Login outcomes.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidInput       = "invalid_input"
	OutcomeUnknownEmail       = "unknown_email"
	OutcomeWrongPassword      = "wrong_password"
	OutcomeInactive           = "inactive"
	OutcomeConflict           = "identity_conflict"
	OutcomeStorageUnavailable = "storage_unavailable"
	OutcomeCancelled          = "cancelled"
)

// Signups counts accounts created, by user kind.
var Signups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "artztall_signups_total",
		Help: "Total number of accounts created",
	},
	[]string{"kind"},
)

// SignupRejections counts signups that did not create an account, by reason.
var SignupRejections = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "artztall_signup_rejections_total",
		Help: "Total number of rejected signups",
	},
	[]string{"reason"},
)

// Logins counts login attempts by outcome.
var Logins = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "artztall_logins_total",
		Help: "Total number of login attempts",
	},
	[]string{"outcome"},
)

// HashDuration observes how long password hashing and verification take.
var HashDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "artztall_password_hash_duration_seconds",
		Help:    "Password hash and verify duration in seconds",
		Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
	},
	[]string{"op"},
)

// Register registers every collector with reg. Panics on duplicate registration.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(Signups, SignupRejections, Logins, HashDuration)
}

func RecordSignup(kind string) {
	Signups.WithLabelValues(kind).Inc()
}

func RecordSignupRejection(reason string) {
	SignupRejections.WithLabelValues(reason).Inc()
}

func RecordLogin(outcome string) {
	Logins.WithLabelValues(outcome).Inc()
}

// ObserveHash records the time since start for op ("hash", "verify" or "dummy").
func ObserveHash(op string, start time.Time) {
	HashDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
