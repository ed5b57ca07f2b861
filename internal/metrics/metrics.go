// Package metrics exposes Prometheus counters for the outcomes of auth
// operations.
package metrics

import (
	"time"

	autherrors "github.com/jrsteele09/go-session-auth/internal/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Operation names.
const (
	OpRegister = "register"
	OpLogin    = "login"
	OpResolve  = "resolve"
	OpLogout   = "logout"
)

// Outcome labels.
const (
	OutcomeSuccess            = "success"
	OutcomeAlreadyExists      = "already_exists"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeNotAuthenticated   = "not_authenticated"
	OutcomeInvalidToken       = "invalid_token"
	OutcomeExpiredToken       = "expired_token"
	OutcomeUserNotFound       = "user_not_found"
	OutcomeError              = "error"
)

// Recorder records one completed auth operation.
type Recorder interface {
	Observe(operation string, err error, took time.Duration)
}

// Prometheus is a Recorder backed by a counter and a histogram.
type Prometheus struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

var _ Recorder = (*Prometheus)(nil)

func NewPrometheus() *Prometheus {
	return &Prometheus{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_operations_total",
				Help: "Total number of auth operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auth_operation_duration_seconds",
				Help:    "Auth operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RegisterMetrics registers the collectors with reg. It panics if they are
// already registered, following the prometheus convention.
func (p *Prometheus) RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(p.operations)
	reg.MustRegister(p.duration)
}

func (p *Prometheus) Observe(operation string, err error, took time.Duration) {
	p.operations.WithLabelValues(operation, Outcome(err)).Inc()
	p.duration.WithLabelValues(operation).Observe(took.Seconds())
}

// Outcome maps an auth error to its outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case autherrors.Is(err, autherrors.ErrAlreadyExists):
		return OutcomeAlreadyExists
	case autherrors.Is(err, autherrors.ErrInvalidCredentials):
		return OutcomeInvalidCredentials
	case autherrors.Is(err, autherrors.ErrNotAuthenticated):
		return OutcomeNotAuthenticated
	case autherrors.Is(err, autherrors.ErrExpiredToken):
		return OutcomeExpiredToken
	case autherrors.Is(err, autherrors.ErrInvalidToken):
		return OutcomeInvalidToken
	case autherrors.Is(err, autherrors.ErrUserNotFound):
		return OutcomeUserNotFound
	default:
		return OutcomeError
	}
}

type nop struct{}

func (nop) Observe(string, error, time.Duration) {}

// Nop returns a Recorder that discards everything.
func Nop() Recorder {
	return nop{}
}
