package auth

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/LeeDigitalWorks/zapauth/pkg/directory"
)

var (
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zapauth_auth_attempts_total",
		Help: "Authentication attempts by result",
	}, []string{"result"})

	attemptDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "zapauth_auth_attempt_duration_seconds",
		Help:    "Duration of authentication attempts",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
	})
)

func observeAttempt(d time.Duration, err error) {
	attemptsTotal.WithLabelValues(resultLabel(err)).Inc()
	attemptDuration.Observe(d.Seconds())
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrProvisioningDisabled):
		return "provisioning_disabled"
	case errors.Is(err, directory.ErrBind):
		return "bind_failed"
	case errors.Is(err, directory.ErrConnection):
		return "connection_failed"
	default:
		return "error"
	}
}
