// AngelaMos | 2026
// metrics.go

package core

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// AuthMetrics counts authentication outcomes per operation. Reason labels
// are for operators only.
type AuthMetrics struct {
	attempts *prometheus.CounterVec
	reuse    prometheus.Counter
	gatherer prometheus.Gatherer
}

func NewAuthMetrics(reg prometheus.Registerer) (*AuthMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	attempts, err := registerCollector(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Authentication operations by outcome and failure reason",
		},
		[]string{"operation", "result", "reason"},
	))
	if err != nil {
		return nil, err
	}

	reuse, err := registerCollector(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_refresh_token_reuse_total",
		Help: "Refresh token families revoked after a replayed token",
	}))
	if err != nil {
		return nil, err
	}

	m := &AuthMetrics{attempts: attempts, reuse: reuse}

	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}

	return m, nil
}

func (m *AuthMetrics) AuthSucceeded(operation string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(operation, resultSuccess, "").Inc()
}

func (m *AuthMetrics) AuthFailed(operation, reason string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(operation, resultFailure, reason).Inc()
	if reason == ReasonTokenReuse {
		m.reuse.Inc()
	}
}

func (m *AuthMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// registerCollector registers c, returning the already registered
// collector on a duplicate so repeated construction shares one series set.
func registerCollector[T prometheus.Collector](
	reg prometheus.Registerer,
	c T,
) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}
