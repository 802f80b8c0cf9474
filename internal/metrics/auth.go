package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Auth-related Prometheus metrics. Standalone package so the orchestrator and
// HTTP packages can share them without import cycles.

var (
	LoginTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_login_total",
		Help: "Logins por método y resultado",
	}, []string{"method", "result"})

	SignupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_signup_total",
		Help: "Signups por método y resultado",
	}, []string{"method", "result"})

	TokenRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_token_refresh_total",
		Help: "Refresh de tokens por resultado",
	}, []string{"result"})

	OAuthExchangeLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "auth_oauth_exchange_latency_ms",
		Help:    "Latencia del intercambio code→token en milisegundos",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"provider"})
)

// Register registers the auth metrics on the given registry (or default if nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	cs := []prometheus.Collector{LoginTotal, SignupTotal, TokenRefreshTotal, OAuthExchangeLatency}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
