package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the attester.
type Metrics struct {
	SessionsCreated      prometheus.Counter
	CredentialsSubmitted prometheus.Counter
	CredentialsAttested  prometheus.Counter
	CredentialsRevoked   prometheus.Counter
	CredentialsRejected  prometheus.Counter
	TermsRejected        prometheus.Counter
	ChainFailures        prometheus.Counter
	ChainSubmitDuration  prometheus.Histogram
}

// New creates all metrics and registers them with reg. Tests pass a fresh
// registry so parallel service instances never collide on registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "attester_sessions_created_total",
			Help: "Total number of claim-flow sessions created",
		}),
		CredentialsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "attester_credentials_submitted_total",
			Help: "Total number of credentials accepted into the store after payment",
		}),
		CredentialsAttested: factory.NewCounter(prometheus.CounterOpts{
			Name: "attester_credentials_attested_total",
			Help: "Total number of credentials attested on chain",
		}),
		CredentialsRevoked: factory.NewCounter(prometheus.CounterOpts{
			Name: "attester_credentials_revoked_total",
			Help: "Total number of attestations revoked on chain",
		}),
		CredentialsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "attester_credentials_rejected_total",
			Help: "Total number of pending credentials rejected by an admin",
		}),
		TermsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "attester_terms_rejected_total",
			Help: "Total number of reject/reject-terms messages received from clients",
		}),
		ChainFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "attester_chain_submission_failures_total",
			Help: "Total number of failed ledger submissions",
		}),
		ChainSubmitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "attester_chain_submit_duration_ms",
			Help:    "Latency of ledger extrinsic submission in milliseconds",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		}),
	}
}
