package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Counters registered against the default Prometheus registry, matching the
// four counters the ceremony is required to expose: nonce_commitment_received,
// signature_share_received, ceremony_completed, and ceremony_failed{reason}.
var (
	NonceCommitmentReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "frost_nonce_commitment_received_total",
		Help: "Round-1 nonce commitments accepted by a signer.",
	})

	SignatureShareReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "frost_signature_share_received_total",
		Help: "Round-2 signature shares accepted by a signer.",
	})

	CeremonyCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "frost_ceremony_completed_total",
		Help: "Signing ceremonies that reached a byte-identical aggregated signature.",
	})

	CeremonyFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "frost_ceremony_failed_total",
		Help: "Signing ceremonies that terminated in Failed, labeled by reason.",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(
		NonceCommitmentReceived,
		SignatureShareReceived,
		CeremonyCompleted,
		CeremonyFailed,
	)
}
