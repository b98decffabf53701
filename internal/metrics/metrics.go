// Package metrics registers Prometheus instruments for the restore engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RestoresTotal counts structural restore attempts by outcome.
	RestoresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_restores_total",
		Help: "Structural restore operations by outcome.",
	}, []string{"status"})

	// MessagesImportedTotal counts messages replayed into channels.
	MessagesImportedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parley_messages_imported_total",
		Help: "Historical messages imported during restore.",
	})

	// VerificationsTotal counts manifest verifications by result.
	VerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_manifest_verifications_total",
		Help: "Manifest signature verifications by result.",
	}, []string{"result"})
)
