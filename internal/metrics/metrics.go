package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OutboxDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventcat_outbox_deliveries_total",
			Help: "Outbox relay delivery attempts by outcome",
		},
		[]string{"outcome"}, // sent|failed
	)

	SyncRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventcat_sync_records_total",
			Help: "Provider sync records by merge result",
		},
		[]string{"result"}, // added|updated|unchanged|skipped
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		OutboxDeliveries,
		SyncRecords,
	)
}
