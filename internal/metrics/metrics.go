// Package metrics registers the Prometheus collectors shared across the
// server. Exposed on the public router at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheGets counts client-facing cache reads.
	CacheGets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_gets_total",
		Help: "Client cache read requests.",
	})

	// CacheHits counts reads that returned a non-expired entry.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Client cache reads that found a live entry.",
	})

	// CachePuts counts client-facing cache writes accepted locally.
	CachePuts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_puts_total",
		Help: "Client cache write requests accepted.",
	})

	// EntriesPurged counts entries removed by the expiry purger.
	EntriesPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_entries_purged_total",
		Help: "Expired entries removed by the background purger.",
	})

	// PeerSendFailures counts failed outbound peer RPCs (best-effort plane).
	PeerSendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "peer_send_failures_total",
		Help: "Outbound peer RPCs that failed.",
	})

	// StateTransfers counts state transfers initiated toward lagging peers.
	StateTransfers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "state_transfers_total",
		Help: "State transfers started for lagging peers.",
	})
)
