package main

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	fetchSuccess        = "success"
	fetchTransportError = "transport_error"
	fetchHTTPStatus     = "http_status"
	fetchParseError     = "parse_error"
)

var (
	// fetchTotal counts Tier API requests by outcome.
	fetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tier_fetch_total",
			Help: "Total number of Tier vehicle API requests by result.",
		},
		[]string{"result"},
	)

	fetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tier_fetch_duration_seconds",
			Help:    "Latency of Tier vehicle API requests.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// updateTotal counts sensor update calls: known/unknown for completed
	// cycles, throttled for calls that were skipped.
	updateTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tier_nearest_scooter_updates_total",
			Help: "Total number of nearest scooter sensor update calls by outcome.",
		},
		[]string{"outcome"},
	)

	nearestDistance = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tier_nearest_scooter_distance_meters",
			Help: "Distance to the nearest scooter of the last successful cycle.",
		},
		[]string{"sensor"},
	)

	// 1 = known, 0 = unknown
	nearestKnown = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tier_nearest_scooter_known",
			Help: "Whether the last cycle produced a nearest scooter (1=known, 0=unknown).",
		},
		[]string{"sensor"},
	)
)

func init() {
	prometheus.MustRegister(fetchTotal)
	prometheus.MustRegister(fetchDuration)
	prometheus.MustRegister(updateTotal)
	prometheus.MustRegister(nearestDistance)
	prometheus.MustRegister(nearestKnown)
}
