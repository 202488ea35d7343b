// Package metrics registers the simulator's Prometheus collectors on the
// default registry.
//
// Counters and gauges carry the run_id label, so every run adds its own
// series. Histograms are shared across runs to keep their bucket series
// bounded in a long-lived process.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RoundTotal counts rounds by final status.
	RoundTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedprox_round_total",
			Help: "Total number of federated training rounds",
		},
		[]string{"run_id", "status"},
	)

	RoundDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fedprox_round_duration_seconds",
			Help:    "Federated training round duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		},
	)

	ClientTrainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fedprox_client_train_duration_seconds",
			Help:    "Local training duration of a single client in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
	)

	ClientSamples = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedprox_client_samples_total",
			Help: "Total number of training samples processed by clients",
		},
		[]string{"run_id"},
	)

	AggregationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedprox_aggregations_total",
			Help: "Total number of aggregations performed",
		},
		[]string{"run_id", "algorithm"},
	)

	AggregationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fedprox_aggregation_duration_seconds",
			Help:    "Aggregation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 100us to ~200ms
		},
		[]string{"algorithm"},
	)

	EvalLoss = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fedprox_eval_loss",
			Help: "Test loss of the global model after the latest round",
		},
		[]string{"run_id"},
	)

	EvalAccuracy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fedprox_eval_accuracy",
			Help: "Test accuracy of the global model after the latest round",
		},
		[]string{"run_id"},
	)
)
