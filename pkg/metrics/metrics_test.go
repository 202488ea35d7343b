package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorsRegistered(t *testing.T) {
	RoundTotal.WithLabelValues("metrics-test", "completed").Inc()
	EvalAccuracy.WithLabelValues("metrics-test").Set(0.75)

	if got := testutil.ToFloat64(RoundTotal.WithLabelValues("metrics-test", "completed")); got != 1 {
		t.Errorf("expected round total 1, got %v", got)
	}
	if got := testutil.ToFloat64(EvalAccuracy.WithLabelValues("metrics-test")); got != 0.75 {
		t.Errorf("expected accuracy 0.75, got %v", got)
	}

	if n := testutil.CollectAndCount(RoundDuration); n != 1 {
		t.Errorf("expected one round duration series, got %d", n)
	}
}

func TestHistogramsHaveNoRunLabel(t *testing.T) {
	AggregationDuration.WithLabelValues("mean").Observe(0.001)
	AggregationDuration.WithLabelValues("mean").Observe(0.002)
	AggregationDuration.WithLabelValues("fedavg").Observe(0.001)

	if n := testutil.CollectAndCount(AggregationDuration); n != 2 {
		t.Errorf("expected one series per algorithm, got %d", n)
	}
	if n := testutil.CollectAndCount(ClientTrainDuration, "fedprox_client_train_duration_seconds"); n != 1 {
		t.Errorf("expected a single client duration series, got %d", n)
	}
}
