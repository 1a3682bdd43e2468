package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestTrackerRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	if err := metrics.Track("identity:cleanup").End(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := metrics.Track("identity:cleanup").End(errors.New("store down")); err == nil {
		t.Fatal("expected error to propagate")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	success := counterValue(t, families, "ledgerlens_jobs_total", map[string]string{"job": "identity:cleanup", "status": "success"})
	failure := counterValue(t, families, "ledgerlens_jobs_total", map[string]string{"job": "identity:cleanup", "status": "failure"})
	if success != 1 || failure != 1 {
		t.Fatalf("unexpected counts success=%f failure=%f", success, failure)
	}
}

func TestNilMetricsTrackerPassesErrorThrough(t *testing.T) {
	var metrics *Metrics
	want := errors.New("boom")
	if got := metrics.Track("audit:sweep").End(want); got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func counterValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if !labelsMatch(metric, labels) {
				continue
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, pair := range metric.GetLabel() {
		if want, ok := labels[pair.GetName()]; ok && want == pair.GetValue() {
			matched++
		}
	}
	return matched == len(labels)
}
