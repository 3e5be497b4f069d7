package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestDisabledMetricsIgnoreWrites(t *testing.T) {
	m := New(Config{})
	m.Inc(MetricLoginSuccess)
	if m.Value(MetricLoginSuccess) != 0 {
		t.Fatal("disabled metrics must not count")
	}
	if len(m.Snapshot().Counters) != 0 {
		t.Fatal("disabled snapshot must be empty")
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricLoginSuccess)
	nilMetrics.Observe(MetricVerifyAccessLatency, time.Millisecond)
}

func TestConcurrentIncrements(t *testing.T) {
	m := New(Config{Enabled: true})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Inc(MetricTokenIssued)
			}
		}()
	}
	wg.Wait()
	if got := m.Value(MetricTokenIssued); got != 5000 {
		t.Fatalf("expected 5000, got %d", got)
	}
}

func TestHistogramBuckets(t *testing.T) {
	m := New(Config{Enabled: true, EnableLatency: true})
	m.Observe(MetricVerifyAccessLatency, 3*time.Millisecond)
	m.Observe(MetricVerifyAccessLatency, 30*time.Millisecond)
	m.Observe(MetricVerifyAccessLatency, time.Second)
	m.Observe(MetricLoginSuccess, time.Second)

	snap := m.Snapshot()
	b := snap.Histograms[MetricVerifyAccessLatency]
	if len(b) != 8 || b[0] != 1 || b[3] != 1 || b[7] != 1 {
		t.Fatalf("unexpected buckets %v", b)
	}
	if _, ok := snap.Counters[MetricVerifyAccessLatency]; ok {
		t.Fatal("histogram id must not appear among counters")
	}
}
