package adhesion

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chengsunlab/adhesion-metrics/internal/adhesionconfig"
	"github.com/chengsunlab/adhesion-metrics/internal/timeutil"
)

// feedS1Layer pushes one textbook-triangular-peak layer's samples through
// a Collector's live API.
func feedS1Layer(c *Collector, layerNumber int64) {
	c.StartLayer(layerNumber, nil, "fluidA", "gap1")
	record := buildS1Record(nil)
	for _, s := range record.Samples {
		c.AddSample(s.TimeS, s.PositionMM, s.ForceN)
	}
	c.FinishLayer()
}

func TestCollectorS6ThreeLiveLayersDeliveredInOrder(t *testing.T) {
	var mu lockedSlice
	clock := timeutil.NewMockClock(time.Unix(0, 0))

	collector := NewCollector(CollectorConfig{
		Pipeline:          adhesionconfig.Default(),
		Sink:              func(m LayerMetrics) { mu.append(m) },
		Clock:             clock,
		MaxLayerDurationS: 20,
		NominalHz:         50,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go collector.Run(ctx)

	for layer := int64(1); layer <= 3; layer++ {
		feedS1Layer(collector, layer)
		clock.Advance(500 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return mu.len() == 3 }, 2*time.Second, 10*time.Millisecond)

	results := mu.snapshot()
	for i, m := range results {
		assert.Equal(t, int64(i+1), m.LayerNumber)
	}

	collector.Shutdown(false)
}

func TestCollectorShutdownDiscardDropsPendingJobs(t *testing.T) {
	var mu lockedSlice
	collector := NewCollector(CollectorConfig{
		Pipeline:          adhesionconfig.Default(),
		Sink:              func(m LayerMetrics) { mu.append(m) },
		MaxLayerDurationS: 20,
		NominalHz:         50,
	})

	// No worker is ever started: every FinishLayer call only fills the
	// queue, which Shutdown(discard=true) must drain without blocking.
	for layer := int64(1); layer <= 3; layer++ {
		feedS1Layer(collector, layer)
	}

	done := make(chan struct{})
	go func() {
		collector.Shutdown(true)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown(discard=true) did not return")
	}
}

func TestCollectorAddSampleWithoutActiveLayerIsNoop(t *testing.T) {
	collector := NewCollector(CollectorConfig{
		Pipeline:          adhesionconfig.Default(),
		MaxLayerDurationS: 20,
		NominalHz:         50,
	})
	collector.AddSample(0, 10.0, 0.1) // no StartLayer call: must not panic
}

// lockedSlice is a minimal concurrency-safe accumulator for the sink
// callback, which the Collector invokes from its own worker goroutine
// while the test goroutine reads it under Eventually.
type lockedSlice struct {
	mu sync.Mutex
	v  []LayerMetrics
}

func (s *lockedSlice) append(m LayerMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v = append(s.v, m)
}

func (s *lockedSlice) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.v)
}

func (s *lockedSlice) snapshot() []LayerMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LayerMetrics, len(s.v))
	copy(out, s.v)
	return out
}
