package adhesion

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chengsunlab/adhesion-metrics/internal/adhesionconfig"
	"github.com/chengsunlab/adhesion-metrics/internal/timeutil"
)

// analysisQueueCapacity is the bounded channel capacity named in §5: "one
// bounded channel (capacity ~16 layers)".
const analysisQueueCapacity = 16

// analysisJob is one completed layer handed from the per-layer collector
// to the analysis worker.
type analysisJob struct {
	id         uuid.UUID
	record     *SampleRecord
	bounds     LayerBoundaries
	layerNo    int64
	step       *float64
	fluid      string
	gap        string
	enqueuedAt time.Time
}

// sentinel, when received by the worker, ends its loop. It carries no
// job data.
var sentinelJob = analysisJob{}

func (j analysisJob) isSentinel() bool { return j.record == nil && j.id == uuid.Nil }

// SinkFunc receives completed LayerMetrics in layer-finish order. It is
// invoked only from the analysis worker goroutine; if the caller's sink
// touches shared state (a GUI, a database handle) it must be safe to call
// from that single goroutine concurrently with whatever else uses that
// state.
type SinkFunc func(LayerMetrics)

// Collector is the per-layer buffer plus single-worker analysis pipeline
// of 4.E. One Sensor-thread-style producer calls StartLayer/AddSample/
// FinishLayer; one background goroutine started by Run drains completed
// layers through the Metrics Calculator and into Sink.
//
// Collector owns no cross-layer state: each finished layer becomes an
// independent, immutable SampleRecord before it is ever queued.
type Collector struct {
	cfg   adhesionconfig.Config
	sink  SinkFunc
	diag  *Diagnostics
	clock timeutil.Clock

	mu           sync.Mutex
	activeLayer  int64
	hasActive    bool
	buf          []Sample
	maxBufLen    int
	step         *float64
	fluid        string
	gap          string

	running bool // set under mu once Run has started

	queue chan analysisJob
	done  chan struct{}
}

// CollectorConfig bundles Collector construction parameters.
type CollectorConfig struct {
	Pipeline          adhesionconfig.Config
	Sink              SinkFunc
	Diagnostics       *Diagnostics
	Clock             timeutil.Clock
	MaxLayerDurationS float64
	NominalHz         float64
}

// NewCollector constructs a Collector whose per-layer buffer is
// pre-sized for MaxLayerDurationS * NominalHz samples, per §4.E.
func NewCollector(cfg CollectorConfig) *Collector {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	diag := cfg.Diagnostics
	if diag == nil {
		diag = &Diagnostics{}
	}
	maxBufLen := int(cfg.MaxLayerDurationS * cfg.NominalHz)
	if maxBufLen < 1 {
		maxBufLen = 1
	}
	return &Collector{
		cfg:       cfg.Pipeline,
		sink:      cfg.Sink,
		diag:      diag,
		clock:     clock,
		maxBufLen: maxBufLen,
		queue:     make(chan analysisJob, analysisQueueCapacity),
		done:      make(chan struct{}),
	}
}

// StartLayer resets the active buffer and begins collection for
// layerNumber. Any prior, unfinished layer's buffer is discarded.
func (c *Collector) StartLayer(layerNumber int64, stepSpeedUmPerS *float64, fluidTag, gapTag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeLayer = layerNumber
	c.hasActive = true
	c.buf = make([]Sample, 0, c.maxBufLen)
	c.step = stepSpeedUmPerS
	c.fluid = fluidTag
	c.gap = gapTag
}

// AddSample appends one sample to the active layer's buffer. If no layer
// is active, the sample is silently discarded per §6's Live API contract.
// If the buffer would overflow its pre-sized capacity, the oldest sample
// is dropped and Diagnostics.BufferOverflowSamples is incremented.
func (c *Collector) AddSample(timeS, positionMM, forceN float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasActive {
		return
	}
	if len(c.buf) >= c.maxBufLen {
		c.buf = c.buf[1:]
		c.diag.BufferOverflowSamples.Add(1)
	}
	c.buf = append(c.buf, Sample{TimeS: timeS, PositionMM: positionMM, ForceN: forceN})
}

// FinishLayer snapshots the active buffer into an immutable SampleRecord,
// constructs a trivial LayerBoundaries covering the whole buffer, and
// enqueues the pair onto the analysis queue. If the queue is full, the
// oldest pending job is dropped (not this one) so the sensor thread never
// blocks, per §4.E's liveness priority; Diagnostics.QueueDroppedJobs is
// incremented.
func (c *Collector) FinishLayer() {
	c.mu.Lock()
	if !c.hasActive {
		c.mu.Unlock()
		return
	}
	samples := c.buf
	layerNo := c.activeLayer
	step := c.step
	fluid := c.fluid
	gap := c.gap
	c.hasActive = false
	c.buf = nil
	c.mu.Unlock()

	if len(samples) == 0 {
		return
	}

	record := &SampleRecord{Samples: samples}
	job := analysisJob{
		id:         uuid.New(),
		record:     record,
		bounds:     TrivialLayerBoundaries(len(samples)),
		layerNo:    layerNo,
		step:       step,
		fluid:      fluid,
		gap:        gap,
		enqueuedAt: c.clock.Now(),
	}

	c.enqueue(job)
}

// enqueue implements the drop-oldest-on-full policy: a non-blocking send
// is tried first; if the queue is full, one pending job is dequeued and
// discarded to make room, and the new job is sent (this also cannot
// block, since we just freed a slot and there is a single producer).
func (c *Collector) enqueue(job analysisJob) {
	select {
	case c.queue <- job:
		return
	default:
	}

	select {
	case <-c.queue:
		c.diag.QueueDroppedJobs.Add(1)
	default:
	}
	select {
	case c.queue <- job:
	default:
		// Extremely unlikely race with Run draining the queue
		// concurrently; count it the same way rather than blocking.
		c.diag.QueueDroppedJobs.Add(1)
	}
}

// Run starts the single analysis worker and blocks until ctx is
// cancelled or Shutdown is called. It should be started in its own
// goroutine by the caller.
func (c *Collector) Run(ctx context.Context) {
	c.mu.Lock()
	c.running = true
	c.mu.Unlock()
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-c.queue:
			if job.isSentinel() {
				return
			}
			c.process(job)
		}
	}
}

func (c *Collector) process(job analysisJob) {
	metrics, err := CalculateLayerMetrics(job.record, job.bounds, job.layerNo, c.cfg)
	if err != nil {
		// A structural-invariant failure here is a programmer error in
		// how this one job was built (the trivial whole-buffer
		// boundaries above are always valid for a non-empty buffer), so
		// this path is defensive: log and drop the single layer rather
		// than letting one bad job take down the worker.
		log.Printf("adhesion: live collector dropped layer %d: %v", job.layerNo, err)
		return
	}
	metrics.RunID = job.id
	metrics.StepSpeedUmPerS = job.step
	metrics.FluidTag = job.fluid
	metrics.GapTag = job.gap

	if latency := c.clock.Since(job.enqueuedAt); latency > time.Second {
		log.Printf("adhesion: layer %d spent %v in the analysis queue before processing", job.layerNo, latency)
	}

	if c.sink != nil {
		c.sink(metrics)
	}
}

// Shutdown stops the worker. When discard is false, pending jobs already
// in the queue are processed before the worker exits; when discard is
// true, they are dropped. Shutdown returns once the worker has exited; if
// Run was never started, it only performs the discard (when requested)
// and returns without waiting.
func (c *Collector) Shutdown(discard bool) {
	if discard {
		for {
			select {
			case <-c.queue:
			default:
				goto drained
			}
		}
	drained:
	}
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if !running {
		return
	}
	c.queue <- sentinelJob
	<-c.done
}
