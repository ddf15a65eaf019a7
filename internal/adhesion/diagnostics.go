package adhesion

import (
	"fmt"
	"sync/atomic"
)

// Diagnostics holds the non-fatal anomaly counters named by the error
// taxonomy (§7): unpaired trailing segmentation motions, dropped
// live-mode jobs/samples, and rejected CSV rows. None of these stop the
// pipeline; they exist so a caller can tell, after the fact, whether a
// result is complete or degraded.
//
// All fields are safe for concurrent use: the Live Collector increments
// QueueDroppedJobs and BufferOverflowSamples from its sensor-facing
// goroutine while the analysis worker runs concurrently.
type Diagnostics struct {
	UnpairedTailMotions   atomic.Int64
	QueueDroppedJobs      atomic.Int64
	BufferOverflowSamples atomic.Int64
	RejectedCSVRows       atomic.Int64
}

// String renders a one-line human-readable summary, used by the CLI and
// by log lines that report end-of-run diagnostics.
func (d *Diagnostics) String() string {
	if d == nil {
		return "diagnostics: none"
	}
	return fmt.Sprintf(
		"diagnostics: unpaired_tail_motions=%d queue_dropped_jobs=%d buffer_overflow_samples=%d rejected_csv_rows=%d",
		d.UnpairedTailMotions.Load(), d.QueueDroppedJobs.Load(), d.BufferOverflowSamples.Load(), d.RejectedCSVRows.Load(),
	)
}

// Clean reports whether no anomalies were recorded.
func (d *Diagnostics) Clean() bool {
	if d == nil {
		return true
	}
	return d.UnpairedTailMotions.Load() == 0 &&
		d.QueueDroppedJobs.Load() == 0 &&
		d.BufferOverflowSamples.Load() == 0 &&
		d.RejectedCSVRows.Load() == 0
}
