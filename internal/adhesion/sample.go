package adhesion

import "fmt"

// Phase is the motion-phase label produced by the Phase Annotator (4.F).
// It is informational only — it is never used to segment layers — but it
// round-trips through the optional Phase column of the sample CSV (§6).
type Phase string

const (
	PhaseLift     Phase = "Lift"
	PhaseRetract  Phase = "Retract"
	PhasePause    Phase = "Pause"
	PhaseSandwich Phase = "Sandwich"
	PhaseUnknown  Phase = "Unknown"
)

// MarshalText implements encoding.TextMarshaler so Phase round-trips
// through encoding/csv without a bespoke string-conversion path.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(text []byte) error {
	switch Phase(text) {
	case PhaseLift, PhaseRetract, PhasePause, PhaseSandwich, PhaseUnknown, "":
		*p = Phase(text)
		return nil
	default:
		return fmt.Errorf("adhesion: unrecognized phase %q", text)
	}
}

// Sample is one immutable (time, position, force) reading.
//
//   - TimeS is seconds from the record's start; monotonic nondecreasing
//     across a SampleRecord.
//   - PositionMM is the stage position in millimetres. By convention a
//     DECREASING value means the stage is LIFTING (moving away from the
//     vat floor); an increasing value means RETRACTING.
//   - ForceN is the tensile load-cell reading; positive under tension,
//     may be small negative during retraction.
//   - HasPhase/Phase carry the optional Phase Annotator label for this
//     sample, when one was recorded during acquisition.
type Sample struct {
	TimeS      float64
	PositionMM float64
	ForceN     float64
	HasPhase   bool
	Phase      Phase
}

// SampleRecord is an ordered sequence of Samples from one acquisition
// session, plus a sampling-rate hint. No pipeline stage reads NominalHz;
// segmentation and metrics work from sample indices and timestamps.
type SampleRecord struct {
	Samples   []Sample
	NominalHz float64
}

// Len returns the number of samples in the record.
func (r *SampleRecord) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Samples)
}

// Validate checks the structural invariants of §3: monotone nondecreasing
// time and a non-nil, non-empty sample slice. It does not check the
// "no gap greater than 5x nominal period" invariant, which is advisory
// for the Segmenter rather than a hard structural requirement.
func (r *SampleRecord) Validate() error {
	if r == nil {
		return ErrNilRecord
	}
	if len(r.Samples) == 0 {
		return ErrEmptyInterval
	}
	for i := 1; i < len(r.Samples); i++ {
		if r.Samples[i].TimeS < r.Samples[i-1].TimeS {
			return fmt.Errorf("%w: sample %d time %.6f < sample %d time %.6f",
				ErrNonMonotoneTime, i, r.Samples[i].TimeS, i-1, r.Samples[i-1].TimeS)
		}
	}
	return nil
}

// Times returns the TimeS field of every sample in [start, end).
func (r *SampleRecord) Times(start, end int) []float64 {
	return extractField(r.Samples[start:end], func(s Sample) float64 { return s.TimeS })
}

// Positions returns the PositionMM field of every sample in [start, end).
func (r *SampleRecord) Positions(start, end int) []float64 {
	return extractField(r.Samples[start:end], func(s Sample) float64 { return s.PositionMM })
}

// Forces returns the ForceN field of every sample in [start, end).
func (r *SampleRecord) Forces(start, end int) []float64 {
	return extractField(r.Samples[start:end], func(s Sample) float64 { return s.ForceN })
}

func extractField(samples []Sample, get func(Sample) float64) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = get(s)
	}
	return out
}

// Interval is a half-open sample-index range [Start, End) over a parent
// SampleRecord.
type Interval struct {
	Start, End int
}

// Len returns End - Start.
func (iv Interval) Len() int { return iv.End - iv.Start }

// MotionEvent is an internal segmentation intermediate: one stage
// excursion whose magnitude fell inside the configured lift tolerance
// band.
type MotionEvent struct {
	Interval
	SignedDistanceMM float64
}

// LayerBoundaries identifies one lift/retract cycle within a parent
// SampleRecord, as three half-open sample-index intervals.
//
// Invariant: Lifting.Start < Lifting.End <= Retraction.Start <= Retraction.End,
// and Full == Interval{Lifting.Start, Retraction.End}. Retraction is
// non-empty for a segmented boundary and empty only for the live-mode
// form built by TrivialLayerBoundaries.
type LayerBoundaries struct {
	Lifting    Interval
	Retraction Interval
	Full       Interval
}

// Validate checks the l0 < l1 <= r0 <= r1 invariant (§8 property 1 for a
// segmented boundary). A segmented boundary always has a non-empty
// Retraction (r0 < r1); the live-mode trivial convention built by
// TrivialLayerBoundaries instead carries an empty Retraction pinned to
// the end of Lifting (r0 == r1 == l1), which this also accepts.
func (b LayerBoundaries) Validate() error {
	if !(b.Lifting.Start < b.Lifting.End &&
		b.Lifting.End <= b.Retraction.Start &&
		b.Retraction.Start <= b.Retraction.End) {
		return fmt.Errorf("%w: lifting=%v retraction=%v", ErrInvalidBoundaries, b.Lifting, b.Retraction)
	}
	return nil
}

// TrivialLayerBoundaries builds the live-mode boundary convention for a
// buffer that was handed to the Collector as one already-delimited
// layer (StartLayer/FinishLayer) rather than segmented out of a longer
// motion track. The whole buffer is treated as the Lifting interval;
// Retraction is an empty interval pinned to its end, so Validate still
// accepts it without pretending a distinct retraction phase was found.
func TrivialLayerBoundaries(n int) LayerBoundaries {
	return LayerBoundaries{
		Lifting:    Interval{Start: 0, End: n},
		Retraction: Interval{Start: n, End: n},
		Full:       Interval{Start: 0, End: n},
	}
}
