package adhesion

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/chengsunlab/adhesion-metrics/internal/adhesionconfig"
)

// LayerMetrics is the per-layer output record of the Metrics Calculator
// (4.B). Fields that could not be computed are NaN; DataQualityOK
// summarizes whether peak, pre-init, and prop-end were all identified.
type LayerMetrics struct {
	LayerNumber int64

	PeakForceN     float64
	PeakPositionMM float64
	PeakTimeS      float64

	BaselineForceN         float64
	PeakRetractionForceN   float64

	PreInitTimeS     float64
	PreInitPositionMM float64

	PropEndTimeS      float64
	PropEndPositionMM float64

	PreInitDurationS    float64
	PropagationDurationS float64
	TotalPeelDurationS  float64

	DistanceToPeakMM       float64
	PropagationDistanceMM  float64
	TotalPeelDistanceMM    float64

	WorkOfAdhesionMJ float64

	EffectiveStiffnessNPerMM float64
	StiffnessR2              float64

	SignalToNoiseRatio float64

	// Optional metadata, passed through unchanged by the Batch Processor.
	StepSpeedUmPerS *float64
	FluidTag        string
	GapTag          string

	DataQualityOK bool

	// RunID correlates this invocation with log lines and, in live mode,
	// with the analysis job that produced it. It carries no numerical
	// meaning.
	RunID uuid.UUID
}

// emptyMetrics returns a LayerMetrics with every numeric field set to
// NaN and DataQualityOK false. CalculateLayerMetrics starts from it and
// overwrites the fields it computes.
func emptyMetrics(layerNumber int64) LayerMetrics {
	nan := math.NaN()
	return LayerMetrics{
		LayerNumber:              layerNumber,
		PeakForceN:               nan,
		PeakPositionMM:           nan,
		PeakTimeS:                nan,
		BaselineForceN:           nan,
		PeakRetractionForceN:     nan,
		PreInitTimeS:             nan,
		PreInitPositionMM:        nan,
		PropEndTimeS:             nan,
		PropEndPositionMM:        nan,
		PreInitDurationS:         nan,
		PropagationDurationS:     nan,
		TotalPeelDurationS:       nan,
		DistanceToPeakMM:         nan,
		PropagationDistanceMM:    nan,
		TotalPeelDistanceMM:      nan,
		WorkOfAdhesionMJ:         nan,
		EffectiveStiffnessNPerMM: nan,
		StiffnessR2:              nan,
		SignalToNoiseRatio:       nan,
		DataQualityOK:            false,
		RunID:                    uuid.New(),
	}
}

// CalculateLayerMetrics runs the Metrics Calculator pipeline (4.B) for a
// single layer. record is borrowed read-only; bounds must satisfy
// LayerBoundaries.Validate(). layerNumber is an opaque identifier copied
// into the output.
//
// CalculateLayerMetrics fails loudly (returns a non-nil error) only for
// structural invariant violations in the inputs — those are programmer
// errors in the caller. Any other inability to compute a metric degrades
// that field to NaN and clears DataQualityOK; the call still succeeds.
func CalculateLayerMetrics(record *SampleRecord, bounds LayerBoundaries, layerNumber int64, cfg adhesionconfig.Config) (LayerMetrics, error) {
	if record == nil {
		return LayerMetrics{}, ErrNilRecord
	}
	if err := bounds.Validate(); err != nil {
		return LayerMetrics{}, err
	}
	if bounds.Full.End > len(record.Samples) || bounds.Full.Start < 0 {
		return LayerMetrics{}, fmt.Errorf("%w: full interval %v exceeds record length %d", ErrInvalidBoundaries, bounds.Full, len(record.Samples))
	}

	l0, l1 := bounds.Lifting.Start, bounds.Lifting.End
	liftLen := l1 - l0
	if liftLen == 0 {
		return LayerMetrics{}, ErrEmptyInterval
	}

	t0 := record.Samples[l0].TimeS
	t := make([]float64, liftLen)
	x := make([]float64, liftLen)
	f := make([]float64, liftLen)
	for i := 0; i < liftLen; i++ {
		s := record.Samples[l0+i]
		t[i] = s.TimeS - t0
		x[i] = s.PositionMM
		f[i] = s.ForceN
	}

	fs, err := Smooth(f, SmoothingParams{
		MedianKernel: cfg.MedianKernel,
		SavgolWindow: cfg.SavgolWindow,
		SavgolOrder:  cfg.SavgolOrder,
	})
	if err != nil {
		return LayerMetrics{}, err
	}

	m := emptyMetrics(layerNumber)

	// Step 3: find the peak. Per the "peak index mapping" design note
	// (§9), this searches only F_s over the lifting phase, never the
	// global force array by time. The peak need not be strictly interior
	// to report a best-effort value (a flat, no-adhesion force trace
	// legitimately peaks at sample 0), but data quality below requires
	// interiority, matching the "peak interiority" property checked for
	// every data_quality_ok layer.
	peakIdxLocal := floats.MaxIdx(fs)
	peakInterior := peakIdxLocal > 0 && peakIdxLocal < liftLen-1

	peakIdx := l0 + peakIdxLocal
	peakValue := fs[peakIdxLocal]

	m.PeakForceN = peakValue
	m.PeakPositionMM = x[peakIdxLocal]
	m.PeakTimeS = t[peakIdxLocal]

	// Step 4: locate the motion-end search bound.
	motionEndIdxLocal := findMotionEndLocal(x, peakIdxLocal, cfg)

	// Step 5: provisional baseline, used only to scale the two
	// thresholds below.
	baselineWindow := peakIdxLocal / 4
	if baselineWindow > 20 {
		baselineWindow = 20
	}
	if baselineWindow < 1 {
		baselineWindow = 1
	}
	b0 := stat.Mean(fs[0:baselineWindow], nil)

	// Step 6: propagation end via the reverse-threshold method.
	propEndIdxLocal, propFound := findPropagationEndLocal(fs, peakIdxLocal, motionEndIdxLocal, b0, peakValue, cfg.PropagationEndThresholdFraction)
	if !propFound {
		propEndIdxLocal = motionEndIdxLocal
	}

	// Step 7: pre-initiation.
	preInitIdxLocal, preFound := findPreInitiationLocal(fs, peakIdxLocal, b0, peakValue, cfg.PreInitRelativeThreshold)
	if !preFound {
		preInitIdxLocal = peakIdxLocal - 30
		if preInitIdxLocal < 0 {
			preInitIdxLocal = 0
		}
	}

	// Step 8: refined baseline — mean of the 5 samples centered on
	// propagation end, clamped to the lifting interval.
	baseline := windowMean(fs, propEndIdxLocal, 2)
	m.BaselineForceN = baseline

	m.PropEndPositionMM = x[propEndIdxLocal]
	m.PropEndTimeS = t[propEndIdxLocal]
	m.PreInitPositionMM = x[preInitIdxLocal]
	m.PreInitTimeS = t[preInitIdxLocal]

	m.PreInitDurationS = m.PeakTimeS - m.PreInitTimeS
	m.PropagationDurationS = m.PropEndTimeS - m.PeakTimeS
	m.TotalPeelDurationS = m.PreInitDurationS + m.PropagationDurationS

	m.DistanceToPeakMM = math.Abs(m.PeakPositionMM - m.PreInitPositionMM)
	m.PropagationDistanceMM = math.Abs(m.PropEndPositionMM - m.PeakPositionMM)
	m.TotalPeelDistanceMM = m.DistanceToPeakMM + m.PropagationDistanceMM

	// Step 9: retraction minimum over the full (lift+retract) interval.
	fullForces := record.Forces(bounds.Full.Start, bounds.Full.End)
	m.PeakRetractionForceN = floats.Min(fullForces)

	// Step 10: work of adhesion.
	m.WorkOfAdhesionMJ = workOfAdhesion(fs, x, baseline, preInitIdxLocal, propEndIdxLocal)

	// Step 11: effective stiffness.
	stiffness, r2, ok := effectiveStiffness(fs, x, preInitIdxLocal, peakIdxLocal)
	if ok {
		m.EffectiveStiffnessNPerMM = stiffness
		m.StiffnessR2 = r2
	} else {
		m.EffectiveStiffnessNPerMM = math.NaN()
		m.StiffnessR2 = math.NaN()
	}

	// Signal-to-noise ratio: (peak - baseline) / stddev(force before pre-init).
	if preInitIdxLocal >= 5 {
		m.SignalToNoiseRatio = (peakValue - baseline) / stat.StdDev(f[0:preInitIdxLocal], nil)
	} else {
		m.SignalToNoiseRatio = math.NaN()
	}

	// Data quality requires the peak to be strictly interior and both
	// propagation-end and pre-initiation to have been actually located
	// rather than falling back to a default, per §4.B's "peak, pre-init,
	// and prop-end were all identified".
	m.DataQualityOK = peakInterior && propFound && preFound

	_ = peakIdx // retained for documentation of the global-index mapping rule
	return m, nil
}

// findMotionEndLocal implements §4.B step 4: starting at peak+10, scan
// forward for the first sliding window of cfg.MotionEndStabilityPoints
// samples whose position stddev drops below
// cfg.MotionEndStabilityStddevMM. Falls back to the end of the interval
// if no such window is found within cfg.MotionEndMaxSearch samples.
func findMotionEndLocal(x []float64, peakIdxLocal int, cfg adhesionconfig.Config) int {
	n := len(x)
	start := peakIdxLocal + 10
	if start >= n {
		start = n - 1
	}
	win := cfg.MotionEndStabilityPoints
	if win < 1 {
		win = 1
	}

	limit := start + cfg.MotionEndMaxSearch
	if limit > n-win {
		limit = n - win
	}
	for i := start; i <= limit; i++ {
		if i+win > n {
			break
		}
		if stat.StdDev(x[i:i+win], nil) < cfg.MotionEndStabilityStddevMM {
			return i
		}
	}
	return n - 1
}

// findPropagationEndLocal implements §4.B step 6: search backward from
// motionEndIdxLocal toward peakIdxLocal for the last (highest-index)
// sample at or below the 10%-above-baseline threshold, whose centered
// five-sample average is also at or below threshold.
func findPropagationEndLocal(fs []float64, peakIdxLocal, motionEndIdxLocal int, b0, peakValue, fraction float64) (int, bool) {
	threshold := b0 + fraction*(peakValue-b0)
	for i := motionEndIdxLocal; i > peakIdxLocal; i-- {
		if fs[i] <= threshold && windowMean(fs, i, 2) <= threshold {
			return i, true
		}
	}
	return motionEndIdxLocal, false
}

// findPreInitiationLocal implements §4.B step 7: search forward from the
// start of the lifting interval for the first index whose value and
// immediate successor both exceed the pre-init threshold.
func findPreInitiationLocal(fs []float64, peakIdxLocal int, b0, peakValue, relThreshold float64) (int, bool) {
	threshold := b0 + relThreshold*(peakValue-b0)
	for i := 0; i < peakIdxLocal; i++ {
		if i+1 >= len(fs) {
			break
		}
		if fs[i] > threshold && fs[i+1] > threshold {
			return i, true
		}
	}
	return 0, false
}

// windowMean returns the mean of fs over the (2*half+1)-sample window
// centered on idx, clamped to the slice bounds.
func windowMean(fs []float64, idx, half int) float64 {
	lo := idx - half
	if lo < 0 {
		lo = 0
	}
	hi := idx + half + 1
	if hi > len(fs) {
		hi = len(fs)
	}
	return stat.Mean(fs[lo:hi], nil)
}

// workOfAdhesion implements §4.B step 10: the signed area between the
// smoothed force curve and the baseline, integrated with respect to
// absolute position change, from pre-init to prop-end. 1 N*mm == 1 mJ,
// so no unit-conversion factor is applied beyond the sum itself.
func workOfAdhesion(fs, x []float64, baseline float64, preInitIdxLocal, propEndIdxLocal int) float64 {
	var w float64
	for i := preInitIdxLocal + 1; i <= propEndIdxLocal && i < len(fs); i++ {
		w += (fs[i] - baseline) * math.Abs(x[i]-x[i-1])
	}
	return w
}

// effectiveStiffness implements §4.B step 11: an OLS fit of smoothed
// force against position over the first min(30, peak-preInit) samples of
// the pre-init -> peak segment. Returns ok=false (with zero slope and r2,
// which the caller reports as NaN) if fewer than 5 samples are available.
func effectiveStiffness(fs, x []float64, preInitIdxLocal, peakIdxLocal int) (slope, r2 float64, ok bool) {
	end := preInitIdxLocal + 30
	if end > peakIdxLocal {
		end = peakIdxLocal
	}
	n := end - preInitIdxLocal
	if n < 5 {
		return 0, 0, false
	}

	xs := x[preInitIdxLocal:end]
	ys := fs[preInitIdxLocal:end]

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	r := stat.RSquared(xs, ys, nil, alpha, beta)
	return beta, r, true
}
