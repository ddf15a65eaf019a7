package adhesion

import (
	"log"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/chengsunlab/adhesion-metrics/internal/adhesionconfig"
)

// windowedMeanWidth is the fixed window used to suppress position noise
// before motion detection (§4.C step 1). It is a segmentation-internal
// constant, not user-tunable.
const windowedMeanWidth = 20

// Segment implements the Segmenter (4.C): "find 6mm motions, pair
// sequentially". It returns one LayerBoundaries per consecutive pair of
// nominal-magnitude motions found in record, in occurrence order.
//
// Segment operates only on record's time and position arrays; it never
// inspects force. diag, if non-nil, receives a diagnostic increment when
// an odd number of motions is found (the trailing motion is unpaired and
// dropped).
func Segment(record *SampleRecord, cfg adhesionconfig.Config, diag *Diagnostics) ([]LayerBoundaries, error) {
	if record == nil {
		return nil, ErrNilRecord
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}

	n := len(record.Samples)
	x := record.Positions(0, n)
	smoothedX := windowedMean(x, windowedMeanWidth)

	motions := findMotions(smoothedX, record.Times(0, n), cfg)

	if len(motions)%2 != 0 {
		if diag != nil {
			diag.UnpairedTailMotions.Add(1)
		}
		log.Printf("adhesion: segmenter found %d motions, dropping unpaired tail motion", len(motions))
		motions = motions[:len(motions)-1]
	}

	boundaries := make([]LayerBoundaries, 0, len(motions)/2)
	for k := 0; k+1 < len(motions); k += 2 {
		lift := motions[k]
		retract := motions[k+1]
		b := LayerBoundaries{
			Lifting:    lift.Interval,
			Retraction: retract.Interval,
			Full:       Interval{lift.Start, retract.End},
		}
		if err := b.Validate(); err != nil {
			// A pathological ordering (e.g. overlapping motions) is a
			// programmer/acquisition error in the upstream motion list;
			// surface it rather than emitting a boundary that violates
			// the invariant checked throughout the pipeline.
			return nil, err
		}
		boundaries = append(boundaries, b)
	}
	return boundaries, nil
}

// findMotions implements §4.C steps 2-4 and §4.C.1: scan forward for
// candidate end indices at increasing spacing, accept the first one whose
// magnitude falls in the configured lift-tolerance band after motion-end
// refinement, and otherwise advance the scan start by 50.
func findMotions(x, t []float64, cfg adhesionconfig.Config) []MotionEvent {
	n := len(x)
	var motions []MotionEvent

	i := 10
	if i >= n {
		return motions
	}

	lo := cfg.ExpectedLiftMM - cfg.LiftToleranceMM
	hi := cfg.ExpectedLiftMM + cfg.LiftToleranceMM

	for i < n-windowedMeanWidth {
		found := false
		maxJ := i + 1000
		if limit := n - windowedMeanWidth; limit < maxJ {
			maxJ = limit
		}
		for j := i + 50; j <= maxJ; j += 10 {
			startPos := stat.Mean(x[i:i+windowedMeanWidth], nil)
			endPos := stat.Mean(x[j:j+windowedMeanWidth], nil)
			magnitude := math.Abs(endPos - startPos)
			if magnitude < lo || magnitude > hi {
				continue
			}

			endIdx := refineMotionEnd(x, j, cfg)
			refinedEndPos := stat.Mean(x[endIdx:min(endIdx+windowedMeanWidth, n)], nil)
			refinedMagnitude := math.Abs(refinedEndPos - startPos)
			if refinedMagnitude < lo || refinedMagnitude > hi {
				continue
			}

			motions = append(motions, MotionEvent{
				Interval:         Interval{Start: i, End: endIdx},
				SignedDistanceMM: refinedEndPos - x[i],
			})
			i = endIdx + 10
			found = true
			break
		}
		if !found {
			i += 50
		}
	}
	return motions
}

// refineMotionEnd implements §4.C.1: scan forward from a tentative end
// index j for the first window of cfg.MotionEndStabilityPoints samples
// whose position stddev drops below cfg.MotionEndStabilityStddevMM.
// Returns j unchanged if no stable window appears within
// cfg.MotionEndMaxSearch samples.
func refineMotionEnd(x []float64, j int, cfg adhesionconfig.Config) int {
	n := len(x)
	win := cfg.MotionEndStabilityPoints
	if win < 1 {
		win = 1
	}
	limit := j + cfg.MotionEndMaxSearch
	if limit > n-win {
		limit = n - win
	}
	for i := j; i <= limit; i++ {
		if i+win > n {
			break
		}
		if stat.StdDev(x[i:i+win], nil) < cfg.MotionEndStabilityStddevMM {
			return i
		}
	}
	return j
}

// windowedMean computes a centered moving average of width `width` with
// symmetric edge reflection (§4.C step 1), reusing the same reflection
// rule as the Smoothing Filter's median stage.
func windowedMean(x []float64, width int) []float64 {
	n := len(x)
	out := make([]float64, n)
	half := width / 2
	for i := 0; i < n; i++ {
		var sum float64
		for k := -half; k < width-half; k++ {
			sum += x[reflectIndex(i+k, n)]
		}
		out[i] = sum / float64(width)
	}
	return out
}
