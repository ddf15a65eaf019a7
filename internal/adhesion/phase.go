package adhesion

import (
	"math"

	"github.com/chengsunlab/adhesion-metrics/internal/adhesionconfig"
)

// PhaseAnnotator is the stateless-per-call, state-tracking-across-calls
// classifier of 4.F. It is informational only: it is never used to
// segment layers (the Segmenter does that from the full record), but its
// output may be recorded alongside samples during acquisition to aid
// downstream diagnostics.
//
// The zero value is ready to use; the first call to Classify always
// returns Unknown while the annotator learns its starting position.
type PhaseAnnotator struct {
	cfg                 adhesionconfig.Config
	hasPrevious         bool
	previousPositionMM  float64
	stationaryCount     int
	positionAtMotionStartMM float64
	hasMotionStart      bool
}

// NewPhaseAnnotator returns a PhaseAnnotator using the stationary and
// sandwich thresholds from cfg.
func NewPhaseAnnotator(cfg adhesionconfig.Config) *PhaseAnnotator {
	return &PhaseAnnotator{cfg: cfg}
}

// Classify applies the rules of §4.F in order and returns the phase for
// the given new position, updating the annotator's retained state.
func (a *PhaseAnnotator) Classify(positionMM float64) Phase {
	if !a.hasPrevious {
		a.hasPrevious = true
		a.previousPositionMM = positionMM
		a.positionAtMotionStartMM = positionMM
		a.hasMotionStart = true
		return PhaseUnknown
	}

	delta := positionMM - a.previousPositionMM
	a.previousPositionMM = positionMM

	if math.Abs(delta) < a.cfg.StationaryPositionThresholdMM {
		a.stationaryCount++
		if a.stationaryCount >= a.cfg.StationaryCountThreshold {
			return PhasePause
		}
	} else {
		a.stationaryCount = 0
	}

	if delta < 0 {
		if !a.hasMotionStart {
			a.positionAtMotionStartMM = positionMM
			a.hasMotionStart = true
		}
		totalTravel := math.Abs(positionMM - a.positionAtMotionStartMM)
		if totalTravel < a.cfg.SandwichMaxDistanceMM {
			return PhaseSandwich
		}
		return PhaseLift
	}

	if delta > 0 {
		// Direction changed from lifting to retracting (or was already
		// retracting): reset the motion-start anchor so the next lift's
		// sandwich-vs-lift distance is measured from this point.
		a.positionAtMotionStartMM = positionMM
		a.hasMotionStart = true
		return PhaseRetract
	}

	// delta == 0 but not yet enough consecutive stationary samples to
	// declare Pause.
	return PhaseUnknown
}
