// Package adhesionconfig holds the tunable constants of the adhesion
// analysis pipeline (Smoothing Filter, Metrics Calculator, Segmenter) and
// the JSON override surface used to adjust them without touching code.
//
// Config is a plain value struct carrying every default named by the
// pipeline design; there is no global mutable configuration and no
// environment-variable surface. Overrides is its pointer-field twin,
// used only to merge a partial JSON document onto the defaults.
package adhesionconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the sole tuning interface for the adhesion pipeline. All
// thresholds are expressed in SI units (millimetres, seconds, newtons)
// and are overridable via Overrides + Merge.
type Config struct {
	// ExpectedLiftMM is the nominal lift/retract travel distance the
	// Segmenter searches for.
	ExpectedLiftMM float64
	// LiftToleranceMM is the allowed deviation from ExpectedLiftMM for a
	// motion to be accepted as a lift or retraction.
	LiftToleranceMM float64

	// MedianKernel is the odd kernel size of the first smoothing stage.
	MedianKernel int
	// SavgolWindow is the odd window size of the second smoothing stage.
	SavgolWindow int
	// SavgolOrder is the polynomial order of the second smoothing stage.
	SavgolOrder int

	// PropagationEndThresholdFraction is the fraction of the peak-above-baseline
	// rise at which crack propagation is considered complete.
	PropagationEndThresholdFraction float64
	// PreInitRelativeThreshold is the fraction of the peak-above-baseline
	// rise at which the adhesion event is considered to have started.
	PreInitRelativeThreshold float64

	// MotionEndStabilityStddevMM is the position stddev, over a sliding
	// window of MotionEndStabilityPoints samples, below which stage motion
	// is considered to have ended.
	MotionEndStabilityStddevMM float64
	// MotionEndStabilityPoints is the sliding window length used for the
	// motion-end stability check.
	MotionEndStabilityPoints int
	// MotionEndMaxSearch bounds how far forward the motion-end search scans
	// before giving up and using the end of the interval.
	MotionEndMaxSearch int

	// StationaryPositionThresholdMM is the per-sample position delta below
	// which the stage is considered stationary (Phase Annotator).
	StationaryPositionThresholdMM float64
	// StationaryCountThreshold is the number of consecutive stationary
	// samples required before the Phase Annotator reports Pause.
	StationaryCountThreshold int

	// SandwichMaxDistanceMM is the travel distance below which a downward
	// excursion is classified Sandwich rather than Lift.
	SandwichMaxDistanceMM float64
}

// Default returns the canonical tuning defaults for the adhesion pipeline.
func Default() Config {
	return Config{
		ExpectedLiftMM:  6.0,
		LiftToleranceMM: 0.5,

		MedianKernel: 5,
		SavgolWindow: 9,
		SavgolOrder:  2,

		PropagationEndThresholdFraction: 0.10,
		PreInitRelativeThreshold:        0.02,

		MotionEndStabilityStddevMM: 0.02,
		MotionEndStabilityPoints:   3,
		MotionEndMaxSearch:         500,

		StationaryPositionThresholdMM: 0.002,
		StationaryCountThreshold:      3,

		SandwichMaxDistanceMM: 1.0,
	}
}

// Overrides is a partial Config: every field is a pointer so a JSON
// document only needs to name the fields it wants to change. Fields left
// nil retain whatever value Config.Merge's receiver already had.
type Overrides struct {
	ExpectedLiftMM  *float64 `json:"expected_lift_mm,omitempty"`
	LiftToleranceMM *float64 `json:"lift_tolerance_mm,omitempty"`

	MedianKernel *int `json:"median_kernel,omitempty"`
	SavgolWindow *int `json:"savgol_window,omitempty"`
	SavgolOrder  *int `json:"savgol_order,omitempty"`

	PropagationEndThresholdFraction *float64 `json:"propagation_end_threshold_fraction,omitempty"`
	PreInitRelativeThreshold        *float64 `json:"pre_init_relative_threshold,omitempty"`

	MotionEndStabilityStddevMM *float64 `json:"motion_end_stability_stddev_mm,omitempty"`
	MotionEndStabilityPoints   *int     `json:"motion_end_stability_points,omitempty"`
	MotionEndMaxSearch         *int     `json:"motion_end_max_search,omitempty"`

	StationaryPositionThresholdMM *float64 `json:"stationary_position_threshold_mm,omitempty"`
	StationaryCountThreshold      *int     `json:"stationary_count_threshold,omitempty"`

	SandwichMaxDistanceMM *float64 `json:"sandwich_max_distance_mm,omitempty"`
}

// maxOverrideFileSize bounds the size of a config override document.
const maxOverrideFileSize = 1 * 1024 * 1024 // 1MB

// Load reads a partial Overrides document from a JSON file. The path must
// have a .json extension and the file must be under maxOverrideFileSize;
// both checks exist to reject an accidentally-wrong path (e.g. a sample
// CSV) before it is parsed as configuration.
func Load(path string) (*Overrides, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxOverrideFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxOverrideFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	ov := &Overrides{}
	if err := json.Unmarshal(data, ov); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := ov.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return ov, nil
}

// Validate checks the overridden fields for physically sensible ranges.
// Fields left nil are not validated; Merge leaves them untouched.
func (o *Overrides) Validate() error {
	if o.MedianKernel != nil && *o.MedianKernel%2 == 0 {
		return fmt.Errorf("median_kernel must be odd, got %d", *o.MedianKernel)
	}
	if o.SavgolWindow != nil && *o.SavgolWindow%2 == 0 {
		return fmt.Errorf("savgol_window must be odd, got %d", *o.SavgolWindow)
	}
	if o.SavgolOrder != nil && o.SavgolWindow != nil && *o.SavgolOrder >= *o.SavgolWindow {
		return fmt.Errorf("savgol_order (%d) must be less than savgol_window (%d)", *o.SavgolOrder, *o.SavgolWindow)
	}
	if o.ExpectedLiftMM != nil && *o.ExpectedLiftMM <= 0 {
		return fmt.Errorf("expected_lift_mm must be positive, got %f", *o.ExpectedLiftMM)
	}
	if o.PropagationEndThresholdFraction != nil && (*o.PropagationEndThresholdFraction < 0 || *o.PropagationEndThresholdFraction > 1) {
		return fmt.Errorf("propagation_end_threshold_fraction must be in [0,1], got %f", *o.PropagationEndThresholdFraction)
	}
	if o.PreInitRelativeThreshold != nil && (*o.PreInitRelativeThreshold < 0 || *o.PreInitRelativeThreshold > 1) {
		return fmt.Errorf("pre_init_relative_threshold must be in [0,1], got %f", *o.PreInitRelativeThreshold)
	}
	return nil
}

// Merge returns a new Config with every non-nil field of o applied on
// top of c. The receiver is left untouched.
func (c Config) Merge(o *Overrides) Config {
	if o == nil {
		return c
	}
	if o.ExpectedLiftMM != nil {
		c.ExpectedLiftMM = *o.ExpectedLiftMM
	}
	if o.LiftToleranceMM != nil {
		c.LiftToleranceMM = *o.LiftToleranceMM
	}
	if o.MedianKernel != nil {
		c.MedianKernel = *o.MedianKernel
	}
	if o.SavgolWindow != nil {
		c.SavgolWindow = *o.SavgolWindow
	}
	if o.SavgolOrder != nil {
		c.SavgolOrder = *o.SavgolOrder
	}
	if o.PropagationEndThresholdFraction != nil {
		c.PropagationEndThresholdFraction = *o.PropagationEndThresholdFraction
	}
	if o.PreInitRelativeThreshold != nil {
		c.PreInitRelativeThreshold = *o.PreInitRelativeThreshold
	}
	if o.MotionEndStabilityStddevMM != nil {
		c.MotionEndStabilityStddevMM = *o.MotionEndStabilityStddevMM
	}
	if o.MotionEndStabilityPoints != nil {
		c.MotionEndStabilityPoints = *o.MotionEndStabilityPoints
	}
	if o.MotionEndMaxSearch != nil {
		c.MotionEndMaxSearch = *o.MotionEndMaxSearch
	}
	if o.StationaryPositionThresholdMM != nil {
		c.StationaryPositionThresholdMM = *o.StationaryPositionThresholdMM
	}
	if o.StationaryCountThreshold != nil {
		c.StationaryCountThreshold = *o.StationaryCountThreshold
	}
	if o.SandwichMaxDistanceMM != nil {
		c.SandwichMaxDistanceMM = *o.SandwichMaxDistanceMM
	}
	return c
}
