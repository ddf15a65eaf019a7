package adhesion

import "errors"

// Sentinel errors for input-structure violations. Per the pipeline's
// error taxonomy these are programmer errors in the caller: mismatched
// array lengths, non-monotone time, or an empty interval mean the
// SampleRecord or LayerBoundaries was constructed incorrectly. The core
// fails loudly rather than attempting recovery.
var (
	ErrNonMonotoneTime   = errors.New("adhesion: sample times must be monotone nondecreasing")
	ErrEmptyInterval     = errors.New("adhesion: interval is empty")
	ErrInvalidBoundaries = errors.New("adhesion: layer boundaries violate l0 < l1 <= r0 < r1")
	ErrNilRecord         = errors.New("adhesion: SampleRecord is nil")
)
