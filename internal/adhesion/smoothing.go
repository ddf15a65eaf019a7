package adhesion

import (
	"fmt"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Smooth implements the two-stage Smoothing Filter (4.A): a median filter
// for outlier rejection followed by a Savitzky-Golay filter for
// peak-preserving noise reduction. The two stages are always applied in
// that order; there is no single-stage substitute, per the pipeline's
// design notes (§9).
//
// If len(x) < max(cfg.MedianKernel, cfg.SavgolWindow), the input is
// returned unchanged (copied), per the documented failure mode.
func Smooth(x []float64, cfg SmoothingParams) ([]float64, error) {
	minLen := cfg.MedianKernel
	if cfg.SavgolWindow > minLen {
		minLen = cfg.SavgolWindow
	}
	if len(x) < minLen {
		out := make([]float64, len(x))
		copy(out, x)
		return out, nil
	}

	median := MedianFilter(x, cfg.MedianKernel)
	return SavitzkyGolay(median, cfg.SavgolWindow, cfg.SavgolOrder)
}

// SmoothingParams is the subset of adhesionconfig.Config the Smoothing
// Filter needs. It is a separate, narrow type so the filter does not
// depend on the whole pipeline configuration surface.
type SmoothingParams struct {
	MedianKernel int
	SavgolWindow int
	SavgolOrder  int
}

// MedianFilter applies an odd-kernel median filter with symmetric edge
// reflection: samples before index 0 or at/after len(x) are mirrored back
// into range, so the kernel is always full-width even at the edges.
func MedianFilter(x []float64, kernel int) []float64 {
	n := len(x)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	half := kernel / 2
	window := make([]float64, kernel)
	for i := 0; i < n; i++ {
		for k := -half; k <= half; k++ {
			window[k+half] = x[reflectIndex(i+k, n)]
		}
		sorted := append([]float64(nil), window...)
		sort.Float64s(sorted)
		out[i] = sorted[half]
	}
	return out
}

// reflectIndex mirrors an out-of-range index back into [0, n) by
// reflecting at each boundary, repeating as needed for indices far
// outside the range.
func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i - 1
		}
		if i >= n {
			i = 2*n - i - 1
		}
	}
	return i
}

// sgWeightCache memoizes the (window x window) Savitzky-Golay weight
// matrix per (window, order) pair. The pipeline uses a single fixed
// (9, 2) configuration across every layer of a run (and typically across
// an entire research session), so the cache turns an O(window^3) linear
// solve into a one-time cost.
var sgWeightCache = struct {
	mu sync.Mutex
	m  map[[2]int]*mat.Dense
}{m: make(map[[2]int]*mat.Dense)}

// sgWeightMatrix returns W such that, for a length-`window` slice v
// centered on some sample i, dot(W.RawRowView(r), v) is the value of the
// degree-`order` least-squares polynomial fit to v, evaluated at offset
// (r - window/2) from the window's center. Row window/2 is the classic
// central Savitzky-Golay coefficient vector; the other rows let the
// caller evaluate the same fitted polynomial away from the center, which
// is how edge samples are extrapolated in SavitzkyGolay.
func sgWeightMatrix(window, order int) (*mat.Dense, error) {
	key := [2]int{window, order}

	sgWeightCache.mu.Lock()
	if w, ok := sgWeightCache.m[key]; ok {
		sgWeightCache.mu.Unlock()
		return w, nil
	}
	sgWeightCache.mu.Unlock()

	half := window / 2
	a := mat.NewDense(window, order+1, nil)
	for i := 0; i < window; i++ {
		x := float64(i - half)
		xp := 1.0
		for k := 0; k <= order; k++ {
			a.Set(i, k, xp)
			xp *= x
		}
	}

	var ata mat.Dense
	ata.Mul(a.T(), a)

	var ataInv mat.Dense
	if err := ataInv.Inverse(&ata); err != nil {
		return nil, fmt.Errorf("adhesion: savitzky-golay normal equations singular for window=%d order=%d: %w", window, order, err)
	}

	var coeffs mat.Dense // (order+1) x window
	coeffs.Mul(&ataInv, a.T())

	var w mat.Dense // window x window
	w.Mul(a, &coeffs)

	sgWeightCache.mu.Lock()
	sgWeightCache.m[key] = &w
	sgWeightCache.mu.Unlock()

	return &w, nil
}

// SavitzkyGolay applies a Savitzky-Golay filter of the given odd window
// and polynomial order. Interior samples use the fit centered on the
// sample itself; samples within window/2 of either end use the fit
// computed from the nearest full interior window, evaluated at the
// appropriate offset, matching §4.A's "endpoints use the fitted
// polynomial extrapolated from the nearest interior window".
func SavitzkyGolay(x []float64, window, order int) ([]float64, error) {
	n := len(x)
	if n == 0 {
		return nil, nil
	}
	half := window / 2
	w, err := sgWeightMatrix(window, order)
	if err != nil {
		return nil, err
	}

	evalAt := func(centerIdx, offset int) float64 {
		c0 := centerIdx
		if c0 < half {
			c0 = half
		}
		if c0 > n-1-half {
			c0 = n - 1 - half
		}
		row := w.RawRowView(offset + half)
		var sum float64
		for i := 0; i < window; i++ {
			sum += row[i] * x[c0-half+i]
		}
		return sum
	}

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		switch {
		case i < half:
			out[i] = evalAt(half, i-half)
		case i > n-1-half:
			out[i] = evalAt(n-1-half, i-(n-1-half))
		default:
			out[i] = evalAt(i, 0)
		}
	}
	return out, nil
}
