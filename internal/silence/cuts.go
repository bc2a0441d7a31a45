package silence

import (
	"fmt"
	"math"
	"slices"
)

// Optional is a float parameter that may be absent. The zero value is absent,
// which keeps "no window" distinct from a window of zero seconds.
type Optional struct {
	Value float64
	Set   bool
}

// Some returns a present Optional holding v.
func Some(v float64) Optional {
	return Optional{Value: v, Set: true}
}

// Or returns the held value, or def when absent.
func (o Optional) Or(def float64) float64 {
	if o.Set {
		return o.Value
	}
	return def
}

// Params controls SelectCuts.
type Params struct {
	// Every is the target spacing in seconds. Must be > 0.
	Every float64
	// Duration of the media. Absent: last midpoint + Every.
	Duration Optional
	// Window restricts candidates to |mid - target| <= Window, falling back to
	// the globally nearest unused midpoint when none qualify. Absent: no restriction.
	Window Optional
	// StartAt is the first target. Absent: Every.
	StartAt Optional
	// StopBeforeEnd keeps targets at least this far from Duration.
	StopBeforeEnd float64
}

// CutPoint records a target time and the silence midpoint chosen for it.
type CutPoint struct {
	Target float64
	Chosen float64
	Delta  float64 // Chosen - Target
}

// SelectCuts picks one silence midpoint per evenly spaced target.
//
// Targets run StartAt, StartAt+Every, ... up to Duration-StopBeforeEnd. Each
// midpoint is used at most once, and chosen values are strictly increasing:
// a midpoint at or before the previous cut is never eligible. Equal distances
// resolve to the smaller midpoint. Selection stops early, without error, when
// no eligible midpoint remains.
func SelectCuts(mids []float64, p Params) ([]CutPoint, error) {
	if !(p.Every > 0) || math.IsInf(p.Every, 1) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidEvery, p.Every)
	}
	if len(mids) == 0 {
		return nil, nil
	}

	sorted := slices.Clone(mids)
	slices.Sort(sorted)
	used := make([]bool, len(sorted))

	duration := p.Duration.Or(sorted[len(sorted)-1] + p.Every)
	last := duration - p.StopBeforeEnd
	startAt := p.StartAt.Or(p.Every)

	var (
		cuts []CutPoint
		prev = math.Inf(-1)
	)
	for k := 0; ; k++ {
		t := startAt + float64(k)*p.Every
		if t > last {
			break
		}

		i := -1
		if p.Window.Set {
			i = nearest(sorted, used, prev, t, p.Window.Value)
		}
		if i < 0 {
			i = nearest(sorted, used, prev, t, math.Inf(1))
		}
		if i < 0 {
			break
		}

		used[i] = true
		prev = sorted[i]
		cuts = append(cuts, CutPoint{Target: t, Chosen: sorted[i], Delta: sorted[i] - t})
	}

	return cuts, nil
}

// nearest returns the index of the unused midpoint closest to t, within
// radius and strictly after floor, or -1. sorted is ascending, so the first
// minimum found is the smaller midpoint.
func nearest(sorted []float64, used []bool, floor, t, radius float64) int {
	best, bestDist := -1, math.Inf(1)
	for i, m := range sorted {
		if used[i] || m <= floor {
			continue
		}
		d := math.Abs(m - t)
		if d > radius {
			continue
		}
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Chosen returns the chosen times of cuts, in order.
func Chosen(cuts []CutPoint) []float64 {
	out := make([]float64, len(cuts))
	for i, c := range cuts {
		out[i] = c.Chosen
	}
	return out
}
