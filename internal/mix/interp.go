package mix

import (
	"math"

	"github.com/banshee-data/mixcalc/internal/table"
)

// bracket locates x between axis[lo] and axis[hi] with alpha = (x-x0)/(x1-x0).
// At or beyond either end both indices point at the end value and alpha is 0.
func bracket(axis []float64, x float64) (lo, hi int, alpha float64) {
	n := len(axis)
	if n == 0 {
		return 0, 0, 0
	}
	if x <= axis[0] {
		return 0, 0, 0
	}
	if x >= axis[n-1] {
		return n - 1, n - 1, 0
	}
	lo, hi = 0, n-1
	for lo+1 < hi {
		mid := (lo + hi) / 2
		if axis[mid] <= x {
			lo = mid
		} else {
			hi = mid
		}
	}
	x0, x1 := axis[lo], axis[hi]
	if x1 == x0 {
		return lo, hi, 0
	}
	return lo, hi, (x - x0) / (x1 - x0)
}

// Interpolate returns the trilinear estimate of p at (t, a, s). Coordinates
// are clamped to the table. Missing corners are dropped from the weighted
// average; when every weighted corner is missing the nearest populated corner
// of the enclosing cell is used. NaN means the table has nothing nearby.
func (e *Engine) Interpolate(p table.Property, t, a, s float64) float64 {
	pi := p.Index()
	g := e.grid
	if pi < 0 || g.Empty() {
		return math.NaN()
	}

	x := [3]float64{
		e.clampAxis(DimTemp, t),
		e.clampAxis(DimABM, a),
		e.clampAxis(DimSBM, s),
	}
	var idx [3][2]int
	var w [3][2]float64
	for d := range x {
		lo, hi, alpha := bracket(g.axes[d], x[d])
		idx[d] = [2]int{lo, hi}
		w[d] = [2]float64{1 - alpha, alpha}
	}

	var num, den float64
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			for k := 0; k < 2; k++ {
				wt := w[0][i] * w[1][j] * w[2][k]
				if wt <= 0 {
					continue
				}
				v, ok := g.at(pi, idx[0][i], idx[1][j], idx[2][k])
				if !ok {
					continue
				}
				num += v * wt
				den += wt
			}
		}
	}
	if den > 0 {
		return num / den
	}

	// Nearest corner along each axis.
	var near [3]int
	for d := range x {
		lo, hi := idx[d][0], idx[d][1]
		if math.Abs(x[d]-g.axes[d][lo]) <= math.Abs(x[d]-g.axes[d][hi]) {
			near[d] = lo
		} else {
			near[d] = hi
		}
	}
	if v, ok := g.at(pi, near[0], near[1], near[2]); ok {
		return v
	}

	best, bestDist := math.NaN(), math.Inf(1)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			for k := 0; k < 2; k++ {
				ti, ai, si := idx[0][i], idx[1][j], idx[2][k]
				v, ok := g.at(pi, ti, ai, si)
				if !ok {
					continue
				}
				dist := math.Abs(x[0]-g.axes[DimTemp][ti]) +
					math.Abs(x[1]-g.axes[DimABM][ai]) +
					math.Abs(x[2]-g.axes[DimSBM][si])
				if dist < bestDist {
					best, bestDist = v, dist
				}
			}
		}
	}
	return best
}

// Outputs is the full property vector at one temperature, rounded to each
// property's reporting precision. Properties without data are nil.
type Outputs struct {
	TempC   float64  `json:"T_C"`
	ABV     *float64 `json:"ABV"`
	SugarWV *float64 `json:"Sugar_WV"`
	Density *float64 `json:"Density"`
	BrixATC *float64 `json:"BrixATC"`
	ND      *float64 `json:"nD"`
}

// Get returns the value reported for p.
func (o *Outputs) Get(p table.Property) (float64, bool) {
	var v *float64
	switch p {
	case table.ABV:
		v = o.ABV
	case table.SugarWV:
		v = o.SugarWV
	case table.Density:
		v = o.Density
	case table.BrixATC:
		v = o.BrixATC
	case table.ND:
		v = o.ND
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

func rounded(v float64, p table.Property) *float64 {
	if !finite(v) {
		return nil
	}
	r := table.Round(v, p.Precision())
	return &r
}

// PredictAll interpolates every property at composition (abm, sbm) and
// temperature t.
func (e *Engine) PredictAll(abm, sbm, t float64) Outputs {
	at := func(p table.Property) *float64 {
		return rounded(e.Interpolate(p, t, abm, sbm), p)
	}
	return Outputs{
		TempC:   table.Round(t, 2),
		ABV:     at(table.ABV),
		SugarWV: at(table.SugarWV),
		Density: at(table.Density),
		BrixATC: at(table.BrixATC),
		ND:      at(table.ND),
	}
}
