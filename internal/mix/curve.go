package mix

import "github.com/banshee-data/mixcalc/internal/table"

// CurvePoint is one sample of a property curve.
type CurvePoint struct {
	SBM   float64 `json:"sbm"`
	Value float64 `json:"value"`
}

// Curve samples p at temperature t and alcohol abm for n sugar values
// evenly spaced over [sMin, sMax]. Points without data are left out.
func (e *Engine) Curve(p table.Property, t, abm, sMin, sMax float64, n int) []CurvePoint {
	if n < 2 {
		n = 2
	}
	step := (sMax - sMin) / float64(n-1)
	out := make([]CurvePoint, 0, n)
	for i := 0; i < n; i++ {
		s := sMin + step*float64(i)
		v := e.Interpolate(p, t, abm, s)
		if !finite(v) {
			continue
		}
		out = append(out, CurvePoint{SBM: table.Round(s, 4), Value: table.Round(v, p.Precision())})
	}
	return out
}

// CurveDomain returns the sugar range covered by the table.
func (e *Engine) CurveDomain() (sMin, sMax float64, ok bool) {
	return e.grid.Bounds(DimSBM)
}
