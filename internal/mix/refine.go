package mix

import (
	"math"

	"github.com/banshee-data/mixcalc/internal/table"
)

// Refined is the outcome of a local refinement.
type Refined struct {
	ABM       float64
	SBM       float64
	NormError float64
	// Residuals holds predicted minus measured per property.
	Residuals map[table.Property]float64
}

// Refine runs a shrinking-box search from (abm, sbm). Each pass samples a
// regular sub-grid of the current box, centred on the best point so far,
// then halves the box until it is narrower than the configured tolerance.
// Sample points are clamped to the table's composition range.
func (e *Engine) Refine(abm, sbm float64, pair Pair) Refined {
	p := e.params
	a := e.clampAxis(DimABM, abm)
	s := e.clampAxis(DimSBM, sbm)

	bestNorm, bestPred := e.score(pair, a, s)

	for half := p.refineHalfWidth; half > p.refineTolerance; half *= 0.5 {
		step := math.Max(half/float64(p.refineSteps), minRefineStep)
		n := int(math.Floor(half/step + 1e-9))
		ca, cs := a, s
		for i := -n; i <= n; i++ {
			ta := e.clampAxis(DimABM, ca+float64(i)*step)
			for j := -n; j <= n; j++ {
				ts := e.clampAxis(DimSBM, cs+float64(j)*step)
				norm, pred := e.score(pair, ta, ts)
				if norm < bestNorm {
					bestNorm, bestPred = norm, pred
					a, s = ta, ts
				}
			}
		}
	}

	res := Refined{ABM: a, SBM: s, NormError: bestNorm}
	if finite(bestNorm) {
		res.Residuals = map[table.Property]float64{
			pair[0].Property: bestPred[0] - pair[0].Value,
			pair[1].Property: bestPred[1] - pair[1].Value,
		}
	}
	return res
}
