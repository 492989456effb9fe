package mix

import "math"

// SolveEdge inverts a single measurement on a composition edge: with
// alcoholZero the sugar axis is searched at ABM=0, otherwise the alcohol
// axis at SBM=0. The best axis point is bracketed by its neighbours and
// refined with a ternary search.
func (e *Engine) SolveEdge(m Measurement, alcoholZero bool, reportT float64) Result {
	return e.solveEdge(m, alcoholZero, reportT, solveScope{})
}

func (e *Engine) solveEdge(m Measurement, alcoholZero bool, reportT float64, scope solveScope) Result {
	m.TempC = e.clampTemp(m.TempC)
	sigma := e.sigma(m.Property)
	at := func(x float64) (a, s float64) {
		if alcoholZero {
			return 0, x
		}
		return x, 0
	}
	f := func(x float64) float64 {
		a, s := at(x)
		pred := e.Interpolate(m.Property, m.TempC, a, s)
		if !finite(pred) {
			return math.Inf(1)
		}
		r := (pred - m.Value) / sigma
		return r * r
	}

	axis := e.grid.Axis(DimABM)
	if alcoholZero {
		axis = e.grid.Axis(DimSBM)
	}

	bestIdx, bestNorm := -1, math.Inf(1)
	for i, x := range axis {
		if n := f(x); n < bestNorm {
			bestIdx, bestNorm = i, n
		}
	}

	inputs := map[string]float64{
		string(m.Property):        m.Value,
		string(m.Property) + "_T": m.TempC,
	}
	if bestIdx < 0 {
		scope.logf("mix: no edge coverage for %s=%g @ %g", m.Property, m.Value, m.TempC)
		return Result{
			Outcome: OutcomeNoCoverage,
			Mode:    ModeEdge,
			Error:   msgNoEdgeCoverage,
			Inputs:  inputs,
			ReportT: reportT,
		}
	}

	lo := axis[max(0, bestIdx-1)]
	hi := axis[min(len(axis)-1, bestIdx+1)]
	for k := 0; k < e.params.edgeIterations; k++ {
		m1 := lo + (hi-lo)/3
		m2 := hi - (hi-lo)/3
		if f(m1) > f(m2) {
			lo = m1
		} else {
			hi = m2
		}
	}
	a, s := at((lo + hi) / 2)

	edge := "SBM=0"
	if alcoholZero {
		edge = "ABM=0"
	}
	out := e.PredictAll(a, s, reportT)
	return Result{
		Outcome: OutcomeSolved,
		OK:      true,
		Mode:    ModeEdge,
		Inputs:  inputs,
		ABM:     composition(a),
		SBM:     composition(s),
		ReportT: reportT,
		Outputs: &out,
		Diagnostics: &Diagnostics{
			Note: "Single-input edge solve with " + edge + " using " + string(m.Property) + " @ " + formatTemp(m.TempC),
		},
	}
}
