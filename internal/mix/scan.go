package mix

import (
	"math"
	"sort"

	"github.com/banshee-data/mixcalc/internal/table"
)

// Measurement is one measured property value and the temperature it was
// taken at.
type Measurement struct {
	Property table.Property `json:"property"`
	Value    float64        `json:"value"`
	TempC    float64        `json:"T_C"`
}

// Pair is the two measurements an inversion is fitted to.
type Pair [2]Measurement

// Candidate is a scored composition.
type Candidate struct {
	ABM       float64                    `json:"abm"`
	SBM       float64                    `json:"sbm"`
	Pred1     float64                    `json:"pred1"`
	Pred2     float64                    `json:"pred2"`
	Err       map[table.Property]float64 `json:"err"`
	NormError float64                    `json:"norm_err"`
}

// score evaluates the normalised squared error of pair at (a, s). The error
// is +Inf when either prediction is not finite.
func (e *Engine) score(pair Pair, a, s float64) (norm float64, pred [2]float64) {
	for i, m := range pair {
		pred[i] = e.Interpolate(m.Property, m.TempC, a, s)
		if !finite(pred[i]) {
			return math.Inf(1), pred
		}
		r := (pred[i] - m.Value) / e.sigma(m.Property)
		norm += r * r
	}
	return norm, pred
}

// CoarseScan scores every (ABM, SBM) point on the table axes against pair
// and returns the k best, lowest error first. At least one candidate is
// returned unless no point has finite predictions for both properties.
func (e *Engine) CoarseScan(pair Pair, k int) []Candidate {
	var out []Candidate
	for _, a := range e.grid.Axis(DimABM) {
		for _, s := range e.grid.Axis(DimSBM) {
			norm, pred := e.score(pair, a, s)
			if !finite(norm) {
				continue
			}
			out = append(out, Candidate{
				ABM:   a,
				SBM:   s,
				Pred1: pred[0],
				Pred2: pred[1],
				Err: map[table.Property]float64{
					pair[0].Property: pred[0] - pair[0].Value,
					pair[1].Property: pred[1] - pair[1].Value,
				},
				NormError: norm,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].NormError < out[j].NormError
	})
	if k < 1 {
		k = 1
	}
	if len(out) > k {
		out = out[:k]
	}
	return out
}
