package mix

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/mixcalc/internal/monitoring"
	"github.com/banshee-data/mixcalc/internal/table"
)

// Spread holds the standard deviation of each reported property. A nil
// field means fewer than two trials produced that property.
type Spread struct {
	ABV     *float64 `json:"ABV"`
	SugarWV *float64 `json:"Sugar_WV"`
	Density *float64 `json:"Density"`
	BrixATC *float64 `json:"BrixATC"`
	ND      *float64 `json:"nD"`
}

// SampleStats summarises a Monte Carlo run.
type SampleStats struct {
	Count int     `json:"count"` // successful trials
	Total int     `json:"total"` // attempted trials
	TimeS float64 `json:"time_s"`
}

// Uncertainty is the spread of a solution under perturbed inputs.
type Uncertainty struct {
	ABM     *float64    `json:"abm"`
	SBM     *float64    `json:"sbm"`
	Outputs Spread      `json:"outputs"`
	Samples SampleStats `json:"samples"`
}

// normal draws a standard normal variate with the Box-Muller transform.
func normal(rng *rand.Rand) float64 {
	var u, v float64
	for u == 0 {
		u = rng.Float64()
	}
	for v == 0 {
		v = rng.Float64()
	}
	return math.Sqrt(-2*math.Log(u)) * math.Cos(2*math.Pi*v)
}

func stddev(xs []float64) *float64 {
	if len(xs) < 2 {
		return nil
	}
	sd := stat.StdDev(xs, nil)
	return &sd
}

// newRand returns the generator for one propagation run.
func (e *Engine) newRand() *rand.Rand {
	if e.seed != nil {
		return rand.New(rand.NewPCG(*e.seed, *e.seed^0x9e3779b97f4a7c15))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// perturb returns a copy of req with every value that has a positive sigma
// jittered by a normal draw.
func perturb(req Request, rng *rand.Rand) Request {
	r := req.clone()
	for _, p := range table.Measurable {
		if v, ok := r.Values[p]; ok {
			if sd := req.Sigma[string(p)]; sd > 0 {
				r.Values[p] = v + normal(rng)*sd
			}
		}
		if t, ok := r.Temps[p]; ok {
			if sd := req.SigmaT[p]; sd > 0 {
				r.Temps[p] = t + normal(rng)*sd
			}
		}
	}
	if r.ABM != nil {
		if sd := req.Sigma[table.ABM]; sd > 0 {
			*r.ABM += normal(rng) * sd
		}
	}
	if r.SBM != nil {
		if sd := req.Sigma[table.SBM]; sd > 0 {
			*r.SBM += normal(rng) * sd
		}
	}
	return r
}

// Propagate estimates the spread of the solution to req by re-solving it
// with inputs perturbed by req.Sigma and req.SigmaT. Trials run
// sequentially until the sample count is reached or the deadline passes;
// failed trials are dropped. It returns nil when req carries no sigma.
func (e *Engine) Propagate(req Request, rng *rand.Rand) *Uncertainty {
	if !req.wantsUncertainty() {
		return nil
	}
	if rng == nil {
		rng = e.newRand()
	}
	p := e.params
	samples := req.Samples
	if samples <= 0 {
		samples = p.mcSamples
	}
	samples = max(p.mcMin, min(p.mcMax, samples))

	var abm, sbm []float64
	vals := make(map[table.Property][]float64, table.NumProperties)

	start := e.clock.Now()
	attempted := 0
	for i := 0; i < samples; i++ {
		if i%p.mcCheckEvery == 0 && e.clock.Since(start) > p.mcDeadline {
			break
		}
		attempted++

		res := e.solve(perturb(req, rng), solveScope{nested: true})
		if !res.Solved() {
			monitoring.UncertaintyTrials.WithLabelValues("failed").Inc()
			continue
		}
		monitoring.UncertaintyTrials.WithLabelValues("solved").Inc()
		if res.ABM != nil {
			abm = append(abm, *res.ABM)
		}
		if res.SBM != nil {
			sbm = append(sbm, *res.SBM)
		}
		for _, prop := range table.Properties {
			if v, ok := res.Outputs.Get(prop); ok {
				vals[prop] = append(vals[prop], v)
			}
		}
	}

	u := &Uncertainty{
		ABM: stddev(abm),
		SBM: stddev(sbm),
		Outputs: Spread{
			ABV:     stddev(vals[table.ABV]),
			SugarWV: stddev(vals[table.SugarWV]),
			Density: stddev(vals[table.Density]),
			BrixATC: stddev(vals[table.BrixATC]),
			ND:      stddev(vals[table.ND]),
		},
		Samples: SampleStats{
			Count: len(abm),
			Total: attempted,
			TimeS: table.Round(e.clock.Since(start).Seconds(), 3),
		},
	}
	monitoring.Logf("mix: uncertainty %d/%d trials succeeded in %.3fs", u.Samples.Count, u.Samples.Total, u.Samples.TimeS)
	return u
}
