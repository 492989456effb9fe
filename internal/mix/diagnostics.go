package mix

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/mixcalc/internal/table"
)

// Range is the envelope of one property over the compositions whose other
// property matches its measurement within Band.
type Range struct {
	Property table.Property `json:"property"`
	Given    table.Property `json:"given"`
	Matched  bool           `json:"matched"`
	Count    int            `json:"count"`
	Band     float64        `json:"band"`
	Min      *float64       `json:"min"`
	Max      *float64       `json:"max"`
}

// Diagnostics explains how a result was reached.
type Diagnostics struct {
	Ranges         []Range                    `json:"ranges,omitempty"`
	BestError      map[table.Property]float64 `json:"best_error,omitempty"`
	BestNormError  *float64                   `json:"best_norm_error,omitempty"`
	BestCandidates []Candidate                `json:"best_candidates,omitempty"`
	Note           string                     `json:"note,omitempty"`
	Warning        string                     `json:"warning,omitempty"`
}

// addWarning appends msg to the warning text.
func (d *Diagnostics) addWarning(msg ...string) {
	parts := append([]string{d.Warning}, msg...)
	d.Warning = strings.TrimSpace(strings.Join(parts, " "))
}

// RangeDiagnostics computes, for each measurement of pair, the range the
// other property takes over every axis composition consistent with it.
// Ranges[0] is the range of pair[0] given pair[1] and Ranges[1] the reverse.
func (e *Engine) RangeDiagnostics(pair Pair) Diagnostics {
	d := Diagnostics{
		Ranges: []Range{
			e.envelope(pair[1], pair[0]),
			e.envelope(pair[0], pair[1]),
		},
	}
	if d.Ranges[0].Count == 0 || d.Ranges[1].Count == 0 {
		d.Warning = msgInconsistent
	}
	return d
}

// envelope collects the predictions of varied.Property at varied.TempC over
// compositions whose prediction of fixed lies within its band.
func (e *Engine) envelope(fixed, varied Measurement) Range {
	band := e.band(fixed.Property)
	r := Range{Property: varied.Property, Given: fixed.Property, Band: band}

	var vals []float64
	for _, a := range e.grid.Axis(DimABM) {
		for _, s := range e.grid.Axis(DimSBM) {
			f := e.Interpolate(fixed.Property, fixed.TempC, a, s)
			if !finite(f) || math.Abs(f-fixed.Value) > band {
				continue
			}
			v := e.Interpolate(varied.Property, varied.TempC, a, s)
			if finite(v) {
				vals = append(vals, v)
			}
		}
	}

	r.Count = len(vals)
	r.Matched = r.Count > 0
	if r.Matched {
		lo, hi := floats.Min(vals), floats.Max(vals)
		if varied.Property == table.SugarWV {
			lo = math.Max(0, lo)
		}
		r.Min = rounded(lo, varied.Property)
		r.Max = rounded(hi, varied.Property)
	}
	return r
}

// gate compares each measurement against the range computed for it. It
// returns hard=true when a value lies beyond the hard margin, and messages
// for values outside the range.
func (e *Engine) gate(pair Pair, d Diagnostics) (hard bool, soft, hardMsgs []string) {
	check := func(fixed, varied Measurement, r Range) {
		if !r.Matched || r.Min == nil || r.Max == nil {
			return
		}
		lo, hi := *r.Min, *r.Max
		margin := e.softMargin(varied.Property)
		limit := e.params.hardMultiplier * margin

		describe := func(verb string) string {
			return string(varied.Property) + "=" + formatValue(varied.Value, varied.Property) + " @ " + formatTemp(varied.TempC) +
				" is " + verb + " feasible range [" + formatBound(lo) + ", " + formatBound(hi) + "] for " +
				string(fixed.Property) + "=" + formatValue(fixed.Value, fixed.Property) + " @ " + formatTemp(fixed.TempC) + "."
		}

		switch {
		case varied.Value < lo-limit || varied.Value > hi+limit:
			hard = true
			hardMsgs = append(hardMsgs, describe("far outside"))
		case varied.Value < lo-1e-6 || varied.Value > hi+1e-6:
			soft = append(soft, describe("just outside"))
		}
	}
	check(pair[0], pair[1], d.Ranges[1])
	check(pair[1], pair[0], d.Ranges[0])
	return hard, soft, hardMsgs
}
