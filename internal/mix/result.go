package mix

import (
	"strconv"

	"github.com/banshee-data/mixcalc/internal/table"
)

// Outcome classifies a solve result.
type Outcome string

const (
	OutcomeSolved     Outcome = "solved"
	OutcomeInfeasible Outcome = "infeasible"
	OutcomeNoCoverage Outcome = "no_coverage"
	OutcomeInvalid    Outcome = "invalid"
)

// Messages carried by non-solved results.
const (
	msgNoCoverage     = "Model has no coverage for these inputs at the given temperatures."
	msgNoEdgeCoverage = "No coverage on edge for this temperature/property."
	msgCannotFit      = "Inputs cannot be reconciled within model tolerances."
	msgHardToFit      = "Inputs are difficult to reconcile; returning closest-fit solution."
	msgInconsistent   = "Inputs appear physically inconsistent for the specified temperatures."
	msgDirectNote     = "Direct forward calculation (no inversion)."
)

// Result is the answer to one Request. OK alone does not mean outputs are
// present: a hard infeasibility is OK with nil Outputs.
type Result struct {
	Outcome     Outcome            `json:"outcome"`
	OK          bool               `json:"ok"`
	Mode        Mode               `json:"mode,omitempty"`
	Where       string             `json:"where,omitempty"`
	Error       string             `json:"error,omitempty"`
	Missing     []string           `json:"missing,omitempty"`
	Inputs      map[string]float64 `json:"inputs,omitempty"`
	ABM         *float64           `json:"abm,omitempty"`
	SBM         *float64           `json:"sbm,omitempty"`
	ReportT     float64            `json:"report_T"`
	Outputs     *Outputs           `json:"outputs"`
	Diagnostics *Diagnostics       `json:"diagnostics,omitempty"`
	Uncertainty *Uncertainty       `json:"uncertainty,omitempty"`
}

// Solved reports whether the result carries a composition and outputs.
func (r Result) Solved() bool {
	return r.OK && r.Outputs != nil
}

func invalidResult(err *ValidationError) Result {
	return Result{
		Outcome: OutcomeInvalid,
		Where:   err.Where,
		Error:   err.Message,
		Missing: err.Missing,
	}
}

func composition(v float64) *float64 {
	r := table.Round(v, 4)
	return &r
}

func pairInputs(pair Pair) map[string]float64 {
	in := make(map[string]float64, 4)
	for _, m := range pair {
		in[string(m.Property)] = m.Value
		in[string(m.Property)+"_T"] = m.TempC
	}
	return in
}

func formatValue(v float64, p table.Property) string {
	return strconv.FormatFloat(v, 'f', p.Precision(), 64)
}

func formatTemp(t float64) string {
	return strconv.FormatFloat(t, 'f', 1, 64) + "°C"
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
