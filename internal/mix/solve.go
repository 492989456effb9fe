package mix

import (
	"errors"

	"github.com/banshee-data/mixcalc/internal/monitoring"
	"github.com/banshee-data/mixcalc/internal/table"
)

// solveScope carries per-call settings that are not part of the request.
type solveScope struct {
	// nested marks a Monte Carlo trial: no further propagation, no logging.
	nested bool
}

func (s solveScope) logf(format string, v ...interface{}) {
	if !s.nested {
		monitoring.Logf(format, v...)
	}
}

// Solve validates req and resolves it into a composition and the full
// property vector at the report temperature. Expected failures (invalid
// input, no coverage, infeasible measurements) are reported through
// Result.Outcome rather than as errors.
func (e *Engine) Solve(req Request) Result {
	start := e.clock.Now()
	res := e.solve(req, solveScope{})

	mode := string(req.Mode)
	if res.Mode != "" {
		mode = string(res.Mode)
	}
	monitoring.SolveTotal.WithLabelValues(mode, string(res.Outcome)).Inc()
	monitoring.SolveDuration.WithLabelValues(mode).Observe(e.clock.Since(start).Seconds())
	return res
}

func (e *Engine) solve(req Request, scope solveScope) Result {
	if err := req.Validate(); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return invalidResult(verr)
		}
		return Result{Outcome: OutcomeInvalid, Error: err.Error()}
	}

	reportT := e.params.reportTemp
	if req.ReportT != nil {
		reportT = *req.ReportT
	}

	var res Result
	switch {
	case req.AlcoholZero || req.SugarZero:
		if m, ok := e.singleMeasurement(req); ok {
			if verr := underdetermined(m.Property, req.AlcoholZero); verr != nil {
				return invalidResult(verr)
			}
			res = e.solveEdge(m, req.AlcoholZero, reportT, scope)
			break
		}
		// Two measurements on an edge are solved as a normal inversion.
		res = e.solveMode(req, reportT, scope)
	default:
		res = e.solveMode(req, reportT, scope)
	}

	if !scope.nested && res.Solved() && req.wantsUncertainty() {
		res.Uncertainty = e.Propagate(req, e.newRand())
	}
	return res
}

func (e *Engine) solveMode(req Request, reportT float64, scope solveScope) Result {
	if req.Mode == ModeDirect {
		return e.solveDirect(req, reportT)
	}
	p1, p2, _ := req.Mode.Properties()
	m1, _ := req.Measurement(p1)
	m2, _ := req.Measurement(p2)
	return e.solvePair(req.Mode, Pair{m1, m2}, reportT, scope)
}

// singleMeasurement returns the measurement when exactly one of the mode's
// two properties is complete.
func (e *Engine) singleMeasurement(req Request) (Measurement, bool) {
	p1, p2, ok := req.Mode.Properties()
	if !ok {
		return Measurement{}, false
	}
	m1, ok1 := req.Measurement(p1)
	m2, ok2 := req.Measurement(p2)
	switch {
	case ok1 && !ok2:
		return m1, true
	case ok2 && !ok1:
		return m2, true
	}
	return Measurement{}, false
}

// underdetermined rejects edge solves whose only measurement is identically
// zero along the edge.
func underdetermined(p table.Property, alcoholZero bool) *ValidationError {
	switch {
	case alcoholZero && p == table.ABV:
		return &ValidationError{
			Where:   "edge_underdetermined",
			Message: "ABM=0 with only ABV@T is underdetermined. Add Brix, Density, or Sugar_WV.",
		}
	case !alcoholZero && p == table.SugarWV:
		return &ValidationError{
			Where:   "edge_underdetermined",
			Message: "SBM=0 with only Sugar_WV@T is underdetermined. Add ABV, Brix, or Density.",
		}
	}
	return nil
}

func (e *Engine) solveDirect(req Request, reportT float64) Result {
	abm, sbm := *req.ABM, *req.SBM
	out := e.PredictAll(abm, sbm, reportT)
	return Result{
		Outcome: OutcomeSolved,
		OK:      true,
		Mode:    ModeDirect,
		Inputs:  map[string]float64{table.ABM: abm, table.SBM: sbm, "report_T": reportT},
		ABM:     composition(abm),
		SBM:     composition(sbm),
		ReportT: reportT,
		Outputs: &out,
		Diagnostics: &Diagnostics{
			Note: msgDirectNote,
		},
	}
}

func (e *Engine) solvePair(mode Mode, pair Pair, reportT float64, scope solveScope) Result {
	for i := range pair {
		pair[i].TempC = e.clampTemp(pair[i].TempC)
	}
	res := Result{
		Mode:    mode,
		Inputs:  pairInputs(pair),
		ReportT: reportT,
	}

	diag := e.RangeDiagnostics(pair)
	hard, soft, hardMsgs := e.gate(pair, diag)
	if hard {
		diag.addWarning(soft...)
		diag.addWarning(hardMsgs...)
		scope.logf("mix: %s blocked as infeasible: %s", mode, diag.Warning)
		res.Outcome = OutcomeInfeasible
		res.OK = true
		res.Diagnostics = &diag
		return res
	}

	best := e.CoarseScan(pair, e.params.coarseKeep)
	if len(best) == 0 {
		scope.logf("mix: %s has no coverage for %+v", mode, pair)
		res.Outcome = OutcomeNoCoverage
		res.Error = msgNoCoverage
		res.Diagnostics = &diag
		return res
	}

	ref := e.Refine(best[0].ABM, best[0].SBM, pair)
	norm := ref.NormError
	diag.BestError = ref.Residuals
	diag.BestNormError = &norm
	diag.BestCandidates = best
	res.Diagnostics = &diag

	if !finite(norm) {
		scope.logf("mix: %s refinement left the covered domain", mode)
		res.Outcome = OutcomeNoCoverage
		res.Error = msgNoCoverage
		res.Diagnostics.BestNormError = nil
		return res
	}
	if norm >= e.params.failNorm {
		res.Outcome = OutcomeInfeasible
		res.Error = msgCannotFit
		return res
	}

	out := e.PredictAll(ref.ABM, ref.SBM, reportT)
	res.Outcome = OutcomeSolved
	res.OK = true
	res.ABM = composition(ref.ABM)
	res.SBM = composition(ref.SBM)
	res.Outputs = &out

	if norm >= e.params.warnNorm {
		diag.Warning = msgHardToFit
	}
	diag.addWarning(soft...)
	return res
}
