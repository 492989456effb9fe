// Package testutil provides shared test utilities and fixtures.
//
// The synthetic table is multilinear in (T, ABM, SBM), so trilinear
// interpolation over it reproduces SyntheticValue exactly at any point inside
// the axes. Tests can therefore compare solver output against closed-form
// values.
package testutil

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/mixcalc/internal/table"
)

// Axes of the synthetic table.
var (
	SyntheticTemps = []float64{10, 15, 20, 25, 30}
	SyntheticABMs  = steps(0, 40, 2)
	SyntheticSBMs  = steps(0, 60, 2)
)

func steps(lo, hi, step float64) []float64 {
	var out []float64
	for v := lo; v <= hi+1e-9; v += step {
		out = append(out, math.Round(v*1e6)/1e6)
	}
	return out
}

// SyntheticValue is the closed-form property surface behind SyntheticRows.
// ABV vanishes at ABM=0 and Sugar_WV at SBM=0, like the real table.
func SyntheticValue(p table.Property, t, abm, sbm float64) float64 {
	dt := t - 20
	switch p {
	case table.ABV:
		return abm*(1.25+0.004*sbm) - 0.001*abm*dt
	case table.SugarWV:
		return sbm * (9.98 - 0.015*abm - 0.005*dt)
	case table.Density:
		return 0.998 - 0.0015*abm + 0.0040*sbm - 0.0002*dt
	case table.BrixATC:
		return 0.35*abm + sbm + 0.01*dt
	case table.ND:
		return 1.3330 + 0.0006*abm + 0.0015*sbm - 0.0001*dt
	}
	return math.NaN()
}

// SyntheticRows returns every row of the synthetic table.
func SyntheticRows() []table.Row {
	rows := make([]table.Row, 0, len(SyntheticTemps)*len(SyntheticABMs)*len(SyntheticSBMs))
	for _, t := range SyntheticTemps {
		for _, a := range SyntheticABMs {
			for _, s := range SyntheticSBMs {
				r := table.Row{TempC: t, ABM: a, SBM: s}
				for _, p := range table.Properties {
					r.Set(p, SyntheticValue(p, t, a, s))
				}
				rows = append(rows, r)
			}
		}
	}
	return rows
}

// Blank marks p as unmeasured (sentinel) in the row at (t, abm, sbm).
func Blank(rows []table.Row, p table.Property, t, abm, sbm float64) {
	for i := range rows {
		if rows[i].TempC == t && rows[i].ABM == abm && rows[i].SBM == sbm {
			rows[i].Set(p, table.Sentinel)
		}
	}
}

// AssertNear fails the test if got is not within tol of want.
func AssertNear(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > tol {
		t.Errorf("%s = %v, want %v ± %v", name, got, want, tol)
	}
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// NewTestRequest creates a test HTTP request with no body.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}
