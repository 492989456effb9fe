package mix

import (
	"strings"

	"github.com/banshee-data/mixcalc/internal/table"
)

// Mode selects how a request is solved.
type Mode string

const (
	ModeABVBrix     Mode = "abv_brix"
	ModeABVDensity  Mode = "abv_density"
	ModeBrixDensity Mode = "brix_density"
	ModeABVSugarWV  Mode = "abv_sugarwv"
	ModeDirect      Mode = "abm_sbm"

	// ModeEdge is reported for single-measurement solves on a zero edge.
	// It is never accepted as a request mode.
	ModeEdge Mode = "edge"
)

// Modes lists the accepted request modes.
var Modes = []Mode{ModeABVBrix, ModeABVDensity, ModeBrixDensity, ModeABVSugarWV, ModeDirect}

// ParseMode normalises s ("ABV-Brix", "abv brix") and checks it is known.
func ParseMode(s string) (Mode, bool) {
	m := Mode(strings.ToLower(strings.NewReplacer("-", "_", " ", "_").Replace(strings.TrimSpace(s))))
	for _, known := range Modes {
		if m == known {
			return m, true
		}
	}
	return m, false
}

// Properties returns the measured pair of an inversion mode.
func (m Mode) Properties() (table.Property, table.Property, bool) {
	switch m {
	case ModeABVBrix:
		return table.ABV, table.BrixATC, true
	case ModeABVDensity:
		return table.ABV, table.Density, true
	case ModeBrixDensity:
		return table.BrixATC, table.Density, true
	case ModeABVSugarWV:
		return table.ABV, table.SugarWV, true
	}
	return "", "", false
}

// Request is a solve request. Measurement values and their temperatures are
// keyed by property; a measurement counts only when both are present.
type Request struct {
	Mode    Mode
	Values  map[table.Property]float64
	Temps   map[table.Property]float64
	ABM     *float64
	SBM     *float64
	ReportT *float64

	// AlcoholZero and SugarZero pin one composition axis to zero.
	AlcoholZero bool
	SugarZero   bool

	// Sigma holds the standard deviation of measured values, keyed by
	// property name or by "ABM"/"SBM" for direct mode.
	Sigma map[string]float64
	// SigmaT holds the standard deviation of each measurement temperature.
	SigmaT map[table.Property]float64
	// Samples overrides the number of uncertainty trials when > 0.
	Samples int
}

// Measurement returns the complete measurement for p, if any.
func (r Request) Measurement(p table.Property) (Measurement, bool) {
	v, ok := r.Values[p]
	if !ok {
		return Measurement{}, false
	}
	t, ok := r.Temps[p]
	if !ok {
		return Measurement{}, false
	}
	return Measurement{Property: p, Value: v, TempC: t}, true
}

// SetMeasurement records value v of p taken at temperature t.
func (r *Request) SetMeasurement(p table.Property, v, t float64) {
	if r.Values == nil {
		r.Values = make(map[table.Property]float64)
	}
	if r.Temps == nil {
		r.Temps = make(map[table.Property]float64)
	}
	r.Values[p] = v
	r.Temps[p] = t
}

// wantsUncertainty reports whether the caller supplied any sigma.
func (r Request) wantsUncertainty() bool {
	return len(r.Sigma) > 0 || len(r.SigmaT) > 0
}

// clone copies r deeply enough that perturbing values does not touch r.
func (r Request) clone() Request {
	c := r
	c.Values = make(map[table.Property]float64, len(r.Values))
	for k, v := range r.Values {
		c.Values[k] = v
	}
	c.Temps = make(map[table.Property]float64, len(r.Temps))
	for k, v := range r.Temps {
		c.Temps[k] = v
	}
	if r.ABM != nil {
		v := *r.ABM
		c.ABM = &v
	}
	if r.SBM != nil {
		v := *r.SBM
		c.SBM = &v
	}
	return c
}

// inputKey is the request field name used in validation messages.
func inputKey(p table.Property) string {
	switch p {
	case table.BrixATC:
		return "brix"
	case table.SugarWV:
		return "sugarwv"
	}
	return strings.ToLower(string(p))
}

// ValidationError describes a request that cannot be solved as given.
type ValidationError struct {
	Where   string
	Message string
	Missing []string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return e.Where + ": " + e.Message + " (missing: " + strings.Join(e.Missing, ", ") + ")"
	}
	return e.Where + ": " + e.Message
}

// Validate checks the mode, the edge flags and that the inputs the mode
// needs are present. It returns a *ValidationError or nil.
func (r Request) Validate() error {
	known := false
	for _, m := range Modes {
		if r.Mode == m {
			known = true
			break
		}
	}
	if !known {
		names := make([]string, len(Modes))
		for i, m := range Modes {
			names[i] = string(m)
		}
		return &ValidationError{Where: "validate_mode", Message: "Valid modes: " + strings.Join(names, ", ")}
	}

	if r.AlcoholZero && r.SugarZero {
		return &ValidationError{Where: "validate_flags", Message: "Choose only one: ABM=0 or SBM=0"}
	}

	if r.Mode == ModeDirect {
		var missing []string
		if r.ABM == nil {
			missing = append(missing, "abm")
		}
		if r.SBM == nil {
			missing = append(missing, "sbm")
		}
		if len(missing) > 0 {
			return &ValidationError{Where: "validate_inputs", Message: "Missing required inputs", Missing: missing}
		}
		return nil
	}

	p1, p2, _ := r.Mode.Properties()
	props := []table.Property{p1, p2}
	_, has1 := r.Measurement(p1)
	_, has2 := r.Measurement(p2)

	if !r.AlcoholZero && !r.SugarZero {
		if has1 && has2 {
			return nil
		}
		var missing []string
		for _, p := range props {
			if _, ok := r.Values[p]; !ok {
				missing = append(missing, inputKey(p))
			}
			if _, ok := r.Temps[p]; !ok {
				missing = append(missing, inputKey(p)+"_t")
			}
		}
		return &ValidationError{Where: "validate_inputs", Message: "Need value + temperature for this mode", Missing: missing}
	}

	if has1 || has2 {
		return nil
	}
	// Point at the missing half of a partial pair, or at everything.
	var missing []string
	for _, p := range props {
		_, hasV := r.Values[p]
		_, hasT := r.Temps[p]
		if hasV != hasT {
			if !hasV {
				missing = append(missing, inputKey(p))
			}
			if !hasT {
				missing = append(missing, inputKey(p)+"_t")
			}
		}
	}
	if len(missing) == 0 {
		for _, p := range props {
			missing = append(missing, inputKey(p), inputKey(p)+"_t")
		}
	}
	return &ValidationError{
		Where:   "validate_edge_inputs",
		Message: "On ABM=0 or SBM=0 you must supply at least one complete measurement pair (value + temperature) for this mode.",
		Missing: missing,
	}
}
