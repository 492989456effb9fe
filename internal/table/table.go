// Package table defines the measured property set of the ethanol/sugar mixture
// table, its row type and the reporting precision of each property.
package table

import (
	"math"
	"strings"
)

// Property names a measured column of the mixture table.
type Property string

// Property constants. The string values match the column names of the
// mix_data table and the keys used in solve requests.
const (
	ABV     Property = "ABV"      // alcohol by volume, %vol
	SugarWV Property = "Sugar_WV" // sugar weight/volume, g/L
	ND      Property = "nD"       // refractive index
	Density Property = "Density"  // g/mL
	BrixATC Property = "BrixATC"  // refractometer Brix, °Bx
)

// Composition keys that are not table columns but can carry an uncertainty.
const (
	ABM = "ABM"
	SBM = "SBM"
)

// Sentinel marks a cell that was never measured.
const Sentinel = 9999.0

// NumProperties is the number of table columns.
const NumProperties = 5

// Properties lists every table column in storage order.
var Properties = []Property{ABV, SugarWV, ND, Density, BrixATC}

// Measurable lists the properties a caller may supply as a measurement.
// nD is reported but never accepted as an input.
var Measurable = []Property{ABV, BrixATC, Density, SugarWV}

// Index returns the position of p in Properties, or -1.
func (p Property) Index() int {
	for i, q := range Properties {
		if q == p {
			return i
		}
	}
	return -1
}

// IsValid reports whether p is a known table column.
func (p Property) IsValid() bool {
	return p.Index() >= 0
}

// Precision is the number of decimal places used when reporting p.
func (p Property) Precision() int {
	switch p {
	case Density, ND:
		return 5
	case ABV:
		return 3
	case BrixATC:
		return 2
	case SugarWV:
		return 1
	default:
		return 4
	}
}

// ParseProperty resolves a property name case-insensitively, accepting the
// aliases used by the calculator front end.
func ParseProperty(name string) (Property, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "abv":
		return ABV, true
	case "sugar_wv", "sugarwv", "sugar", "sugar_gpl":
		return SugarWV, true
	case "nd", "ri":
		return ND, true
	case "density", "rho":
		return Density, true
	case "brixatc", "brix_atc", "brix":
		return BrixATC, true
	}
	return "", false
}

// IsMissing reports whether a raw column value must be treated as absent.
func IsMissing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0) || v >= Sentinel
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Cell is an optional measured value.
type Cell struct {
	Value float64
	Valid bool
}

// Some wraps a present value.
func Some(v float64) Cell { return Cell{Value: v, Valid: true} }

// CellOf wraps a raw column value, mapping the sentinel to missing.
func CellOf(v float64) Cell {
	if IsMissing(v) {
		return Cell{}
	}
	return Some(v)
}

// Row is one (temperature, ABM, SBM) entry of the measurement table.
type Row struct {
	TempC float64
	ABM   float64
	SBM   float64
	// Values is indexed like Properties.
	Values [NumProperties]Cell
}

// Get returns the cell for p.
func (r Row) Get(p Property) Cell {
	i := p.Index()
	if i < 0 {
		return Cell{}
	}
	return r.Values[i]
}

// Set stores a raw value for p, applying the sentinel rule.
func (r *Row) Set(p Property, v float64) {
	if i := p.Index(); i >= 0 {
		r.Values[i] = CellOf(v)
	}
}
