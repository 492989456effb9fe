// Package mix inverts measured properties of ethanol/sugar solutions into
// a mixture composition (alcohol and sugar by mass) using an empirical
// measurement table, and reports every derived property at a chosen
// temperature.
package mix

import (
	"sort"

	"github.com/banshee-data/mixcalc/internal/table"
)

// Dim identifies one of the three table axes.
type Dim int

const (
	DimTemp Dim = iota // temperature, °C
	DimABM             // alcohol by mass, %
	DimSBM             // sugar by mass, %
)

func (d Dim) String() string {
	switch d {
	case DimTemp:
		return "T_C"
	case DimABM:
		return "ABM"
	case DimSBM:
		return "SBM"
	}
	return "unknown"
}

// Grid is the measurement table indexed by its three axes. It is never
// modified after NewGrid returns and may be shared between goroutines.
type Grid struct {
	axes  [3][]float64
	index [3]map[float64]int
	// cells[p] is laid out as [t][a][s] over the axis indices.
	cells [table.NumProperties][]table.Cell
	rows  int
}

// NewGrid builds a grid from table rows. Axis values are the sorted,
// deduplicated key values found in rows. When a key appears twice the
// later row wins.
func NewGrid(rows []table.Row) *Grid {
	g := &Grid{rows: len(rows)}

	for d := range g.axes {
		seen := make(map[float64]struct{})
		for _, r := range rows {
			seen[rowKey(r, Dim(d))] = struct{}{}
		}
		axis := make([]float64, 0, len(seen))
		for v := range seen {
			axis = append(axis, v)
		}
		sort.Float64s(axis)
		g.axes[d] = axis

		idx := make(map[float64]int, len(axis))
		for i, v := range axis {
			idx[v] = i
		}
		g.index[d] = idx
	}

	size := len(g.axes[DimTemp]) * len(g.axes[DimABM]) * len(g.axes[DimSBM])
	for i := range g.cells {
		g.cells[i] = make([]table.Cell, size)
	}
	for _, r := range rows {
		off := g.offset(g.index[DimTemp][r.TempC], g.index[DimABM][r.ABM], g.index[DimSBM][r.SBM])
		for i, p := range table.Properties {
			g.cells[i][off] = r.Get(p)
		}
	}
	return g
}

func rowKey(r table.Row, d Dim) float64 {
	switch d {
	case DimTemp:
		return r.TempC
	case DimABM:
		return r.ABM
	default:
		return r.SBM
	}
}

func (g *Grid) offset(ti, ai, si int) int {
	return (ti*len(g.axes[DimABM])+ai)*len(g.axes[DimSBM]) + si
}

// Axis returns the ordered values of one axis. The slice must not be modified.
func (g *Grid) Axis(d Dim) []float64 {
	return g.axes[d]
}

// Rows returns the number of rows the grid was built from.
func (g *Grid) Rows() int {
	return g.rows
}

// Empty reports whether the grid has no axis points at all.
func (g *Grid) Empty() bool {
	return len(g.axes[DimTemp]) == 0 || len(g.axes[DimABM]) == 0 || len(g.axes[DimSBM]) == 0
}

// Bounds returns the first and last value of an axis. ok is false for an empty axis.
func (g *Grid) Bounds(d Dim) (lo, hi float64, ok bool) {
	axis := g.axes[d]
	if len(axis) == 0 {
		return 0, 0, false
	}
	return axis[0], axis[len(axis)-1], true
}

// Value returns the stored value of p at an exact axis point. Points that are
// not on the axes, or whose cell is missing, report ok=false.
func (g *Grid) Value(p table.Property, t, a, s float64) (float64, bool) {
	ti, ok := g.index[DimTemp][t]
	if !ok {
		return 0, false
	}
	ai, ok := g.index[DimABM][a]
	if !ok {
		return 0, false
	}
	si, ok := g.index[DimSBM][s]
	if !ok {
		return 0, false
	}
	return g.at(p.Index(), ti, ai, si)
}

func (g *Grid) at(pi, ti, ai, si int) (float64, bool) {
	if pi < 0 {
		return 0, false
	}
	c := g.cells[pi][g.offset(ti, ai, si)]
	return c.Value, c.Valid
}

// Coverage counts populated cells per property.
func (g *Grid) Coverage() map[table.Property]int {
	out := make(map[table.Property]int, len(table.Properties))
	for i, p := range table.Properties {
		n := 0
		for _, c := range g.cells[i] {
			if c.Valid {
				n++
			}
		}
		out[p] = n
	}
	return out
}
