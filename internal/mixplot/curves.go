// Package mixplot writes PNG charts of interpolated property curves.
package mixplot

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/mixcalc/internal/mix"
	"github.com/banshee-data/mixcalc/internal/table"
)

// CurvePoints is how many SBM samples each curve gets.
const CurvePoints = 120

// ErrNoData is returned when none of the requested curves has data.
var ErrNoData = errors.New("no curve data to plot")

// SaveCurves plots property p against SBM at temperature t, one line per
// alcohol level in abms, and saves the chart to path. The image format
// follows the file extension (png, svg, pdf).
func SaveCurves(e *mix.Engine, p table.Property, t float64, abms []float64, path string) error {
	sMin, sMax, ok := e.CurveDomain()
	if !ok {
		return ErrNoData
	}

	pl := plot.New()
	pl.Title.Text = fmt.Sprintf("%s vs SBM at %.1f°C", p, t)
	pl.X.Label.Text = "SBM (%)"
	pl.Y.Label.Text = string(p)

	colors := generateColors(len(abms))
	lines := 0
	for i, abm := range abms {
		pts := e.Curve(p, t, abm, sMin, sMax, CurvePoints)
		if len(pts) < 2 {
			continue
		}
		xys := make(plotter.XYs, len(pts))
		for j, pt := range pts {
			xys[j] = plotter.XY{X: pt.SBM, Y: pt.Value}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.Color = colors[i]
		line.Width = vg.Points(1.5)
		pl.Add(line)
		pl.Legend.Add(fmt.Sprintf("ABM %g", abm), line)
		lines++
	}
	if lines == 0 {
		return ErrNoData
	}

	pl.Add(plotter.NewGrid())
	pl.Legend.Top = true
	pl.Legend.Left = false
	pl.Legend.XOffs = -10
	pl.Legend.YOffs = -10

	if err := pl.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save curve plot: %w", err)
	}
	return nil
}

// generateColors spreads n hues evenly around the colour wheel.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := range colors {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.45)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(math.Round(l * 255))
		return v, v, v
	}
	q := l * (1 + s)
	if l >= 0.5 {
		q = l + s - l*s
	}
	p := 2*l - q
	to := func(t float64) uint8 {
		t = t - math.Floor(t)
		var c float64
		switch {
		case t < 1.0/6:
			c = p + (q-p)*6*t
		case t < 0.5:
			c = q
		case t < 2.0/3:
			c = p + (q-p)*(2.0/3-t)*6
		default:
			c = p
		}
		return uint8(math.Round(c * 255))
	}
	return to(h + 1.0/3), to(h), to(h - 1.0/3)
}
