package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/mixcalc/internal/httputil"
	"github.com/banshee-data/mixcalc/internal/mix"
	"github.com/banshee-data/mixcalc/internal/table"
)

const (
	defaultCurvePoints = 60
	maxCurvePoints     = 500
)

// curveABMs picks the alcohol levels to draw: the repeated "abm" query
// values, or the first, middle and last ABM axis points.
func (s *Server) curveABMs(r *http.Request) []float64 {
	var out []float64
	for _, part := range r.URL.Query()["abm"] {
		if v, ok := numOrNull(part); ok {
			out = append(out, v)
		}
	}
	if len(out) > 0 {
		return out
	}
	axis := s.engine.Grid().Axis(mix.DimABM)
	switch len(axis) {
	case 0:
		return nil
	case 1, 2:
		return axis
	}
	return []float64{axis[0], axis[len(axis)/2], axis[len(axis)-1]}
}

// handleCurveChart renders property-vs-SBM curves at one temperature for a
// few alcohol levels, to eyeball table coverage and smoothness.
func (s *Server) handleCurveChart(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	prop := table.BrixATC
	if name := q.Get("property"); name != "" {
		p, ok := table.ParseProperty(name)
		if !ok {
			httputil.BadRequest(w, fmt.Sprintf("unknown property %q", name))
			return
		}
		prop = p
	}
	t, ok := queryNumber(r, "t")
	if !ok {
		t = s.engine.ReportTemp()
	}
	n := defaultCurvePoints
	if v, ok := queryNumber(r, "n"); ok && v >= 2 {
		n = min(int(v), maxCurvePoints)
	}
	sMin, sMax, ok := s.engine.CurveDomain()
	if !ok {
		httputil.NotFound(w, "no table loaded")
		return
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Mixture curves", Width: "100%", Height: "640px"}),
		charts.WithTitleOpts(opts.Title{Title: string(prop) + " vs SBM", Subtitle: fmt.Sprintf("T=%.1f°C points=%d", t, n)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "SBM (%)", NameLocation: "middle", NameGap: 25, Min: sMin, Max: sMax}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: string(prop), Scale: opts.Bool(true)}),
	)
	for _, abm := range s.curveABMs(r) {
		pts := s.engine.Curve(prop, t, abm, sMin, sMax, n)
		data := make([]opts.LineData, 0, len(pts))
		for _, p := range pts {
			data = append(data, opts.LineData{Value: []interface{}{p.SBM, p.Value}})
		}
		line.AddSeries(fmt.Sprintf("ABM %g", abm), data)
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
