// Package api serves the solver over HTTP.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/mixcalc/internal/httputil"
	"github.com/banshee-data/mixcalc/internal/mix"
	"github.com/banshee-data/mixcalc/internal/monitoring"
	"github.com/banshee-data/mixcalc/internal/table"
	"github.com/banshee-data/mixcalc/internal/version"
)

// ANSI escape codes for request log colouring
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// maxBodyBytes caps the size of a solve request body.
const maxBodyBytes = 1 << 20

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type Server struct {
	engine *mix.Engine
}

func NewServer(engine *mix.Engine) *Server {
	return &Server{engine: engine}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// apiRoutes are the paths that get their own metric label.
var apiRoutes = map[string]bool{
	"/api/solve":   true,
	"/api/predict": true,
	"/api/axes":    true,
	"/api/version": true,
	"/metrics":     true,
}

// routeLabel maps a request path onto a fixed label set so unknown URLs
// cannot grow the metric.
func routeLabel(path string) string {
	switch {
	case apiRoutes[path]:
		return path
	case strings.HasPrefix(path, "/debug/"):
		return "/debug/"
	}
	return "other"
}

// LoggingMiddleware assigns a request id, logs method, URI, status and
// duration, and counts the request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)

		monitoring.HTTPRequests.WithLabelValues(routeLabel(r.URL.Path), strconv.Itoa(lrw.statusCode)).Inc()
		monitoring.Logf(
			"[%s] %s %s%s%s %vms id=%s",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6, id,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/solve", s.handleSolve)
	mux.HandleFunc("/api/predict", s.handlePredict)
	mux.HandleFunc("/api/axes", s.handleAxes)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/debug/charts/curve", s.handleCurveChart)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// readRaw decodes a JSON object body. Bodies that are empty or not JSON fall
// back to form and query values, the way HTML forms submit.
func readRaw(r *http.Request) (map[string]any, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBodyBytes {
		return nil, errors.New("request body too large")
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		var raw map[string]any
		if err := json.Unmarshal(body, &raw); err == nil && raw != nil {
			return raw, nil
		}
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	raw := make(map[string]any, len(r.Form))
	for k, v := range r.Form {
		if len(v) > 0 {
			raw[k] = v[0]
		}
	}
	return raw, nil
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	raw, err := readRaw(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	res := s.engine.Solve(NormalizeRequest(raw))
	if res.Outcome == mix.OutcomeInvalid {
		httputil.WriteError(w, http.StatusBadRequest, httputil.ErrorBody{
			Error:   res.Error,
			Where:   res.Where,
			Missing: res.Missing,
		})
		return
	}
	httputil.WriteJSONOK(w, res)
}

// queryNumber reads a tolerant number from the query string.
func queryNumber(r *http.Request, key string) (float64, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, false
	}
	return numOrNull(v)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	abm, okA := queryNumber(r, "abm")
	sbm, okS := queryNumber(r, "sbm")
	if !okA || !okS {
		httputil.WriteError(w, http.StatusBadRequest, httputil.ErrorBody{
			Error:   "Missing required inputs",
			Where:   "validate_inputs",
			Missing: missingOf(map[string]bool{"abm": okA, "sbm": okS}, "abm", "sbm"),
		})
		return
	}
	t, ok := queryNumber(r, "t")
	if !ok {
		t = s.engine.ReportTemp()
	}
	httputil.WriteJSONOK(w, s.engine.PredictAll(abm, sbm, t))
}

func missingOf(have map[string]bool, keys ...string) []string {
	var out []string
	for _, k := range keys {
		if !have[k] {
			out = append(out, k)
		}
	}
	return out
}

// AxesResponse describes the loaded table.
type AxesResponse struct {
	Rows     int            `json:"rows"`
	TempC    []float64      `json:"T_C"`
	ABM      []float64      `json:"ABM"`
	SBM      []float64      `json:"SBM"`
	Coverage map[string]int `json:"coverage"`
}

func (s *Server) handleAxes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	g := s.engine.Grid()
	resp := AxesResponse{
		Rows:     g.Rows(),
		TempC:    g.Axis(mix.DimTemp),
		ABM:      g.Axis(mix.DimABM),
		SBM:      g.Axis(mix.DimSBM),
		Coverage: make(map[string]int, table.NumProperties),
	}
	for p, n := range g.Coverage() {
		resp.Coverage[string(p)] = n
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, version.Get())
}
