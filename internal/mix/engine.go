package mix

import (
	"math"
	"time"

	"github.com/banshee-data/mixcalc/internal/config"
	"github.com/banshee-data/mixcalc/internal/monitoring"
	"github.com/banshee-data/mixcalc/internal/table"
	"github.com/banshee-data/mixcalc/internal/timeutil"
)

// minRefineStep is the finest sub-grid spacing the refiner samples, in mass %.
const minRefineStep = 0.02

// params is the resolved, read-only form of config.SolverConfig.
type params struct {
	sigma      [table.NumProperties]float64
	band       [table.NumProperties]float64
	softMargin [table.NumProperties]float64

	hardMultiplier float64
	warnNorm       float64
	failNorm       float64

	coarseKeep      int
	refineHalfWidth float64
	refineTolerance float64
	refineSteps     int
	edgeIterations  int
	reportTemp      float64

	mcSamples    int
	mcMin        int
	mcMax        int
	mcDeadline   time.Duration
	mcCheckEvery int
}

func resolveParams(cfg *config.SolverConfig) params {
	p := params{
		hardMultiplier:  cfg.GetHardMarginMultiplier(),
		warnNorm:        cfg.GetWarnNormError(),
		failNorm:        cfg.GetFailNormError(),
		coarseKeep:      cfg.GetCoarseKeep(),
		refineHalfWidth: cfg.GetRefineHalfWidth(),
		refineTolerance: cfg.GetRefineTolerance(),
		refineSteps:     cfg.GetRefineSteps(),
		edgeIterations:  cfg.GetEdgeIterations(),
		reportTemp:      cfg.GetDefaultReportTemp(),
		mcSamples:       cfg.GetUncertaintySamples(),
		mcMin:           cfg.GetUncertaintyMinSamples(),
		mcMax:           cfg.GetUncertaintyMaxSamples(),
		mcDeadline:      cfg.GetUncertaintyDeadline(),
		mcCheckEvery:    cfg.GetUncertaintyCheckEvery(),
	}
	for i, prop := range table.Properties {
		name := string(prop)
		p.sigma[i] = cfg.GetSigma(name)
		p.band[i] = math.Max(p.sigma[i], cfg.GetRangeBandFloor(name))
		p.softMargin[i] = math.Max(p.band[i], cfg.GetSoftMarginFloor(name))
	}
	return p
}

// Engine answers solve and prediction queries against one Grid. All of its
// state is fixed at construction, so a single Engine can serve concurrent
// callers.
type Engine struct {
	grid   *Grid
	params params
	clock  timeutil.Clock
	seed   *uint64
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock sets the clock used for the uncertainty deadline.
func WithClock(c timeutil.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithSeed makes uncertainty propagation reproducible. Every Solve call
// starts a fresh generator from this seed.
func WithSeed(seed uint64) Option {
	return func(e *Engine) {
		e.seed = &seed
	}
}

// NewEngine returns an engine over grid. A nil cfg uses the built-in
// defaults, and so does a cfg that fails Validate.
func NewEngine(grid *Grid, cfg *config.SolverConfig, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.DefaultSolverConfig()
	} else if err := cfg.Validate(); err != nil {
		monitoring.Logf("mix: invalid solver config, using defaults: %v", err)
		cfg = config.DefaultSolverConfig()
	}
	if grid == nil {
		grid = NewGrid(nil)
	}
	e := &Engine{
		grid:   grid,
		params: resolveParams(cfg),
		clock:  timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(e)
	}

	cov := grid.Coverage()
	monitoring.Logf("mix: grid ready: %d rows, axes T=%d ABM=%d SBM=%d, populated ABV=%d Sugar_WV=%d nD=%d Density=%d BrixATC=%d",
		grid.Rows(), len(grid.Axis(DimTemp)), len(grid.Axis(DimABM)), len(grid.Axis(DimSBM)),
		cov[table.ABV], cov[table.SugarWV], cov[table.ND], cov[table.Density], cov[table.BrixATC])
	return e
}

// Grid returns the engine's grid.
func (e *Engine) Grid() *Grid {
	return e.grid
}

// ReportTemp is the temperature outputs are reported at when a request does
// not name one.
func (e *Engine) ReportTemp() float64 {
	return e.params.reportTemp
}

func (e *Engine) sigma(p table.Property) float64 {
	if i := p.Index(); i >= 0 {
		return e.params.sigma[i]
	}
	return 1.0
}

func (e *Engine) band(p table.Property) float64 {
	if i := p.Index(); i >= 0 {
		return e.params.band[i]
	}
	return 1.0
}

func (e *Engine) softMargin(p table.Property) float64 {
	if i := p.Index(); i >= 0 {
		return e.params.softMargin[i]
	}
	return 1.0
}

// clampTemp pulls t into the table's temperature range.
func (e *Engine) clampTemp(t float64) float64 {
	return e.clampAxis(DimTemp, t)
}

func (e *Engine) clampAxis(d Dim, x float64) float64 {
	lo, hi, ok := e.grid.Bounds(d)
	if !ok {
		return x
	}
	return clamp(x, lo, hi)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
