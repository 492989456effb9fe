package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical solver defaults file.
// DefaultSolverConfig returns the same values without touching the filesystem.
const DefaultConfigPath = "config/solver.defaults.json"

// SolverConfig holds the tuning of the mixture solver. Every field is
// optional; the Get* accessors fall back to the built-in defaults, so a
// partial JSON file only overrides what it names.
type SolverConfig struct {
	// Per-property measurement weights used to normalise residuals.
	Sigma map[string]float64 `json:"sigma,omitempty"`

	// Diagnostics bands and feasibility margins.
	RangeBandFloor       map[string]float64 `json:"range_band_floor,omitempty"`
	SoftMarginFloor      map[string]float64 `json:"soft_margin_floor,omitempty"`
	DefaultSoftMargin    *float64           `json:"default_soft_margin,omitempty"`
	HardMarginMultiplier *float64           `json:"hard_margin_multiplier,omitempty"`

	// Fit quality thresholds on the normalised squared error.
	WarnNormError *float64 `json:"warn_norm_error,omitempty"`
	FailNormError *float64 `json:"fail_norm_error,omitempty"`

	// Search parameters.
	CoarseKeep      *int     `json:"coarse_keep,omitempty"`
	RefineHalfWidth *float64 `json:"refine_half_width,omitempty"`
	RefineTolerance *float64 `json:"refine_tolerance,omitempty"`
	RefineSteps     *int     `json:"refine_steps,omitempty"`
	EdgeIterations  *int     `json:"edge_iterations,omitempty"`

	DefaultReportTemp *float64 `json:"default_report_temp,omitempty"`

	// Monte Carlo uncertainty propagation.
	UncertaintySamples    *int    `json:"uncertainty_samples,omitempty"`
	UncertaintyMinSamples *int    `json:"uncertainty_min_samples,omitempty"`
	UncertaintyMaxSamples *int    `json:"uncertainty_max_samples,omitempty"`
	UncertaintyDeadline   *string `json:"uncertainty_deadline,omitempty"` // duration string like "2s"
	UncertaintyCheckEvery *int    `json:"uncertainty_check_every,omitempty"`
}

var (
	defaultSigma = map[string]float64{
		"ABV":      0.05,
		"BrixATC":  0.10,
		"Density":  0.00025,
		"Sugar_WV": 1.0,
	}
	// Wider than sigma so zero-sugar and zero-alcohol edges are not excluded.
	defaultRangeBandFloor = map[string]float64{
		"ABV":      0.5,
		"BrixATC":  0.2,
		"Density":  0.001,
		"Sugar_WV": 10.0,
	}
	defaultSoftMarginFloor = map[string]float64{
		"ABV":     0.15,
		"BrixATC": 0.15,
		"Density": 0.0015,
	}
)

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }

func copyMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// EmptySolverConfig returns a SolverConfig with every field unset.
func EmptySolverConfig() *SolverConfig {
	return &SolverConfig{}
}

// DefaultSolverConfig returns a fully populated config with the built-in defaults.
func DefaultSolverConfig() *SolverConfig {
	return &SolverConfig{
		Sigma:                 copyMap(defaultSigma),
		RangeBandFloor:        copyMap(defaultRangeBandFloor),
		SoftMarginFloor:       copyMap(defaultSoftMarginFloor),
		DefaultSoftMargin:     ptrFloat64(2.5),
		HardMarginMultiplier:  ptrFloat64(2.0),
		WarnNormError:         ptrFloat64(25),
		FailNormError:         ptrFloat64(100),
		CoarseKeep:            ptrInt(8),
		RefineHalfWidth:       ptrFloat64(4.0),
		RefineTolerance:       ptrFloat64(0.005),
		RefineSteps:           ptrInt(10),
		EdgeIterations:        ptrInt(40),
		DefaultReportTemp:     ptrFloat64(20.0),
		UncertaintySamples:    ptrInt(200),
		UncertaintyMinSamples: ptrInt(10),
		UncertaintyMaxSamples: ptrInt(300),
		UncertaintyDeadline:   ptrString("2s"),
		UncertaintyCheckEvery: ptrInt(10),
	}
}

// LoadSolverConfig loads a SolverConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadSolverConfig(path string) (*SolverConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySolverConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching upwards from the
// working directory. Panics if the file cannot be loaded; intended for tests.
func MustLoadDefaultConfig() *SolverConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadSolverConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configured values are usable.
func (c *SolverConfig) Validate() error {
	for _, m := range []struct {
		name string
		vals map[string]float64
	}{
		{"sigma", c.Sigma},
		{"range_band_floor", c.RangeBandFloor},
		{"soft_margin_floor", c.SoftMarginFloor},
	} {
		for k, v := range m.vals {
			if v < 0 || (m.name == "sigma" && v == 0) {
				return fmt.Errorf("%s[%s] must be positive, got %g", m.name, k, v)
			}
		}
	}
	if c.HardMarginMultiplier != nil && *c.HardMarginMultiplier < 1 {
		return fmt.Errorf("hard_margin_multiplier must be >= 1, got %g", *c.HardMarginMultiplier)
	}
	if c.GetWarnNormError() > c.GetFailNormError() {
		return fmt.Errorf("warn_norm_error (%g) must not exceed fail_norm_error (%g)",
			c.GetWarnNormError(), c.GetFailNormError())
	}
	if c.RefineTolerance != nil && *c.RefineTolerance <= 0 {
		return fmt.Errorf("refine_tolerance must be positive, got %g", *c.RefineTolerance)
	}
	if c.RefineHalfWidth != nil && *c.RefineHalfWidth <= 0 {
		return fmt.Errorf("refine_half_width must be positive, got %g", *c.RefineHalfWidth)
	}
	if c.RefineSteps != nil && *c.RefineSteps < 2 {
		return fmt.Errorf("refine_steps must be at least 2, got %d", *c.RefineSteps)
	}
	if c.CoarseKeep != nil && *c.CoarseKeep < 1 {
		return fmt.Errorf("coarse_keep must be at least 1, got %d", *c.CoarseKeep)
	}
	if c.EdgeIterations != nil && *c.EdgeIterations < 1 {
		return fmt.Errorf("edge_iterations must be at least 1, got %d", *c.EdgeIterations)
	}
	if c.GetUncertaintyMinSamples() > c.GetUncertaintyMaxSamples() {
		return fmt.Errorf("uncertainty_min_samples (%d) exceeds uncertainty_max_samples (%d)",
			c.GetUncertaintyMinSamples(), c.GetUncertaintyMaxSamples())
	}
	if c.UncertaintyDeadline != nil && *c.UncertaintyDeadline != "" {
		if _, err := time.ParseDuration(*c.UncertaintyDeadline); err != nil {
			return fmt.Errorf("invalid uncertainty_deadline '%s': %w", *c.UncertaintyDeadline, err)
		}
	}
	if c.UncertaintyCheckEvery != nil && *c.UncertaintyCheckEvery < 1 {
		return fmt.Errorf("uncertainty_check_every must be at least 1, got %d", *c.UncertaintyCheckEvery)
	}
	return nil
}

func lookup(m, defaults map[string]float64, key string, fallback float64) float64 {
	if v, ok := m[key]; ok {
		return v
	}
	if v, ok := defaults[key]; ok {
		return v
	}
	return fallback
}

// GetSigma returns the residual weight for a property (1.0 when unknown).
func (c *SolverConfig) GetSigma(prop string) float64 {
	return lookup(c.Sigma, defaultSigma, prop, 1.0)
}

// GetRangeBandFloor returns the minimum diagnostics band for a property.
func (c *SolverConfig) GetRangeBandFloor(prop string) float64 {
	return lookup(c.RangeBandFloor, defaultRangeBandFloor, prop, 0)
}

// GetSoftMarginFloor returns the minimum soft feasibility margin for a property.
func (c *SolverConfig) GetSoftMarginFloor(prop string) float64 {
	return lookup(c.SoftMarginFloor, defaultSoftMarginFloor, prop, c.GetDefaultSoftMargin())
}

// GetDefaultSoftMargin returns the soft margin floor for properties without their own.
func (c *SolverConfig) GetDefaultSoftMargin() float64 {
	if c.DefaultSoftMargin == nil {
		return 2.5
	}
	return *c.DefaultSoftMargin
}

// GetHardMarginMultiplier returns the hard/soft margin ratio.
func (c *SolverConfig) GetHardMarginMultiplier() float64 {
	if c.HardMarginMultiplier == nil {
		return 2.0
	}
	return *c.HardMarginMultiplier
}

// GetWarnNormError returns the normalised error above which a fit is flagged (~5σ).
func (c *SolverConfig) GetWarnNormError() float64 {
	if c.WarnNormError == nil {
		return 25
	}
	return *c.WarnNormError
}

// GetFailNormError returns the normalised error above which a fit is rejected (~10σ).
func (c *SolverConfig) GetFailNormError() float64 {
	if c.FailNormError == nil {
		return 100
	}
	return *c.FailNormError
}

// GetCoarseKeep returns how many coarse candidates are kept.
func (c *SolverConfig) GetCoarseKeep() int {
	if c.CoarseKeep == nil {
		return 8
	}
	return *c.CoarseKeep
}

// GetRefineHalfWidth returns the initial half-width of the refinement box.
func (c *SolverConfig) GetRefineHalfWidth() float64 {
	if c.RefineHalfWidth == nil {
		return 4.0
	}
	return *c.RefineHalfWidth
}

// GetRefineTolerance returns the half-width at which refinement stops.
func (c *SolverConfig) GetRefineTolerance() float64 {
	if c.RefineTolerance == nil {
		return 0.005
	}
	return *c.RefineTolerance
}

// GetRefineSteps returns the number of sub-grid steps per axis and pass.
func (c *SolverConfig) GetRefineSteps() int {
	if c.RefineSteps == nil {
		return 10
	}
	return *c.RefineSteps
}

// GetEdgeIterations returns the ternary search iteration count.
func (c *SolverConfig) GetEdgeIterations() int {
	if c.EdgeIterations == nil {
		return 40
	}
	return *c.EdgeIterations
}

// GetDefaultReportTemp returns the report temperature used when a request has none.
func (c *SolverConfig) GetDefaultReportTemp() float64 {
	if c.DefaultReportTemp == nil {
		return 20.0
	}
	return *c.DefaultReportTemp
}

// GetUncertaintySamples returns the default Monte Carlo trial count.
func (c *SolverConfig) GetUncertaintySamples() int {
	if c.UncertaintySamples == nil {
		return 200
	}
	return *c.UncertaintySamples
}

// GetUncertaintyMinSamples returns the lower clamp for requested trial counts.
func (c *SolverConfig) GetUncertaintyMinSamples() int {
	if c.UncertaintyMinSamples == nil {
		return 10
	}
	return *c.UncertaintyMinSamples
}

// GetUncertaintyMaxSamples returns the upper clamp for requested trial counts.
func (c *SolverConfig) GetUncertaintyMaxSamples() int {
	if c.UncertaintyMaxSamples == nil {
		return 300
	}
	return *c.UncertaintyMaxSamples
}

// GetUncertaintyDeadline parses and returns the Monte Carlo wall-clock budget.
func (c *SolverConfig) GetUncertaintyDeadline() time.Duration {
	if c.UncertaintyDeadline == nil || *c.UncertaintyDeadline == "" {
		return 2 * time.Second
	}
	d, err := time.ParseDuration(*c.UncertaintyDeadline)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// GetUncertaintyCheckEvery returns how many trials run between deadline checks.
func (c *SolverConfig) GetUncertaintyCheckEvery() int {
	if c.UncertaintyCheckEvery == nil {
		return 10
	}
	return *c.UncertaintyCheckEvery
}
