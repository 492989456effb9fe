package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultSolverConfig(t *testing.T) {
	cfg := DefaultSolverConfig()

	if cfg.FailNormError == nil || *cfg.FailNormError != 100 {
		t.Errorf("Expected FailNormError 100, got %v", cfg.FailNormError)
	}
	if cfg.UncertaintyDeadline == nil || *cfg.UncertaintyDeadline != "2s" {
		t.Errorf("Expected UncertaintyDeadline '2s', got %v", cfg.UncertaintyDeadline)
	}

	if got := cfg.GetSigma("Density"); got != 0.00025 {
		t.Errorf("GetSigma(Density) = %g, want 0.00025", got)
	}
	if got := cfg.GetRangeBandFloor("Sugar_WV"); got != 10 {
		t.Errorf("GetRangeBandFloor(Sugar_WV) = %g, want 10", got)
	}
	if got := cfg.GetCoarseKeep(); got != 8 {
		t.Errorf("GetCoarseKeep() = %d, want 8", got)
	}
	if got := cfg.GetEdgeIterations(); got != 40 {
		t.Errorf("GetEdgeIterations() = %d, want 40", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestEmptyConfigFallsBackToDefaults(t *testing.T) {
	empty := EmptySolverConfig()
	def := DefaultSolverConfig()

	for _, prop := range []string{"ABV", "BrixATC", "Density", "Sugar_WV", "nD"} {
		if empty.GetSigma(prop) != def.GetSigma(prop) {
			t.Errorf("GetSigma(%s): empty %g != default %g", prop, empty.GetSigma(prop), def.GetSigma(prop))
		}
		if empty.GetSoftMarginFloor(prop) != def.GetSoftMarginFloor(prop) {
			t.Errorf("GetSoftMarginFloor(%s): empty %g != default %g", prop, empty.GetSoftMarginFloor(prop), def.GetSoftMarginFloor(prop))
		}
	}
	if empty.GetRefineTolerance() != def.GetRefineTolerance() {
		t.Errorf("GetRefineTolerance mismatch")
	}
	if empty.GetUncertaintyDeadline() != 2*time.Second {
		t.Errorf("GetUncertaintyDeadline() = %v, want 2s", empty.GetUncertaintyDeadline())
	}
}

func TestGetSigmaUnknownProperty(t *testing.T) {
	cfg := EmptySolverConfig()
	if got := cfg.GetSigma("nD"); got != 1.0 {
		t.Errorf("GetSigma(nD) = %g, want 1.0", got)
	}
	if got := cfg.GetSoftMarginFloor("Sugar_WV"); got != 2.5 {
		t.Errorf("GetSoftMarginFloor(Sugar_WV) = %g, want 2.5", got)
	}
	cfg.DefaultSoftMargin = ptrFloat64(4)
	if got := cfg.GetSoftMarginFloor("Sugar_WV"); got != 4 {
		t.Errorf("GetSoftMarginFloor(Sugar_WV) = %g, want 4 after override", got)
	}
}

func TestLoadSolverConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "solver.json")

	testJSON := `{
  "sigma": {"Density": 0.0005},
  "fail_norm_error": 150,
  "coarse_keep": 4,
  "uncertainty_deadline": "500ms"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadSolverConfig(configPath)
	if err != nil {
		t.Fatalf("LoadSolverConfig failed: %v", err)
	}

	if got := cfg.GetSigma("Density"); got != 0.0005 {
		t.Errorf("GetSigma(Density) = %g, want 0.0005", got)
	}
	// Keys not in the file keep their defaults.
	if got := cfg.GetSigma("ABV"); got != 0.05 {
		t.Errorf("GetSigma(ABV) = %g, want 0.05", got)
	}
	if got := cfg.GetFailNormError(); got != 150 {
		t.Errorf("GetFailNormError() = %g, want 150", got)
	}
	if got := cfg.GetWarnNormError(); got != 25 {
		t.Errorf("GetWarnNormError() = %g, want 25", got)
	}
	if got := cfg.GetCoarseKeep(); got != 4 {
		t.Errorf("GetCoarseKeep() = %d, want 4", got)
	}
	if got := cfg.GetUncertaintyDeadline(); got != 500*time.Millisecond {
		t.Errorf("GetUncertaintyDeadline() = %v, want 500ms", got)
	}
}

func TestLoadSolverConfigErrors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return p
	}

	tests := []struct {
		name string
		path string
	}{
		{"wrong extension", write("solver.yaml", `{}`)},
		{"missing file", filepath.Join(tmpDir, "nope.json")},
		{"invalid json", write("bad.json", `{"coarse_keep": `)},
		{"fails validation", write("invalid.json", `{"refine_tolerance": -1}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadSolverConfig(tt.path); err == nil {
				t.Errorf("expected error for %s", tt.path)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *SolverConfig
		wantErr bool
	}{
		{name: "empty", cfg: &SolverConfig{}},
		{name: "defaults", cfg: DefaultSolverConfig()},
		{
			name:    "zero sigma",
			cfg:     &SolverConfig{Sigma: map[string]float64{"ABV": 0}},
			wantErr: true,
		},
		{
			name:    "negative band floor",
			cfg:     &SolverConfig{RangeBandFloor: map[string]float64{"ABV": -0.1}},
			wantErr: true,
		},
		{
			name:    "hard multiplier below one",
			cfg:     &SolverConfig{HardMarginMultiplier: ptrFloat64(0.5)},
			wantErr: true,
		},
		{
			name:    "warn above fail",
			cfg:     &SolverConfig{WarnNormError: ptrFloat64(200)},
			wantErr: true,
		},
		{
			name:    "refine steps too small",
			cfg:     &SolverConfig{RefineSteps: ptrInt(1)},
			wantErr: true,
		},
		{
			name:    "zero coarse keep",
			cfg:     &SolverConfig{CoarseKeep: ptrInt(0)},
			wantErr: true,
		},
		{
			name:    "sample clamps inverted",
			cfg:     &SolverConfig{UncertaintyMinSamples: ptrInt(500)},
			wantErr: true,
		},
		{
			name:    "bad deadline",
			cfg:     &SolverConfig{UncertaintyDeadline: ptrString("soon")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetUncertaintyDeadline(t *testing.T) {
	tests := []struct {
		name string
		cfg  *SolverConfig
		want time.Duration
	}{
		{"set", &SolverConfig{UncertaintyDeadline: ptrString("750ms")}, 750 * time.Millisecond},
		{"nil pointer returns default", &SolverConfig{}, 2 * time.Second},
		{"empty string returns default", &SolverConfig{UncertaintyDeadline: ptrString("")}, 2 * time.Second},
		{"invalid duration returns default", &SolverConfig{UncertaintyDeadline: ptrString("x")}, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetUncertaintyDeadline(); got != tt.want {
				t.Errorf("GetUncertaintyDeadline() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg, err := LoadSolverConfig("../../" + DefaultConfigPath)
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	def := DefaultSolverConfig()
	if cfg.GetSigma("BrixATC") != def.GetSigma("BrixATC") {
		t.Errorf("defaults file sigma BrixATC = %g, want %g", cfg.GetSigma("BrixATC"), def.GetSigma("BrixATC"))
	}
	if cfg.GetUncertaintyMaxSamples() != def.GetUncertaintyMaxSamples() {
		t.Errorf("defaults file max samples = %d, want %d", cfg.GetUncertaintyMaxSamples(), def.GetUncertaintyMaxSamples())
	}
	if cfg.GetSoftMarginFloor("Density") != def.GetSoftMarginFloor("Density") {
		t.Errorf("defaults file soft margin Density mismatch")
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.GetRefineSteps() != 10 {
		t.Errorf("GetRefineSteps() = %d, want 10", cfg.GetRefineSteps())
	}
}
