package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fmd-data/sharing.report/internal/fmd"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for correction parameters.
// The schema matches the /api/params endpoint so the same JSON can be used
// for both startup configuration and runtime updates. All fields are
// pointers so partial configs only override what they mention.
type TuningConfig struct {
	// Filter params
	CorrectAngles     *bool `json:"correct_angles,omitempty"`
	ThreeStripSharing *bool `json:"three_strip_sharing,omitempty"`
	RecalculateEta    *bool `json:"recalculate_eta,omitempty"`
	InvalidIsEmpty    *bool `json:"invalid_is_empty,omitempty"`

	// Low cut params
	LowCutMethod       *string  `json:"low_cut_method,omitempty"`
	LowCutFixed        *float64 `json:"low_cut_fixed,omitempty"`
	LowCutMPVFraction  *float64 `json:"low_cut_mpv_fraction,omitempty"`
	LowCutNXi          *float64 `json:"low_cut_n_xi,omitempty"`
	LowCutIncludeSigma *bool    `json:"low_cut_include_sigma,omitempty"`

	// High cut params
	HighCutMethod       *string  `json:"high_cut_method,omitempty"`
	HighCutFixed        *float64 `json:"high_cut_fixed,omitempty"`
	HighCutMPVFraction  *float64 `json:"high_cut_mpv_fraction,omitempty"`
	HighCutNXi          *float64 `json:"high_cut_n_xi,omitempty"`
	HighCutIncludeSigma *bool    `json:"high_cut_include_sigma,omitempty"`

	// Eta axis params
	EtaBins *int     `json:"eta_bins,omitempty"`
	EtaMin  *float64 `json:"eta_min,omitempty"`
	EtaMax  *float64 `json:"eta_max,omitempty"`

	// Run params
	VertexZ *float64 `json:"vertex_z,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted
// from the JSON retain their built-in defaults, so partial configs are
// safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath, searching upward from the current directory. Panics
// if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
		"../../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are consistent.
func (c *TuningConfig) Validate() error {
	if c.LowCutMethod != nil {
		if _, err := fmd.ParseCutMethod(*c.LowCutMethod); err != nil {
			return fmt.Errorf("invalid low_cut_method: %w", err)
		}
	}
	if c.HighCutMethod != nil {
		if _, err := fmd.ParseCutMethod(*c.HighCutMethod); err != nil {
			return fmt.Errorf("invalid high_cut_method: %w", err)
		}
	}
	if c.LowCutFixed != nil && *c.LowCutFixed < 0 {
		return fmt.Errorf("low_cut_fixed must be non-negative, got %f", *c.LowCutFixed)
	}
	if c.HighCutFixed != nil && *c.HighCutFixed < 0 {
		return fmt.Errorf("high_cut_fixed must be non-negative, got %f", *c.HighCutFixed)
	}
	if c.EtaBins != nil && *c.EtaBins <= 0 {
		return fmt.Errorf("eta_bins must be positive, got %d", *c.EtaBins)
	}
	if c.EtaMin != nil && c.EtaMax != nil && *c.EtaMin >= *c.EtaMax {
		return fmt.Errorf("eta_min %f must be below eta_max %f", *c.EtaMin, *c.EtaMax)
	}
	return nil
}

// GetCorrectAngles returns the correct_angles value or the default.
func (c *TuningConfig) GetCorrectAngles() bool {
	if c.CorrectAngles == nil {
		return false
	}
	return *c.CorrectAngles
}

// GetThreeStripSharing returns the three_strip_sharing value or the default.
func (c *TuningConfig) GetThreeStripSharing() bool {
	if c.ThreeStripSharing == nil {
		return true
	}
	return *c.ThreeStripSharing
}

// GetRecalculateEta returns the recalculate_eta value or the default.
func (c *TuningConfig) GetRecalculateEta() bool {
	if c.RecalculateEta == nil {
		return false
	}
	return *c.RecalculateEta
}

// GetInvalidIsEmpty returns the invalid_is_empty value or the default.
func (c *TuningConfig) GetInvalidIsEmpty() bool {
	if c.InvalidIsEmpty == nil {
		return false
	}
	return *c.InvalidIsEmpty
}

// GetVertexZ returns the vertex_z value or the default.
func (c *TuningConfig) GetVertexZ() float64 {
	if c.VertexZ == nil {
		return 0
	}
	return *c.VertexZ
}

// GetEtaAxis assembles the eta axis from config, falling back to the
// standard acceptance binning.
func (c *TuningConfig) GetEtaAxis() fmd.EtaAxis {
	axis := fmd.DefaultEtaAxis
	if c.EtaBins != nil {
		axis.Bins = *c.EtaBins
	}
	if c.EtaMin != nil {
		axis.Min = *c.EtaMin
	}
	if c.EtaMax != nil {
		axis.Max = *c.EtaMax
	}
	return axis
}

// GetFilterOptions assembles FilterOptions from config.
func (c *TuningConfig) GetFilterOptions() fmd.FilterOptions {
	return fmd.FilterOptions{
		CorrectAngles:     c.GetCorrectAngles(),
		ThreeStripSharing: c.GetThreeStripSharing(),
		RecalculateEta:    c.GetRecalculateEta(),
		InvalidIsEmpty:    c.GetInvalidIsEmpty(),
	}
}

// GetLowCut assembles the low threshold policy from config.
func (c *TuningConfig) GetLowCut() fmd.CutSpec {
	return c.cutSpec(fmd.DefaultLowCut(),
		c.LowCutMethod, c.LowCutFixed, c.LowCutMPVFraction, c.LowCutNXi, c.LowCutIncludeSigma)
}

// GetHighCut assembles the high threshold policy from config.
func (c *TuningConfig) GetHighCut() fmd.CutSpec {
	return c.cutSpec(fmd.DefaultHighCut(),
		c.HighCutMethod, c.HighCutFixed, c.HighCutMPVFraction, c.HighCutNXi, c.HighCutIncludeSigma)
}

func (c *TuningConfig) cutSpec(spec fmd.CutSpec, method *string, fixed, mpvFraction, nXi *float64, includeSigma *bool) fmd.CutSpec {
	if method != nil {
		// Validate() already checked the string parses.
		if m, err := fmd.ParseCutMethod(*method); err == nil {
			spec.Method = m
		}
	}
	if fixed != nil {
		spec.Fixed = *fixed
	}
	if mpvFraction != nil {
		spec.MPVFraction = *mpvFraction
	}
	if nXi != nil {
		spec.NXi = *nXi
	}
	if includeSigma != nil {
		spec.IncludeSigma = *includeSigma
	}
	return spec
}

// Merge overlays other onto c, returning a new config. Fields set in other
// win; fields left nil keep c's values. Used by the params endpoint to
// apply partial updates.
func (c *TuningConfig) Merge(other *TuningConfig) *TuningConfig {
	out := *c
	if other == nil {
		return &out
	}
	if other.CorrectAngles != nil {
		out.CorrectAngles = other.CorrectAngles
	}
	if other.ThreeStripSharing != nil {
		out.ThreeStripSharing = other.ThreeStripSharing
	}
	if other.RecalculateEta != nil {
		out.RecalculateEta = other.RecalculateEta
	}
	if other.InvalidIsEmpty != nil {
		out.InvalidIsEmpty = other.InvalidIsEmpty
	}
	if other.LowCutMethod != nil {
		out.LowCutMethod = other.LowCutMethod
	}
	if other.LowCutFixed != nil {
		out.LowCutFixed = other.LowCutFixed
	}
	if other.LowCutMPVFraction != nil {
		out.LowCutMPVFraction = other.LowCutMPVFraction
	}
	if other.LowCutNXi != nil {
		out.LowCutNXi = other.LowCutNXi
	}
	if other.LowCutIncludeSigma != nil {
		out.LowCutIncludeSigma = other.LowCutIncludeSigma
	}
	if other.HighCutMethod != nil {
		out.HighCutMethod = other.HighCutMethod
	}
	if other.HighCutFixed != nil {
		out.HighCutFixed = other.HighCutFixed
	}
	if other.HighCutMPVFraction != nil {
		out.HighCutMPVFraction = other.HighCutMPVFraction
	}
	if other.HighCutNXi != nil {
		out.HighCutNXi = other.HighCutNXi
	}
	if other.HighCutIncludeSigma != nil {
		out.HighCutIncludeSigma = other.HighCutIncludeSigma
	}
	if other.EtaBins != nil {
		out.EtaBins = other.EtaBins
	}
	if other.EtaMin != nil {
		out.EtaMin = other.EtaMin
	}
	if other.EtaMax != nil {
		out.EtaMax = other.EtaMax
	}
	if other.VertexZ != nil {
		out.VertexZ = other.VertexZ
	}
	return &out
}
