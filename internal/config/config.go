// Package config loads the YAML configuration shared by the command line tools.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/spectrum-locator/internal/colormap"
	"github.com/roman-kulish/spectrum-locator/internal/locate"
	"github.com/roman-kulish/spectrum-locator/internal/scan"
)

var validLogLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

var validSolvers = map[locate.Solver]struct{}{
	locate.SolverCentroid:     {},
	locate.SolverIntersection: {},
}

type TimeDuration time.Duration

func (d *TimeDuration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("config.TimeDuration: failed to parse: %w", err)
	}

	*d = TimeDuration(duration)
	return nil
}

func (d TimeDuration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *TimeDuration) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	duration, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config.TimeDuration: failed to parse: %w", err)
	}

	*d = TimeDuration(duration)
	return nil
}

func (d TimeDuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d TimeDuration) String() string {
	return time.Duration(d).String()
}

// Config is the tools configuration
type Config struct {
	Settings Settings      `yaml:"settings" json:"settings"`
	Scan     ScanConfig    `yaml:"scan" json:"scan"`
	DF       DFConfig      `yaml:"df" json:"df"`
	TDOA     TDOAConfig    `yaml:"tdoa" json:"tdoa"`
	Display  DisplayConfig `yaml:"display" json:"display"`
	Storage  StorageConfig `yaml:"storage" json:"storage"`
}

// Settings represents global settings
type Settings struct {
	LogLevel string `yaml:"logLevel" json:"logLevel"`
}

// ScanConfig controls scan segmentation
type ScanConfig struct {
	Threshold TimeDuration `yaml:"threshold" json:"threshold"` // Maximum timestamp distance within one scan
}

// DFConfig controls bearing based estimation
type DFConfig struct {
	Solver               locate.Solver `yaml:"solver" json:"solver"`                             // centroid or intersection
	ProbeDistance        float64       `yaml:"probeDistance" json:"probeDistance"`               // m, ray length
	NominalAccuracy      float64       `yaml:"nominalAccuracy" json:"nominalAccuracy"`           // m, accuracy without confidence
	MaxIntersectionRange float64       `yaml:"maxIntersectionRange" json:"maxIntersectionRange"` // m, intersection solver only
}

// TDOAConfig controls multilateration
type TDOAConfig struct {
	MaxIterations int     `yaml:"maxIterations" json:"maxIterations"`
	Convergence   float64 `yaml:"convergence" json:"convergence"` // m
}

// DisplayConfig controls spectrogram rendering
type DisplayConfig struct {
	Theme      string `yaml:"theme" json:"theme"`
	Percentile bool    `yaml:"percentile" json:"percentile"` // Percentile bounds instead of the observed range
	Smoothing  float64 `yaml:"smoothing" json:"smoothing"`   // Exponential smoothing of percentile bounds, 0 disables
}

// StorageConfig represents storage settings
type StorageConfig struct {
	Path string `yaml:"path" json:"path"` // SQLite archive file
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Settings: Settings{LogLevel: "info"},
		Scan:     ScanConfig{Threshold: TimeDuration(scan.DefaultThreshold)},
		DF: DFConfig{
			Solver:               locate.SolverCentroid,
			ProbeDistance:        locate.DefaultProbeDistance,
			NominalAccuracy:      locate.DefaultNominalAccuracy,
			MaxIntersectionRange: locate.DefaultMaxIntersectRange,
		},
		TDOA: TDOAConfig{
			MaxIterations: locate.DefaultMaxIterations,
			Convergence:   locate.DefaultConvergence,
		},
		Display: DisplayConfig{Theme: string(colormap.Enhanced)},
		Storage: StorageConfig{Path: "spectrum.db"},
	}
}

// Load reads the file at path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, ok := validLogLevels[strings.ToLower(c.Settings.LogLevel)]; !ok {
		return fmt.Errorf("config.Settings: invalid log level: %s", c.Settings.LogLevel)
	}

	if c.Scan.Threshold <= 0 {
		return fmt.Errorf("config.Scan: threshold must be positive: %s", c.Scan.Threshold)
	}

	if _, ok := validSolvers[c.DF.Solver]; !ok {
		return fmt.Errorf("config.DF: invalid solver: %s", c.DF.Solver)
	}
	if c.DF.ProbeDistance <= 0 {
		return fmt.Errorf("config.DF: probe distance must be positive: %0.2f", c.DF.ProbeDistance)
	}
	if c.DF.NominalAccuracy <= 0 {
		return fmt.Errorf("config.DF: nominal accuracy must be positive: %0.2f", c.DF.NominalAccuracy)
	}
	if c.DF.MaxIntersectionRange <= 0 {
		return fmt.Errorf("config.DF: max intersection range must be positive: %0.2f", c.DF.MaxIntersectionRange)
	}

	if c.TDOA.MaxIterations < 1 {
		return fmt.Errorf("config.TDOA: max iterations must be at least 1: %d given", c.TDOA.MaxIterations)
	}
	if c.TDOA.Convergence <= 0 {
		return fmt.Errorf("config.TDOA: convergence must be positive: %g", c.TDOA.Convergence)
	}

	if _, err := colormap.ParseTheme(c.Display.Theme); err != nil {
		return fmt.Errorf("config.Display: %w", err)
	}
	if c.Display.Smoothing < 0 || c.Display.Smoothing > 1 {
		return fmt.Errorf("config.Display: smoothing must be within [0, 1]: %g", c.Display.Smoothing)
	}

	return nil
}

// LogLevel returns the configured log level.
func (c *Config) LogLevel() slog.Level {
	return validLogLevels[strings.ToLower(c.Settings.LogLevel)]
}

// Theme returns the configured color theme.
func (c *Config) Theme() colormap.Theme {
	theme, _ := colormap.ParseTheme(c.Display.Theme)
	return theme
}

// BearingOptions returns the DF estimator options of this configuration.
func (c *Config) BearingOptions(logger *slog.Logger) []locate.BearingOption {
	return []locate.BearingOption{
		locate.WithSolver(c.DF.Solver),
		locate.WithProbeDistance(c.DF.ProbeDistance),
		locate.WithNominalAccuracy(c.DF.NominalAccuracy),
		locate.WithMaxIntersectionRange(c.DF.MaxIntersectionRange),
		locate.WithBearingLogger(logger),
	}
}

// TDOAOptions returns the TDOA estimator options of this configuration.
func (c *Config) TDOAOptions(logger *slog.Logger) []locate.TDOAOption {
	return []locate.TDOAOption{
		locate.WithMaxIterations(c.TDOA.MaxIterations),
		locate.WithConvergence(c.TDOA.Convergence),
		locate.WithTDOALogger(logger),
	}
}
