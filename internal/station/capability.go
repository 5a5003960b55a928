// Package station detects which measurement stations can take part in direction
// finding (DF) or time difference of arrival (TDOA) location, based on the system
// parameters reported by the measurement service.
package station

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const (
	MinDFStations   = 2 // Bearings needed for a DF fix
	MinTDOAStations = 3 // Stations needed for a TDOA fix
)

var (
	dfParameterIndicators = []string{"bearing", "azimuth", "df", "direction"}
	tdoaDevices           = []string{"EB500", "EM100XT", "EM100", "EB500_DF"}
)

// SignalPath is one receive chain of a station as reported by the measurement service.
type SignalPath struct {
	PathName              string `json:"path_name"`
	SignalPath            string `json:"signal_path"`
	DeviceName            string `json:"device_name"`
	DeviceType            string `json:"device_type"`
	MeasurementParameters []any  `json:"measurement_parameters"`
	Capabilities          []any  `json:"capabilities"`
}

// Name returns the path name, falling back to the signal path identifier.
func (p SignalPath) Name() string {
	if p.PathName != "" {
		return p.PathName
	}
	return p.SignalPath
}

// Record is a station entry of a system-parameter response.
type Record struct {
	StationID   string       `json:"station_id"`
	Name        string       `json:"name"`
	Latitude    *float64     `json:"latitude"`
	Longitude   *float64     `json:"longitude"`
	SignalPaths []SignalPath `json:"signal_paths"`
}

// SystemParameters is the system-parameter response listing the stations.
type SystemParameters struct {
	Stations []Record `json:"stations"`
}

// Capability summarises the location capabilities of one station.
type Capability struct {
	StationID        string   `json:"station_id"`
	StationName      string   `json:"station_name"`
	SignalPaths      []string `json:"signal_paths"`
	SupportsDF       bool     `json:"supports_df"`
	SupportsTDOA     bool     `json:"supports_tdoa"`
	DFCapablePaths   []string `json:"df_capable_paths"`
	TDOACapablePaths []string `json:"tdoa_capable_paths"`
	Latitude         *float64 `json:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"`
}

// Summary counts capable stations and tells whether a fix is possible.
type Summary struct {
	Total       int  `json:"total"`
	DFCapable   int  `json:"df_capable"`
	TDOACapable int  `json:"tdoa_capable"`
	CanDF       bool `json:"can_df"`
	CanTDOA     bool `json:"can_tdoa"`
}

// SupportsDF reports whether the signal path measures bearings. A path qualifies
// when a measurement parameter mentions bearing, azimuth, df or direction, or a
// capability mentions DF.
func SupportsDF(p SignalPath) bool {
	for _, param := range p.MeasurementParameters {
		name := strings.ToLower(fmt.Sprint(param))
		for _, indicator := range dfParameterIndicators {
			if strings.Contains(name, indicator) {
				return true
			}
		}
	}
	for _, c := range p.Capabilities {
		if strings.Contains(strings.ToUpper(fmt.Sprint(c)), "DF") {
			return true
		}
	}
	return false
}

// SupportsTDOA reports whether the signal path uses a receiver model known to
// provide synchronised timestamps.
func SupportsTDOA(p SignalPath) bool {
	text := strings.ToUpper(strings.Join([]string{p.DeviceName, p.DeviceType, p.SignalPath}, " "))
	for _, device := range tdoaDevices {
		if strings.Contains(text, device) {
			return true
		}
	}
	return false
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithLogger sets the logger for the analyzer
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger.With(slog.String("component", "station"))
	}
}

// Analyzer derives station capabilities from system parameters.
type Analyzer struct {
	logger *slog.Logger
}

// NewAnalyzer creates a new Analyzer with a discard logger
func NewAnalyzer(options ...Option) *Analyzer {
	a := Analyzer{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&a)
	}

	return &a
}

// Analyze returns the capabilities of every station, in input order, and a summary.
func (a *Analyzer) Analyze(params SystemParameters) ([]Capability, Summary) {
	capabilities := make([]Capability, 0, len(params.Stations))

	for _, st := range params.Stations {
		id := st.StationID
		if id == "" {
			id = st.Name
		}
		name := st.Name
		if name == "" {
			name = id
		}

		c := Capability{
			StationID:   id,
			StationName: name,
			SignalPaths: make([]string, 0, len(st.SignalPaths)),
			Latitude:    st.Latitude,
			Longitude:   st.Longitude,
		}

		for _, path := range st.SignalPaths {
			c.SignalPaths = append(c.SignalPaths, path.Name())
			if SupportsDF(path) {
				c.DFCapablePaths = append(c.DFCapablePaths, path.Name())
				c.SupportsDF = true
			}
			if SupportsTDOA(path) {
				c.TDOACapablePaths = append(c.TDOACapablePaths, path.Name())
				c.SupportsTDOA = true
			}
		}

		capabilities = append(capabilities, c)
	}

	summary := Summarize(capabilities)

	a.logger.Info("analyzed station capabilities",
		slog.Int("stations", summary.Total),
		slog.Int("df", summary.DFCapable),
		slog.Int("tdoa", summary.TDOACapable))

	return capabilities, summary
}

// Summarize counts DF and TDOA capable stations.
func Summarize(capabilities []Capability) Summary {
	s := Summary{Total: len(capabilities)}
	for _, c := range capabilities {
		if c.SupportsDF {
			s.DFCapable++
		}
		if c.SupportsTDOA {
			s.TDOACapable++
		}
	}
	s.CanDF = s.DFCapable >= MinDFStations
	s.CanTDOA = s.TDOACapable >= MinTDOAStations
	return s
}

// Decode reads a system-parameter response.
func Decode(r io.Reader) (SystemParameters, error) {
	var params SystemParameters
	if err := json.NewDecoder(r).Decode(&params); err != nil {
		return SystemParameters{}, fmt.Errorf("decoding system parameters: %w", err)
	}
	return params, nil
}
