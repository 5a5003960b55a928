package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/roman-kulish/spectrum-locator/internal/config"
	"github.com/roman-kulish/spectrum-locator/internal/marker"
	"github.com/roman-kulish/spectrum-locator/internal/session"
)

const (
	defaultWidth  = 1200
	defaultHeight = 600
)

type Config struct {
	ConfigFile    string
	InputFile     string
	DBPath        string
	MeasurementID int64
	OutputFile    string
	Projection    session.Projection
	ScanIndex     int
	FrequencyHz   *int64
	Markers       []int // Data indexes of the projection
	Width         int
	Height        int
	TimeZone      *time.Location
	Verbose       bool

	Settings *config.Config
}

func NewConfig() *Config {
	return &Config{
		Projection: session.LevelVsFrequency,
		Width:      defaultWidth,
		Height:     defaultHeight,
		TimeZone:   time.Local,
		Settings:   config.Default(),
	}
}

// NewConfigFromArgs parses command line arguments, without the program name.
func NewConfigFromArgs(args []string, output io.Writer) (*Config, error) {
	c := NewConfig()

	fs := flag.NewFlagSet("plot", flag.ContinueOnError)
	fs.SetOutput(output)

	var projection, timeZone string
	var frequency int64
	fs.StringVar(&c.ConfigFile, "config", "", "Path to the YAML configuration file")
	fs.StringVar(&c.InputFile, "i", "", "Path to a JSON measurement result")
	fs.StringVar(&c.DBPath, "db", "", "Path to the database file (used when -i is not set)")
	fs.Int64Var(&c.MeasurementID, "m", 1, "Measurement ID in the database")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output PNG file, without extension")
	fs.StringVar(&projection, "projection", string(session.LevelVsFrequency), "Projection to plot. [frequency, time]")
	fs.IntVar(&c.ScanIndex, "scan", 0, "Scan index for the frequency projection")
	fs.Int64Var(&frequency, "freq", 0, "Frequency in Hz for the time projection, defaults to the lowest")
	fs.IntVar(&c.Width, "width", defaultWidth, "Chart width in pixels")
	fs.IntVar(&c.Height, "height", defaultHeight, "Chart height in pixels")
	fs.StringVar(&timeZone, "tz", "Local", "Time zone of the time axis")
	fs.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	fs.Func("marker", fmt.Sprintf("Data index to mark, may be repeated up to %d times", marker.Capacity), func(s string) error {
		i, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		c.Markers = append(c.Markers, i)
		return nil
	})
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "freq" {
			c.FrequencyHz = &frequency
		}
	})

	c.Projection = session.Projection(projection)

	var err error
	if c.InputFile == "" && c.DBPath == "" {
		err = errors.New("input file or db path is required")
	} else if c.InputFile == "" && c.MeasurementID <= 0 {
		err = errors.New("measurement id is required")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if c.Projection != session.LevelVsFrequency && c.Projection != session.LevelVsTime {
		err = fmt.Errorf("invalid projection: %s", projection)
	} else if c.ScanIndex < 0 {
		err = fmt.Errorf("invalid scan index: %d", c.ScanIndex)
	} else if len(c.Markers) > marker.Capacity {
		err = fmt.Errorf("at most %d markers are supported", marker.Capacity)
	} else if c.Width <= 0 || c.Height <= 0 {
		err = fmt.Errorf("invalid chart size: %dx%d", c.Width, c.Height)
	} else if c.TimeZone, err = time.LoadLocation(timeZone); err != nil {
		err = fmt.Errorf("invalid time zone: %w", err)
	} else if c.Settings, err = config.Load(c.ConfigFile); err != nil {
		err = fmt.Errorf("loading configuration: %w", err)
	}

	if err != nil {
		fs.Usage()
		return nil, err
	}

	c.OutputFile += ".png"
	return c, nil
}
