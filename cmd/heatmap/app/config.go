package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/roman-kulish/spectrum-locator/internal/colormap"
	"github.com/roman-kulish/spectrum-locator/internal/config"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"
)

type ImageFormat string

type Config struct {
	ConfigFile    string
	InputFile     string // JSON measurement result, alternative to the archive
	DBPath        string
	MeasurementID int64
	OutputFile    string
	Format        ImageFormat
	Theme         colormap.Theme
	TimeZone      *time.Location
	MinFrequency  *int64
	MaxFrequency  *int64
	MaxPower      *float64
	MinPower      *float64
	Verbose       bool
	NoAnnotations bool

	Settings *config.Config
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

func NewConfig() *Config {
	return &Config{
		Format:   ImagePNG,
		TimeZone: time.Local,
		Settings: config.Default(),
	}
}

// NewConfigFromArgs parses command line arguments, without the program name.
func NewConfigFromArgs(args []string, output io.Writer) (*Config, error) {
	c := NewConfig()

	fs := flag.NewFlagSet("heatmap", flag.ContinueOnError)
	fs.SetOutput(output)

	var imageFormat, theme, timeZone string
	var minPower, maxPower float64
	var minFreq, maxFreq int64
	fs.StringVar(&c.ConfigFile, "config", "", "Path to the YAML configuration file")
	fs.StringVar(&c.InputFile, "i", "", "Path to a JSON measurement result")
	fs.StringVar(&c.DBPath, "db", "", "Path to the database file (used when -i is not set)")
	fs.Int64Var(&c.MeasurementID, "m", 1, "Measurement ID in the database")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output file, without extension")
	fs.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	fs.StringVar(&theme, "theme", "", "Color theme, overrides the configuration file. ["+themeNames()+"]")
	fs.StringVar(&timeZone, "tz", "Local", "Time zone of the time scale, e.g. UTC or Europe/Vienna")
	fs.Int64Var(&minFreq, "min-freq", 0, "Minimum frequency in Hz")
	fs.Int64Var(&maxFreq, "max-freq", 0, "Maximum frequency in Hz")
	fs.Float64Var(&minPower, "min-power", 0, "Define a manual minimum level (format nn.n)")
	fs.Float64Var(&maxPower, "max-power", 0, "Define a manual maximum level (format nn.n)")
	fs.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	fs.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disabled annotations such as time and frequency scales")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	imageFormat = strings.ToLower(imageFormat)

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "min-power":
			c.MinPower = &minPower
		case "max-power":
			c.MaxPower = &maxPower
		case "min-freq":
			c.MinFrequency = &minFreq
		case "max-freq":
			c.MaxFrequency = &maxFreq
		}
	})

	var err error
	if c.InputFile == "" && c.DBPath == "" {
		err = errors.New("input file or db path is required")
	} else if c.InputFile == "" && c.MeasurementID <= 0 {
		err = errors.New("measurement id is required")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if c.MinPower != nil && c.MaxPower != nil && *c.MinPower >= *c.MaxPower {
		err = fmt.Errorf("min power %0.2f must be below max power %0.2f", *c.MinPower, *c.MaxPower)
	} else if c.TimeZone, err = time.LoadLocation(timeZone); err != nil {
		err = fmt.Errorf("invalid time zone: %w", err)
	} else if c.Settings, err = config.Load(c.ConfigFile); err != nil {
		err = fmt.Errorf("loading configuration: %w", err)
	}

	if err == nil {
		c.Theme = c.Settings.Theme()
		if theme != "" {
			c.Theme, err = colormap.ParseTheme(theme)
		}
	}

	if err != nil {
		fs.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}

func themeNames() string {
	names := make([]string, 0, len(colormap.Themes()))
	for _, t := range colormap.Themes() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}
