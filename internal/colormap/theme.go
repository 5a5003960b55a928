// Package colormap maps signal levels to colors for spectrogram style views.
package colormap

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Theme represents a predefined color scheme for level visualization.
// Each theme suits a different need:
//   - Classic: traditional spectrum display, blue to red
//   - Grayscale: monochrome visualization
//   - Jungle: dark green to yellow, better contrast
//   - Thermal: black to red to yellow to white
//   - Marine: deep blue to cyan to white
//   - Enhanced: multi-stage scheme with better low level differentiation
type Theme string

const (
	Classic   Theme = "classic"
	Grayscale Theme = "grayscale"
	Jungle    Theme = "jungle"
	Thermal   Theme = "thermal"
	Marine    Theme = "marine"
	Enhanced  Theme = "enhanced"
)

// ErrUnknownTheme is returned by ParseTheme for names that do not match a theme.
var ErrUnknownTheme = errors.New("unknown color theme")

var themes = map[Theme]func(float64) colorful.Color{
	Classic:   classic,
	Grayscale: grayscale,
	Jungle:    jungle,
	Thermal:   thermal,
	Marine:    marine,
	Enhanced:  enhanced,
}

// Themes returns all supported themes in a stable order.
func Themes() []Theme {
	return []Theme{Classic, Grayscale, Jungle, Thermal, Marine, Enhanced}
}

// ParseTheme resolves a theme by its case-insensitive name. An empty name selects
// the Enhanced theme.
func ParseTheme(name string) (Theme, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Enhanced, nil
	}
	if _, ok := themes[Theme(name)]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTheme, name)
	}
	return Theme(name), nil
}

// hsv builds a color from hue in degrees, saturation and value, tolerating
// out-of-range inputs produced by the theme curves.
func hsv(h, s, v float64) colorful.Color {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return colorful.Hsv(h, clamp01(s), clamp01(v))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func classic(level float64) colorful.Color {
	return hsv(240-(level*240), 0.9+(level*0.1), math.Pow(level, 0.7))
}

func grayscale(level float64) colorful.Color {
	v := math.Pow(level, 0.7)
	return colorful.Color{R: v, G: v, B: v}
}

func jungle(level float64) colorful.Color {
	return hsv(120-(level*60), 1.0, 0.3+(math.Pow(level, 0.6)*0.7))
}

func thermal(level float64) colorful.Color {
	switch {
	case level < 0.33:
		return colorful.Color{R: clamp01(level * 3)}
	case level < 0.66:
		return colorful.Color{R: 1, G: clamp01((level - 0.33) * 3)}
	default:
		return colorful.Color{R: 1, G: 1, B: clamp01((level - 0.66) * 3)}
	}
}

func marine(level float64) colorful.Color {
	return hsv(240-(level*60), 1.0-(level*0.8), 0.3+(math.Pow(level, 0.6)*0.7))
}

func enhanced(level float64) colorful.Color {
	boosted := math.Pow(level, 0.7)

	switch {
	case level < 0.25: // black to blue
		return hsv(240, 1.0, boosted*4)
	case level < 0.5: // blue to cyan
		return hsv(240-((level-0.25)*240), 1.0, boosted*1.5)
	case level < 0.75: // cyan to yellow
		p := (level - 0.5) * 4
		return hsv(180-(p*120), 1.0, boosted*1.5)
	default: // yellow to red
		p := (level - 0.75) * 4
		return hsv(60-(p*60), 1.0, 1.0)
	}
}
