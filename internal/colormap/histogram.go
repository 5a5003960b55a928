package colormap

import "math"

const (
	DefaultMinLevel = -120.0 // dBm
	DefaultMaxLevel = -20.0  // dBm

	// For 20 samples:
	// - 5% percentile  = 1 sample
	// - 95% percentile = 19th sample
	minimumSampleCount = 20

	minimumRange = 30 // dB
)

// Bounds is a level range used to normalise levels before color lookup.
type Bounds struct {
	Min       float64 // Lower level in dBm
	Max       float64 // Upper level in dBm
	Mean      float64 // Mean level in dBm
	Reference float64 // Reference level for visualization in dBm
}

// DefaultBounds returns the range used until enough levels have been observed.
func DefaultBounds() Bounds {
	return Bounds{
		Min:       DefaultMinLevel,
		Max:       DefaultMaxLevel,
		Mean:      (DefaultMinLevel + DefaultMaxLevel) / 2,
		Reference: (DefaultMinLevel + DefaultMaxLevel) / 2,
	}
}

// Histogram maintains a histogram of levels with 1 dB bins. It provides robust
// bounds that ignore the outermost 5% of levels on each side.
type Histogram struct {
	bins       map[int]uint32 // Map of bin index to count
	totalCount uint64
	minBin     int
	maxBin     int
}

// NewHistogram creates a new empty histogram
func NewHistogram() *Histogram {
	return &Histogram{
		bins:   make(map[int]uint32),
		minBin: math.MaxInt32,
		maxBin: math.MinInt32,
	}
}

func binIndex(level float64) int {
	return int(math.Floor(level))
}

// scaleDown halves all bin counts
func (h *Histogram) scaleDown() {
	h.minBin = math.MaxInt32
	h.maxBin = math.MinInt32

	for bin := range h.bins {
		h.bins[bin] /= 2
		if h.bins[bin] == 0 {
			delete(h.bins, bin)
			continue
		}
		h.minBin = min(h.minBin, bin)
		h.maxBin = max(h.maxBin, bin)
	}
	h.totalCount /= 2
}

// Update adds a level to the histogram. nil and non-finite levels are ignored.
func (h *Histogram) Update(level *float64) {
	if level == nil || math.IsNaN(*level) || math.IsInf(*level, 0) {
		return
	}

	bin := binIndex(*level)

	if h.bins[bin] == math.MaxUint32 || h.totalCount == math.MaxUint64 {
		h.scaleDown()
	}

	h.bins[bin]++
	h.totalCount++

	h.minBin = min(h.minBin, bin)
	h.maxBin = max(h.maxBin, bin)
}

// Count returns the number of levels in the histogram.
func (h *Histogram) Count() uint64 {
	return h.totalCount
}

// Clear resets the histogram
func (h *Histogram) Clear() {
	h.bins = make(map[int]uint32)
	h.totalCount = 0
	h.minBin = math.MaxInt32
	h.maxBin = math.MinInt32
}

// PercentileBounds returns bounds between the 5th and 95th percentile bins,
// widened to at least 30 dB and padded by a 10% margin. DefaultBounds is returned
// until at least 20 levels were added.
func (h *Histogram) PercentileBounds() Bounds {
	if h.totalCount < minimumSampleCount {
		return DefaultBounds()
	}

	target := h.totalCount * 5 / 100

	var count uint64
	var low, high int

	for bin := h.minBin; bin <= h.maxBin; bin++ {
		count += uint64(h.bins[bin])
		if count >= target {
			low = bin
			break
		}
	}

	count = 0
	for bin := h.maxBin; bin >= h.minBin; bin-- {
		count += uint64(h.bins[bin])
		if count >= target {
			high = bin
			break
		}
	}

	// Weighted average of bin floors
	var sumProduct float64
	for bin, n := range h.bins {
		sumProduct += float64(bin) * float64(n)
	}
	mean := sumProduct / float64(h.totalCount)

	if high-low < minimumRange {
		center := (high + low) / 2
		low = center - minimumRange/2
		high = center + minimumRange/2
	}

	margin := (high - low) / 10

	return Bounds{
		Min:       float64(low - margin),
		Max:       float64(high + margin),
		Mean:      mean,
		Reference: mean,
	}
}

// SmoothBounds applies exponential smoothing to histogram bounds, so a renderer
// fed level by level does not flicker.
type SmoothBounds struct {
	hist    *Histogram
	alpha   float64 // Smoothing factor (0-1)
	current Bounds
}

// NewSmoothBounds creates a new bounds smoother
func NewSmoothBounds(alpha float64) *SmoothBounds {
	return &SmoothBounds{
		hist:    NewHistogram(),
		alpha:   clamp01(alpha),
		current: DefaultBounds(),
	}
}

// Update adds a level and returns the smoothed bounds
func (s *SmoothBounds) Update(level *float64) Bounds {
	if level == nil {
		return s.current
	}

	s.hist.Update(level)
	next := s.hist.PercentileBounds()

	s.current.Min = s.current.Min*(1-s.alpha) + next.Min*s.alpha
	s.current.Max = s.current.Max*(1-s.alpha) + next.Max*s.alpha
	s.current.Mean = next.Mean
	s.current.Reference = next.Reference

	return s.current
}

// Current returns the current smoothed bounds
func (s *SmoothBounds) Current() Bounds {
	return s.current
}

// Clear resets the histogram and bounds
func (s *SmoothBounds) Clear() {
	s.hist.Clear()
	s.current = DefaultBounds()
}

// GridBounds returns percentile bounds over all present cells of a grid. Missing
// cells are not counted.
func GridBounds(levels [][]*float64) Bounds {
	h := NewHistogram()
	for _, row := range levels {
		for _, level := range row {
			h.Update(level)
		}
	}
	return h.PercentileBounds()
}
