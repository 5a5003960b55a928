// Package scan recovers the discrete sweeps that produced an unordered stream of
// timestamped samples.
package scan

import (
	"cmp"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/roman-kulish/spectrum-locator/internal/spectrum"
)

// DefaultThreshold is the maximum distance between a sample's timestamp and the
// representative timestamp of a scan for the sample to be part of that scan.
const DefaultThreshold = 1000 * time.Millisecond

// WithThreshold sets the clustering threshold. Non-positive values are ignored.
func WithThreshold(threshold time.Duration) func(*Segmenter) {
	return func(s *Segmenter) {
		if threshold > 0 {
			s.threshold = threshold
		}
	}
}

// WithLogger sets the logger for the segmenter
func WithLogger(logger *slog.Logger) func(*Segmenter) {
	return func(s *Segmenter) {
		s.logger = logger.With(slog.String("component", "scan"))
	}
}

// Segmenter clusters samples into scans. It holds no state between calls and is
// safe for concurrent use.
type Segmenter struct {
	threshold time.Duration
	logger    *slog.Logger
}

// NewSegmenter creates a new Segmenter with a discard logger and the default threshold
func NewSegmenter(options ...func(*Segmenter)) *Segmenter {
	s := Segmenter{
		threshold: DefaultThreshold,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Threshold returns the configured clustering threshold.
func (s *Segmenter) Threshold() time.Duration {
	return s.threshold
}

// Result is the outcome of a segmentation.
type Result struct {
	Scans       []spectrum.Scan // Ordered by time, numbered from 1
	Frequencies []int64         // Sorted distinct frequencies across all samples
}

// MultiScan reports whether more than one scan was detected.
func (r *Result) MultiScan() bool {
	return len(r.Scans) > 1
}

// IsSingleScan reports whether exactly one scan was detected.
func (r *Result) IsSingleScan() bool {
	return len(r.Scans) == 1
}

// SampleCount returns the number of samples across all scans.
func (r *Result) SampleCount() int {
	var n int
	for _, sc := range r.Scans {
		n += len(sc.Samples)
	}
	return n
}

type bucket struct {
	timestamp time.Time
	timed     bool
	order     int // insertion order of the opening sample
	samples   []spectrum.Sample
}

// Segment partitions samples into scans. The input slice is not modified. Every
// sample ends up in exactly one scan; zero samples give an empty result.
func (s *Segmenter) Segment(samples []spectrum.Sample) *Result {
	if len(samples) == 0 {
		return &Result{}
	}

	type indexed struct {
		order  int
		sample spectrum.Sample
	}

	var timed []indexed
	var buckets []*bucket
	for i, sample := range samples {
		if !sample.HasTimestamp {
			// Untimestamped samples can't be matched against anything, each is a scan of its own.
			buckets = append(buckets, &bucket{order: i, samples: []spectrum.Sample{sample}})
			continue
		}
		timed = append(timed, indexed{order: i, sample: sample})
	}

	slices.SortStableFunc(timed, func(a, b indexed) int {
		return a.sample.Timestamp.Compare(b.sample.Timestamp)
	})

	var open []*bucket
	for _, item := range timed {
		var target *bucket
		for _, b := range open {
			if absDuration(item.sample.Timestamp.Sub(b.timestamp)) <= s.threshold {
				target = b
				break
			}
		}
		if target == nil {
			target = &bucket{timestamp: item.sample.Timestamp, timed: true, order: item.order}
			open = append(open, target)
		}
		target.samples = append(target.samples, item.sample)
	}
	buckets = append(buckets, open...)

	slices.SortStableFunc(buckets, compareBuckets)

	result := Result{Scans: make([]spectrum.Scan, 0, len(buckets))}
	seen := make(map[int64]struct{})
	for i, b := range buckets {
		slices.SortStableFunc(b.samples, func(x, y spectrum.Sample) int {
			return cmp.Compare(x.FrequencyHz, y.FrequencyHz)
		})
		for _, sample := range b.samples {
			if _, ok := seen[sample.FrequencyHz]; !ok {
				seen[sample.FrequencyHz] = struct{}{}
				result.Frequencies = append(result.Frequencies, sample.FrequencyHz)
			}
		}
		result.Scans = append(result.Scans, spectrum.Scan{
			Number:    i + 1,
			Timestamp: b.timestamp,
			Samples:   b.samples,
		})
	}
	slices.Sort(result.Frequencies)

	s.logger.Debug("segmented samples",
		slog.Int("samples", len(samples)),
		slog.Int("scans", len(result.Scans)),
		slog.Int("frequencies", len(result.Frequencies)),
		slog.Duration("threshold", s.threshold))

	return &result
}

// compareBuckets orders timed buckets by representative timestamp. Untimestamped
// buckets sort after all timed ones, in insertion order.
func compareBuckets(a, b *bucket) int {
	switch {
	case a.timed && b.timed:
		if c := a.timestamp.Compare(b.timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.order, b.order)
	case a.timed:
		return -1
	case b.timed:
		return 1
	default:
		return cmp.Compare(a.order, b.order)
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
