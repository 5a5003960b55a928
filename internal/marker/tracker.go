// Package marker keeps the small set of user-placed annotations shown on top of a
// level projection.
package marker

import (
	"errors"
	"fmt"
	"slices"
)

// Capacity is the maximum number of markers a Tracker holds.
const Capacity = 4

// ErrAtCapacity is returned by Add when the tracker already holds Capacity markers.
// It is recoverable: the marker set is left unchanged.
var ErrAtCapacity = errors.New("marker capacity reached")

// Payload carries the display fields of a marker.
type Payload struct {
	Value float64 // Time (Unix seconds) or frequency (Hz) of the point, depending on projection
	Level float64 // Level at the point, usually dBm
	Label string  // Optional label; a default one is assigned when empty
}

// Marker is an annotation bound to a data index of the projection that was active
// when it was created. Markers are not re-mapped when the projection changes.
type Marker struct {
	ID        int64   `json:"id"`
	DataIndex int     `json:"dataIndex"`
	Value     float64 `json:"value"`
	Level     float64 `json:"level"`
	Label     string  `json:"label"`
}

// Tracker holds up to Capacity markers in creation order. It is not safe for
// concurrent mutation; the owning view serializes access.
type Tracker struct {
	markers []Marker
	nextID  int64
}

// NewTracker creates a new empty tracker
func NewTracker() *Tracker {
	return &Tracker{
		markers: make([]Marker, 0, Capacity),
		nextID:  1,
	}
}

// Add creates a marker for the data index. Marker IDs are never reused for the
// lifetime of the tracker.
func (t *Tracker) Add(dataIndex int, payload Payload) (Marker, error) {
	if len(t.markers) >= Capacity {
		return Marker{}, fmt.Errorf("adding marker at index %d: %w", dataIndex, ErrAtCapacity)
	}

	m := Marker{
		ID:        t.nextID,
		DataIndex: dataIndex,
		Value:     payload.Value,
		Level:     payload.Level,
		Label:     payload.Label,
	}
	if m.Label == "" {
		m.Label = fmt.Sprintf("M%d", m.ID)
	}
	t.nextID++

	t.markers = append(t.markers, m)
	return m, nil
}

// Remove deletes the marker with the given ID. Unknown IDs are ignored.
func (t *Tracker) Remove(id int64) {
	t.markers = slices.DeleteFunc(t.markers, func(m Marker) bool {
		return m.ID == id
	})
}

// Clear removes all markers.
func (t *Tracker) Clear() {
	t.markers = t.markers[:0]
}

// Len returns the number of markers.
func (t *Tracker) Len() int {
	return len(t.markers)
}

// Full reports whether another marker can be added.
func (t *Tracker) Full() bool {
	return len(t.markers) >= Capacity
}

// Markers returns a copy of the markers in creation order.
func (t *Tracker) Markers() []Marker {
	return slices.Clone(t.markers)
}
