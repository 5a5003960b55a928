package marker

import (
	"errors"
	"reflect"
	"testing"
)

func TestTracker_Capacity(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < Capacity; i++ {
		if _, err := tr.Add(i*10, Payload{Value: float64(i), Level: -50}); err != nil {
			t.Fatalf("add %d: unexpected error: %v", i, err)
		}
	}
	if !tr.Full() {
		t.Fatal("tracker should be full")
	}

	before := tr.Markers()
	_, err := tr.Add(99, Payload{Value: 99})
	if !errors.Is(err, ErrAtCapacity) {
		t.Fatalf("expected ErrAtCapacity, got %v", err)
	}
	if after := tr.Markers(); !reflect.DeepEqual(before, after) {
		t.Errorf("failed add changed the marker set: %+v -> %+v", before, after)
	}
}

func TestTracker_AddRemoveClear(t *testing.T) {
	tr := NewTracker()

	a, _ := tr.Add(3, Payload{Value: 1e8, Level: -60})
	b, _ := tr.Add(7, Payload{Value: 2e8, Level: -55, Label: "peak"})

	if a.ID == b.ID {
		t.Fatal("marker IDs must be unique")
	}
	if a.Label != "M1" || b.Label != "peak" {
		t.Errorf("unexpected labels %q, %q", a.Label, b.Label)
	}
	if a.DataIndex != 3 || a.Value != 1e8 || a.Level != -60 {
		t.Errorf("unexpected marker %+v", a)
	}

	tr.Remove(12345) // unknown IDs are ignored
	if tr.Len() != 2 {
		t.Fatalf("expected 2 markers, got %d", tr.Len())
	}

	tr.Remove(a.ID)
	if got := tr.Markers(); len(got) != 1 || got[0].ID != b.ID {
		t.Fatalf("expected only marker %d, got %+v", b.ID, got)
	}

	c, _ := tr.Add(1, Payload{})
	if c.ID == a.ID || c.ID == b.ID {
		t.Errorf("marker ID %d was reused", c.ID)
	}

	tr.Clear()
	if tr.Len() != 0 || len(tr.Markers()) != 0 {
		t.Error("Clear should empty the tracker")
	}
	if _, err := tr.Add(0, Payload{}); err != nil {
		t.Errorf("add after clear: %v", err)
	}
}

func TestTracker_MarkersIsACopy(t *testing.T) {
	tr := NewTracker()
	_, _ = tr.Add(0, Payload{Label: "a"})

	markers := tr.Markers()
	markers[0].Label = "changed"

	if tr.Markers()[0].Label != "a" {
		t.Error("mutating the returned slice changed the tracker")
	}
}
