package station

import (
	"reflect"
	"strings"
	"testing"
)

func TestSupportsDF(t *testing.T) {
	testCases := []struct {
		name     string
		path     SignalPath
		expected bool
	}{
		{"bearing parameter", SignalPath{MeasurementParameters: []any{"frequency", "Bearing"}}, true},
		{"azimuth parameter", SignalPath{MeasurementParameters: []any{"AZIMUTH_DEG"}}, true},
		{"df capability", SignalPath{Capabilities: []any{"wideband-df"}}, true},
		{"numeric parameter", SignalPath{MeasurementParameters: []any{42.0}}, false},
		{"level only", SignalPath{MeasurementParameters: []any{"level", "frequency"}}, false},
		{"empty", SignalPath{}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SupportsDF(tc.path); got != tc.expected {
				t.Errorf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestSupportsTDOA(t *testing.T) {
	testCases := []struct {
		name     string
		path     SignalPath
		expected bool
	}{
		{"device name", SignalPath{DeviceName: "eb500 receiver"}, true},
		{"device type", SignalPath{DeviceType: "EM100XT"}, true},
		{"signal path", SignalPath{SignalPath: "site1/em100/ant2"}, true},
		{"other receiver", SignalPath{DeviceName: "ESMD", DeviceType: "PR100"}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SupportsTDOA(tc.path); got != tc.expected {
				t.Errorf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}

const systemParameters = `{
  "stations": [
    {"station_id": "st-1", "name": "North", "latitude": 48.2, "longitude": 16.3,
     "signal_paths": [
       {"path_name": "p1", "device_name": "EB500", "measurement_parameters": ["level", "bearing"]},
       {"signal_path": "p2", "device_type": "ESMD"}
     ]},
    {"name": "South",
     "signal_paths": [{"path_name": "s1", "device_name": "EM100XT"}]},
    {"station_id": "st-3", "signal_paths": []}
  ]
}`

func TestAnalyze(t *testing.T) {
	params, err := Decode(strings.NewReader(systemParameters))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	capabilities, summary := NewAnalyzer().Analyze(params)
	if len(capabilities) != 3 {
		t.Fatalf("expected 3 stations, got %d", len(capabilities))
	}

	north := capabilities[0]
	if north.StationID != "st-1" || north.StationName != "North" {
		t.Errorf("unexpected identity %q/%q", north.StationID, north.StationName)
	}
	if !north.SupportsDF || !north.SupportsTDOA {
		t.Errorf("north should support DF and TDOA: %+v", north)
	}
	if !reflect.DeepEqual(north.SignalPaths, []string{"p1", "p2"}) {
		t.Errorf("unexpected signal paths %v", north.SignalPaths)
	}
	if !reflect.DeepEqual(north.DFCapablePaths, []string{"p1"}) || !reflect.DeepEqual(north.TDOACapablePaths, []string{"p1"}) {
		t.Errorf("unexpected capable paths %v / %v", north.DFCapablePaths, north.TDOACapablePaths)
	}
	if north.Latitude == nil || *north.Latitude != 48.2 {
		t.Errorf("latitude not carried over: %v", north.Latitude)
	}

	south := capabilities[1]
	if south.StationID != "South" || south.StationName != "South" {
		t.Errorf("station ID should fall back to the name, got %q/%q", south.StationID, south.StationName)
	}
	if south.SupportsDF || !south.SupportsTDOA {
		t.Errorf("south should support TDOA only: %+v", south)
	}

	if capabilities[2].StationName != "st-3" {
		t.Errorf("station name should fall back to the ID, got %q", capabilities[2].StationName)
	}

	expected := Summary{Total: 3, DFCapable: 1, TDOACapable: 2, CanDF: false, CanTDOA: false}
	if summary != expected {
		t.Errorf("expected summary %+v, got %+v", expected, summary)
	}
}

func TestSummarize(t *testing.T) {
	caps := []Capability{
		{SupportsDF: true, SupportsTDOA: true},
		{SupportsDF: true, SupportsTDOA: true},
		{SupportsTDOA: true},
	}

	s := Summarize(caps)
	if !s.CanDF || !s.CanTDOA {
		t.Errorf("expected DF and TDOA fixes to be possible: %+v", s)
	}
}

func TestDecode_Invalid(t *testing.T) {
	if _, err := Decode(strings.NewReader("{")); err == nil {
		t.Error("expected error for malformed JSON")
	}
}
