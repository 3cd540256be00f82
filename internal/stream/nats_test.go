package stream

import (
	"encoding/json"
	"testing"
)

func TestCameraMessageDecode(t *testing.T) {
	payload := `{
		"bounds": {
			"southWest": {"lat": 14.5995, "lng": 121.0340},
			"northEast": {"lat": 14.6500, "lng": 121.0600}
		},
		"programmatic": true
	}`
	var m CameraMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Bounds.SouthWest.Lat != 14.5995 || m.Bounds.NorthEast.Lng != 121.0600 {
		t.Errorf("bounds = %+v", m.Bounds)
	}
	if !m.Programmatic {
		t.Error("programmatic flag lost in decode")
	}
	if !m.Valid() {
		t.Error("Valid = false for in-range bounds")
	}
}

func TestCameraMessageValidRejectsOutOfRange(t *testing.T) {
	var m CameraMessage
	m.Bounds.SouthWest.Lat = -91
	m.Bounds.NorthEast.Lat = 14.65
	m.Bounds.NorthEast.Lng = 121.06
	if m.Valid() {
		t.Error("Valid = true for out-of-range southwest corner")
	}

	var n CameraMessage
	n.Bounds.NorthEast.Lng = 181
	if n.Valid() {
		t.Error("Valid = true for out-of-range northeast corner")
	}
}
