package canvas

import (
	"testing"

	"delivery-tracker/internal/geo"
)

func TestBoundsOfEmpty(t *testing.T) {
	if _, ok := BoundsOf(nil); ok {
		t.Error("BoundsOf(nil) ok = true, want false")
	}
}

func TestBoundsOfSinglePoint(t *testing.T) {
	p := geo.Point{Lat: 14.5995, Lng: 121.0340}
	b, ok := BoundsOf([]geo.Point{p})
	if !ok {
		t.Fatal("ok = false, want true")
	}
	if b.SouthWest != p || b.NorthEast != p {
		t.Errorf("bounds = %+v, want degenerate box at %v", b, p)
	}
}

func TestBoundsOfSpansAllPoints(t *testing.T) {
	pts := []geo.Point{
		{Lat: 14.6100, Lng: 121.0400},
		{Lat: 14.5995, Lng: 121.0600},
		{Lat: 14.6500, Lng: 121.0340},
	}
	b, ok := BoundsOf(pts)
	if !ok {
		t.Fatal("ok = false, want true")
	}
	want := Bounds{
		SouthWest: geo.Point{Lat: 14.5995, Lng: 121.0340},
		NorthEast: geo.Point{Lat: 14.6500, Lng: 121.0600},
	}
	if b != want {
		t.Errorf("bounds = %+v, want %+v", b, want)
	}
}

func TestExtendNoShrink(t *testing.T) {
	b := Bounds{
		SouthWest: geo.Point{Lat: 14.0, Lng: 121.0},
		NorthEast: geo.Point{Lat: 15.0, Lng: 122.0},
	}
	// An interior point must leave the box untouched.
	b.Extend(geo.Point{Lat: 14.5, Lng: 121.5})
	if b.SouthWest != (geo.Point{Lat: 14.0, Lng: 121.0}) || b.NorthEast != (geo.Point{Lat: 15.0, Lng: 122.0}) {
		t.Errorf("interior point changed bounds: %+v", b)
	}

	b.Extend(geo.Point{Lat: 13.0, Lng: 123.0})
	if b.SouthWest.Lat != 13.0 || b.NorthEast.Lng != 123.0 {
		t.Errorf("bounds = %+v, want extended to lat 13 / lng 123", b)
	}
}
