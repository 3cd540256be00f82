package canvas

import "delivery-tracker/internal/geo"

// MarkerHandle is one live marker on the map surface. The interpolator writes
// through this interface only; it never sees a concrete map-engine type.
type MarkerHandle interface {
	SetPosition(p geo.Point)
	Remove()
}

// Canvas abstracts the shared mutable map surface. All mutations are funneled
// through the registry and route refresher so two components never race to
// add the same id twice.
type Canvas interface {
	AddMarker(id string, p geo.Point) MarkerHandle
	SetPolyline(id string, points []geo.Point)
	RemovePolyline(id string)
	FitBounds(b Bounds)
}

// Bounds is a lat/lng bounding box.
type Bounds struct {
	SouthWest geo.Point `json:"southWest"`
	NorthEast geo.Point `json:"northEast"`
}

// Extend grows the bounds to include p.
func (b *Bounds) Extend(p geo.Point) {
	if p.Lat < b.SouthWest.Lat {
		b.SouthWest.Lat = p.Lat
	}
	if p.Lat > b.NorthEast.Lat {
		b.NorthEast.Lat = p.Lat
	}
	if p.Lng < b.SouthWest.Lng {
		b.SouthWest.Lng = p.Lng
	}
	if p.Lng > b.NorthEast.Lng {
		b.NorthEast.Lng = p.Lng
	}
}

// BoundsOf returns the bounding box of the given points. The second return is
// false when the slice is empty.
func BoundsOf(pts []geo.Point) (Bounds, bool) {
	if len(pts) == 0 {
		return Bounds{}, false
	}
	b := Bounds{SouthWest: pts[0], NorthEast: pts[0]}
	for _, p := range pts[1:] {
		b.Extend(p)
	}
	return b, true
}
