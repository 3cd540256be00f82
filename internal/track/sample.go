package track

import (
	"time"

	"delivery-tracker/internal/geo"
)

// Sample is one raw observation of an entity's location as delivered by the
// push channel. Heading and SpeedMps are optional (zero when absent). The
// timestamp is used for staleness gating and age display, not for ordering
// across entities.
type Sample struct {
	EntityID  string    `json:"entityId"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Heading   float64   `json:"heading,omitempty"`
	SpeedMps  float64   `json:"speedMps,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (s Sample) Point() geo.Point {
	return geo.Point{Lat: s.Lat, Lng: s.Lng}
}

// Valid reports whether the coordinates are in range. Invalid samples are
// dropped at the ingestion boundary and never reach the interpolator.
func (s Sample) Valid() bool {
	return geo.Valid(s.Point())
}
