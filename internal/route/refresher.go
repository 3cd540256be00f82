package route

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"delivery-tracker/internal/canvas"
	"delivery-tracker/internal/geo"
)

// Phase is the leg a delivery is currently on. It determines which
// destination the route is drawn to.
type Phase int

const (
	PhaseToPickup Phase = iota
	PhaseToDropoff
)

func (p Phase) String() string {
	if p == PhaseToPickup {
		return "to_pickup"
	}
	return "to_dropoff"
}

// Destination is a routing target plus the phase it belongs to.
type Destination struct {
	Point geo.Point
	Phase Phase
}

// ETA is the published estimate for one entity.
type ETA struct {
	EntityID   string  `json:"entityId"`
	EtaMinutes int     `json:"etaMinutes"`
	DistanceKm float64 `json:"distanceKm"`
}

// ETASink receives ETA/distance figures whenever a route refresh succeeds.
type ETASink interface {
	PublishETA(e ETA)
}

// Router is the routing query. *Client implements it.
type Router interface {
	Route(ctx context.Context, waypoints ...geo.Point) (*Route, error)
}

// Metrics receives refresher counters; nil disables collection.
type Metrics interface {
	RouteFetched()
	RouteFetchFailed()
	RouteThrottled()
}

type refreshState struct {
	phase Phase
	at    time.Time
}

// Refresher keeps route polylines and ETA figures current without
// overwhelming the routing API. Calls for the same entity and phase within
// the minimum interval are skipped and the rendered route left as-is; a
// phase switch invalidates the old window and fetches immediately.
type Refresher struct {
	router      Router
	canvas      canvas.Canvas
	sink        ETASink
	minInterval time.Duration
	metrics     Metrics

	now func() time.Time

	mu   sync.Mutex
	last map[string]refreshState
}

func NewRefresher(router Router, c canvas.Canvas, sink ETASink, minInterval time.Duration, m Metrics) *Refresher {
	if minInterval <= 0 {
		minInterval = 10 * time.Second
	}
	return &Refresher{
		router:      router,
		canvas:      c,
		sink:        sink,
		minInterval: minInterval,
		metrics:     m,
		now:         time.Now,
		last:        make(map[string]refreshState),
	}
}

// MaybeRefresh recomputes the route from current to dest unless the throttle
// window for this entity and phase is still closed. Fetch failures are
// logged and leave the previous polyline and ETA displayed; the next retry
// happens when the window naturally reopens.
func (rf *Refresher) MaybeRefresh(ctx context.Context, id string, current geo.Point, dest Destination) {
	now := rf.now()

	rf.mu.Lock()
	st, ok := rf.last[id]
	if ok && st.phase == dest.Phase && now.Sub(st.at) < rf.minInterval {
		rf.mu.Unlock()
		if rf.metrics != nil {
			rf.metrics.RouteThrottled()
		}
		return
	}
	// Reserve the window before fetching so concurrent samples cannot start
	// a duplicate fetch. A failed fetch keeps the window; retry cadence is
	// bounded by the fixed interval, not backoff.
	rf.last[id] = refreshState{phase: dest.Phase, at: now}
	rf.mu.Unlock()

	r, err := rf.router.Route(ctx, current, dest.Point)
	if err != nil {
		if rf.metrics != nil {
			rf.metrics.RouteFetchFailed()
		}
		log.Printf("route refresh for %s (%s) failed: %v", id, dest.Phase, err)
		return
	}
	if rf.metrics != nil {
		rf.metrics.RouteFetched()
	}

	rf.canvas.SetPolyline(id, r.Geometry)
	if rf.sink != nil {
		rf.sink.PublishETA(ETA{
			EntityID:   id,
			EtaMinutes: int(math.Ceil(r.DurationSec / 60)),
			DistanceKm: math.Round(r.DistanceMeters/100) / 10,
		})
	}
}

// Forget drops the throttle state for an entity. Called on entity removal so
// a reappearing id starts with a fresh window.
func (rf *Refresher) Forget(id string) {
	rf.mu.Lock()
	delete(rf.last, id)
	rf.mu.Unlock()
}
