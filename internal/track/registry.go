package track

import (
	"sync"
	"time"

	"delivery-tracker/internal/canvas"
	"delivery-tracker/internal/geo"
)

// EntityObserver is notified when the set of tracked entity ids changes.
// Position ticks never reach the observer.
type EntityObserver interface {
	EntityAdded(id string, p geo.Point)
	EntityRemoved(id string)
}

// SampleHook runs for every valid, fresh sample of a tracked entity (after
// creation or SetTarget). current is the position rendered at that moment.
type SampleHook func(id string, current geo.Point, s Sample)

// Metrics receives registry counters. Implementations must be safe for
// concurrent use; nil disables collection.
type Metrics interface {
	SampleReceived()
	SampleDropped(reason string)
	TargetResolved(r TargetResult)
	ActiveEntities(n int)
}

type entry struct {
	interp     *Interpolator
	handle     canvas.MarkerHandle
	lastSample time.Time
	heading    float64
	speed      float64
}

// Registry owns the mapping from entity id to (interpolator, visual handle)
// and mediates creation, update and removal against the position stream. All
// canvas marker mutations funnel through here. Per entity the lifecycle is
// absent -> tracked -> removed; a reappearing id gets a fresh interpolator
// and handle.
type Registry struct {
	mu       sync.Mutex
	canvas   canvas.Canvas
	params   Params
	now      func() time.Time
	entries  map[string]*entry
	observer EntityObserver
	hook     SampleHook
	metrics  Metrics
}

func NewRegistry(c canvas.Canvas, params Params, obs EntityObserver, hook SampleHook, m Metrics) *Registry {
	return &Registry{
		canvas:   c,
		params:   params,
		now:      time.Now,
		entries:  make(map[string]*entry),
		observer: obs,
		hook:     hook,
		metrics:  m,
	}
}

// OnSample feeds one position update. Invalid coordinates are dropped
// silently, as are samples whose timestamp regressed behind the last one seen
// for the entity (the push channel may replay across reconnects). First
// sighting creates the marker and a seeded interpolator; later samples go
// through the interpolator's own debounce and threshold gates.
func (r *Registry) OnSample(id string, s Sample) {
	if r.metrics != nil {
		r.metrics.SampleReceived()
	}
	if id == "" || !s.Valid() {
		if r.metrics != nil {
			r.metrics.SampleDropped("invalid")
		}
		return
	}

	r.mu.Lock()
	e, ok := r.entries[id]
	if ok && !s.Timestamp.IsZero() && s.Timestamp.Before(e.lastSample) {
		r.mu.Unlock()
		if r.metrics != nil {
			r.metrics.SampleDropped("stale")
		}
		return
	}

	var created bool
	var current geo.Point
	if !ok {
		handle := r.canvas.AddMarker(id, s.Point())
		interp := NewInterpolator(s.Point(), r.params)
		interp.now = r.now
		e = &entry{interp: interp, handle: handle}
		r.entries[id] = e
		created = true
		if r.metrics != nil {
			r.metrics.ActiveEntities(len(r.entries))
		}
	} else {
		res := e.interp.SetTarget(s.Point())
		if r.metrics != nil {
			r.metrics.TargetResolved(res)
		}
	}
	if !s.Timestamp.IsZero() {
		e.lastSample = s.Timestamp
	}
	e.heading = s.Heading
	e.speed = s.SpeedMps
	current = e.interp.Current()
	r.mu.Unlock()

	// Callbacks run outside the lock; they may mutate the canvas or call
	// back into the registry.
	if created && r.observer != nil {
		r.observer.EntityAdded(id, s.Point())
	}
	if r.hook != nil {
		r.hook(id, current, s)
	}
}

// OnEntityRemoved tears down an entity: the pending animation is stopped
// before the handle is removed so no stale frame writes to a dead marker.
// A no-op for ids that are not tracked.
func (r *Registry) OnEntityRemoved(id string) {
	r.remove(id, false)
}

// OnEntityStatusTerminal removes the entity after a terminal domain status
// transition (delivered, cancelled) and clears its route polyline as well.
func (r *Registry) OnEntityStatusTerminal(id string) {
	r.remove(id, true)
}

func (r *Registry) remove(id string, clearRoute bool) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		if clearRoute {
			r.canvas.RemovePolyline(id)
		}
		return
	}
	e.interp.Stop()
	delete(r.entries, id)
	if r.metrics != nil {
		r.metrics.ActiveEntities(len(r.entries))
	}
	r.mu.Unlock()

	e.handle.Remove()
	if clearRoute {
		r.canvas.RemovePolyline(id)
	}
	if r.observer != nil {
		r.observer.EntityRemoved(id)
	}
}

// Step advances every live tween by one display frame and writes the new
// positions to their handles. Entries are re-checked under the lock, so a
// removal racing with the frame loop can never write to a removed handle.
func (r *Registry) Step(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if p, live := e.interp.Tick(now); live {
			e.handle.SetPosition(p)
		}
	}
}

// EntityState is a point-in-time view of one tracked entity. Heading is the
// device-reported value from the last sample; when the device sent none, the
// bearing toward the target is substituted while a tween is live.
type EntityState struct {
	ID         string    `json:"id"`
	Current    geo.Point `json:"current"`
	Target     geo.Point `json:"target"`
	Heading    float64   `json:"heading,omitempty"`
	SpeedMps   float64   `json:"speedMps,omitempty"`
	Animating  bool      `json:"animating"`
	LastSample time.Time `json:"lastSample,omitempty"`
}

// Snapshot returns the state of all tracked entities.
func (r *Registry) Snapshot() []EntityState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EntityState, 0, len(r.entries))
	for id, e := range r.entries {
		st := EntityState{
			ID:         id,
			Current:    e.interp.Current(),
			Target:     e.interp.Target(),
			Heading:    e.heading,
			SpeedMps:   e.speed,
			Animating:  e.interp.Animating(),
			LastSample: e.lastSample,
		}
		if st.Heading == 0 && st.Animating {
			st.Heading = geo.Bearing(st.Current, st.Target)
		}
		out = append(out, st)
	}
	return out
}

// TrackedIDs returns the ids currently tracked.
func (r *Registry) TrackedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of tracked entities.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
