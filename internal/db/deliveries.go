package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"delivery-tracker/internal/geo"
	"delivery-tracker/internal/route"
)

// Delivery statuses as stored by the host application. Anything at or past
// picked_up routes to the dropoff; delivered and cancelled are terminal.
const (
	StatusPending   = "pending"
	StatusAssigned  = "assigned"
	StatusEnRoute   = "en_route"
	StatusPickedUp  = "picked_up"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"
)

// Delivery is the host-side order record the tracker needs: where the driver
// is headed on each phase, and whether tracking should continue at all.
type Delivery struct {
	ID      string
	Status  string
	Pickup  geo.Point
	Dropoff geo.Point
}

// Terminal reports whether the delivery is in a final status.
func (d Delivery) Terminal() bool {
	return d.Status == StatusDelivered || d.Status == StatusCancelled
}

// Destination resolves the current routing target from the delivery phase:
// pickup until the parcel is picked up, dropoff afterwards.
func (d Delivery) Destination() route.Destination {
	if d.Status == StatusPickedUp {
		return route.Destination{Point: d.Dropoff, Phase: route.PhaseToDropoff}
	}
	return route.Destination{Point: d.Pickup, Phase: route.PhaseToPickup}
}

// ErrNotFound is returned when no delivery exists for an id.
var ErrNotFound = errors.New("delivery not found")

// FetchDelivery loads one delivery by id.
func FetchDelivery(ctx context.Context, db *sql.DB, id string) (*Delivery, error) {
	const q = `
SELECT id, status, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng
FROM deliveries WHERE id = $1`
	var d Delivery
	err := db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.Status, &d.Pickup.Lat, &d.Pickup.Lng, &d.Dropoff.Lat, &d.Dropoff.Lng)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query delivery %s: %w", id, err)
	}
	return &d, nil
}

// FetchActiveDeliveryIDs returns the set of deliveries still worth tracking.
func FetchActiveDeliveryIDs(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	const q = `SELECT id FROM deliveries WHERE status NOT IN ($1, $2)`
	rows, err := db.QueryContext(ctx, q, StatusDelivered, StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("query active deliveries: %w", err)
	}
	defer rows.Close()
	active := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		active[id] = true
	}
	return active, rows.Err()
}

// Resolver caches delivery lookups so a sample every couple of seconds does
// not turn into a query every couple of seconds. Entries expire on a short
// TTL so phase changes are picked up promptly.
type Resolver struct {
	db  *sql.DB
	ttl time.Duration

	mu    sync.Mutex
	cache map[string]cachedDelivery
}

type cachedDelivery struct {
	d  *Delivery
	at time.Time
}

func NewResolver(db *sql.DB, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &Resolver{db: db, ttl: ttl, cache: make(map[string]cachedDelivery)}
}

// Resolve returns the delivery for an entity id, from cache when fresh.
func (r *Resolver) Resolve(ctx context.Context, id string) (*Delivery, error) {
	now := time.Now()
	r.mu.Lock()
	if c, ok := r.cache[id]; ok && now.Sub(c.at) < r.ttl {
		r.mu.Unlock()
		return c.d, nil
	}
	r.mu.Unlock()

	d, err := FetchDelivery(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.cache[id] = cachedDelivery{d: d, at: now}
	r.mu.Unlock()
	return d, nil
}

// Evict drops the cached entry for an id, forcing the next Resolve to hit
// the database.
func (r *Resolver) Evict(id string) {
	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()
}
