package viewport

import (
	"log"
	"sync"

	"delivery-tracker/internal/canvas"
	"delivery-tracker/internal/geo"
)

// Persistence stores the user's last viewport across sessions. Load returns
// false when nothing is saved.
type Persistence interface {
	LoadViewport() (canvas.Bounds, bool, error)
	SaveViewport(b canvas.Bounds) error
}

// Metrics receives a count of applied bounds-fits; nil disables collection.
type Metrics interface {
	ViewportFit()
}

// Controller fits the map camera to the set of active pins and entities. A
// fit is recomputed only when the identity set changes, never on a position
// tick, so the camera does not fight the user's manual pan and zoom. Fits
// applied by the controller are flagged programmatic so the camera-move
// handler does not persist them over the user's saved viewport.
type Controller struct {
	canvas  canvas.Canvas
	persist Persistence
	metrics Metrics

	mu           sync.Mutex
	pins         map[string]geo.Point
	entities     map[string]geo.Point
	programmatic bool
}

func NewController(c canvas.Canvas, persist Persistence, m Metrics) *Controller {
	return &Controller{
		canvas:   c,
		persist:  persist,
		metrics:  m,
		pins:     make(map[string]geo.Point),
		entities: make(map[string]geo.Point),
	}
}

// AddPin registers a static pin (pickup or dropoff marker). Pins are created
// once and never move.
func (c *Controller) AddPin(id string, p geo.Point) {
	c.mu.Lock()
	if _, ok := c.pins[id]; ok {
		c.mu.Unlock()
		return
	}
	c.pins[id] = p
	c.mu.Unlock()
	c.refit()
}

// RemovePin drops a static pin.
func (c *Controller) RemovePin(id string) {
	c.mu.Lock()
	if _, ok := c.pins[id]; !ok {
		c.mu.Unlock()
		return
	}
	delete(c.pins, id)
	c.mu.Unlock()
	c.refit()
}

// EntityAdded implements track.EntityObserver. A known id only updates the
// stored position; the fit is recomputed for new ids alone.
func (c *Controller) EntityAdded(id string, p geo.Point) {
	c.mu.Lock()
	_, existed := c.entities[id]
	c.entities[id] = p
	c.mu.Unlock()
	if existed {
		return
	}
	c.refit()
}

// EntityRemoved implements track.EntityObserver.
func (c *Controller) EntityRemoved(id string) {
	c.mu.Lock()
	if _, ok := c.entities[id]; !ok {
		c.mu.Unlock()
		return
	}
	delete(c.entities, id)
	c.mu.Unlock()
	c.refit()
}

// OnCameraMove handles camera-move events relayed back from the map clients.
// User-driven moves are persisted; programmatic fits (our own flag or the
// client's) are not.
func (c *Controller) OnCameraMove(b canvas.Bounds, programmatic bool) {
	c.mu.Lock()
	own := c.programmatic
	c.programmatic = false
	c.mu.Unlock()
	if programmatic || own {
		return
	}
	if c.persist == nil {
		return
	}
	if err := c.persist.SaveViewport(b); err != nil {
		log.Printf("save viewport: %v", err)
	}
}

// RestoreSaved applies the persisted viewport, if any. Returns whether one
// was applied. Called once at startup before any entities are tracked.
func (c *Controller) RestoreSaved() bool {
	if c.persist == nil {
		return false
	}
	b, ok, err := c.persist.LoadViewport()
	if err != nil {
		log.Printf("load viewport: %v", err)
		return false
	}
	if !ok {
		return false
	}
	c.applyFit(b)
	return true
}

func (c *Controller) refit() {
	c.mu.Lock()
	pts := make([]geo.Point, 0, len(c.pins)+len(c.entities))
	for _, p := range c.pins {
		pts = append(pts, p)
	}
	for _, p := range c.entities {
		pts = append(pts, p)
	}
	c.mu.Unlock()

	b, ok := canvas.BoundsOf(pts)
	if !ok {
		return
	}
	c.applyFit(b)
}

func (c *Controller) applyFit(b canvas.Bounds) {
	c.mu.Lock()
	c.programmatic = true
	c.mu.Unlock()
	c.canvas.FitBounds(b)
	if c.metrics != nil {
		c.metrics.ViewportFit()
	}
}
