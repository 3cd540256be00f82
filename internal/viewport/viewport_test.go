package viewport

import (
	"testing"

	"delivery-tracker/internal/canvas"
	"delivery-tracker/internal/geo"
)

type fakeCanvas struct {
	fits []canvas.Bounds
}

func (c *fakeCanvas) AddMarker(id string, p geo.Point) canvas.MarkerHandle { return nil }
func (c *fakeCanvas) SetPolyline(id string, pts []geo.Point)              {}
func (c *fakeCanvas) RemovePolyline(id string)                            {}
func (c *fakeCanvas) FitBounds(b canvas.Bounds)                           { c.fits = append(c.fits, b) }

type fakePersistence struct {
	saved  []canvas.Bounds
	stored *canvas.Bounds
}

func (p *fakePersistence) SaveViewport(b canvas.Bounds) error {
	p.saved = append(p.saved, b)
	return nil
}

func (p *fakePersistence) LoadViewport() (canvas.Bounds, bool, error) {
	if p.stored == nil {
		return canvas.Bounds{}, false, nil
	}
	return *p.stored, true, nil
}

var (
	pickupPin  = geo.Point{Lat: 14.6100, Lng: 121.0400}
	dropoffPin = geo.Point{Lat: 14.6500, Lng: 121.0600}
	driverPos  = geo.Point{Lat: 14.5995, Lng: 121.0340}
)

func TestFitOnlyOnIdentitySetChange(t *testing.T) {
	fc := &fakeCanvas{}
	c := NewController(fc, nil, nil)

	c.EntityAdded("D1", driverPos)
	if len(fc.fits) != 1 {
		t.Fatalf("fits = %d, want 1 after first entity", len(fc.fits))
	}

	// Position churn on a known id must never refit.
	for i := 0; i < 100; i++ {
		c.EntityAdded("D1", geo.Point{Lat: driverPos.Lat + float64(i)*0.0001, Lng: driverPos.Lng})
	}
	if len(fc.fits) != 1 {
		t.Errorf("fits = %d, want 1 after 100 position updates", len(fc.fits))
	}

	c.EntityAdded("D2", dropoffPin)
	if len(fc.fits) != 2 {
		t.Errorf("fits = %d, want 2 after a new id", len(fc.fits))
	}
}

func TestPinsFitOnce(t *testing.T) {
	fc := &fakeCanvas{}
	c := NewController(fc, nil, nil)

	c.AddPin("D1:pickup", pickupPin)
	c.AddPin("D1:pickup", pickupPin) // pins are created once, never moved
	if len(fc.fits) != 1 {
		t.Errorf("fits = %d, want 1 for duplicate pin", len(fc.fits))
	}
}

func TestFitCoversAllPoints(t *testing.T) {
	fc := &fakeCanvas{}
	c := NewController(fc, nil, nil)

	c.AddPin("D1:pickup", pickupPin)
	c.AddPin("D1:dropoff", dropoffPin)
	c.EntityAdded("D1", driverPos)

	b := fc.fits[len(fc.fits)-1]
	if b.SouthWest.Lat != driverPos.Lat || b.SouthWest.Lng != driverPos.Lng {
		t.Errorf("southwest = %v, want driver position", b.SouthWest)
	}
	if b.NorthEast.Lat != dropoffPin.Lat || b.NorthEast.Lng != dropoffPin.Lng {
		t.Errorf("northeast = %v, want dropoff pin", b.NorthEast)
	}
}

func TestRemovalRefits(t *testing.T) {
	fc := &fakeCanvas{}
	c := NewController(fc, nil, nil)

	c.EntityAdded("D1", driverPos)
	c.EntityAdded("D2", pickupPin)
	n := len(fc.fits)

	c.EntityRemoved("D1")
	if len(fc.fits) != n+1 {
		t.Errorf("fits = %d, want %d after removal", len(fc.fits), n+1)
	}
	c.EntityRemoved("D1") // unknown id now
	if len(fc.fits) != n+1 {
		t.Errorf("fits = %d, want %d after removing unknown id", len(fc.fits), n+1)
	}
}

func TestProgrammaticMoveNotPersisted(t *testing.T) {
	fc := &fakeCanvas{}
	p := &fakePersistence{}
	c := NewController(fc, p, nil)

	c.EntityAdded("D1", driverPos)
	fitted := fc.fits[0]

	// The camera-move event caused by our own fit must not clobber the
	// saved viewport.
	c.OnCameraMove(fitted, false)
	if len(p.saved) != 0 {
		t.Fatalf("saved = %d, want 0 after programmatic fit echo", len(p.saved))
	}

	// A genuine user pan is persisted.
	userBounds := canvas.Bounds{SouthWest: driverPos, NorthEast: pickupPin}
	c.OnCameraMove(userBounds, false)
	if len(p.saved) != 1 {
		t.Fatalf("saved = %d, want 1 after user move", len(p.saved))
	}

	// Canvas-flagged programmatic moves are skipped too.
	c.OnCameraMove(userBounds, true)
	if len(p.saved) != 1 {
		t.Errorf("saved = %d, want 1 after flagged programmatic move", len(p.saved))
	}
}

func TestRestoreSaved(t *testing.T) {
	fc := &fakeCanvas{}
	stored := canvas.Bounds{SouthWest: driverPos, NorthEast: dropoffPin}
	p := &fakePersistence{stored: &stored}
	c := NewController(fc, p, nil)

	if !c.RestoreSaved() {
		t.Fatal("RestoreSaved = false, want true")
	}
	if len(fc.fits) != 1 || fc.fits[0] != stored {
		t.Errorf("fits = %v, want restored bounds %v", fc.fits, stored)
	}

	empty := NewController(&fakeCanvas{}, &fakePersistence{}, nil)
	if empty.RestoreSaved() {
		t.Error("RestoreSaved = true with nothing stored")
	}
}
