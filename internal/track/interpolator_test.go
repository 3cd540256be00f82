package track

import (
	"testing"
	"time"

	"delivery-tracker/internal/geo"
)

type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time               { return c.t }
func (c *fakeClock) Advance(d time.Duration)      { c.t = c.t.Add(d) }
func (c *fakeClock) At(d time.Duration) time.Time { return c.t.Add(d) }

var (
	origin = geo.Point{Lat: 14.5995, Lng: 121.0340}
	farA   = geo.Point{Lat: 14.6010, Lng: 121.0360} // ~250m from origin
	farB   = geo.Point{Lat: 14.6030, Lng: 121.0310} // ~500m from origin
)

func newTestInterpolator(clk *fakeClock) *Interpolator {
	it := NewInterpolator(origin, DefaultParams())
	it.now = clk.Now
	return it
}

func TestSetTargetFirstCallAccepted(t *testing.T) {
	clk := newFakeClock()
	it := newTestInterpolator(clk)
	if res := it.SetTarget(farA); res != TargetAccepted {
		t.Fatalf("first SetTarget = %v, want accepted", res)
	}
	if !it.Animating() {
		t.Error("animation should be live after accepted target")
	}
	if it.Target() != farA {
		t.Errorf("target = %v, want %v", it.Target(), farA)
	}
}

func TestSetTargetThresholdGate(t *testing.T) {
	clk := newFakeClock()
	it := newTestInterpolator(clk)

	// ~0.4m north of the seeded position: below the 1m gate
	jitter := geo.Point{Lat: origin.Lat + 0.000004, Lng: origin.Lng}
	if res := it.SetTarget(jitter); res != TargetBelowThreshold {
		t.Fatalf("SetTarget(jitter) = %v, want below-threshold", res)
	}
	if it.Animating() {
		t.Error("rejected target must not start an animation")
	}
	if it.Target() != origin {
		t.Errorf("rejected target must not alter target: got %v", it.Target())
	}
}

func TestSetTargetDebounceGate(t *testing.T) {
	clk := newFakeClock()
	it := newTestInterpolator(clk)

	if res := it.SetTarget(farA); res != TargetAccepted {
		t.Fatalf("first SetTarget = %v, want accepted", res)
	}
	clk.Advance(300 * time.Millisecond)
	// Far away, but inside the 500ms debounce window
	if res := it.SetTarget(farB); res != TargetDebounced {
		t.Fatalf("SetTarget within debounce = %v, want debounced", res)
	}
	if it.Target() != farA {
		t.Errorf("debounced call must not alter target: got %v", it.Target())
	}
	clk.Advance(300 * time.Millisecond)
	if res := it.SetTarget(farB); res != TargetAccepted {
		t.Fatalf("SetTarget after debounce window = %v, want accepted", res)
	}
}

func TestEasedConvergence(t *testing.T) {
	clk := newFakeClock()
	it := newTestInterpolator(clk)
	start := clk.Now()

	if res := it.SetTarget(farA); res != TargetAccepted {
		t.Fatalf("SetTarget = %v, want accepted", res)
	}

	// t=0: still at the pre-call position
	p, live := it.Tick(start)
	if !live {
		t.Fatal("tween should be live at t=0")
	}
	if p != origin {
		t.Errorf("current at t=0 = %v, want %v", p, origin)
	}

	// t=1000ms: strictly between start and target
	mid, live := it.Tick(start.Add(1000 * time.Millisecond))
	if !live {
		t.Fatal("tween should be live at t=1000ms")
	}
	if mid == origin || mid == farA {
		t.Errorf("current at t=1000ms = %v, want strictly between %v and %v", mid, origin, farA)
	}
	if mid.Lat <= origin.Lat || mid.Lat >= farA.Lat {
		t.Errorf("current lat %v not between %v and %v", mid.Lat, origin.Lat, farA.Lat)
	}

	// t=2000ms: exactly the target, tween over
	end, live := it.Tick(start.Add(2000 * time.Millisecond))
	if !live {
		t.Fatal("final frame should still report live so the position is written")
	}
	if end != farA {
		t.Errorf("current at t=2000ms = %v, want exactly %v", end, farA)
	}
	if it.Animating() {
		t.Error("animation must stop at full progress")
	}
	if _, live := it.Tick(start.Add(3000 * time.Millisecond)); live {
		t.Error("tick after completion must be a no-op")
	}
}

func TestRedirectMidFlightStartsFromCurrent(t *testing.T) {
	clk := newFakeClock()
	it := newTestInterpolator(clk)
	start := clk.Now()

	if res := it.SetTarget(farA); res != TargetAccepted {
		t.Fatalf("SetTarget(farA) = %v, want accepted", res)
	}
	clk.Advance(600 * time.Millisecond)
	atRedirect, _ := it.Tick(clk.Now())

	if res := it.SetTarget(farB); res != TargetAccepted {
		t.Fatalf("SetTarget(farB) = %v, want accepted", res)
	}
	if it.start != atRedirect {
		t.Errorf("redirect start = %v, want position at redirect %v", it.start, atRedirect)
	}
	if it.start == origin || it.start == farA {
		t.Error("redirect must start from current, not the original start or old target")
	}

	// New tween converges on farB from the redirect point
	end, _ := it.Tick(start.Add(600*time.Millisecond + 2*time.Second))
	if end != farB {
		t.Errorf("current after redirect tween = %v, want %v", end, farB)
	}
}

func TestStopKeepsCurrent(t *testing.T) {
	clk := newFakeClock()
	it := newTestInterpolator(clk)

	it.SetTarget(farA)
	p, _ := it.Tick(clk.At(1000 * time.Millisecond))
	it.Stop()
	if it.Animating() {
		t.Error("Stop must cancel the animation")
	}
	if it.Current() != p {
		t.Errorf("Stop must not alter current: got %v, want %v", it.Current(), p)
	}
	if _, live := it.Tick(clk.At(5 * time.Second)); live {
		t.Error("tick after Stop must be a no-op")
	}
}

func TestTickBeforeStartClamps(t *testing.T) {
	clk := newFakeClock()
	it := newTestInterpolator(clk)
	it.SetTarget(farA)
	p, live := it.Tick(clk.At(-100 * time.Millisecond))
	if !live || p != origin {
		t.Errorf("tick before start = (%v, %v), want (%v, true)", p, live, origin)
	}
}

func TestEaseInOutQuad(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 0},
		{0.25, 0.125},
		{0.5, 0.5},
		{0.75, 0.875},
		{1, 1},
	}
	for _, c := range cases {
		if got := easeInOutQuad(c.in); got != c.want {
			t.Errorf("easeInOutQuad(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
