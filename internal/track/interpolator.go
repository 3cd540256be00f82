package track

import (
	"time"

	"delivery-tracker/internal/geo"
)

// Params tunes the interpolation gates and tween duration. Position feeds are
// typically a few seconds apart, so a 2s tween keeps a marker in continuous
// motion without ever visibly catching up in a jump.
type Params struct {
	TweenDuration time.Duration
	Debounce      time.Duration
	MinMoveKm     float64
}

func DefaultParams() Params {
	return Params{
		TweenDuration: 2 * time.Second,
		Debounce:      500 * time.Millisecond,
		MinMoveKm:     0.001,
	}
}

// TargetResult classifies the outcome of a SetTarget call.
type TargetResult int

const (
	TargetAccepted TargetResult = iota
	TargetDebounced
	TargetBelowThreshold
)

// Interpolator animates one entity's marker between sparse position updates.
// It owns the current (rendered), start and target positions and advances the
// tween one display frame at a time via Tick. Not safe for concurrent use on
// its own; the owning Registry serializes all access.
type Interpolator struct {
	params Params
	now    func() time.Time

	current geo.Point
	target  geo.Point
	start   geo.Point

	startTime    time.Time
	lastAccepted time.Time
	accepted     bool
	animating    bool
}

// NewInterpolator seeds current = target = start to the given point. No
// animation runs until the first accepted SetTarget.
func NewInterpolator(p geo.Point, params Params) *Interpolator {
	return &Interpolator{
		params:  params,
		now:     time.Now,
		current: p,
		target:  p,
		start:   p,
	}
}

// SetTarget proposes a new target position. Updates arriving within the
// debounce window of the last accepted call, or closer than MinMoveKm to the
// currently rendered position, are rejected without touching any state. On
// acceptance the tween restarts from the position currently on screen, so a
// new update redirects smoothly mid-flight instead of snapping.
func (it *Interpolator) SetTarget(p geo.Point) TargetResult {
	now := it.now()
	if it.accepted && now.Sub(it.lastAccepted) < it.params.Debounce {
		return TargetDebounced
	}
	if geo.DistanceKm(it.current, p) < it.params.MinMoveKm {
		return TargetBelowThreshold
	}
	it.start = it.current
	it.target = p
	it.startTime = now
	it.lastAccepted = now
	it.accepted = true
	it.animating = true
	return TargetAccepted
}

// Tick advances the tween to the given frame time and returns the rendered
// position. The second return reports whether the animation was live for this
// frame; callers skip the canvas write when it is false. At full progress the
// rendered position equals the target exactly and the animation stops.
func (it *Interpolator) Tick(now time.Time) (geo.Point, bool) {
	if !it.animating {
		return it.current, false
	}
	elapsed := now.Sub(it.startTime)
	progress := float64(elapsed) / float64(it.params.TweenDuration)
	if progress < 0 {
		progress = 0
	}
	if progress >= 1 {
		it.current = it.target
		it.animating = false
		return it.current, true
	}
	it.current = geo.Lerp(it.start, it.target, easeInOutQuad(progress))
	return it.current, true
}

// Stop cancels the animation without altering the rendered position. Must be
// called when the owning entity is torn down so no later frame writes to a
// removed handle.
func (it *Interpolator) Stop() {
	it.animating = false
}

func (it *Interpolator) Current() geo.Point { return it.current }
func (it *Interpolator) Target() geo.Point  { return it.target }
func (it *Interpolator) Animating() bool    { return it.animating }

func easeInOutQuad(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return -1 + (4-2*t)*t
}
