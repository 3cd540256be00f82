package track

import (
	"context"
	"sync"
	"time"
)

// FrameMetrics observes per-frame step durations; nil disables collection.
type FrameMetrics interface {
	StepObserve(d time.Duration)
}

// Animator is the frame loop: it calls Registry.Step roughly once per display
// refresh until stopped. It is the only writer of rendered positions.
type Animator struct {
	reg      *Registry
	interval time.Duration
	metrics  FrameMetrics

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAnimator(reg *Registry, interval time.Duration, m FrameMetrics) *Animator {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &Animator{reg: reg, interval: interval, metrics: m}
}

// Start launches the frame loop. It returns immediately.
func (a *Animator) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	a.cancel = cancel
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		tick := time.NewTicker(a.interval)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-tick.C:
				a.reg.Step(now)
				if a.metrics != nil {
					a.metrics.StepObserve(time.Since(now))
				}
			}
		}
	}()
}

// Stop cancels the frame loop and waits for it to exit.
func (a *Animator) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
}
