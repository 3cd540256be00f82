package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"delivery-tracker/internal/api"
	"delivery-tracker/internal/config"
	"delivery-tracker/internal/db"
	"delivery-tracker/internal/geo"
	"delivery-tracker/internal/metrics"
	"delivery-tracker/internal/publisher"
	"delivery-tracker/internal/route"
	"delivery-tracker/internal/store"
	"delivery-tracker/internal/stream"
	"delivery-tracker/internal/track"
	"delivery-tracker/internal/viewport"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mcol := metrics.NewCollector(cfg.FrameInterval, cfg.TweenDuration, cfg.Debounce, cfg.RouteRefresh)
	var metricsSrv, apiSrv interface{ Shutdown(context.Context) error }
	if cfg.MetricsAddr != "" {
		metricsSrv = mcol.Serve(cfg.MetricsAddr)
	}

	// Delivery database is optional; without it the tracker still smooths
	// and relays markers but draws no routes.
	var sqlDB *sql.DB
	var resolver *db.Resolver
	if cfg.DatabaseURL != "" {
		sqlDB, err = db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db open error: %v", err)
		}
		defer sqlDB.Close()
		if err := db.Ping(ctx, sqlDB); err != nil {
			log.Fatalf("db ping error: %v", err)
		}
		resolver = db.NewResolver(sqlDB, 15*time.Second)
	} else {
		log.Printf("no database configured; route refresh disabled")
	}

	var st *store.Store
	if cfg.RedisAddr != "" {
		st, err = store.New(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			log.Fatalf("redis error: %v", err)
		}
		defer st.Close()
	}

	nc, err := stream.Connect(cfg.NATSURL, connMetrics{mcol})
	if err != nil {
		log.Fatalf("nats error: %v", err)
	}
	defer nc.Close()

	// The headless canvas: every marker/polyline/viewport mutation becomes a
	// view.* message for browser map clients.
	pub := publisher.New(nc, cfg.LogNATSSubjects, pubMetrics{mcol})

	sinks := multiSink{pub}
	if st != nil {
		sinks = append(sinks, st)
	}
	refresher := route.NewRefresher(route.NewClient(cfg.OSRMURL), pub, sinks, cfg.RouteRefresh, routeMetrics{mcol})

	var persist viewport.Persistence
	if st != nil {
		persist = st
	}
	view := viewport.NewController(pub, persist, viewMetrics{mcol})
	view.RestoreSaved()

	var reg *track.Registry
	obs := &entityObserver{view: view, refresher: refresher, resolver: resolver}

	// On every fresh sample of a tracked entity: resolve its delivery, pin
	// the endpoints, and refresh the route to the current phase's target.
	// The refresher enforces its own throttle; fetches run off the NATS
	// callback goroutine so a slow routing API never stalls the stream.
	var pinOnce sync.Map
	hook := func(id string, current geo.Point, _ track.Sample) {
		if resolver == nil {
			return
		}
		rctx, rcancel := context.WithTimeout(ctx, 10*time.Second)
		d, err := resolver.Resolve(rctx, id)
		rcancel()
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				log.Printf("no delivery for entity %s; removing", id)
				reg.OnEntityRemoved(id)
			} else {
				log.Printf("resolve delivery %s: %v", id, err)
			}
			return
		}
		if d.Terminal() {
			reg.OnEntityStatusTerminal(id)
			return
		}
		if _, done := pinOnce.LoadOrStore(id, true); !done {
			view.AddPin(id+":pickup", d.Pickup)
			view.AddPin(id+":dropoff", d.Dropoff)
		}
		go func() {
			fctx, fcancel := context.WithTimeout(ctx, 10*time.Second)
			defer fcancel()
			refresher.MaybeRefresh(fctx, id, current, d.Destination())
		}()
	}

	params := track.Params{
		TweenDuration: cfg.TweenDuration,
		Debounce:      cfg.Debounce,
		MinMoveKm:     cfg.MinMoveMeters / 1000,
	}
	reg = track.NewRegistry(pub, params, obs, hook, trackMetrics{mcol})
	obs.pins = &pinOnce

	animator := track.NewAnimator(reg, cfg.FrameInterval, frameMetrics{mcol})
	animator.Start(ctx)

	sub := stream.NewSubscriber(nc)
	if err := sub.SubscribePositions(cfg.PositionSubject, func(s track.Sample) {
		reg.OnSample(s.EntityID, s)
	}); err != nil {
		log.Fatalf("subscribe positions: %v", err)
	}
	if err := sub.SubscribeStatus(cfg.StatusSubject, func(msg stream.StatusMessage) {
		if resolver != nil {
			// Phase may have flipped; force a re-resolve on the next sample.
			resolver.Evict(msg.EntityID)
		}
		if msg.Status == db.StatusDelivered || msg.Status == db.StatusCancelled {
			reg.OnEntityStatusTerminal(msg.EntityID)
		}
	}); err != nil {
		log.Fatalf("subscribe status: %v", err)
	}
	// Map clients relay their camera moves back so user pans survive a
	// reload; programmatic fit echoes are filtered by the controller.
	if err := sub.SubscribeCamera(cfg.CameraSubject, func(m stream.CameraMessage) {
		view.OnCameraMove(m.Bounds, m.Programmatic)
	}); err != nil {
		log.Fatalf("subscribe camera: %v", err)
	}
	log.Printf("tracking positions on %s, status on %s, camera on %s",
		cfg.PositionSubject, cfg.StatusSubject, cfg.CameraSubject)

	// Periodically reconcile tracked markers against the delivery table so
	// entities whose feed went quiet after completion do not linger.
	var reconcileWG sync.WaitGroup
	if sqlDB != nil {
		reconcileWG.Add(1)
		go func() {
			defer reconcileWG.Done()
			reconcile(ctx, sqlDB, reg, cfg.ReconcileInterval)
		}()
	}

	apiSrv = api.New(reg, st, sqlDB).Serve(cfg.APIAddr)

	// Block until context cancelled
	<-ctx.Done()
	sub.Close()
	animator.Stop()
	reconcileWG.Wait()
	shutdownCtx, sdCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer sdCancel()
	if apiSrv != nil {
		_ = apiSrv.Shutdown(shutdownCtx)
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	log.Println("shutdown complete")
}

// reconcile removes markers whose delivery reached a terminal status or
// disappeared, even when the position feed never said so.
func reconcile(ctx context.Context, sqlDB *sql.DB, reg *track.Registry, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			active, err := db.FetchActiveDeliveryIDs(ctx, sqlDB)
			if err != nil {
				log.Printf("reconcile: %v", err)
				continue
			}
			for _, id := range reg.TrackedIDs() {
				if !active[id] {
					log.Printf("reconcile: delivery %s no longer active, removing", id)
					reg.OnEntityStatusTerminal(id)
				}
			}
		}
	}
}

// entityObserver fans entity-set changes out to the viewport controller and
// clears per-entity route/resolver state on removal.
type entityObserver struct {
	view      *viewport.Controller
	refresher *route.Refresher
	resolver  *db.Resolver
	pins      *sync.Map
}

func (o *entityObserver) EntityAdded(id string, p geo.Point) {
	o.view.EntityAdded(id, p)
}

func (o *entityObserver) EntityRemoved(id string) {
	o.view.EntityRemoved(id)
	o.refresher.Forget(id)
	if o.resolver != nil {
		o.resolver.Evict(id)
	}
	if o.pins != nil {
		if _, ok := o.pins.LoadAndDelete(id); ok {
			o.view.RemovePin(id + ":pickup")
			o.view.RemovePin(id + ":dropoff")
		}
	}
}

// multiSink fans ETA updates out to every configured sink.
type multiSink []route.ETASink

func (m multiSink) PublishETA(e route.ETA) {
	for _, s := range m {
		s.PublishETA(e)
	}
}

// Adapters from the package-level metric interfaces to the Collector.

type connMetrics struct{ c *metrics.Collector }

func (m connMetrics) SetConnected(b bool) {
	if b {
		m.c.NATSConnected.Set(1)
	} else {
		m.c.NATSConnected.Set(0)
	}
}

type pubMetrics struct{ c *metrics.Collector }

func (m pubMetrics) PublishedInc()                  { m.c.NATSPublished.Inc() }
func (m pubMetrics) PublishErrInc()                 { m.c.NATSPublishErrs.Inc() }
func (m pubMetrics) PublishObserve(d time.Duration) { m.c.PublishDuration.Observe(d.Seconds()) }

type trackMetrics struct{ c *metrics.Collector }

func (m trackMetrics) SampleReceived()             { m.c.SamplesReceived.Inc() }
func (m trackMetrics) SampleDropped(reason string) { m.c.SamplesDropped.WithLabelValues(reason).Inc() }
func (m trackMetrics) ActiveEntities(n int)        { m.c.ActiveEntities.Set(float64(n)) }
func (m trackMetrics) TargetResolved(r track.TargetResult) {
	switch r {
	case track.TargetAccepted:
		m.c.TargetsAccepted.Inc()
	case track.TargetDebounced:
		m.c.TargetsRejected.WithLabelValues("debounce").Inc()
	case track.TargetBelowThreshold:
		m.c.TargetsRejected.WithLabelValues("threshold").Inc()
	}
}

type routeMetrics struct{ c *metrics.Collector }

func (m routeMetrics) RouteFetched()     { m.c.RouteFetches.Inc() }
func (m routeMetrics) RouteFetchFailed() { m.c.RouteFetchErrs.Inc() }
func (m routeMetrics) RouteThrottled()   { m.c.RouteThrottled.Inc() }

type viewMetrics struct{ c *metrics.Collector }

func (m viewMetrics) ViewportFit() { m.c.ViewportFits.Inc() }

type frameMetrics struct{ c *metrics.Collector }

func (m frameMetrics) StepObserve(d time.Duration) { m.c.StepDuration.Observe(d.Seconds()) }
