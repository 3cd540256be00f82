package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	ActiveEntities prometheus.Gauge

	SamplesReceived prometheus.Counter
	SamplesDropped  *prometheus.CounterVec // reason label: invalid|stale
	TargetsAccepted prometheus.Counter
	TargetsRejected *prometheus.CounterVec // reason label: debounce|threshold

	RouteFetches   prometheus.Counter
	RouteFetchErrs prometheus.Counter
	RouteThrottled prometheus.Counter

	ViewportFits prometheus.Counter

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	StepDuration    prometheus.Histogram
	PublishDuration prometheus.Histogram

	FrameInterval prometheus.Gauge // seconds
	TweenDuration prometheus.Gauge // seconds
	Debounce      prometheus.Gauge // seconds
	RouteRefresh  prometheus.Gauge // seconds
}

func NewCollector(frameInterval, tweenDuration, debounce, routeRefresh time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveEntities: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_active_entities",
			Help: "Number of currently tracked entity markers.",
		}),
		SamplesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_samples_received_total",
			Help: "Total position samples received from the push channel.",
		}),
		SamplesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_samples_dropped_total",
			Help: "Samples dropped at the ingestion boundary.",
		}, []string{"reason"}),
		TargetsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_targets_accepted_total",
			Help: "Target updates accepted by the interpolator.",
		}),
		TargetsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_targets_rejected_total",
			Help: "Target updates rejected by the debounce or threshold gate.",
		}, []string{"reason"}),
		RouteFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_route_fetches_total",
			Help: "Successful route fetches.",
		}),
		RouteFetchErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_route_fetch_errors_total",
			Help: "Failed route fetches.",
		}),
		RouteThrottled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_route_throttled_total",
			Help: "Route refreshes skipped inside the throttle window.",
		}),
		ViewportFits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_viewport_fits_total",
			Help: "Programmatic viewport bounds-fits applied.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_nats_published_total",
			Help: "Total NATS view messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		StepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_step_duration_seconds",
			Help:    "Duration of one animation frame step over all entities.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		FrameInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_frame_interval_seconds",
			Help: "Animation frame interval in seconds.",
		}),
		TweenDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_tween_duration_seconds",
			Help: "Marker tween duration in seconds.",
		}),
		Debounce: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_debounce_seconds",
			Help: "Target debounce window in seconds.",
		}),
		RouteRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_route_refresh_seconds",
			Help: "Minimum route refresh interval in seconds.",
		}),
	}

	// Register
	reg.MustRegister(
		c.ActiveEntities,
		c.SamplesReceived, c.SamplesDropped, c.TargetsAccepted, c.TargetsRejected,
		c.RouteFetches, c.RouteFetchErrs, c.RouteThrottled,
		c.ViewportFits,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.StepDuration, c.PublishDuration,
		c.FrameInterval, c.TweenDuration, c.Debounce, c.RouteRefresh,
	)

	// Set static gauges
	c.FrameInterval.Set(frameInterval.Seconds())
	c.TweenDuration.Set(tweenDuration.Seconds())
	c.Debounce.Set(debounce.Seconds())
	c.RouteRefresh.Set(routeRefresh.Seconds())

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
