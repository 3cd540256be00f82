package publisher

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"delivery-tracker/internal/canvas"
	"delivery-tracker/internal/geo"
	"delivery-tracker/internal/route"
)

// Publisher is the headless map canvas: every canvas mutation is published
// as a JSON message on a view.* subject for browser map clients to apply.
// It also carries ETA updates, so it doubles as the route.ETASink.
type Publisher struct {
	nc          *nats.Conn
	logSubjects bool
	metrics     PublisherMetrics
}

type PublisherMetrics interface {
	PublishedInc()
	PublishErrInc()
	PublishObserve(d time.Duration)
}

func New(nc *nats.Conn, logSubjects bool, m PublisherMetrics) *Publisher {
	return &Publisher{nc: nc, logSubjects: logSubjects, metrics: m}
}

// MarkerFrame is one marker mutation for the view layer.
type MarkerFrame struct {
	Action string    `json:"action"` // add|move|remove
	ID     string    `json:"id"`
	Pos    geo.Point `json:"pos,omitempty"`
}

// PolylineFrame is one polyline layer mutation.
type PolylineFrame struct {
	Action string      `json:"action"` // set|remove
	ID     string      `json:"id"`
	Points []geo.Point `json:"points,omitempty"`
}

type markerHandle struct {
	p  *Publisher
	id string
}

func (h *markerHandle) SetPosition(pt geo.Point) {
	h.p.publish("view.marker."+subjectToken(h.id), MarkerFrame{Action: "move", ID: h.id, Pos: pt})
}

func (h *markerHandle) Remove() {
	h.p.publish("view.marker."+subjectToken(h.id), MarkerFrame{Action: "remove", ID: h.id})
}

// AddMarker implements canvas.Canvas.
func (p *Publisher) AddMarker(id string, pt geo.Point) canvas.MarkerHandle {
	p.publish("view.marker."+subjectToken(id), MarkerFrame{Action: "add", ID: id, Pos: pt})
	return &markerHandle{p: p, id: id}
}

// SetPolyline implements canvas.Canvas.
func (p *Publisher) SetPolyline(id string, points []geo.Point) {
	p.publish("view.route."+subjectToken(id), PolylineFrame{Action: "set", ID: id, Points: points})
}

// RemovePolyline implements canvas.Canvas.
func (p *Publisher) RemovePolyline(id string) {
	p.publish("view.route."+subjectToken(id), PolylineFrame{Action: "remove", ID: id})
}

// FitBounds implements canvas.Canvas.
func (p *Publisher) FitBounds(b canvas.Bounds) {
	p.publish("view.viewport", b)
}

// PublishETA implements route.ETASink.
func (p *Publisher) PublishETA(e route.ETA) {
	p.publish("view.eta."+subjectToken(e.EntityID), e)
}

func (p *Publisher) publish(subject string, msg any) {
	b, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal for %s: %v", subject, err)
		return
	}
	if p.logSubjects {
		log.Printf("nats publish subject=%s", subject)
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.PublishErrInc()
		} else {
			p.metrics.PublishedInc()
		}
	}
	if err != nil {
		log.Printf("nats publish %s: %v", subject, err)
	}
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
