package stream

import (
	"encoding/json"
	"log"

	"github.com/nats-io/nats.go"

	"delivery-tracker/internal/canvas"
	"delivery-tracker/internal/geo"
	"delivery-tracker/internal/track"
)

// ConnMetrics tracks the NATS connection state; nil disables collection.
type ConnMetrics interface {
	SetConnected(connected bool)
}

// Connect opens the NATS connection shared by the sample subscriber and the
// view publisher.
func Connect(url string, m ConnMetrics) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("delivery-tracker"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SetConnected(false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.SetConnected(true)
	}
	return nc, nil
}

// StatusMessage announces a delivery status transition on the status subject.
type StatusMessage struct {
	EntityID string `json:"entityId"`
	Status   string `json:"status"`
}

// Subscriber consumes raw position and status messages from the push channel
// and forwards them to the registry. Delivery is best-effort; duplicates are
// absorbed downstream by the threshold gate.
type Subscriber struct {
	nc   *nats.Conn
	subs []*nats.Subscription
}

func NewSubscriber(nc *nats.Conn) *Subscriber {
	return &Subscriber{nc: nc}
}

// SubscribePositions delivers decoded samples to fn. Messages that fail to
// decode are logged and dropped; coordinate validation happens in the
// registry.
func (s *Subscriber) SubscribePositions(subject string, fn func(track.Sample)) error {
	sub, err := s.nc.Subscribe(subject, func(msg *nats.Msg) {
		var sample track.Sample
		if err := json.Unmarshal(msg.Data, &sample); err != nil {
			log.Printf("decode position on %s: %v", msg.Subject, err)
			return
		}
		fn(sample)
	})
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// SubscribeStatus delivers delivery status transitions to fn.
func (s *Subscriber) SubscribeStatus(subject string, fn func(StatusMessage)) error {
	sub, err := s.nc.Subscribe(subject, func(msg *nats.Msg) {
		var st StatusMessage
		if err := json.Unmarshal(msg.Data, &st); err != nil {
			log.Printf("decode status on %s: %v", msg.Subject, err)
			return
		}
		if st.EntityID == "" {
			return
		}
		fn(st)
	})
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// CameraMessage reports a camera move from a map client on the camera
// subject. Clients echo fits applied by the tracker with the programmatic
// flag set so they are not mistaken for user pans.
type CameraMessage struct {
	Bounds       canvas.Bounds `json:"bounds"`
	Programmatic bool          `json:"programmatic"`
}

// Valid reports whether both corners are plausible coordinates.
func (m CameraMessage) Valid() bool {
	return geo.Valid(m.Bounds.SouthWest) && geo.Valid(m.Bounds.NorthEast)
}

// SubscribeCamera delivers camera moves to fn. Malformed messages and
// out-of-range bounds are logged and dropped.
func (s *Subscriber) SubscribeCamera(subject string, fn func(CameraMessage)) error {
	sub, err := s.nc.Subscribe(subject, func(msg *nats.Msg) {
		var m CameraMessage
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			log.Printf("decode camera on %s: %v", msg.Subject, err)
			return
		}
		if !m.Valid() {
			log.Printf("camera bounds out of range on %s", msg.Subject)
			return
		}
		fn(m)
	})
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close drains the subscriptions.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Drain()
	}
}
