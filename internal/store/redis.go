package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"delivery-tracker/internal/canvas"
	"delivery-tracker/internal/route"
)

const (
	viewportKey = "tracker:viewport"
	etaPrefix   = "tracker:eta:"
	etaTTL      = 10 * time.Minute
)

// Store hands viewport and ETA state off to Redis so the host UI can read
// them back across sessions. It implements viewport.Persistence and
// route.ETASink.
type Store struct {
	rdb *redis.Client
}

func New(ctx context.Context, addr string, db int) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

func (s *Store) Close() error { return s.rdb.Close() }

// SaveViewport implements viewport.Persistence.
func (s *Store) SaveViewport(b canvas.Bounds) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return s.rdb.Set(context.Background(), viewportKey, data, 0).Err()
}

// LoadViewport implements viewport.Persistence.
func (s *Store) LoadViewport() (canvas.Bounds, bool, error) {
	val, err := s.rdb.Get(context.Background(), viewportKey).Bytes()
	if err == redis.Nil {
		return canvas.Bounds{}, false, nil
	}
	if err != nil {
		return canvas.Bounds{}, false, err
	}
	var b canvas.Bounds
	if err := json.Unmarshal(val, &b); err != nil {
		return canvas.Bounds{}, false, err
	}
	return b, true, nil
}

// PublishETA implements route.ETASink. ETAs expire so a silent entity does
// not show a stale figure forever.
func (s *Store) PublishETA(e route.ETA) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := s.rdb.Set(context.Background(), etaPrefix+e.EntityID, data, etaTTL).Err(); err != nil {
		log.Printf("redis set eta %s: %v", e.EntityID, err)
	}
}

// ETA returns the last published figure for an entity, if any.
func (s *Store) ETA(ctx context.Context, entityID string) (route.ETA, bool) {
	val, err := s.rdb.Get(ctx, etaPrefix+entityID).Bytes()
	if err != nil {
		return route.ETA{}, false
	}
	var e route.ETA
	if err := json.Unmarshal(val, &e); err != nil {
		return route.ETA{}, false
	}
	return e, true
}

// ETAs returns the last published figures for the given entities.
func (s *Store) ETAs(ctx context.Context, entityIDs []string) map[string]route.ETA {
	out := make(map[string]route.ETA, len(entityIDs))
	if len(entityIDs) == 0 {
		return out
	}
	keys := make([]string, len(entityIDs))
	for i, id := range entityIDs {
		keys[i] = etaPrefix + id
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return out
	}
	for i, v := range vals {
		if v == nil {
			continue
		}
		str, _ := v.(string)
		var e route.ETA
		if err := json.Unmarshal([]byte(str), &e); err != nil {
			continue
		}
		out[entityIDs[i]] = e
	}
	return out
}
