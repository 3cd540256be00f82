package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL     string
	NATSURL         string
	PositionSubject string
	StatusSubject   string
	CameraSubject   string
	OSRMURL         string
	RedisAddr       string
	RedisDB         int

	FrameInterval     time.Duration
	TweenDuration     time.Duration
	Debounce          time.Duration
	MinMoveMeters     float64
	RouteRefresh      time.Duration
	ReconcileInterval time.Duration

	MetricsAddr     string
	APIAddr         string
	LogNATSSubjects bool
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	// Database URL: prefer DATABASE_URL / PG_DSN, else build from PG* vars.
	// Empty disables destination resolution and the reconciler.
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" && os.Getenv("PGDATABASE") != "" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		database := os.Getenv("PGDATABASE")
		sslmode := getenvDefault("PGSSLMODE", "disable")
		if pass != "" {
			dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, database, sslmode)
		} else {
			dsn = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, database, sslmode)
		}
	}
	cfg.DatabaseURL = dsn

	cfg.NATSURL = getenvDefault("NATS_URL", "nats://127.0.0.1:4222")
	cfg.PositionSubject = getenvDefault("NATS_POSITION_SUBJECT", "track.pos.>")
	cfg.StatusSubject = getenvDefault("NATS_STATUS_SUBJECT", "track.status.>")
	cfg.CameraSubject = getenvDefault("NATS_CAMERA_SUBJECT", "view.camera")
	cfg.OSRMURL = getenvDefault("OSRM_URL", "http://127.0.0.1:5000")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")

	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid REDIS_DB: %q", v)
		}
		cfg.RedisDB = n
	}

	var err error
	if cfg.FrameInterval, err = envMillis("FRAME_INTERVAL_MS", 16); err != nil {
		return nil, err
	}
	if cfg.TweenDuration, err = envMillis("TWEEN_DURATION_MS", 2000); err != nil {
		return nil, err
	}
	if cfg.Debounce, err = envMillis("DEBOUNCE_MS", 500); err != nil {
		return nil, err
	}

	if v := os.Getenv("MIN_MOVE_METERS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return nil, fmt.Errorf("invalid MIN_MOVE_METERS: %q", v)
		}
		cfg.MinMoveMeters = f
	} else {
		cfg.MinMoveMeters = 1.0
	}

	if v := os.Getenv("ROUTE_REFRESH_SEC"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec <= 0 {
			return nil, fmt.Errorf("invalid ROUTE_REFRESH_SEC: %q", v)
		}
		cfg.RouteRefresh = time.Duration(sec) * time.Second
	} else {
		cfg.RouteRefresh = 10 * time.Second
	}

	if v := os.Getenv("RECONCILE_INTERVAL_SEC"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec <= 0 {
			return nil, fmt.Errorf("invalid RECONCILE_INTERVAL_SEC: %q", v)
		}
		cfg.ReconcileInterval = time.Duration(sec) * time.Second
	} else {
		cfg.ReconcileInterval = 30 * time.Second
	}

	// Debug logging for NATS publish subjects
	if v := os.Getenv("LOG_NATS_SUBJECTS"); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "t", "yes", "y", "on":
			cfg.LogNATSSubjects = true
		default:
			cfg.LogNATSSubjects = false
		}
	}

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")
	cfg.APIAddr = getenvDefault("API_ADDR", ":8080")

	return cfg, nil
}

func envMillis(key string, def int) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(def) * time.Millisecond, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
