package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"delivery-tracker/internal/db"
	"delivery-tracker/internal/route"
	"delivery-tracker/internal/store"
	"delivery-tracker/internal/track"
)

// Server exposes a read-only snapshot of the tracker to the host UI.
type Server struct {
	reg   *track.Registry
	etas  *store.Store // optional
	sqlDB *sql.DB      // optional
}

func New(reg *track.Registry, etas *store.Store, sqlDB *sql.DB) *Server {
	return &Server{reg: reg, etas: etas, sqlDB: sqlDB}
}

// EntityResponse is one tracked entity with its last published ETA, if any.
type EntityResponse struct {
	track.EntityState
	ETA *route.ETA `json:"eta,omitempty"`
}

// EntitiesResponse is the JSON response for GET /api/entities.
type EntitiesResponse struct {
	Entities  []EntityResponse `json:"entities"`
	Timestamp time.Time        `json:"timestamp"`
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", s.getHealth)
	r.Get("/api/entities", s.getEntities)
	return r
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]any{
		"status":    "ok",
		"entities":  s.reg.Len(),
		"timestamp": time.Now().UTC(),
	}
	code := http.StatusOK
	if s.sqlDB != nil {
		if err := db.Ping(ctx, s.sqlDB); err != nil {
			status["status"] = "degraded"
			status["database"] = "disconnected"
			code = http.StatusServiceUnavailable
		} else {
			status["database"] = "connected"
		}
	}
	writeJSON(w, code, status)
}

func (s *Server) getEntities(w http.ResponseWriter, r *http.Request) {
	states := s.reg.Snapshot()
	sort.Slice(states, func(i, j int) bool { return states[i].ID < states[j].ID })

	var etas map[string]route.ETA
	if s.etas != nil {
		ids := make([]string, len(states))
		for i, st := range states {
			ids[i] = st.ID
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		etas = s.etas.ETAs(ctx, ids)
	}

	resp := EntitiesResponse{
		Entities:  make([]EntityResponse, 0, len(states)),
		Timestamp: time.Now().UTC(),
	}
	for _, st := range states {
		e := EntityResponse{EntityState: st}
		if eta, ok := etas[st.ID]; ok {
			e.ETA = &eta
		}
		resp.Entities = append(resp.Entities, e)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Serve starts the API server on the given address.
func (s *Server) Serve(addr string) *http.Server {
	srv := &http.Server{Addr: addr, Handler: s.Router()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("api server error: %v", err)
		}
	}()
	log.Printf("api listening on %s", addr)
	return srv
}
