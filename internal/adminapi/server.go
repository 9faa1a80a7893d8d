// Package adminapi exposes mgesched's introspection HTTP API, grounded on
// the teacher's internal/api.Server (chi.NewRouter() + middleware stack +
// writeJSON helper).
package adminapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mge-net/mgesched/internal/schedblob"
	"github.com/mge-net/mgesched/internal/scheduler"
)

// Server is mgesched's admin HTTP API.
type Server struct {
	sched *scheduler.Scheduler
}

// NewServer returns a Server over sched.
func NewServer(sched *scheduler.Scheduler) *Server {
	return &Server{sched: sched}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/stats", s.handleStats)
	r.Route("/debug", func(r chi.Router) {
		r.Get("/workcache", s.handleDebugWorkcache)
		r.Get("/blob/{host_id}", s.handleDebugBlob)
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	empty, present, claimed := s.sched.WorkcacheSlots()
	writeJSON(w, http.StatusOK, map[string]any{
		"workcache": map[string]int{
			"empty":   empty,
			"present": present,
			"claimed": claimed,
		},
	})
}

func (s *Server) handleDebugWorkcache(w http.ResponseWriter, r *http.Request) {
	empty, present, claimed := s.sched.WorkcacheSlots()
	slots := make([]map[string]any, 0, s.sched.Cache.Size())
	for i := 0; i < s.sched.Cache.Size(); i++ {
		state, owner := s.sched.Cache.State(i)
		entry := map[string]any{"index": i, "state": state.String()}
		if state.String() == "CLAIMED" {
			entry["owner"] = owner
		}
		slots = append(slots, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"counts": map[string]int{"empty": empty, "present": present, "claimed": claimed},
		"slots":  slots,
	})
}

func (s *Server) handleDebugBlob(w http.ResponseWriter, r *http.Request) {
	hostID, err := strconv.ParseInt(chi.URLParam(r, "host_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "host_id must be an integer")
		return
	}
	row, err := s.sched.Status.Get(hostID)
	if err != nil {
		writeError(w, http.StatusNotFound, "no status row for host "+strconv.FormatInt(hostID, 10))
		return
	}
	blob := schedblob.Decode(row.SchedData)
	writeJSON(w, http.StatusOK, map[string]any{
		"host_id":          row.HostID,
		"last_update_time": row.LastUpdateTime,
		"blob":             blob,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
