package api

import (
	"context"
	"net/http"
	"time"

	"github.com/FlexMeasures/flexmeasures-sub003/core/jobs"
	"github.com/FlexMeasures/flexmeasures-sub003/core/logger"
	"github.com/FlexMeasures/flexmeasures-sub003/core/store"
	"github.com/FlexMeasures/flexmeasures-sub003/internal/eventbus"
)

// ScheduleService triggers asynchronous scheduling runs and exposes their
// results. The app layer implements it on top of the job queue.
type ScheduleService interface {
	Trigger(ctx context.Context, assetID string) (jobID string, err error)
	Result(jobID string) (jobs.Job, error)
}

// Server exposes the HTTP API: sensor data ingestion and queries plus the
// asynchronous schedule trigger/poll pair.
type Server struct {
	store     store.Store
	schedules ScheduleService
	bus       eventbus.EventBus
	log       logger.Logger
}

// NewServer wires the API handlers. The bus and logger may be nil.
func NewServer(st store.Store, schedules ScheduleService, bus eventbus.EventBus, log logger.Logger) *Server {
	return &Server{store: st, schedules: schedules, bus: bus, log: log}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/health", s.handleHealth)
	mux.HandleFunc("GET /api/v3/sensors", s.handleListSensors)
	mux.HandleFunc("POST /api/v3/sensors/{id}/data", s.handlePostSensorData)
	mux.HandleFunc("GET /api/v3/sensors/{id}/data", s.handleGetSensorData)
	mux.HandleFunc("POST /api/v3/assets/{id}/schedules/trigger", s.handleTriggerSchedule)
	mux.HandleFunc("GET /api/v3/assets/{id}/schedules/{jobID}", s.handleGetSchedule)
	return mux
}

// Start runs the API server on addr until the context is canceled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
