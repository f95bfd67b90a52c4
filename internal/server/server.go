package server

import (
	"context"
	"net/http"
	"time"

	"github.com/ashmit2704/taskboard/internal/activity"
	"github.com/ashmit2704/taskboard/internal/board"
	"github.com/ashmit2704/taskboard/internal/config"
	"github.com/ashmit2704/taskboard/internal/events"
	"github.com/ashmit2704/taskboard/internal/logging"
)

// Server ties the board service to its HTTP surface.
type Server struct {
	cfg      *config.Config
	svc      *board.Service
	recorder *activity.Recorder
	bus      *events.Bus
	http     *http.Server
}

// New builds the server with its routes registered.
func New(cfg *config.Config, svc *board.Service, recorder *activity.Recorder, bus *events.Bus) *Server {
	s := &Server{
		cfg:      cfg,
		svc:      svc,
		recorder: recorder,
		bus:      bus,
	}
	s.http = &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the route table.
func (s *Server) Router() *http.ServeMux {
	tasks := NewTaskHandler(s.svc)
	feed := NewActivityHandler(s.recorder)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /tasks", tasks.CreateTask)
	mux.HandleFunc("GET /tasks", tasks.ListTasks)
	mux.HandleFunc("GET /tasks/{id}", tasks.GetTask)
	mux.HandleFunc("PUT /tasks/{id}", tasks.UpdateTask)
	mux.HandleFunc("PATCH /tasks/{id}/status", tasks.UpdateTaskStatus)
	mux.HandleFunc("DELETE /tasks/{id}", tasks.DeleteTask)
	mux.HandleFunc("POST /tasks/{id}/lock", tasks.LockTask)
	mux.HandleFunc("DELETE /tasks/{id}/lock", tasks.UnlockTask)
	mux.HandleFunc("GET /tasks/{id}/conflict", tasks.CheckConflict)
	mux.HandleFunc("POST /tasks/{id}/resolve", tasks.ResolveConflict)
	mux.HandleFunc("GET /activity", feed.RecentActivity)
	mux.HandleFunc("GET /smart-assign", tasks.SmartAssign)
	mux.HandleFunc("GET /ws", HandleWebSocket(s.svc, s.bus, s.cfg.Server.AllowedOrigin))
	mux.HandleFunc("GET /healthz", s.health)
	return mux
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"service":     "taskboard",
		"subscribers": s.bus.SubscriberCount(),
	})
}

// Run serves until ctx is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info("server listening", logging.Fields{"addr": s.cfg.Server.Listen})
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
