package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"driver-controls/internal/arbiter"
	"driver-controls/internal/hardware"
	"driver-controls/internal/logger"
	"driver-controls/internal/types"
)

// Service is what the router inspects.
type Service interface {
	Snapshot() []arbiter.MachineState
	State() types.ServiceState
	Throttle() (hardware.Position, bool)
}

type throttleReading struct {
	Zone        string `json:"zone"`
	Numerator   uint16 `json:"numerator"`
	Denominator int    `json:"denominator"`
}

// NewRouter serves /metrics, /healthz, /fsm and /throttle. /healthz fails
// unless the service is running; /throttle fails without a valid reading.
func NewRouter(c *Collectors, s Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(c.Registry(), promhttp.HandlerOpts{}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		state := s.State()
		if state != types.StateRunning {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		w.Write([]byte(string(state) + "\n"))
	})

	r.Get("/fsm", func(w http.ResponseWriter, r *http.Request) {
		states := s.Snapshot()
		c.ObserveStates(states)
		writeJSON(w, states)
	})

	r.Get("/throttle", func(w http.ResponseWriter, r *http.Request) {
		pos, ok := s.Throttle()
		if !ok {
			http.Error(w, "no throttle reading", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, throttleReading{
			Zone:        pos.Zone.String(),
			Numerator:   pos.Numerator,
			Denominator: hardware.Denominator,
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type Server struct {
	srv *http.Server
	log *logger.Logger
}

func NewServer(addr string, h http.Handler, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log.WithTag("http"),
	}
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		s.log.Infof("Starting metrics server on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("Metrics server failed: %v", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
