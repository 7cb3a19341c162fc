package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kubev2v/memory-balancer/pkg/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

/*
Server serves 2 endpoints:
- /metrics exposes the balancer's prometheus metrics
- /health returns 200 while the process is running
*/
type Server struct {
	address    string
	restServer *http.Server
}

func NewServer(address string) *Server {
	s := &Server{address: address}
	s.restServer = &http.Server{Addr: address, Handler: NewRouter()}
	return s
}

func NewRouter() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(log.RequestLogger("server"))
	router.Use(middleware.Recoverer)

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return router
}

// Start blocks until the server is stopped.
func (s *Server) Start() {
	zap.S().Named("server").Infof("serving metrics on %s", s.address)
	err := s.restServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		zap.S().Named("server").Errorf("failed to start server: %v", err)
	}
}

func (s *Server) Stop(stopCh chan any) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.restServer.Shutdown(shutdownCtx); err != nil {
		zap.S().Named("server").Errorf("failed to graceful shutdown the server: %s", err)
	}

	close(stopCh)
}
