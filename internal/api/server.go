// Package api exposes the tracking service over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"safety-tracker/internal/analytics"
	"safety-tracker/internal/tracker"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Version = "1.0.0"

const shutdownTimeout = 30 * time.Second

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	scorerTrained = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scorer_trained",
		Help: "1 when the trained isolation forest is active, 0 for rule-based scoring",
	})
)

// ModelReloader swaps the active scorer for the persisted model.
type ModelReloader interface {
	Reload(path string) error
	Kind() analytics.Kind
}

type Server struct {
	router    *mux.Router
	tracker   *tracker.Service
	models    ModelReloader
	modelPath string
}

func NewServer(svc *tracker.Service, models ModelReloader, modelPath string) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		tracker:   svc,
		models:    models,
		modelPath: modelPath,
	}
	s.setupRoutes()
	s.updateScorerGauge()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(metricsMiddleware)

	s.router.HandleFunc("/health", s.healthHandler).Methods("GET")
	s.router.Handle("/metrics/prometheus", promhttp.Handler())
	s.router.HandleFunc("/analytics/current", s.getAnalyticsHandler).Methods("GET")
	s.router.HandleFunc("/analytics/anomalies", s.getAnomaliesHandler).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	route(api, "/start_journey", s.startJourneyHandler, "POST")
	route(api, "/end_journey", s.endJourneyHandler, "POST")
	route(api, "/track_location", s.trackLocationHandler, "POST")
	route(api, "/safety_score", s.safetyScoreHandler, "GET")
	route(api, "/reset_anomalies", s.resetAnomaliesHandler, "POST")
	route(api, "/admin/anomalies", s.listAnomaliesHandler, "GET")
	route(api, "/admin/anomalies/{id:[0-9]+}", s.resolveAnomalyHandler, "PATCH", "PUT")
	route(api, "/admin/model/reload", s.reloadModelHandler, "POST")
}

// route registers h with and without a trailing slash.
func route(r *mux.Router, path string, h http.HandlerFunc, methods ...string) {
	r.HandleFunc(path, h).Methods(methods...)
	r.HandleFunc(path+"/", h).Methods(methods...)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) updateScorerGauge() {
	if s.models != nil && s.models.Kind() == analytics.KindTrained {
		scorerTrained.Set(1)
		return
	}
	scorerTrained.Set(0)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tmpl
			}
		}
		if len(endpoint) > 1 {
			endpoint = strings.TrimSuffix(endpoint, "/")
		}

		requestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	})
}

// Run serves on addr until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server is ready to handle requests at %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("could not listen on %s: %w", addr, err)
	case <-ctx.Done():
	}

	log.Println("Server is shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	srv.SetKeepAlivesEnabled(false)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("could not gracefully shutdown the server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Println("Server stopped")
	return nil
}
