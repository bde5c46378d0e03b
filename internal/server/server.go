// Package server exposes the stats operations over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stridestats/internal/auth"
	"stridestats/internal/logging"
	"stridestats/internal/observability"
	"stridestats/internal/service"
	"stridestats/internal/stats"
	"stridestats/internal/strava"
)

// Server serves the stats API.
type Server struct {
	svc *service.Service
}

// New creates a server around a stats service.
func New(svc *service.Service) *Server {
	return &Server{svc: svc}
}

// Handler builds the HTTP routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("GET /api/stats/summary", s.handleSummary)
	mux.HandleFunc("GET /api/stats/activity-count", s.handleActivityCount)
	mux.HandleFunc("GET /api/stats/time-distribution", s.handleTimeDistribution)
	mux.HandleFunc("GET /api/stats/workout-heatmap", s.handleWorkoutHeatmap)
	mux.HandleFunc("GET /api/stats/workout-heatmap/summary", s.handleWorkoutHeatmapSummary)
	mux.HandleFunc("GET /api/stats/run-statistics", s.handleRunStatistics)
	mux.HandleFunc("GET /api/stats/run-distribution", s.handleRunDistribution)
	mux.HandleFunc("GET /api/stats/running-heatmap", s.handleRunningHeatmap)
	mux.HandleFunc("GET /api/stats/mileage-trend", s.handleMileageTrend)
	mux.HandleFunc("GET /api/stats/pace-trend", s.handlePaceTrend)

	return withMetrics(mux)
}

// Run serves the API until the context is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	log := logging.Logger

	httpServer := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info().Str("address", addr).Msg("stats API listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// statusRecorder captures the response code for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		observability.RecordHTTPRequest(r.URL.Path, strconv.Itoa(rec.status), elapsed)
		logging.Logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", elapsed).
			Msg("request served")
	})
}

// request holds the query parameters shared by every stats endpoint.
type request struct {
	athleteID string
	window    service.Window
}

func parseRequest(r *http.Request) (request, error) {
	q := r.URL.Query()
	req := request{athleteID: q.Get("athlete")}

	after, err := parseDate(q.Get("after"))
	if err != nil {
		return request{}, fmt.Errorf("invalid after date: %w", err)
	}
	before, err := parseDate(q.Get("before"))
	if err != nil {
		return request{}, fmt.Errorf("invalid before date: %w", err)
	}

	req.window = service.Window{After: after, Before: before}
	return req, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type errorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Logger.Error().Err(err).Msg("encoding response")
	}
}

// writeError maps the service error taxonomy onto HTTP statuses with
// user-facing messages.
func writeError(w http.ResponseWriter, err error) {
	log := logging.Logger

	var status int
	var message string
	switch {
	case errors.Is(err, service.ErrInvalidDateRange), errors.Is(err, stats.ErrInvalidPeriod):
		status = http.StatusBadRequest
		message = "Invalid request: " + err.Error()
	case errors.Is(err, auth.ErrUnauthorized):
		status = http.StatusUnauthorized
		message = "Authentication required. Please reconnect with Strava."
	case errors.Is(err, strava.ErrUnauthorized):
		status = http.StatusUnauthorized
		message = "Authentication failed. Please reconnect with Strava."
	case errors.Is(err, strava.ErrRateLimited):
		status = http.StatusTooManyRequests
		message = "Rate limit exceeded. Please try again later."
	case errors.Is(err, strava.ErrUnavailable):
		status = http.StatusServiceUnavailable
		message = "Strava is temporarily unavailable. Please try again later."
	default:
		status = http.StatusInternalServerError
		message = "An unexpected error occurred. Please try again."
	}

	if status >= 500 {
		log.Error().Err(err).Msg("request failed")
	} else {
		log.Debug().Err(err).Int("status", status).Msg("request rejected")
	}

	writeJSON(w, status, errorResponse{Message: message, Status: status})
}

// badRequest reports a malformed query parameter.
func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Message: "Invalid request: " + err.Error(),
		Status:  http.StatusBadRequest,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	out, err := s.svc.Summary(r.Context(), req.athleteID, req.window)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleActivityCount(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	out, err := s.svc.CountDistribution(r.Context(), req.athleteID, req.window)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emptySlice(out))
}

func (s *Server) handleTimeDistribution(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	out, err := s.svc.TimeDistribution(r.Context(), req.athleteID, req.window)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emptySlice(out))
}

func (s *Server) handleWorkoutHeatmap(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	out, err := s.svc.WorkoutHeatmap(r.Context(), req.athleteID, req.window)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emptySlice(out))
}

func (s *Server) handleWorkoutHeatmapSummary(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	out, err := s.svc.WorkoutHeatmapSummary(r.Context(), req.athleteID, req.window)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRunStatistics(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	out, err := s.svc.RunStatistics(r.Context(), req.athleteID, req.window)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRunDistribution(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	out, err := s.svc.RunDistribution(r.Context(), req.athleteID, req.window)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emptySlice(out))
}

func (s *Server) handleRunningHeatmap(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	out, err := s.svc.RunningHeatmap(r.Context(), req.athleteID, req.window)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emptySlice(out))
}

func (s *Server) handleMileageTrend(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	period, err := stats.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := s.svc.MileageTrend(r.Context(), req.athleteID, req.window, period)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emptySlice(out))
}

func (s *Server) handlePaceTrend(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	period, err := stats.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := s.svc.PaceTrend(r.Context(), req.athleteID, req.window, period)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emptySlice(out))
}

// emptySlice keeps list endpoints returning [] instead of null.
func emptySlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
