// Package api serves the estimation pipeline over HTTP: submit analysis
// runs, poll their status, and fetch estimate rows or rendered reports.
package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"incuba/app"
	"incuba/internal"
	"incuba/internal/config"
	"incuba/internal/errors"
	"incuba/ports"
)

// Server is the HTTP front end of the analysis service
type Server struct {
	router  *chi.Mux
	service *app.AnalysisService
	store   ports.RunStore
	cfg     *config.Config
	logger  *internal.Logger
}

// NewServer creates the API server. The store must be the same one the
// service persists into, or submitted runs will never be found.
func NewServer(service *app.AnalysisService, store ports.RunStore, cfg *config.Config) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		service: service,
		store:   store,
		cfg:     cfg,
		logger:  internal.NewDefaultLogger(),
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures HTTP middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/runs", s.handleSubmitRun)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/runs/{id}/estimates", s.handleGetEstimates)
		r.Get("/runs/{id}/report", s.handleGetReport)
	})
}

// ServeHTTP makes the server mountable and testable as a plain handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	log.Printf("Starting incuba API server on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("[API] Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("[API] %v", err)
	}
	s.writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  errors.GetCode(err),
	})
}

// statusForError maps application error codes to HTTP status codes. Anything
// unrecognized is a server fault.
func statusForError(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeInvalidInput, errors.CodeMalformedRecord, errors.CodeConfigInvalid:
		return http.StatusBadRequest
	case errors.CodeNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
