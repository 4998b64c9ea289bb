package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/ritzau/load-factors/pkg/analysis"
	"github.com/ritzau/load-factors/pkg/cycles"
	"github.com/ritzau/load-factors/pkg/loadfactor"
	"github.com/ritzau/load-factors/pkg/logging"
	"github.com/ritzau/load-factors/pkg/model"
	"github.com/ritzau/load-factors/pkg/output"
	"github.com/ritzau/load-factors/pkg/pubsub"
	"github.com/ritzau/load-factors/pkg/source"
)

// ComputeRequest is the body of POST /api/compute
type ComputeRequest struct {
	Declarations []string `json:"declarations"`
	Entry        string   `json:"entry"`
	Strict       bool     `json:"strict,omitempty"`
}

// errorResponse is returned for every non-2xx API response
type errorResponse struct {
	Error      string `json:"error"`
	Line       string `json:"line,omitempty"`
	LineNumber int    `json:"lineNumber,omitempty"`
}

// Server exposes load-factor computations over HTTP
type Server struct {
	router    *mux.Router
	runner    *analysis.Runner
	publisher pubsub.Publisher
	strict    bool
}

// NewServer creates a new web server. strict is the default for requests
// that do not ask for it.
func NewServer(runner *analysis.Runner, publisher pubsub.Publisher, strict bool) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		runner:    runner,
		publisher: publisher,
		strict:    strict,
	}
	s.setupRoutes()
	return s
}

// Handler returns the routed handler wrapped in request logging
func (s *Server) Handler() http.Handler {
	return logging.RequestIDMiddleware(s.router)
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/subscribe/load_factors", s.handleSubscribe).Methods("GET")
	s.router.HandleFunc("/api/compute", s.handleCompute).Methods("POST")
	s.router.HandleFunc("/api/result", s.handleResult).Methods("GET")
	s.router.HandleFunc("/api/graph", s.handleGraph).Methods("GET")
	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods("GET")
}

func (s *Server) handleCompute(w http.ResponseWriter, r *http.Request) {
	var req ComputeRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if req.Entry == "" {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "entry is required"})
		return
	}

	src := &source.StaticSource{Label: "request", Lines: req.Declarations}
	report, err := s.runner.Run(r.Context(), src, analysis.Options{
		Entry:  req.Entry,
		Strict: req.Strict || s.strict,
		Reason: "api request",
	})

	var malformed *loadfactor.MalformedDeclarationError
	switch {
	case errors.As(err, &malformed):
		writeError(w, http.StatusBadRequest, errorResponse{
			Error:      err.Error(),
			Line:       malformed.Line,
			LineNumber: malformed.LineNumber,
		})
		return
	case errors.Is(err, cycles.ErrCycleDetected):
		writeError(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	case err != nil:
		logging.ErrorContext(r.Context(), "compute failed", "error", err)
		writeError(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := output.WriteJSON(w, *report); err != nil {
		logging.ErrorContext(r.Context(), "failed to write response", "error", err)
	}
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	report := s.runner.Last()
	if report == nil {
		writeError(w, http.StatusNotFound, errorResponse{Error: "no result computed yet"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := output.WriteJSON(w, *report); err != nil {
		logging.ErrorContext(r.Context(), "failed to write response", "error", err)
	}
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	report := s.runner.Last()
	if report == nil {
		writeError(w, http.StatusNotFound, errorResponse{Error: "no result computed yet"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(model.FromResult(report.Result)); err != nil {
		logging.ErrorContext(r.Context(), "failed to write response", "error", err)
	}
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	sub, err := s.publisher.Subscribe(r.Context(), pubsub.TopicLoadFactors)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	flusher, _ := w.(http.Flusher)

	// Initial comment establishes the stream (Safari compatibility)
	fmt.Fprintf(w, ": connected\n\n")
	if flusher != nil {
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := pubsub.WriteSSE(w, event); err != nil {
				logging.WarnContext(r.Context(), "error writing SSE event", "error", err)
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func writeError(w http.ResponseWriter, status int, body errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Start serves on port until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("starting web server", "url", fmt.Sprintf("http://localhost:%d", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Open SSE streams end when the publisher closes
		if err := s.publisher.Close(); err != nil {
			logging.Warn("closing publisher", "error", err)
		}
		return srv.Shutdown(shutdownCtx)
	}
}
