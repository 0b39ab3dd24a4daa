// Package server provides the HTTP query API over a trained model
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/truongthanh96/Word2Vec/internal/inspect"
	"github.com/truongthanh96/Word2Vec/internal/metrics"
	"github.com/truongthanh96/Word2Vec/internal/store"
	"github.com/truongthanh96/Word2Vec/internal/training"
	"github.com/truongthanh96/Word2Vec/pkg/types"

	"github.com/sirupsen/logrus"
)

// Version is reported by /health
const Version = "0.1.0"

// Server is the HTTP API server
type Server struct {
	svc     *inspect.Service
	st      store.Store
	config  Config
	metrics *metrics.Metrics
	log     *logrus.Logger
	server  *http.Server
}

// Config configures the server
type Config struct {
	Host         string
	Port         int
	ProgressPath string // Optional; reported by /stats when present

	Logger  *logrus.Logger
	Metrics *metrics.Metrics // Served on /metrics when set
}

// New creates a new server. st may be nil when no checkpoint store is available.
func New(svc *inspect.Service, st store.Store, cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		svc:     svc,
		st:      st,
		config:  cfg,
		metrics: cfg.Metrics,
		log:     log,
	}
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/similar", s.handleSimilar)
	mux.HandleFunc("/projection", s.handleProjection)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	return corsMiddleware(s.logMiddleware(mux))
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.WithField("addr", s.server.Addr).Info("query server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for browser clients
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("request")
	})
}

// handleSimilar handles GET /similar?word=w&top_k=n and POST /similar
func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	var req types.SimilarRequest

	switch r.Method {
	case http.MethodGet:
		req.Word = r.URL.Query().Get("word")
		if v := r.URL.Query().Get("top_k"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, "Invalid top_k", http.StatusBadRequest)
				return
			}
			req.TopK = n
		}
	case http.MethodPost:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if req.Word == "" {
		writeError(w, "Word required", http.StatusBadRequest)
		return
	}
	if req.TopK < 0 {
		writeError(w, "top_k must not be negative", http.StatusBadRequest)
		return
	}

	start := time.Now()
	neighbors, err := s.svc.SimilarBy(req.Word, req.TopK)
	if err != nil {
		var unknown *inspect.UnknownWordError
		if errors.As(err, &unknown) {
			writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, types.SimilarResponse{
		Word:      req.Word,
		Neighbors: neighbors,
		Text:      inspect.Format(req.Word, neighbors),
		Timing:    time.Since(start).Milliseconds(),
	}, http.StatusOK)
}

// handleProjection handles GET /projection?limit=n
func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := inspect.DefaultProjectionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	points, err := s.svc.Projection(limit)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string][]types.ProjectionPoint{"points": points}, http.StatusOK)
}

// handleStats handles GET /stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := s.svc.Stats()

	if s.st != nil {
		st, err := s.st.Stats(r.Context())
		if err != nil {
			writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		stats.Store = *st
	}

	if s.config.ProgressPath != "" {
		pf, err := training.LoadProgress(s.config.ProgressPath)
		switch {
		case err == nil:
			stats.Progress = *pf.TensorProgress
		case errors.Is(err, os.ErrNotExist):
		default:
			writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	writeJSON(w, stats, http.StatusOK)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok", "version": Version}, http.StatusOK)
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
