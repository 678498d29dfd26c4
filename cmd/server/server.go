package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pauljones0/dealiem-scraper/internal/models"
	"github.com/pauljones0/dealiem-scraper/internal/processor"
)

const runTimeout = time.Hour

type documentLookup interface {
	Lookup(ctx context.Context, key string) (*models.WeeklyDealDocument, error)
}

// Server exposes the pipeline over HTTP. At most one run is in flight; a
// trigger that arrives during a run joins it.
type Server struct {
	baseCtx   context.Context
	processor processor.Processor
	documents documentLookup
	runs      singleflight.Group

	mu      sync.Mutex
	running bool
}

// NewServer returns a server whose runs are cancelled when ctx is done.
func NewServer(ctx context.Context, p processor.Processor, docs documentLookup) *Server {
	return &Server{baseCtx: ctx, processor: p, documents: docs}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /scrape", s.ScrapeHandler)
	mux.HandleFunc("GET /deals/{key}", s.DealHandler)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{"status":"ok"}`)
	})
	return mux
}

// trigger starts a run unless one is already going. The returned channel
// delivers the result of the run the caller is attached to.
//
// mu keeps running in step with the singleflight key: the key is forgotten
// under mu as the run ends, so a caller that sees running == false always
// starts a new run and one that sees true always joins.
func (s *Server) trigger() (<-chan singleflight.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	joined := s.running
	s.running = true
	ch := s.runs.DoChan("run", func() (any, error) {
		defer func() {
			s.mu.Lock()
			s.running = false
			s.runs.Forget("run")
			s.mu.Unlock()
		}()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Panic in pipeline run", "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(s.baseCtx, runTimeout)
		defer cancel()
		summary, err := s.processor.Run(ctx)
		if err != nil {
			slog.Error("Error running pipeline", "error", err, "summary", summary)
		}
		return summary, err
	})
	return ch, joined
}

// ScrapeHandler runs the pipeline asynchronously so the response isn't
// blocked by rendering every business page.
func (s *Server) ScrapeHandler(w http.ResponseWriter, r *http.Request) {
	_, joined := s.trigger()

	w.WriteHeader(http.StatusAccepted)
	if joined {
		fmt.Fprintln(w, "Scrape already running.")
		return
	}
	fmt.Fprintln(w, "Scrape started.")
}

func (s *Server) DealHandler(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" || key == "." || key == ".." || strings.Contains(key, "/") {
		http.Error(w, "invalid key", http.StatusBadRequest)
		return
	}

	doc, err := s.documents.Lookup(r.Context(), key)
	if err != nil {
		slog.Error("Failed to look up document", "key", key, "error", err)
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if doc == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		slog.Warn("Failed to write document response", "key", key, "error", err)
	}
}
