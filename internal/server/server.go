// Package server exposes the analysis pipeline over HTTP: a batch endpoint
// returning one JSON result and a streaming endpoint emitting server-sent
// events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	gh "repodigest/internal/github"
	"repodigest/internal/pipeline"
	"repodigest/internal/tree"
)

// Runner is the pipeline surface the HTTP layer drives.
type Runner interface {
	Run(ctx context.Context, ref gh.RepositoryRef) (*pipeline.Result, error)
	Stream(ctx context.Context, ref gh.RepositoryRef) <-chan pipeline.Event
}

// Server routes analysis requests to a Runner.
type Server struct {
	runner Runner
	log    *slog.Logger
	group  singleflight.Group
}

func New(runner Runner, log *slog.Logger) (*Server, error) {
	if runner == nil {
		return nil, errors.New("server: runner is nil")
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{runner: runner, log: log}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "repodigest analyzes a repository and writes a Markdown report; see /analyze_repo and /analyze_repo_stream",
		})
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "time": time.Now().UTC().Format(time.RFC3339)})
	})
	mux.HandleFunc("GET /analyze_repo", s.handleAnalyze)
	mux.HandleFunc("GET /analyze_repo_stream", s.handleAnalyzeStream)
	return mux
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.repoParam(w, r)
	if !ok {
		return
	}
	s.log.Info("batch analysis requested", "repo", ref)

	// Identical concurrent requests share one pipeline run. The run is
	// detached from the request context: batch mode always finishes, and
	// followers must not lose the result when the first caller leaves.
	v, err, shared := s.group.Do(ref.String(), func() (any, error) {
		return s.runner.Run(context.WithoutCancel(r.Context()), ref)
	})
	if err != nil {
		status := statusForError(err)
		s.log.Error("analysis failed", "repo", ref, "status", status, "err", err)
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	if shared {
		s.log.Debug("batch result shared across concurrent requests", "repo", ref)
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleAnalyzeStream(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.repoParam(w, r)
	if !ok {
		return
	}
	fl, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported by this connection"})
		return
	}
	s.log.Info("streaming analysis requested", "repo", ref)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fl.Flush()

	for e := range s.runner.Stream(r.Context(), ref) {
		b, err := json.Marshal(e)
		if err != nil {
			s.log.Error("encode stream event", "err", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
			// Client is gone; r.Context() winds the run down.
			s.log.Debug("stream write failed", "repo", ref, "err", err)
			return
		}
		fl.Flush()
	}
}

func (s *Server) repoParam(w http.ResponseWriter, r *http.Request) (gh.RepositoryRef, bool) {
	ref, err := gh.ParseRepoURL(r.URL.Query().Get("url"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return gh.RepositoryRef{}, false
	}
	return ref, true
}

// Run serves on addr until ctx ends, then drains connections. Request
// contexts descend from ctx, so open streams finish promptly on shutdown.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	s.log.Info("http server listening", "addr", addr)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

func statusForError(err error) int {
	var fe *tree.FetchError
	if errors.As(err, &fe) {
		return http.StatusBadGateway
	}
	if errors.Is(err, pipeline.ErrNoFiles) || errors.Is(err, pipeline.ErrNoTextFiles) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	b, err := json.Marshal(v)
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"failed to marshal json"}`))
		return
	}
	_, _ = w.Write(append(b, '\n'))
}
