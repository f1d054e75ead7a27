package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"repodigest/internal/chunk"
	"repodigest/internal/gate"
	"repodigest/internal/staging"
)

// Engine produces one staged summary per file: split into chunks, complete
// every chunk concurrently under the shared gate, join in chunk order, and
// stage the result.
type Engine struct {
	primary       Completer
	fallback      Completer
	gate          *gate.Gate
	store         *staging.Store
	policy        RetryPolicy
	maxChunkChars int
	log           *slog.Logger
}

// EngineConfig tunes an Engine; zero values take the package defaults.
type EngineConfig struct {
	MaxChunkChars int
	Policy        RetryPolicy
	Logger        *slog.Logger
}

func NewEngine(primary, fallback Completer, g *gate.Gate, store *staging.Store, cfg EngineConfig) (*Engine, error) {
	if primary == nil {
		return nil, errors.New("summary engine: primary completer is nil")
	}
	if g == nil {
		return nil, errors.New("summary engine: gate is nil")
	}
	if store == nil {
		return nil, errors.New("summary engine: staging store is nil")
	}
	if fallback == nil {
		fallback = Disabled("no fallback provider configured")
	}
	maxChars := cfg.MaxChunkChars
	if maxChars <= 0 {
		maxChars = chunk.DefaultMaxChars
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		primary:       primary,
		fallback:      fallback,
		gate:          g,
		store:         store,
		policy:        cfg.Policy,
		maxChunkChars: maxChars,
		log:           log,
	}, nil
}

// SummarizeFile returns the staged artifact for one file. A (nil, nil)
// return means the file was skipped (nothing to summarize, or the staging
// write failed); skips never fail a run. A non-nil error only reports that
// the caller's context ended.
func (e *Engine) SummarizeFile(ctx context.Context, path, revisionTag, content string) (*staging.Artifact, error) {
	if existing, ok := e.store.Lookup(path, revisionTag); ok {
		e.log.Debug("reusing staged summary", "path", path, "revision", revisionTag)
		return existing, nil
	}

	chunks := chunk.Split(content, e.maxChunkChars)
	if len(chunks) == 0 {
		return nil, nil
	}
	e.log.Debug("summarizing file", "path", path, "chunks", len(chunks))

	parts := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range chunks {
		g.Go(func() error {
			text, err := e.summarizeChunk(gctx, path, i, len(chunks), c)
			if err != nil {
				return err
			}
			parts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	art, err := e.store.Put(path, revisionTag, strings.Join(parts, ChunkDelimiter))
	if err != nil {
		e.log.Warn("staging write failed, skipping file", "path", path, "err", err)
		return nil, nil
	}
	return art, nil
}

// summarizeChunk holds one gate permit across the whole attempt ladder for
// the chunk, fallback included, so the configured cap bounds provider
// pressure rather than goroutine count.
func (e *Engine) summarizeChunk(ctx context.Context, path string, index, total int, chunkText string) (string, error) {
	prompt := chunkPrompt(path, index, total, chunkText)

	if err := e.gate.Acquire(ctx); err != nil {
		return "", err
	}
	defer e.gate.Release()

	text, err := completeWithRetry(ctx, e.primary, e.policy, prompt)
	if err == nil {
		return text, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	e.log.Warn("primary provider exhausted retries, using fallback",
		"path", path, "chunk", index+1, "chunks", total, "provider", e.primary.Name(), "err", err)

	fbText, fbErr := e.fallback.Complete(ctx, prompt)
	if fbErr == nil {
		return fbText, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	// The failure text becomes the chunk output so the file still yields an
	// artifact. Logged loudly because it usually means both providers are
	// down or unconfigured.
	e.log.Error("fallback provider failed, embedding error marker",
		"path", path, "chunk", index+1, "provider", e.fallback.Name(), "err", fbErr)
	return fmt.Sprintf("[summary unavailable: %v]", fbErr), nil
}
