// Package report aggregates staged per-file summaries into the final
// project-level Markdown report.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"repodigest/internal/gate"
	"repodigest/internal/model"
	"repodigest/internal/staging"
)

const (
	// DefaultBatchSize is how many staged summaries feed one detail call.
	DefaultBatchSize = 5

	// The executive overview is built from the first few summaries, each
	// truncated, so the prompt stays small on large repositories.
	overviewFiles     = 3
	overviewCharLimit = 1000
)

// AggregationError is fatal to a run. Staged artifacts stay on disk when it
// fires, so the inputs survive for inspection or a retry.
type AggregationError struct {
	Stage string
	Err   error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregate (%s): %v", e.Stage, e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }

// ProjectReport is the assembled project-level analysis.
type ProjectReport struct {
	Title         string
	GeneratedAt   time.Time
	Overview      string
	BatchSections []string
	Location      string
}

// Aggregator turns staged summaries into the report document. Its model
// calls go through the same gate as per-file summarization, so one cap
// bounds the whole run.
type Aggregator struct {
	primary   model.Completer
	fallback  model.Completer
	gate      *gate.Gate
	store     *staging.Store
	dir       string
	batchSize int
	now       func() time.Time
	log       *slog.Logger
}

// AggregatorConfig tunes an Aggregator; zero values take defaults. Now
// exists for tests that need a fixed clock.
type AggregatorConfig struct {
	ReportDir string
	BatchSize int
	Logger    *slog.Logger
	Now       func() time.Time
}

func NewAggregator(primary, fallback model.Completer, g *gate.Gate, store *staging.Store, cfg AggregatorConfig) (*Aggregator, error) {
	if primary == nil {
		return nil, errors.New("aggregator: primary completer is nil")
	}
	if g == nil {
		return nil, errors.New("aggregator: gate is nil")
	}
	if store == nil {
		return nil, errors.New("aggregator: staging store is nil")
	}
	if fallback == nil {
		fallback = model.Disabled("no fallback provider configured")
	}

	dir := cfg.ReportDir
	if dir == "" {
		dir = "."
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Aggregator{
		primary:   primary,
		fallback:  fallback,
		gate:      g,
		store:     store,
		dir:       dir,
		batchSize: batchSize,
		now:       now,
		log:       log,
	}, nil
}

// Aggregate builds the overview and batched detail sections, writes the
// report file, and deletes the staged inputs only after the write succeeds.
func (a *Aggregator) Aggregate(ctx context.Context, refs []staging.Ref, projectName string) (*ProjectReport, error) {
	if len(refs) == 0 {
		return nil, &AggregationError{Stage: "input", Err: errors.New("no staged summaries to aggregate")}
	}

	overview := a.overview(ctx, refs, projectName)

	sections, err := a.detailSections(ctx, refs)
	if err != nil {
		return nil, err
	}

	rep := &ProjectReport{
		Title:         "Project Summary: " + projectName,
		GeneratedAt:   a.now(),
		Overview:      overview,
		BatchSections: sections,
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return nil, &AggregationError{Stage: "write", Err: err}
	}
	path := filepath.Join(a.dir, reportFileName(projectName, rep.GeneratedAt))
	if err := os.WriteFile(path, []byte(renderMarkdown(rep)), 0o644); err != nil {
		return nil, &AggregationError{Stage: "write", Err: err}
	}
	rep.Location = path

	locs := make([]staging.Location, 0, len(refs))
	for _, r := range refs {
		locs = append(locs, r.Location)
	}
	removed := a.store.Delete(locs)
	if removed < len(locs) {
		a.log.Warn("some staged artifacts were left behind", "removed", removed, "total", len(locs))
	}

	a.log.Info("project report written", "report", path, "files", len(refs), "batches", len(sections))
	return rep, nil
}

// overview asks for an executive summary from the first few staged texts.
// It degrades to a placeholder on failure rather than failing the run; the
// detail sections carry the substance.
func (a *Aggregator) overview(ctx context.Context, refs []staging.Ref, projectName string) string {
	n := min(overviewFiles, len(refs))
	locs := make([]staging.Location, 0, n)
	for _, r := range refs[:n] {
		locs = append(locs, r.Location)
	}
	texts := a.store.ReadAll(locs)
	for i, t := range texts {
		texts[i] = truncate(t, overviewCharLimit)
	}

	text, err := a.complete(ctx, overviewPrompt(projectName, texts, len(refs)-n))
	if err != nil {
		a.log.Warn("overview generation failed, using placeholder", "err", err)
		return "An overview could not be generated for this run."
	}
	return text
}

// detailSections runs the batch analyses concurrently and returns their
// outputs in batch order. Model failures degrade to marker sections inside
// analyzeBatch, so the only errors surfacing here are cancellations.
func (a *Aggregator) detailSections(ctx context.Context, refs []staging.Ref) ([]string, error) {
	batches := partition(refs, a.batchSize)
	sections := make([]string, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		g.Go(func() error {
			text, err := a.analyzeBatch(gctx, i, batch)
			if err != nil {
				return err
			}
			sections[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &AggregationError{Stage: "detail", Err: err}
	}
	return sections, nil
}

// analyzeBatch assembles one batch document and runs the structured analysis
// call. Unreadable staged entries are skipped; a batch with nothing readable
// produces an empty section. A model failure becomes a marker section so one
// bad batch never loses the rest of the report.
func (a *Aggregator) analyzeBatch(ctx context.Context, index int, refs []staging.Ref) (string, error) {
	var b strings.Builder
	for _, ref := range refs {
		text, err := a.store.Read(ref.Location)
		if err != nil {
			a.log.Warn("skipping unreadable staged artifact", "path", ref.Path, "err", err)
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- File: %s ---\n%s", ref.Path, text)
	}
	if b.Len() == 0 {
		a.log.Warn("batch has no readable artifacts, skipping section", "batch", index+1)
		return "", nil
	}

	text, err := a.complete(ctx, batchPrompt(b.String()))
	if err == nil {
		return text, nil
	}
	if ctx.Err() != nil {
		return "", err
	}
	a.log.Error("batch analysis failed", "batch", index+1, "err", err)
	return fmt.Sprintf("[batch analysis unavailable: %v]", err), nil
}

// complete issues one gated model call. A rate-limited primary hands the
// prompt to the fallback provider; any other failure is the caller's to
// absorb. The gate is held across both attempts.
func (a *Aggregator) complete(ctx context.Context, prompt string) (string, error) {
	if err := a.gate.Acquire(ctx); err != nil {
		return "", err
	}
	defer a.gate.Release()

	text, err := a.primary.Complete(ctx, prompt)
	if err == nil {
		return text, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if !errors.Is(err, model.ErrRateLimited) {
		return "", err
	}
	a.log.Warn("report analysis rate limited, using fallback",
		"provider", a.primary.Name(), "err", err)
	return a.fallback.Complete(ctx, prompt)
}

func partition(refs []staging.Ref, size int) [][]staging.Ref {
	var out [][]staging.Ref
	for start := 0; start < len(refs); start += size {
		end := min(start+size, len(refs))
		out = append(out, refs[start:end])
	}
	return out
}

// truncate bounds s to max characters, cutting on a rune boundary.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func reportFileName(projectName string, t time.Time) string {
	return fmt.Sprintf("%s_summary_%s.md", sanitizeName(projectName), t.Format("20060102_150405"))
}

// sanitizeName keeps report file names portable: anything outside
// [A-Za-z0-9_-] becomes an underscore.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "project"
	}
	return b.String()
}

func renderMarkdown(rep *ProjectReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", rep.Title)
	fmt.Fprintf(&b, "Generated: %s\n\n", rep.GeneratedAt.Format(time.RFC1123))

	b.WriteString("## Overview\n\n")
	b.WriteString(strings.TrimSpace(rep.Overview))
	b.WriteString("\n\n## Detailed File Analysis\n\n")

	sections := make([]string, 0, len(rep.BatchSections))
	for _, s := range rep.BatchSections {
		if strings.TrimSpace(s) == "" {
			continue
		}
		sections = append(sections, strings.TrimSpace(s))
	}
	b.WriteString(strings.Join(sections, model.ChunkDelimiter))
	b.WriteString("\n")
	return b.String()
}
