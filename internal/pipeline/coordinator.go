// Package pipeline sequences repository fetching, per-file summarization,
// and report aggregation into a single run, in batch or streaming form.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	gh "repodigest/internal/github"
	"repodigest/internal/report"
	"repodigest/internal/staging"
	"repodigest/internal/tree"
)

// TreeFetcher walks a repository tree and returns its downloadable files
// keyed by path.
type TreeFetcher interface {
	Fetch(ctx context.Context, ref gh.RepositoryRef) (map[string]tree.FileArtifact, error)
}

// Summarizer turns one file's content into a staged summary artifact. A nil
// artifact with a nil error means the file was skipped.
type Summarizer interface {
	SummarizeFile(ctx context.Context, path, revisionTag, content string) (*staging.Artifact, error)
}

// Aggregator folds staged summaries into the final project report.
type Aggregator interface {
	Aggregate(ctx context.Context, refs []staging.Ref, projectName string) (*report.ProjectReport, error)
}

// Run-level failures surfaced by batch mode.
var (
	// ErrNoFiles reports a tree with nothing downloadable at all.
	ErrNoFiles = errors.New("no readable files found in repository")
	// ErrNoTextFiles reports a tree whose files all fall outside the text
	// allow-list or carry only blank content.
	ErrNoTextFiles = errors.New("no text files found to analyze")
	// ErrNoSummaries reports a run in which every file was skipped.
	ErrNoSummaries = errors.New("no files could be summarized")
)

// Result is the outcome of one batch run.
type Result struct {
	Repo               string `json:"repo"`
	TotalFilesFetched  int    `json:"total_files_fetched"`
	FilesAnalyzed      int    `json:"files_analyzed"`
	ProjectSummaryFile string `json:"project_summary_file"`
}

// Coordinator drives the fetch, filter, summarize, and aggregate phases.
// It owns no throttling itself; the summarizer and aggregator share the
// concurrency gate.
type Coordinator struct {
	fetcher    TreeFetcher
	summarizer Summarizer
	aggregator Aggregator
	log        *slog.Logger
}

func NewCoordinator(fetcher TreeFetcher, summarizer Summarizer, aggregator Aggregator, log *slog.Logger) (*Coordinator, error) {
	if fetcher == nil {
		return nil, errors.New("pipeline: tree fetcher is nil")
	}
	if summarizer == nil {
		return nil, errors.New("pipeline: summarizer is nil")
	}
	if aggregator == nil {
		return nil, errors.New("pipeline: aggregator is nil")
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Coordinator{fetcher: fetcher, summarizer: summarizer, aggregator: aggregator, log: log}, nil
}

// Run executes the whole pipeline and returns one final result. All files
// are summarized concurrently; staged artifacts are collected in filter
// order regardless of completion order.
func (c *Coordinator) Run(ctx context.Context, ref gh.RepositoryRef) (*Result, error) {
	files, err := c.fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	texts := tree.FilterText(files)
	if len(texts) == 0 {
		return nil, ErrNoTextFiles
	}
	c.log.Info("analyzing repository", "repo", ref, "fetched", len(files), "selected", len(texts))

	staged := make([]*staging.Artifact, len(texts))
	var wg sync.WaitGroup
	for i, f := range texts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			art, err := c.summarizer.SummarizeFile(ctx, f.Path, f.RevisionTag, f.Content)
			if err != nil {
				c.log.Warn("file summarization aborted", "path", f.Path, "err", err)
				return
			}
			staged[i] = art
		}()
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	refs := make([]staging.Ref, 0, len(staged))
	for _, art := range staged {
		if art == nil {
			continue
		}
		refs = append(refs, staging.Ref{Path: art.Path, Location: art.Location})
	}
	if len(refs) == 0 {
		return nil, ErrNoSummaries
	}

	rep, err := c.aggregator.Aggregate(ctx, refs, ref.Name)
	if err != nil {
		return nil, err
	}
	return &Result{
		Repo:               ref.String(),
		TotalFilesFetched:  len(files),
		FilesAnalyzed:      len(refs),
		ProjectSummaryFile: rep.Location,
	}, nil
}

// Stream runs the pipeline with one file summarized at a time and emits
// progress events on the returned channel, which closes when the run ends.
// Cancellation is observed between per-file steps: in-flight work for the
// current file finishes, nothing new starts, and staged artifacts are kept
// for a later run.
func (c *Coordinator) Stream(ctx context.Context, ref gh.RepositoryRef) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		c.stream(ctx, ref, out)
	}()
	return out
}

func (c *Coordinator) stream(ctx context.Context, ref gh.RepositoryRef, out chan<- Event) {
	send := func(e Event) bool {
		if ctx.Err() != nil {
			return false
		}
		select {
		case out <- e:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !send(Event{Status: fmt.Sprintf("Fetching repository structure of %s...", ref)}) {
		return
	}
	files, err := c.fetcher.Fetch(ctx, ref)
	if err != nil {
		send(Event{Error: fmt.Sprintf("Error fetching files: %v", err)})
		return
	}
	if len(files) == 0 {
		send(Event{Error: ErrNoFiles.Error()})
		return
	}
	texts := tree.FilterText(files)
	if len(texts) == 0 {
		send(Event{Error: ErrNoTextFiles.Error()})
		return
	}
	if !send(Event{Status: fmt.Sprintf("Fetched %d files, analyzing %d...", len(files), len(texts))}) {
		return
	}

	refs := make([]staging.Ref, 0, len(texts))
	for i, f := range texts {
		if ctx.Err() != nil {
			c.log.Info("stream canceled", "repo", ref, "done", i, "total", len(texts))
			return
		}
		if !send(Event{Status: fmt.Sprintf("Summarizing %s (%d/%d)...", f.Path, i+1, len(texts))}) {
			return
		}
		art, err := c.summarizer.SummarizeFile(ctx, f.Path, f.RevisionTag, f.Content)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !send(Event{Error: fmt.Sprintf("Error summarizing %s: %v", f.Path, err)}) {
				return
			}
			continue
		}
		if art == nil {
			if !send(Event{Error: fmt.Sprintf("Skipping failed summary for %s", f.Path)}) {
				return
			}
			continue
		}
		refs = append(refs, staging.Ref{Path: art.Path, Location: art.Location})
		if !send(Event{FileSummary: &FileSummary{Path: art.Path, Summary: art.SummaryText}}) {
			return
		}
	}

	if len(refs) == 0 {
		send(Event{Error: ErrNoSummaries.Error()})
		return
	}
	if !send(Event{Status: "Generating final project summary..."}) {
		return
	}
	rep, err := c.aggregator.Aggregate(ctx, refs, ref.Name)
	if err != nil {
		send(Event{Error: fmt.Sprintf("Error generating project summary: %v", err)})
		return
	}
	if !send(Event{ProjectSummaryFile: rep.Location}) {
		return
	}
	send(Event{Status: StatusCompleted})
}
