package tree

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	gh "repodigest/internal/github"

	"github.com/google/go-github/v81/github"
)

// DefaultMaxInFlight bounds concurrent listings and downloads for one fetch.
// This cap is separate from the model-call gate; tree traffic never competes
// for model permits.
const DefaultMaxInFlight = 32

// FetchError reports that the repository tree could not be read at all.
// Failures below the root degrade to missing entries instead.
type FetchError struct {
	Ref gh.RepositoryRef
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch tree of %s: %v", e.Ref, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher walks a repository's contents tree recursively and downloads every
// file that clears the binary deny-list.
type Fetcher struct {
	client *gh.Client
	budget *RequestBudget
	slots  chan struct{}
	log    *slog.Logger
}

func NewFetcher(client *gh.Client, budget *RequestBudget, maxInFlight int, log *slog.Logger) (*Fetcher, error) {
	if client == nil {
		return nil, errors.New("tree fetcher: client is nil")
	}
	if budget == nil {
		budget = NewRequestBudget()
	}
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Fetcher{
		client: client,
		budget: budget,
		slots:  make(chan struct{}, maxInFlight),
		log:    log,
	}, nil
}

// Fetch returns every downloaded candidate file keyed by path. Unreadable
// subdirectories and failed downloads are logged and absorbed; the walk
// fails only when the root listing itself cannot be obtained or the context
// ends before the walk does.
func (f *Fetcher) Fetch(ctx context.Context, ref gh.RepositoryRef) (map[string]FileArtifact, error) {
	files, err := f.fetchDir(ctx, ref, "", true)
	if err != nil {
		return nil, &FetchError{Ref: ref, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Ref: ref, Err: err}
	}
	f.log.Info("tree fetched", "repo", ref.String(), "files", len(files))
	return files, nil
}

// fetchDir lists one directory and resolves its files and subdirectories
// concurrently. Every path below the root absorbs its own failures.
func (f *Fetcher) fetchDir(ctx context.Context, ref gh.RepositoryRef, dir string, root bool) (map[string]FileArtifact, error) {
	file, entries, err := f.listContents(ctx, ref, dir)
	if err != nil {
		if root {
			return nil, err
		}
		f.log.Warn("skipping unreadable directory", "repo", ref.String(), "dir", dir, "err", err)
		return map[string]FileArtifact{}, nil
	}

	files := make(map[string]FileArtifact)
	var mu sync.Mutex

	// The path resolved to a single file rather than a directory listing.
	if file != nil {
		f.resolveFile(ctx, file, files, &mu)
		return files, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, entry := range entries {
		switch entry.GetType() {
		case "dir":
			subdir := entry.GetPath()
			g.Go(func() error {
				sub, err := f.fetchDir(gctx, ref, subdir, false)
				if err != nil {
					return err
				}
				mu.Lock()
				for p, a := range sub {
					files[p] = a
				}
				mu.Unlock()
				return nil
			})
		case "file":
			item := entry
			g.Go(func() error {
				f.resolveFile(gctx, item, files, &mu)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// resolveFile downloads one tree entry into the shared result map. Deny-listed
// paths never reach the network; download failures drop the entry.
func (f *Fetcher) resolveFile(ctx context.Context, entry *github.RepositoryContent, files map[string]FileArtifact, mu *sync.Mutex) {
	p := entry.GetPath()
	if IsBinaryPath(p) {
		return
	}
	url := entry.GetDownloadURL()
	if url == "" {
		f.log.Warn("entry has no download location, skipping", "path", p)
		return
	}

	content, err := f.download(ctx, url)
	if err != nil {
		f.log.Warn("download failed, skipping file", "path", p, "err", err)
		return
	}

	mu.Lock()
	files[p] = FileArtifact{Path: p, RevisionTag: entry.GetSHA(), Content: content}
	mu.Unlock()
}

func (f *Fetcher) listContents(ctx context.Context, ref gh.RepositoryRef, dir string) (*github.RepositoryContent, []*github.RepositoryContent, error) {
	if err := f.acquireSlot(ctx); err != nil {
		return nil, nil, err
	}
	defer f.releaseSlot()

	if err := f.budget.Acquire(ctx); err != nil {
		return nil, nil, err
	}
	file, entries, resp, err := f.client.Client.Repositories.GetContents(ctx, ref.Owner, ref.Name, dir, nil)
	if resp != nil {
		f.budget.UpdateFromResponse(resp.Response)
	}
	if err != nil {
		return nil, nil, err
	}
	return file, entries, nil
}

// download fetches raw file content. Raw hosts do not report core-API rate
// headers, so downloads only consume an in-flight slot, not budget.
func (f *Fetcher) download(ctx context.Context, url string) (string, error) {
	if err := f.acquireSlot(ctx); err != nil {
		return "", err
	}
	defer f.releaseSlot()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: unexpected status %s", url, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (f *Fetcher) acquireSlot(ctx context.Context) error {
	select {
	case f.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Fetcher) releaseSlot() {
	<-f.slots
}
