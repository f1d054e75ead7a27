package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gh "repodigest/internal/github"
	"repodigest/internal/pipeline"
	"repodigest/internal/report"
	"repodigest/internal/tree"
)

type runnerStub struct {
	mu     sync.Mutex
	runs   int
	gotRef gh.RepositoryRef
	result *pipeline.Result
	err    error
	delay  time.Duration

	events        []pipeline.Event
	streamQuit    chan struct{}
	streamEndless bool
}

func (r *runnerStub) Run(_ context.Context, ref gh.RepositoryRef) (*pipeline.Result, error) {
	r.mu.Lock()
	r.runs++
	r.gotRef = ref
	r.mu.Unlock()
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

func (r *runnerStub) Stream(ctx context.Context, _ gh.RepositoryRef) <-chan pipeline.Event {
	ch := make(chan pipeline.Event)
	go func() {
		defer close(ch)
		if r.streamQuit != nil {
			defer close(r.streamQuit)
		}
		for {
			for _, e := range r.events {
				select {
				case ch <- e:
				case <-ctx.Done():
					return
				}
			}
			if !r.streamEndless {
				return
			}
		}
	}()
	return ch
}

func (r *runnerStub) runCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

func newTestServer(t *testing.T, stub *runnerStub) *httptest.Server {
	t.Helper()
	s, err := New(stub, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, into any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if into != nil {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestAnalyze_ReturnsResult(t *testing.T) {
	stub := &runnerStub{result: &pipeline.Result{
		Repo:               "octo/demo",
		TotalFilesFetched:  9,
		FilesAnalyzed:      7,
		ProjectSummaryFile: "demo_summary_20260821_103000.md",
	}}
	ts := newTestServer(t, stub)

	var body map[string]any
	status := getJSON(t, ts.URL+"/analyze_repo?url=https://github.com/octo/demo", &body)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}

	if body["repo"] != "octo/demo" {
		t.Errorf("repo = %v", body["repo"])
	}
	if body["total_files_fetched"] != float64(9) {
		t.Errorf("total_files_fetched = %v", body["total_files_fetched"])
	}
	if body["files_analyzed"] != float64(7) {
		t.Errorf("files_analyzed = %v", body["files_analyzed"])
	}
	if body["project_summary_file"] != "demo_summary_20260821_103000.md" {
		t.Errorf("project_summary_file = %v", body["project_summary_file"])
	}
	if stub.gotRef != (gh.RepositoryRef{Owner: "octo", Name: "demo"}) {
		t.Errorf("runner got ref %v", stub.gotRef)
	}
}

func TestAnalyze_RejectsBadURL(t *testing.T) {
	stub := &runnerStub{result: &pipeline.Result{}}
	ts := newTestServer(t, stub)

	for _, q := range []string{
		"",
		"?url=github.com/octo/demo",
		"?url=https://github.com/octo",
		"?url=https://github.com/octo/demo/tree/main",
	} {
		var body map[string]string
		if status := getJSON(t, ts.URL+"/analyze_repo"+q, &body); status != http.StatusBadRequest {
			t.Errorf("query %q: status = %d, want 400", q, status)
		}
		if body["error"] == "" {
			t.Errorf("query %q: missing error message", q)
		}
	}
	if stub.runCount() != 0 {
		t.Errorf("runner invoked %d times for invalid input", stub.runCount())
	}
}

func TestAnalyze_ErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"fetch failure", &tree.FetchError{Ref: gh.RepositoryRef{Owner: "o", Name: "r"}, Err: errors.New("down")}, http.StatusBadGateway},
		{"empty tree", pipeline.ErrNoFiles, http.StatusNotFound},
		{"nothing to analyze", pipeline.ErrNoTextFiles, http.StatusNotFound},
		{"all files skipped", pipeline.ErrNoSummaries, http.StatusInternalServerError},
		{"aggregation failure", &report.AggregationError{Stage: "write", Err: errors.New("disk full")}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, &runnerStub{err: tc.err})
			var body map[string]string
			status := getJSON(t, ts.URL+"/analyze_repo?url=https://github.com/octo/demo", &body)
			if status != tc.want {
				t.Errorf("status = %d, want %d", status, tc.want)
			}
			if body["error"] == "" {
				t.Error("missing error message")
			}
		})
	}
}

func TestAnalyze_ConcurrentRequestsShareOneRun(t *testing.T) {
	stub := &runnerStub{
		result: &pipeline.Result{Repo: "octo/demo"},
		delay:  80 * time.Millisecond,
	}
	ts := newTestServer(t, stub)

	// The .git suffix resolves to the same repository, so it must join the
	// in-flight run too.
	urls := []string{
		ts.URL + "/analyze_repo?url=https://github.com/octo/demo",
		ts.URL + "/analyze_repo?url=https://github.com/octo/demo",
		ts.URL + "/analyze_repo?url=https://github.com/octo/demo.git",
		ts.URL + "/analyze_repo?url=https://github.com/octo/demo/",
	}

	var wg sync.WaitGroup
	for _, u := range urls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Get(u)
			if err != nil {
				t.Errorf("GET: %v", err)
				return
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("status = %d", resp.StatusCode)
			}
		}()
	}
	wg.Wait()

	if stub.runCount() != 1 {
		t.Errorf("pipeline ran %d times for identical concurrent requests, want 1", stub.runCount())
	}
}

func TestStream_EmitsServerSentEvents(t *testing.T) {
	stub := &runnerStub{events: []pipeline.Event{
		{Status: "Fetching repository structure of octo/demo..."},
		{FileSummary: &pipeline.FileSummary{Path: "a.py", Summary: "summary of a.py"}},
		{ProjectSummaryFile: "demo_summary.md"},
		{Status: pipeline.StatusCompleted},
	}}
	ts := newTestServer(t, stub)

	resp, err := http.Get(ts.URL + "/analyze_repo_stream?url=https://github.com/octo/demo")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}

	blocks := strings.Split(strings.TrimSpace(string(raw)), "\n\n")
	if len(blocks) != 4 {
		t.Fatalf("got %d event blocks, want 4:\n%s", len(blocks), raw)
	}

	var events []pipeline.Event
	for _, blk := range blocks {
		payload, ok := strings.CutPrefix(blk, "data: ")
		if !ok {
			t.Fatalf("block missing data prefix: %q", blk)
		}
		var e pipeline.Event
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			t.Fatalf("decode event %q: %v", payload, err)
		}
		events = append(events, e)

		var m map[string]json.RawMessage
		if err := json.Unmarshal([]byte(payload), &m); err != nil {
			t.Fatalf("decode event keys: %v", err)
		}
		if len(m) != 1 {
			t.Errorf("event carries %d fields, want exactly 1: %q", len(m), payload)
		}
	}

	if events[1].FileSummary == nil || events[1].FileSummary.Path != "a.py" {
		t.Errorf("second event = %+v, want file summary for a.py", events[1])
	}
	if last := events[len(events)-1]; last.Status != pipeline.StatusCompleted {
		t.Errorf("last event = %+v, want completion status", last)
	}
}

func TestStream_RejectsBadURL(t *testing.T) {
	ts := newTestServer(t, &runnerStub{})
	var body map[string]string
	if status := getJSON(t, ts.URL+"/analyze_repo_stream?url=ssh://github.com/octo/demo", &body); status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
}

func TestStream_ClientDisconnectStopsRun(t *testing.T) {
	stub := &runnerStub{
		events:        []pipeline.Event{{Status: "Summarizing a.py (1/400)..."}},
		streamQuit:    make(chan struct{}),
		streamEndless: true,
	}
	ts := newTestServer(t, stub)

	resp, err := http.Get(ts.URL + "/analyze_repo_stream?url=https://github.com/octo/demo")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	buf := make([]byte, 64)
	if _, err := resp.Body.Read(buf); err != nil {
		t.Fatalf("read first event: %v", err)
	}
	resp.Body.Close()

	select {
	case <-stub.streamQuit:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline kept running after the client disconnected")
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, &runnerStub{})
	var body map[string]any
	if status := getJSON(t, ts.URL+"/healthz", &body); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body["ok"] != true {
		t.Errorf("ok = %v", body["ok"])
	}
}
