package output

import (
	"bytes"
	"testing"

	"github.com/fatih/color"

	"repodigest/internal/pipeline"
)

func newPlainConsole(t *testing.T) (*ConsoleSink, *bytes.Buffer) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	return NewConsoleSink(&buf), &buf
}

func TestConsoleSink(t *testing.T) {
	t.Run("status line", func(t *testing.T) {
		s, buf := newPlainConsole(t)
		if err := s.Write(pipeline.Event{Status: "Fetching repository structure of octo/demo..."}); err != nil {
			t.Fatalf("Write error: %v", err)
		}
		if got, want := buf.String(), "» Fetching repository structure of octo/demo...\n"; got != want {
			t.Fatalf("output %q, want %q", got, want)
		}
	})

	t.Run("completion is not prefixed", func(t *testing.T) {
		s, buf := newPlainConsole(t)
		if err := s.Write(pipeline.Event{Status: pipeline.StatusCompleted}); err != nil {
			t.Fatalf("Write error: %v", err)
		}
		if got, want := buf.String(), "Completed\n"; got != want {
			t.Fatalf("output %q, want %q", got, want)
		}
	})

	t.Run("error line", func(t *testing.T) {
		s, buf := newPlainConsole(t)
		if err := s.Write(pipeline.Event{Error: "Skipping failed summary for a.py"}); err != nil {
			t.Fatalf("Write error: %v", err)
		}
		if got, want := buf.String(), "✗ Skipping failed summary for a.py\n"; got != want {
			t.Fatalf("output %q, want %q", got, want)
		}
	})

	t.Run("file summary indents body", func(t *testing.T) {
		s, buf := newPlainConsole(t)
		e := pipeline.Event{FileSummary: &pipeline.FileSummary{
			Path:    "src/app.py",
			Summary: "first line\nsecond line\n",
		}}
		if err := s.Write(e); err != nil {
			t.Fatalf("Write error: %v", err)
		}
		want := "✓ src/app.py\n    first line\n    second line\n"
		if got := buf.String(); got != want {
			t.Fatalf("output %q, want %q", got, want)
		}
	})

	t.Run("report path", func(t *testing.T) {
		s, buf := newPlainConsole(t)
		if err := s.Write(pipeline.Event{ProjectSummaryFile: "demo_summary_20260821.md"}); err != nil {
			t.Fatalf("Write error: %v", err)
		}
		if got, want := buf.String(), "\nReport written to demo_summary_20260821.md\n"; got != want {
			t.Fatalf("output %q, want %q", got, want)
		}
	})

	t.Run("empty event writes nothing", func(t *testing.T) {
		s, buf := newPlainConsole(t)
		if err := s.Write(pipeline.Event{}); err != nil {
			t.Fatalf("Write error: %v", err)
		}
		if buf.Len() != 0 {
			t.Fatalf("empty event produced output %q", buf.String())
		}
	})
}
