package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"

	"repodigest/internal/pipeline"
)

// ConsoleSink renders progress events for a human terminal: cyan status
// lines, red errors, green per-file summaries, and the report path in bold.
type ConsoleSink struct {
	writer io.Writer
	mu     sync.Mutex

	status  *color.Color
	success *color.Color
	failure *color.Color
	dim     *color.Color
	em      *color.Color
}

func NewConsoleSink(w io.Writer) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleSink{
		writer:  w,
		status:  color.New(color.FgHiCyan),
		success: color.New(color.FgHiGreen),
		failure: color.New(color.FgHiRed),
		dim:     color.New(color.FgHiBlack),
		em:      color.New(color.Bold),
	}
}

func (s *ConsoleSink) Write(e pipeline.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch {
	case e.Error != "":
		_, err = s.failure.Fprintf(s.writer, "✗ %s\n", e.Error)
	case e.FileSummary != nil:
		if _, err = s.success.Fprintf(s.writer, "✓ %s\n", e.FileSummary.Path); err != nil {
			return err
		}
		_, err = s.dim.Fprintf(s.writer, "%s\n", indent(e.FileSummary.Summary, "    "))
	case e.ProjectSummaryFile != "":
		if _, err = fmt.Fprintln(s.writer); err != nil {
			return err
		}
		_, err = s.em.Fprintf(s.writer, "Report written to %s\n", e.ProjectSummaryFile)
	case e.Status == pipeline.StatusCompleted:
		_, err = s.success.Fprintf(s.writer, "%s\n", e.Status)
	case e.Status != "":
		_, err = s.status.Fprintf(s.writer, "» %s\n", e.Status)
	}
	if err != nil {
		return err
	}
	return flushIfPossible(s.writer)
}

func (s *ConsoleSink) Close() error {
	return nil
}

func indent(text, prefix string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
