package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"repodigest/internal/flags"
	gh "repodigest/internal/github"
	"repodigest/internal/output"
	"repodigest/internal/pipeline"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

var repoURL string

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze one GitHub repository and write a Markdown report",
	Long: `Analyze one GitHub repository and write a Markdown report.

The command fetches the repository's file tree, summarizes every text file
with the configured model providers, and assembles the summaries into a
project report named <repo>_summary_<timestamp>.md under --report-dir.

Progress is printed to the console as the analysis runs. Skipped or failed
files are reported individually and never abort the run; the run fails only
when fetching, filtering, or report generation fails.

Output:
	Console output is on by default. Structured outputs can be written via:
	- --out / --out-format: write an aggregate JSON array or NDJSON stream to a file
	- --emit: write an additional structured stream to stdout (json or ndjson)
	- --no-console: suppress the console sink (use with --emit/--out for machine output)

Examples:
	export GEMINI_API_KEY="<your_key>"
	repodigest analyze --repo https://github.com/octocat/hello-world

	# Machine-readable progress stream
	repodigest analyze --repo octocat/hello-world --no-console --emit ndjson

	# Keep a full event log next to the report
	repodigest analyze --repo octocat/hello-world --out events.ndjson
`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 && cmd.Flags().NFlag() == 0 {
			_ = cmd.Help()
			return
		}
		if err := runAnalyze(cmd); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func runAnalyze(cmd *cobra.Command) error {
	if err := applyConfigFile(cmd); err != nil {
		return err
	}
	applyDurationFlags(cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}
	configureDefaultLogger(cfg.Runtime.Verbose)
	log := slog.Default()

	raw := strings.TrimSpace(repoURL)
	if raw == "" {
		return fmt.Errorf("--%s is required", flags.FlagRepo)
	}
	// Accept OWNER/REPO shorthand on the command line. The parser itself
	// stays strict; it also guards the HTTP endpoints.
	if !strings.Contains(raw, "://") && strings.Count(raw, "/") == 1 {
		raw = "https://github.com/" + raw
	}
	ref, err := gh.ParseRepoURL(raw)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Runtime.Timeout.Std())
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	coord, closeProviders, err := newCoordinator(ctx, log)
	if err != nil {
		return err
	}
	defer func() { _ = closeProviders() }()

	mgr, err := buildSinks()
	if err != nil {
		return err
	}

	spin := newWaitSpinner(!cfg.Output.NoConsole && len(cfg.Output.Emit) == 0)
	spin.start()

	var (
		completed bool
		lastError string
	)
	for ev := range coord.Stream(ctx, ref) {
		spin.stop()
		if err := mgr.Write(ev); err != nil {
			log.Warn("sink write failed", "err", err)
		}
		if ev.Error != "" {
			lastError = ev.Error
		}
		if ev.Status == pipeline.StatusCompleted {
			completed = true
		}
	}
	spin.stop()

	if err := mgr.Close(); err != nil {
		return err
	}
	if !completed {
		if lastError != "" {
			return errors.New(lastError)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("analysis interrupted: %w", ctx.Err())
		}
		return errors.New("analysis ended before completion")
	}
	return nil
}

func buildSinks() (*output.Manager, error) {
	mgr := output.NewManager()
	if !cfg.Output.NoConsole {
		if err := mgr.AddSink(output.NewConsoleSink(os.Stdout)); err != nil {
			return nil, err
		}
	}
	for _, format := range cfg.Output.Emit {
		sink, err := output.NewEmitSink(os.Stdout, format)
		if err != nil {
			return nil, err
		}
		if err := mgr.AddSink(sink); err != nil {
			return nil, err
		}
	}
	if cfg.Output.Out != "" {
		sink, err := output.NewFileSink(cfg.Output.Out, cfg.Output.OutFormat)
		if err != nil {
			return nil, err
		}
		if err := mgr.AddSink(sink); err != nil {
			return nil, err
		}
	}
	return mgr, nil
}

// waitSpinner shows activity until the first progress event lands. It stays
// off when stdout carries a structured stream.
type waitSpinner struct {
	s *spinner.Spinner
}

func newWaitSpinner(enabled bool) *waitSpinner {
	if !enabled {
		return &waitSpinner{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Contacting GitHub..."
	_ = s.Color("cyan")
	return &waitSpinner{s: s}
}

func (w *waitSpinner) start() {
	if w.s != nil {
		w.s.Start()
	}
}

func (w *waitSpinner) stop() {
	if w.s != nil {
		w.s.Stop()
		w.s = nil
	}
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	// Targeting
	analyzeCmd.Flags().StringVar(&repoURL, flags.FlagRepo, "", "GitHub repository to analyze (URL or OWNER/REPO)")

	// Output
	analyzeCmd.Flags().StringSliceVar(&cfg.Output.Emit, flags.FlagEmit, nil, "Emit additional structured stream to stdout: json|ndjson (repeatable; comma-separated accepted)")
	analyzeCmd.Flags().StringVar(&cfg.Output.Out, flags.FlagOut, "", "Write the event stream to this path")
	analyzeCmd.Flags().StringVar(&cfg.Output.OutFormat, flags.FlagOutFormat, "", "Structured output format for --out: json|ndjson (default: inferred from file extension)")
	analyzeCmd.Flags().BoolVar(&cfg.Output.NoConsole, flags.FlagNoConsole, false, "Suppress console output (use with --emit/--out)")

	// Runtime
	analyzeCmd.Flags().DurationVar(&flagTimeout, flags.FlagTimeout, cfg.Runtime.Timeout.Std(), "Overall deadline for the run (default: 30m)")

	addSharedFlags(analyzeCmd)
}
