package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"repodigest/internal/flags"
	"repodigest/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP analysis API",
	Long: `Run the HTTP analysis API.

Endpoints:
	GET /analyze_repo?url=<github_url>         Analyze a repository and return a
	                                           JSON result once the run finishes.
	GET /analyze_repo_stream?url=<github_url>  Analyze a repository and stream
	                                           progress as Server-Sent Events.
	GET /healthz                               Liveness probe.

Authentication:
	RepoDigest reads repositories through the GitHub API. It prefers
	GITHUB_TOKEN, but can also reuse GitHub CLI authentication if the gh CLI
	is installed and logged in. Without a token, public repositories still
	work at a much lower rate budget.

Providers:
	Summarization needs GEMINI_API_KEY. OPENAI_API_KEY is optional and, when
	set, enables the fallback provider for files the primary keeps failing
	on. Both may live in a .env file next to the binary.

Examples:
	export GITHUB_TOKEN="<your_token>"
	export GEMINI_API_KEY="<your_key>"
	repodigest serve --addr :8000

	# Stream analysis progress
	curl -N 'http://localhost:8000/analyze_repo_stream?url=https://github.com/octocat/hello-world'
`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runServe(cmd); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func runServe(cmd *cobra.Command) error {
	if err := applyConfigFile(cmd); err != nil {
		return err
	}
	applyDurationFlags(cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}
	configureDefaultLogger(cfg.Runtime.Verbose)
	log := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coord, closeProviders, err := newCoordinator(ctx, log)
	if err != nil {
		return err
	}
	defer func() { _ = closeProviders() }()

	srv, err := server.New(coord, log)
	if err != nil {
		return err
	}
	return srv.Run(ctx, cfg.Server.Addr)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&cfg.Server.Addr, flags.FlagAddr, cfg.Server.Addr, "Listen address for the HTTP API (default: :8000)")
	addSharedFlags(serveCmd)
}
