package cli

import (
	"fmt"
	"log/slog"
	"os"

	"repodigest/internal/config"
	"repodigest/internal/flags"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var cfg = config.New()

var rootCmd = &cobra.Command{
	Use:   "repodigest",
	Short: "Summarize GitHub repositories into Markdown reports with LLMs",
	Long: `RepoDigest fetches a GitHub repository's file tree, summarizes every text
file with an LLM, and assembles the per-file summaries into a single Markdown
project report.

RepoDigest is read-only: it downloads file contents via the GitHub API and
never mutates the repository.

Examples:
	# Show available commands and global flags
	repodigest --help

	# Analyze one repository from the command line
	repodigest analyze --repo https://github.com/octocat/hello-world

	# Run the HTTP API (batch JSON + SSE streaming endpoints)
	repodigest serve --addr :8000

	# Print build info
	repodigest version

Output:
	By default, commands write human-readable progress to stdout.
	The analyze command supports structured output via emitter flags
	(see repodigest analyze --help).`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Provider keys and GITHUB_TOKEN commonly live in a .env file.
		_ = godotenv.Load()
		configureDefaultLogger(cfg.Runtime.Verbose)
	},
}

// configureDefaultLogger is re-run after config file overlay, which can flip
// verbose on after flags were parsed.
func configureDefaultLogger(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&cfg.Runtime.Verbose, flags.FlagVerbose, false, "Enable verbose logging (prints every GitHub API call and full error details)")
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
