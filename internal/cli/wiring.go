package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"repodigest/internal/config"
	"repodigest/internal/flags"
	"repodigest/internal/gate"
	gh "repodigest/internal/github"
	"repodigest/internal/model"
	"repodigest/internal/pipeline"
	"repodigest/internal/report"
	"repodigest/internal/staging"
	"repodigest/internal/tree"

	"github.com/spf13/cobra"
)

var (
	cfgFile        string
	flagRetryDelay time.Duration
	flagTimeout    time.Duration
)

// addSharedFlags registers the pipeline knobs both serve and analyze accept.
func addSharedFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&cfgFile, flags.FlagConfig, "", "Path to a YAML config file (command-line flags override file values)")
	cmd.Flags().IntVar(&cfg.Pipeline.GatePermits, flags.FlagGatePermits, cfg.Pipeline.GatePermits, "Maximum concurrent model calls (default: 15)")
	cmd.Flags().IntVar(&cfg.Pipeline.TreeFanout, flags.FlagTreeFanout, cfg.Pipeline.TreeFanout, "Maximum concurrent tree listings and downloads per fetch (default: 32)")
	cmd.Flags().IntVar(&cfg.Pipeline.ChunkChars, flags.FlagChunkChars, cfg.Pipeline.ChunkChars, "Characters per model call when splitting a file (default: 4000)")
	cmd.Flags().IntVar(&cfg.Pipeline.MaxAttempts, flags.FlagMaxAttempts, cfg.Pipeline.MaxAttempts, "Primary provider attempts per call before fallback (default: 3)")
	cmd.Flags().DurationVar(&flagRetryDelay, flags.FlagRetryDelay, cfg.Pipeline.RetryDelay.Std(), "Initial backoff between provider attempts (default: 2s)")
	cmd.Flags().IntVar(&cfg.Pipeline.BatchSize, flags.FlagBatchSize, cfg.Pipeline.BatchSize, "Staged summaries per report detail section (default: 5)")
	cmd.Flags().StringVar(&cfg.Staging.Dir, flags.FlagStagingDir, cfg.Staging.Dir, "Directory for staged per-file summaries (default: temp_summaries)")
	cmd.Flags().StringVar(&cfg.Report.Dir, flags.FlagReportDir, cfg.Report.Dir, "Directory for finished Markdown reports (default: current directory)")
}

// applyConfigFile overlays --config file values onto cfg. Flags set
// explicitly on the command line win over file values, so only fields whose
// flags were left at their defaults are copied.
func applyConfigFile(cmd *cobra.Command) error {
	if cfgFile == "" {
		return nil
	}
	loaded := config.New()
	if err := config.LoadFile(cfgFile, loaded); err != nil {
		return err
	}

	if !cmd.Flags().Changed(flags.FlagAddr) {
		cfg.Server.Addr = loaded.Server.Addr
	}
	if !cmd.Flags().Changed(flags.FlagGatePermits) {
		cfg.Pipeline.GatePermits = loaded.Pipeline.GatePermits
	}
	if !cmd.Flags().Changed(flags.FlagTreeFanout) {
		cfg.Pipeline.TreeFanout = loaded.Pipeline.TreeFanout
	}
	if !cmd.Flags().Changed(flags.FlagChunkChars) {
		cfg.Pipeline.ChunkChars = loaded.Pipeline.ChunkChars
	}
	if !cmd.Flags().Changed(flags.FlagMaxAttempts) {
		cfg.Pipeline.MaxAttempts = loaded.Pipeline.MaxAttempts
	}
	if !cmd.Flags().Changed(flags.FlagRetryDelay) {
		cfg.Pipeline.RetryDelay = loaded.Pipeline.RetryDelay
	}
	if !cmd.Flags().Changed(flags.FlagBatchSize) {
		cfg.Pipeline.BatchSize = loaded.Pipeline.BatchSize
	}
	if !cmd.Flags().Changed(flags.FlagStagingDir) {
		cfg.Staging.Dir = loaded.Staging.Dir
	}
	if !cmd.Flags().Changed(flags.FlagReportDir) {
		cfg.Report.Dir = loaded.Report.Dir
	}
	if !cmd.Flags().Changed(flags.FlagTimeout) {
		cfg.Runtime.Timeout = loaded.Runtime.Timeout
	}
	if !cmd.Flags().Changed(flags.FlagVerbose) {
		cfg.Runtime.Verbose = loaded.Runtime.Verbose
	}
	return nil
}

// applyDurationFlags copies duration flag values into cfg. Durations need
// separate flag variables because the config file parses them through
// config.Duration while cobra wants a time.Duration.
func applyDurationFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed(flags.FlagRetryDelay) {
		cfg.Pipeline.RetryDelay = config.Duration(flagRetryDelay)
	}
	if cmd.Flags().Changed(flags.FlagTimeout) {
		cfg.Runtime.Timeout = config.Duration(flagTimeout)
	}
}

// newCoordinator assembles the analysis pipeline from cfg: GitHub client and
// tree fetcher, model providers and summary engine, staging store, report
// aggregator. The returned cleanup closes provider connections.
func newCoordinator(ctx context.Context, log *slog.Logger) (*pipeline.Coordinator, func() error, error) {
	token, source, err := gh.ResolveAuthToken(ctx, "")
	if err != nil {
		return nil, nil, fmt.Errorf("resolve GitHub auth token: %w", err)
	}
	if token == "" {
		log.Warn("no GitHub token found, running unauthenticated (set GITHUB_TOKEN or run 'gh auth login')")
	} else {
		log.Debug("github auth resolved", "source", string(source))
	}

	var clientOpts []gh.Option
	if cfg.Runtime.Verbose {
		clientOpts = append(clientOpts, gh.WithLogger(log))
	}
	client, err := gh.NewClient(token, clientOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create GitHub client: %w", err)
	}

	fetcher, err := tree.NewFetcher(client, tree.NewRequestBudget(), cfg.Pipeline.TreeFanout, log)
	if err != nil {
		return nil, nil, err
	}

	providers, err := model.FromEnv(ctx, log)
	if err != nil {
		return nil, nil, err
	}

	g, err := gate.New(cfg.Pipeline.GatePermits)
	if err != nil {
		_ = providers.Close()
		return nil, nil, err
	}

	store, err := staging.NewStore(cfg.Staging.Dir, log)
	if err != nil {
		_ = providers.Close()
		return nil, nil, err
	}

	engine, err := model.NewEngine(providers.Primary, providers.Fallback, g, store, model.EngineConfig{
		MaxChunkChars: cfg.Pipeline.ChunkChars,
		Policy: model.RetryPolicy{
			MaxAttempts:  cfg.Pipeline.MaxAttempts,
			InitialDelay: cfg.Pipeline.RetryDelay.Std(),
		},
		Logger: log,
	})
	if err != nil {
		_ = providers.Close()
		return nil, nil, err
	}

	aggregator, err := report.NewAggregator(providers.Primary, providers.Fallback, g, store, report.AggregatorConfig{
		ReportDir: cfg.Report.Dir,
		BatchSize: cfg.Pipeline.BatchSize,
		Logger:    log,
	})
	if err != nil {
		_ = providers.Close()
		return nil, nil, err
	}

	coord, err := pipeline.NewCoordinator(fetcher, engine, aggregator, log)
	if err != nil {
		_ = providers.Close()
		return nil, nil, err
	}
	return coord, providers.Close, nil
}
