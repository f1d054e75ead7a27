package flags

// Package flags defines canonical CLI flag names shared across the CLI
// commands. Keeping these as constants helps avoid drift between Cobra flag
// wiring and other code paths that reference flags (e.g. config validation
// error messages).
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.Flags().StringVar(&cfg.Server.Addr, flags.FlagAddr, cfg.Server.Addr, "...")
//	arg := "--" + flags.FlagAddr
const (
	// Targeting
	FlagRepo   = "repo"
	FlagConfig = "config"

	// Server
	FlagAddr = "addr"

	// Pipeline
	FlagGatePermits = "gate-permits"
	FlagTreeFanout  = "tree-fanout"
	FlagChunkChars  = "chunk-chars"
	FlagMaxAttempts = "max-attempts"
	FlagRetryDelay  = "retry-delay"
	FlagBatchSize   = "batch-size"
	FlagStagingDir  = "staging-dir"
	FlagReportDir   = "report-dir"

	// Output
	FlagEmit      = "emit"
	FlagOut       = "out"
	FlagOutFormat = "out-format"
	FlagNoConsole = "no-console"

	// Runtime
	FlagTimeout = "timeout"
	FlagVerbose = "verbose"
)
