// Package config holds the runtime configuration for repodigest commands.
// Defaults come from New, optional YAML files overlay them via LoadFile, and
// CLI flags overlay both before Validate runs.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// MAINTAINER NOTE: If you add/change/remove config fields that affect
	// analysis behavior, keep these in sync:
	// - shared CLI flags and the file overlay in internal/cli/wiring.go
	// - command-specific flags in internal/cli/serve.go and internal/cli/analyze.go
	// - the sample config in docs/config.example.yaml
	Server   Server   `yaml:"server"`
	Pipeline Pipeline `yaml:"pipeline"`
	Staging  Staging  `yaml:"staging"`
	Report   Report   `yaml:"report"`
	Output   Output   `yaml:"-"`
	Runtime  Runtime  `yaml:"runtime"`
}

type Server struct {
	// Addr is the listen address for the HTTP API (see --addr).
	Addr string `yaml:"addr"`
}

type Pipeline struct {
	// GatePermits caps concurrent model calls across the whole process
	// (see --gate-permits). Must be >= 1.
	GatePermits int `yaml:"gate_permits"`

	// TreeFanout bounds concurrent tree listings and file downloads for one
	// repository fetch (see --tree-fanout). Must be >= 1.
	TreeFanout int `yaml:"tree_fanout"`

	// ChunkChars is the per-chunk character budget when splitting a file
	// for summarization (see --chunk-chars). Must be >= 1.
	ChunkChars int `yaml:"chunk_chars"`

	// MaxAttempts is how many times the primary provider is tried per call
	// before falling back (see --max-attempts). Must be >= 1.
	MaxAttempts int `yaml:"max_attempts"`

	// RetryDelay seeds the backoff between provider attempts (see --retry-delay).
	// Must be > 0.
	RetryDelay Duration `yaml:"retry_delay"`

	// BatchSize is how many staged file summaries feed one detail section of
	// the project report (see --batch-size). Must be >= 1.
	BatchSize int `yaml:"batch_size"`
}

type Staging struct {
	// Dir is where per-file summary artifacts are staged between the
	// analysis and aggregation phases (see --staging-dir).
	Dir string `yaml:"dir"`
}

type Report struct {
	// Dir is where finished Markdown reports are written (see --report-dir).
	Dir string `yaml:"dir"`
}

type Output struct {
	// Emit writes an additional structured event stream to stdout (see --emit).
	// Allowed values: json, ndjson.
	Emit []string

	// Out writes the event stream to this path (see --out).
	Out string

	// OutFormat selects the format for --out (see --out-format).
	// Allowed values: json, ndjson. If empty, it is inferred from the --out
	// file extension.
	OutFormat string

	// NoConsole suppresses the console sink (see --no-console).
	// Use with --emit/--out for machine-readable output.
	NoConsole bool
}

type Runtime struct {
	// Timeout is the overall deadline for one analysis run (see --timeout).
	// Must be > 0.
	Timeout Duration `yaml:"timeout"`

	// Verbose enables debug-level diagnostics (see --verbose).
	Verbose bool `yaml:"verbose"`
}

// Duration parses YAML values with time.ParseDuration so config files can
// say "2s" or "30m" instead of nanosecond counts.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

func New() *Config {
	return &Config{
		Server: Server{
			Addr: ":8000",
		},
		Pipeline: Pipeline{
			GatePermits: 15,
			TreeFanout:  32,
			ChunkChars:  4000,
			MaxAttempts: 3,
			RetryDelay:  Duration(2 * time.Second),
			BatchSize:   5,
		},
		Staging: Staging{
			Dir: "temp_summaries",
		},
		Report: Report{
			Dir: ".",
		},
		Runtime: Runtime{
			Timeout: Duration(30 * time.Minute),
		},
	}
}

// LoadFile overlays the YAML file at path onto c. Fields absent from the
// file keep their current values.
func LoadFile(path string, c *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	c.Output.Emit = splitCommaList(c.Output.Emit)

	// Server validation
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("--addr must not be empty")
	}

	// Pipeline validation
	if c.Pipeline.GatePermits <= 0 {
		return errors.New("--gate-permits must be >= 1")
	}
	if c.Pipeline.TreeFanout <= 0 {
		return errors.New("--tree-fanout must be >= 1")
	}
	if c.Pipeline.ChunkChars <= 0 {
		return errors.New("--chunk-chars must be >= 1")
	}
	if c.Pipeline.MaxAttempts <= 0 {
		return errors.New("--max-attempts must be >= 1")
	}
	if c.Pipeline.RetryDelay <= 0 {
		return errors.New("--retry-delay must be > 0")
	}
	if c.Pipeline.BatchSize <= 0 {
		return errors.New("--batch-size must be >= 1")
	}

	// Staging and report destinations
	if strings.TrimSpace(c.Staging.Dir) == "" {
		return errors.New("--staging-dir must not be empty")
	}
	if strings.TrimSpace(c.Report.Dir) == "" {
		return errors.New("--report-dir must not be empty")
	}

	// Output validation
	for _, emit := range c.Output.Emit {
		v := normalizeEnumValue(emit)
		if v == "" {
			return errors.New("--emit must be one of: json, ndjson")
		}
		if v != "json" && v != "ndjson" {
			return fmt.Errorf("unsupported --emit value: %s (must be one of: json, ndjson)", v)
		}
	}

	if c.Output.Out != "" {
		c.Output.OutFormat = normalizeEnumValue(c.Output.OutFormat)
		if c.Output.OutFormat == "" {
			ext := strings.ToLower(filepath.Ext(c.Output.Out))
			switch ext {
			case ".json":
				c.Output.OutFormat = "json"
			case ".ndjson", ".jsonl":
				c.Output.OutFormat = "ndjson"
			default:
				if ext == "" {
					return errors.New("cannot infer output format from file extension (missing extension); use --out-format")
				}
				return fmt.Errorf("cannot infer output format from file extension %q; use --out-format", ext)
			}
		} else {
			if c.Output.OutFormat != "json" && c.Output.OutFormat != "ndjson" {
				return fmt.Errorf("unsupported output format: %s", c.Output.OutFormat)
			}
		}
	}

	// Runtime validation
	if c.Runtime.Timeout <= 0 {
		return errors.New("--timeout must be > 0")
	}

	return nil
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// splitCommaList expands values like ["json,ndjson", "json"] into
// ["json", "ndjson", "json"], trimming whitespace and dropping empties.
func splitCommaList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
