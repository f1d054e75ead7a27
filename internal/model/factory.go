package model

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
)

// Providers bundles the primary and fallback completers for one deployment.
type Providers struct {
	Primary  Completer
	Fallback Completer

	closers []interface{ Close() error }
}

// Close releases any provider clients that hold connections.
func (p *Providers) Close() error {
	var errs []error
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromEnv builds providers from environment credentials. GEMINI_API_KEY is
// required. OPENAI_API_KEY is optional; without it the fallback is disabled
// and exhausted retries surface as marker text in summaries.
func FromEnv(ctx context.Context, log *slog.Logger) (*Providers, error) {
	geminiKey := os.Getenv("GEMINI_API_KEY")
	if strings.TrimSpace(geminiKey) == "" {
		return nil, errors.New("GEMINI_API_KEY is not set")
	}
	primary, err := NewGemini(ctx, geminiKey, os.Getenv("GEMINI_MODEL"))
	if err != nil {
		return nil, err
	}

	p := &Providers{Primary: primary, closers: []interface{ Close() error }{primary}}

	if key := os.Getenv("OPENAI_API_KEY"); strings.TrimSpace(key) != "" {
		fallback, err := NewOpenAI(key, os.Getenv("OPENAI_BASE_URL"), os.Getenv("OPENAI_MODEL"))
		if err != nil {
			_ = p.Close()
			return nil, err
		}
		p.Fallback = fallback
	} else {
		if log != nil {
			log.Warn("OPENAI_API_KEY not set, fallback provider disabled")
		}
		p.Fallback = Disabled("no fallback provider configured")
	}

	if log != nil {
		log.Info("model providers ready", "primary", p.Primary.Name(), "fallback", p.Fallback.Name())
	}
	return p, nil
}
