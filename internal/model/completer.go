// Package model drives LLM completions: providers, retry, fallback, and the
// per-file summary engine.
package model

import (
	"context"
	"errors"
)

// Completer is the completion capability every provider implements.
// Implementations wrap throttling responses with ErrRateLimited so the retry
// ladder can pick the rate-limit backoff.
type Completer interface {
	// Complete runs one prompt and returns the completion text.
	Complete(ctx context.Context, prompt string) (string, error)
	// Name identifies the provider and model in logs.
	Name() string
}

// ErrRateLimited marks a provider throttling response. Match with errors.Is.
var ErrRateLimited = errors.New("model provider rate limited")

// Disabled returns a Completer whose calls always fail with the given
// reason. It stands in for a fallback provider without credentials.
func Disabled(reason string) Completer {
	return disabledCompleter(reason)
}

type disabledCompleter string

func (d disabledCompleter) Name() string { return "disabled" }

func (d disabledCompleter) Complete(context.Context, string) (string, error) {
	return "", errors.New(string(d))
}
