package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultGeminiModel is the primary completion model.
const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiCompleter is the primary provider, backed by the Gemini API.
type GeminiCompleter struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

// NewGemini builds the primary provider. Summaries want low temperature and
// a bounded output size, so those are fixed here rather than configured.
func NewGemini(ctx context.Context, apiKey, modelName string) (*GeminiCompleter, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini: api key required")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	m := client.GenerativeModel(modelName)
	m.SetTemperature(0.2)
	m.SetTopP(0.95)
	m.SetMaxOutputTokens(4096)

	return &GeminiCompleter{client: client, model: m, name: modelName}, nil
}

func (g *GeminiCompleter) Name() string { return "gemini/" + g.name }

func (g *GeminiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		if isThrottle(err) {
			return "", fmt.Errorf("gemini: %w: %v", ErrRateLimited, err)
		}
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return "", errors.New("gemini: empty completion")
	}
	return text, nil
}

// Close releases the underlying API client.
func (g *GeminiCompleter) Close() error {
	return g.client.Close()
}

// isThrottle recognizes quota responses on both transports the SDK uses:
// HTTP 429 and gRPC ResourceExhausted.
func isThrottle(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	if s, ok := status.FromError(err); ok && s.Code() == codes.ResourceExhausted {
		return true
	}
	return false
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	return strings.TrimSpace(b.String())
}
