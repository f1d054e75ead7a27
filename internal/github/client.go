package github

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/go-github/v81/github"
	"golang.org/x/oauth2"
)

// Client bundles the REST client with the raw HTTP client behind it. The raw
// client is reused for direct content downloads so they share the same
// transport chain (auth, tracing).
type Client struct {
	Client *github.Client
	HTTP   *http.Client
}

type options struct {
	logger *slog.Logger
}

type Option func(*options)

// WithLogger traces every outgoing API call at debug level, including status
// and latency. Useful when a tree walk stalls or trips rate limits.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// tracingRoundTripper wraps an underlying transport and emits one debug
// record per request/response pair.
type tracingRoundTripper struct {
	base http.RoundTripper
	log  *slog.Logger
}

func (t *tracingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	dur := time.Since(start).Truncate(time.Millisecond)
	if err != nil {
		t.log.Debug("github api call failed", "method", req.Method, "url", req.URL.String(), "dur", dur, "err", err)
		return resp, err
	}
	t.log.Debug("github api call", "method", req.Method, "url", req.URL.String(), "status", resp.StatusCode, "dur", dur)
	return resp, nil
}

// NewClient builds an API client. An empty token yields an unauthenticated
// client, which works for public repositories at a much lower rate budget.
func NewClient(token string, opts ...Option) (*Client, error) {
	o := &options{}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}

	transport := http.DefaultTransport
	if o.logger != nil {
		transport = &tracingRoundTripper{base: transport, log: o.logger}
	}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		transport = &oauth2.Transport{Source: ts, Base: transport}
	}
	// Always provide an http.Client so downloads share the transport chain
	// even without a token.
	hc := &http.Client{Transport: transport}

	return &Client{
		Client: github.NewClient(hc),
		HTTP:   hc,
	}, nil
}

// ForBaseURL repoints the REST client at a different API root. The URL must
// end in a slash.
func (c *Client) ForBaseURL(baseURL string) error {
	u, err := c.Client.BaseURL.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("github client: parse base url: %w", err)
	}
	c.Client.BaseURL = u
	return nil
}
