package resolver

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// DefaultBaseURL is the public channels API endpoint.
const DefaultBaseURL = "https://kick.com"

// Resolver turns a channel name into the numeric chatroom id used in the
// chat subscribe frame. The client depends only on this interface; tests
// and embedders can plug in their own lookup.
type Resolver interface {
	Resolve(ctx context.Context, channel string) (int64, error)
}

// Func adapts a plain function to the Resolver interface.
type Func func(ctx context.Context, channel string) (int64, error)

func (f Func) Resolve(ctx context.Context, channel string) (int64, error) {
	return f(ctx, channel)
}

// HTTPResolver resolves channel names against the channels REST API.
type HTTPResolver struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string

	maxRetries   int
	retryBackoff time.Duration
}

// Option configures an HTTPResolver.
type Option func(*HTTPResolver)

// NewHTTP creates a resolver for the channels REST API.
func NewHTTP(baseURL string, opts ...Option) *HTTPResolver {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	r := &HTTPResolver{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *HTTPResolver) {
		r.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) Option {
	return func(r *HTTPResolver) {
		r.maxRetries = max
		r.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *HTTPResolver) {
		r.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(r *HTTPResolver) {
		r.httpClient = hc
	}
}

// WithUserAgent sets the User-Agent header sent on lookups.
func WithUserAgent(ua string) Option {
	return func(r *HTTPResolver) {
		r.userAgent = ua
	}
}
