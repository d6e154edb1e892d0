package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"
)

// APIError represents an error response from the channels API.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("channels api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// channelResponse is the subset of the channel lookup body we need.
type channelResponse struct {
	ID       int64 `json:"id"`
	Chatroom struct {
		ID int64 `json:"id"`
	} `json:"chatroom"`
}

// Resolve looks up the chatroom id for a channel slug.
func (r *HTTPResolver) Resolve(ctx context.Context, channel string) (int64, error) {
	if channel == "" {
		return 0, fmt.Errorf("channel name is empty")
	}

	path := "/api/v2/channels/" + url.PathEscape(channel)
	body, err := r.doWithRetry(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("resolve channel %q: %w", channel, err)
	}

	var resp channelResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("resolve channel %q: unmarshal response: %w", channel, err)
	}

	if resp.Chatroom.ID == 0 {
		return 0, fmt.Errorf("resolve channel %q: no chatroom id in response", channel)
	}

	r.logger.Debug("channel resolved",
		"channel", channel,
		"chatroom_id", resp.Chatroom.ID,
	)

	return resp.Chatroom.ID, nil
}

// doRequest performs a single GET against the API.
func (r *HTTPResolver) doRequest(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	return body, nil
}

// doWithRetry performs a request with exponential backoff retry.
func (r *HTTPResolver) doWithRetry(ctx context.Context, path string) ([]byte, error) {
	var lastErr error
	backoff := r.retryBackoff

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			r.logger.Debug("retrying lookup",
				"attempt", attempt,
				"backoff", jitter,
				"path", path,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		body, err := r.doRequest(ctx, path)
		if err == nil {
			return body, nil
		}

		lastErr = err

		apiErr, ok := err.(*APIError)
		if !ok || !apiErr.IsRetryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
