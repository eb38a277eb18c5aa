package fetchcache

import (
	"log/slog"
	"net/http"
	"time"
)

// RetryTransport retries idempotent requests on network errors and on 429 /
// 5xx responses with exponential backoff (100ms, 200ms, 400ms, ...).
type RetryTransport struct {
	Base       http.RoundTripper
	MaxRetries int
	Logger     *slog.Logger
}

func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if req.Body != nil && req.Body != http.NoBody {
		return base.RoundTrip(req)
	}
	for attempt := 0; ; attempt++ {
		resp, err := base.RoundTrip(req)
		if !retryable(resp, err) || attempt >= t.MaxRetries {
			return resp, err
		}
		if resp != nil {
			_ = resp.Body.Close()
		}
		wait := time.Duration(100<<attempt) * time.Millisecond
		if t.Logger != nil {
			t.Logger.Debug("retrying image fetch", "url", req.URL.String(), "attempt", attempt+1, "wait", wait)
		}
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(wait):
		}
	}
}

func retryable(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
}
