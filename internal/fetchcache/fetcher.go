package fetchcache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"imgsearch/internal/domain"
)

const (
	DefaultTimeout   = 15 * time.Second
	DefaultUserAgent = "Mozilla/5.0"
	// DefaultMaxBytes bounds a single download.
	DefaultMaxBytes = 32 << 20
)

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	Timeout    time.Duration
	MaxRetries int
	UserAgent  string
	MaxBytes   int64
	// RequireImage rejects responses whose Content-Type is not image/*.
	RequireImage bool
	// Transport overrides the underlying round tripper (tests).
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Fetcher downloads image bytes over HTTP with a bounded timeout.
type Fetcher struct {
	client       *http.Client
	timeout      time.Duration
	userAgent    string
	maxBytes     int64
	requireImage bool
}

// NewFetcher creates a Fetcher, filling zero config values with defaults.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Fetcher{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &RetryTransport{Base: cfg.Transport, MaxRetries: cfg.MaxRetries, Logger: cfg.Logger},
		},
		timeout:      cfg.Timeout,
		userAgent:    cfg.UserAgent,
		maxBytes:     cfg.MaxBytes,
		requireImage: cfg.RequireImage,
	}
}

// Fetch downloads url. Every failure wraps domain.ErrFetchFailed.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s returned %s", domain.ErrFetchFailed, url, resp.Status)
	}
	if f.requireImage && !strings.HasPrefix(strings.ToLower(resp.Header.Get("Content-Type")), "image/") {
		return nil, fmt.Errorf("%w: %s did not return an image (content-type %q)", domain.ErrFetchFailed, url, resp.Header.Get("Content-Type"))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrFetchFailed, url, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrFetchFailed, url, f.maxBytes)
	}
	return data, nil
}

// Resolve implements domain.ImageSource without persisting anything; it is
// used for one-off query URLs.
func (f *Fetcher) Resolve(ctx context.Context, url string) ([]byte, error) {
	return f.Fetch(ctx, url)
}
