// Package fetchcache resolves remote image URLs to bytes. Downloads are
// memoized in a Store under a key derived from the URL, so rebuilding an index
// never downloads the same image twice.
package fetchcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/url"
	"path"

	"imgsearch/internal/metrics"
)

const (
	keyHexLen  = 16
	defaultExt = ".jpg"
)

// Key derives the cache key for rawURL: the first 16 hex characters of the
// SHA-256 of the URL followed by the extension of the URL path.
func Key(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])[:keyHexLen] + extension(rawURL)
}

func extension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return defaultExt
	}
	ext := path.Ext(u.Path)
	if len(ext) < 2 || len(ext) > 6 {
		return defaultExt
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return defaultExt
		}
	}
	return ext
}

// Cache implements domain.ImageSource on top of a Fetcher and a Store.
//
// Concurrent resolution of the same URL is not deduplicated: both callers may
// download and both writes land atomically on the same key.
type Cache struct {
	store   Store
	fetcher *Fetcher
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Cache. logger and m may be nil.
func New(store Store, fetcher *Fetcher, logger *slog.Logger, m *metrics.Metrics) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, fetcher: fetcher, logger: logger, metrics: m}
}

// Resolve returns the cached bytes for rawURL, downloading and storing them
// on a miss. Store failures are logged and do not fail the call.
func (c *Cache) Resolve(ctx context.Context, rawURL string) ([]byte, error) {
	key := Key(rawURL)
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("fetch cache read failed", "key", key, "url", rawURL, "error", err)
	}
	if ok {
		c.metrics.Fetch(metrics.FetchHit)
		return data, nil
	}

	data, err = c.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		c.metrics.Fetch(metrics.FetchError)
		return nil, err
	}
	c.metrics.Fetch(metrics.FetchMiss)

	if err := c.store.Put(ctx, key, data); err != nil {
		c.logger.Warn("fetch cache write failed", "key", key, "url", rawURL, "error", err)
	}
	return data, nil
}
