// Package app assembles components from the application config. It is shared
// by the build-index and imgsearch commands.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"imgsearch/internal/config"
	"imgsearch/internal/domain"
	"imgsearch/internal/embedding/pixel"
	"imgsearch/internal/embedding/tfserving"
	"imgsearch/internal/fetchcache"
	"imgsearch/internal/imageprep"
	"imgsearch/internal/metrics"
)

// LoadConfig reads cfgPath, or the default locations when it is empty, and
// applies environment overrides.
func LoadConfig(cfgPath string) (*config.AppConfig, string, error) {
	var (
		cfg  *config.AppConfig
		path = cfgPath
		err  error
	)
	if cfgPath == "" {
		cfg, path, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return nil, "", err
	}
	config.ApplyEnv(cfg)
	return cfg, path, nil
}

// Readier is implemented by embedders that can report model availability.
type Readier interface {
	Ready(ctx context.Context) error
}

// NewEmbedder builds the configured embedder.
func NewEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "pixel", "":
		grid := 0
		if cfg.Embedder.Pixel != nil {
			grid = cfg.Embedder.Pixel.Grid
		}
		return pixel.New(grid), nil
	case "tfserving":
		if cfg.Embedder.TFServing == nil {
			return nil, fmt.Errorf("tfserving embedder config missing")
		}
		tc := cfg.Embedder.TFServing
		client, err := tfserving.NewClient(tfserving.Config{
			BaseURL:    tc.BaseURL,
			Model:      tc.Model,
			Timeout:    time.Duration(tc.TimeoutSecs) * time.Second,
			MaxRetries: tc.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
}

// NewNormalizer builds the image normalizer from the image section.
func NewNormalizer(cfg *config.AppConfig) *imageprep.Normalizer {
	return imageprep.New(imageprep.Config{
		MaxSide: cfg.Image.MaxSide,
		Width:   cfg.Image.Width,
		Height:  cfg.Image.Height,
	})
}

// NewImageCache builds the persistent fetch cache used while building. The
// returned closer releases the backing store.
func NewImageCache(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger, m *metrics.Metrics) (*fetchcache.Cache, io.Closer, error) {
	var (
		store  fetchcache.Store
		closer io.Closer = nopCloser{}
	)
	switch cfg.Cache.Type {
	case "fs", "":
		fs, err := fetchcache.NewFSStore(cfg.Cache.Dir)
		if err != nil {
			return nil, nil, err
		}
		store = fs
	case "redis":
		if cfg.Cache.Redis == nil {
			return nil, nil, fmt.Errorf("redis cache config missing")
		}
		rs, err := fetchcache.NewRedisStore(ctx, fetchcache.RedisOptions{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		store, closer = rs, rs
	default:
		return nil, nil, fmt.Errorf("unknown cache type: %s", cfg.Cache.Type)
	}
	fetcher := fetchcache.NewFetcher(fetchcache.FetcherConfig{
		Timeout:    time.Duration(cfg.Fetch.BuildTimeoutSecs) * time.Second,
		MaxRetries: cfg.Fetch.MaxRetries,
		UserAgent:  cfg.Fetch.UserAgent,
		Logger:     logger,
	})
	return fetchcache.New(store, fetcher, logger, m), closer, nil
}

// NewQueryFetcher builds the non-persisting fetcher for query URLs. It
// requires an image/* response.
func NewQueryFetcher(cfg *config.AppConfig, logger *slog.Logger) *fetchcache.Fetcher {
	return fetchcache.NewFetcher(fetchcache.FetcherConfig{
		Timeout:      time.Duration(cfg.Fetch.QueryTimeoutSecs) * time.Second,
		MaxRetries:   cfg.Fetch.MaxRetries,
		UserAgent:    cfg.Fetch.UserAgent,
		RequireImage: true,
		Logger:       logger,
	})
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
