package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgsearch/internal/config"
	"imgsearch/internal/embedding/pixel"
	"imgsearch/internal/embedding/tfserving"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("index:\n  path: custom.csv\n"), 0o644))
	t.Setenv("IMGSEARCH_CATALOG", "env-products.csv")

	cfg, got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.Equal(t, "custom.csv", cfg.Index.Path)
	assert.Equal(t, "env-products.csv", cfg.Catalog)
}

func TestNewEmbedder(t *testing.T) {
	cfg := &config.AppConfig{Embedder: config.EmbedderConfig{Type: "pixel", Pixel: &config.PixelConfig{Grid: 4}}}
	emb, err := NewEmbedder(cfg)
	require.NoError(t, err)
	assert.IsType(t, &pixel.Embedder{}, emb)
	assert.Equal(t, 48, emb.Dimension())

	cfg.Embedder = config.EmbedderConfig{Type: "tfserving", TFServing: &config.TFServingConfig{BaseURL: "http://tf:8501", Model: "m"}}
	emb, err = NewEmbedder(cfg)
	require.NoError(t, err)
	assert.IsType(t, &tfserving.Client{}, emb)
	_, ok := emb.(Readier)
	assert.True(t, ok)

	cfg.Embedder = config.EmbedderConfig{Type: "tfserving"}
	_, err = NewEmbedder(cfg)
	assert.Error(t, err)

	cfg.Embedder = config.EmbedderConfig{Type: "clip"}
	_, err = NewEmbedder(cfg)
	assert.Error(t, err)
}

func TestNewImageCache(t *testing.T) {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.AppConfig{Cache: config.CacheConfig{Type: "fs", Dir: filepath.Join(t.TempDir(), "cache")}}

	cache, closer, err := NewImageCache(context.Background(), cfg, quiet, nil)
	require.NoError(t, err)
	assert.NotNil(t, cache)
	assert.NoError(t, closer.Close())

	cfg.Cache.Type = "memcached"
	_, _, err = NewImageCache(context.Background(), cfg, quiet, nil)
	assert.Error(t, err)

	cfg.Cache = config.CacheConfig{Type: "redis"}
	_, _, err = NewImageCache(context.Background(), cfg, quiet, nil)
	assert.Error(t, err)
}
