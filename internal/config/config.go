package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// TFServingConfig holds configuration for the TensorFlow Serving embedder.
type TFServingConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// PixelConfig configures the model-free pixel embedder.
type PixelConfig struct {
	Grid int `yaml:"grid"`
}

// EmbedderConfig selects and configures the image embedder implementation.
type EmbedderConfig struct {
	Type      string           `yaml:"type"`
	TFServing *TFServingConfig `yaml:"tfserving,omitempty"`
	Pixel     *PixelConfig     `yaml:"pixel,omitempty"`
}

// IndexConfig locates the index artifact.
type IndexConfig struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

// RedisConfig contains connection details for the Redis fetch cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// CacheConfig selects the fetch cache backend.
type CacheConfig struct {
	Type  string       `yaml:"type"`
	Dir   string       `yaml:"dir"`
	Redis *RedisConfig `yaml:"redis,omitempty"`
}

// FetchConfig controls image downloads.
type FetchConfig struct {
	BuildTimeoutSecs int    `yaml:"build_timeout_secs"`
	QueryTimeoutSecs int    `yaml:"query_timeout_secs"`
	MaxRetries       int    `yaml:"max_retries"`
	UserAgent        string `yaml:"user_agent"`
}

// ImageConfig controls preprocessing.
type ImageConfig struct {
	MaxSide int `yaml:"max_side"`
	Width   int `yaml:"width"`
	Height  int `yaml:"height"`
}

type BuildConfig struct {
	Workers int `yaml:"workers"`
}

type SearchConfig struct {
	TopK int `yaml:"top_k"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// LogConfig selects the log level (debug, info, warn, error) and format (text, json).
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Catalog  string         `yaml:"catalog"`
	Index    IndexConfig    `yaml:"index"`
	Cache    CacheConfig    `yaml:"cache"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Image    ImageConfig    `yaml:"image"`
	Build    BuildConfig    `yaml:"build"`
	Search   SearchConfig   `yaml:"search"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/imgsearch/config.yaml.
// If neither exists, it writes defaults to ~/.config/imgsearch/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv overrides file values with PORT, IMGSEARCH_INDEX,
// IMGSEARCH_CATALOG and REDIS_ADDR when they are set.
func ApplyEnv(cfg *AppConfig) {
	if port := os.Getenv("PORT"); port != "" {
		if _, err := strconv.Atoi(port); err == nil {
			cfg.Server.Addr = ":" + port
		}
	}
	if p := os.Getenv("IMGSEARCH_INDEX"); p != "" {
		cfg.Index.Path = p
	}
	if p := os.Getenv("IMGSEARCH_CATALOG"); p != "" {
		cfg.Catalog = p
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		if cfg.Cache.Redis == nil {
			cfg.Cache.Redis = &RedisConfig{}
		}
		cfg.Cache.Redis.Addr = addr
	}
}

// NewLogger builds the process logger described by cfg.
func NewLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "imgsearch", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Catalog:  filepath.Join("data", "products.csv"),
		Index:    IndexConfig{Path: filepath.Join("data", "index.csv"), Format: "csv"},
		Cache:    CacheConfig{Type: "fs", Dir: "cache"},
		Fetch:    FetchConfig{BuildTimeoutSecs: 15, QueryTimeoutSecs: 10, MaxRetries: 2, UserAgent: "Mozilla/5.0"},
		Embedder: EmbedderConfig{Type: "pixel", Pixel: &PixelConfig{Grid: 8}},
		Image:    ImageConfig{MaxSide: 1024, Width: 224, Height: 224},
		Search:   SearchConfig{TopK: 10},
		Server:   ServerConfig{Addr: ":5000", StaticDir: "static"},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	d := defaultConfig()
	if cfg.Catalog == "" {
		cfg.Catalog = d.Catalog
	}
	if cfg.Index.Path == "" {
		cfg.Index.Path = d.Index.Path
	}
	if cfg.Cache.Type == "" {
		cfg.Cache.Type = d.Cache.Type
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = d.Cache.Dir
	}
	if cfg.Cache.Type == "redis" && cfg.Cache.Redis == nil {
		cfg.Cache.Redis = &RedisConfig{Addr: "localhost:6379"}
	}
	if cfg.Fetch.BuildTimeoutSecs == 0 {
		cfg.Fetch.BuildTimeoutSecs = d.Fetch.BuildTimeoutSecs
	}
	if cfg.Fetch.QueryTimeoutSecs == 0 {
		cfg.Fetch.QueryTimeoutSecs = d.Fetch.QueryTimeoutSecs
	}
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = d.Fetch.UserAgent
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = d.Embedder.Type
	}
	if cfg.Embedder.Type == "pixel" && cfg.Embedder.Pixel == nil {
		cfg.Embedder.Pixel = &PixelConfig{Grid: 8}
	}
	if cfg.Embedder.Type == "tfserving" {
		if cfg.Embedder.TFServing == nil {
			cfg.Embedder.TFServing = &TFServingConfig{}
		}
		if cfg.Embedder.TFServing.BaseURL == "" {
			cfg.Embedder.TFServing.BaseURL = "http://localhost:8501"
		}
		if cfg.Embedder.TFServing.Model == "" {
			cfg.Embedder.TFServing.Model = "mobilenet_v2_140_224"
		}
		if cfg.Embedder.TFServing.TimeoutSecs == 0 {
			cfg.Embedder.TFServing.TimeoutSecs = 30
		}
	}
	if cfg.Image.MaxSide == 0 {
		cfg.Image.MaxSide = d.Image.MaxSide
	}
	if cfg.Image.Width == 0 {
		cfg.Image.Width = d.Image.Width
	}
	if cfg.Image.Height == 0 {
		cfg.Image.Height = d.Image.Height
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = d.Search.TopK
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = d.Server.Addr
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = d.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = d.Log.Format
	}
}
