package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"imgsearch/internal/app"
	"imgsearch/internal/builder"
	"imgsearch/internal/catalog"
	"imgsearch/internal/config"
	"imgsearch/internal/domain"
	"imgsearch/internal/metrics"
	"imgsearch/internal/vectorstore"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, catalogPath, indexPath, format string
	var workers int
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/imgsearch/config.yaml if not provided)")
	flag.StringVar(&catalogPath, "catalog", "", "Catalog CSV (overrides config)")
	flag.StringVar(&indexPath, "out", "", "Index artifact path (overrides config)")
	flag.StringVar(&format, "format", "", "Index format: csv or sqlite (overrides config)")
	flag.IntVar(&workers, "workers", 0, "Parallel image workers (overrides config)")
	flag.Parse()

	cfg, _, err := app.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if catalogPath != "" {
		cfg.Catalog = catalogPath
	}
	if indexPath != "" {
		cfg.Index.Path = indexPath
	}
	if format != "" {
		cfg.Index.Format = format
	}
	if workers > 0 {
		cfg.Build.Workers = workers
	}
	logger := config.NewLogger(cfg.Log, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	emb, err := app.NewEmbedder(cfg)
	if err != nil {
		log.Fatalf("embedder init failed: %v", err)
	}
	if r, ok := emb.(app.Readier); ok {
		readyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := r.Ready(readyCtx)
		cancel()
		if err != nil {
			log.Fatalf("embedder not ready: %v", err)
		}
	}

	m := metrics.New()
	cache, closer, err := app.NewImageCache(ctx, cfg, logger, m)
	if err != nil {
		log.Fatalf("fetch cache init failed: %v", err)
	}
	defer closer.Close()

	rows, err := catalog.Load(cfg.Catalog, logger)
	if err != nil {
		log.Fatalf("%v (create your catalog first)", err)
	}
	logger.Info("catalog loaded", "path", cfg.Catalog, "rows", len(rows))

	b := builder.New(cache, app.NewNormalizer(cfg), emb, builder.Config{Workers: cfg.Build.Workers}, logger, m)
	entries, err := b.Build(ctx, rows)
	if counts, cerr := m.Counts(); cerr == nil {
		logger.Info("build summary", metrics.LogArgs(counts)...)
	} else {
		logger.Warn("build summary unavailable", "error", cerr)
	}
	if errors.Is(err, domain.ErrEmptyIndex) {
		logger.Error("no valid images found; index not written", "catalog", cfg.Catalog)
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("build failed: %v", err)
	}

	store, err := vectorstore.Open(cfg.Index.Format, cfg.Index.Path)
	if err != nil {
		log.Fatalf("open index: %v", err)
	}
	defer store.Close()
	if err := store.Save(ctx, entries); err != nil {
		log.Fatalf("write index: %v", err)
	}
	logger.Info("index ready", "path", cfg.Index.Path, "entries", len(entries))
}
