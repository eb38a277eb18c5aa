package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"imgsearch/internal/app"
	"imgsearch/internal/config"
	"imgsearch/internal/domain"
	"imgsearch/internal/metrics"
	"imgsearch/internal/server"
	"imgsearch/internal/service"
	"imgsearch/internal/tui"
	"imgsearch/internal/vectorstore"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	var useTUI bool
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/imgsearch/config.yaml if not provided)")
	flag.BoolVar(&useTUI, "tui", false, "Run the interactive terminal UI instead of the HTTP server")
	flag.Parse()

	cfg, _, err := app.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if useTUI {
		// keep log lines from corrupting the terminal UI
		cfg.Log.Level = "error"
	}
	logger := config.NewLogger(cfg.Log, os.Stderr)

	// Index load must finish before anything serves queries.
	store, err := vectorstore.OpenExisting(cfg.Index.Format, cfg.Index.Path)
	if err != nil {
		log.Fatalf("open index: %v", err)
	}
	index, err := vectorstore.LoadIndex(context.Background(), store)
	_ = store.Close()
	if err != nil {
		log.Fatalf("load index %s: %v", cfg.Index.Path, err)
	}
	logger.Info("index loaded", "path", cfg.Index.Path, "entries", index.Len(), "dimension", index.Dimension())

	var emb domain.Embedder
	if e, err := app.NewEmbedder(cfg); err != nil {
		logger.Error("embedder init failed; searches will report model_unavailable", "error", err)
	} else {
		emb = e
		if r, ok := e.(app.Readier); ok {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := r.Ready(ctx); err != nil {
				logger.Warn("embedder not ready yet", "embedder", e.Name(), "error", err)
			}
			cancel()
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		log.Fatalf("register metrics: %v", err)
	}

	svc := service.NewSearchService(app.NewNormalizer(cfg), emb, index, app.NewQueryFetcher(cfg, logger), cfg.Search.TopK, logger, m)

	if useTUI {
		st := svc.Status()
		summary := fmt.Sprintf("%d entries, %d-dim, embedder %s", st.Entries, st.Dimension, st.Embedder)
		if _, err := tea.NewProgram(tui.New(svc, summary, cfg.Search.TopK)).Run(); err != nil {
			log.Fatal(err)
		}
		return
	}

	srv := server.New(cfg.Server.Addr, cfg.Server.StaticDir, svc, reg, logger)

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server stopped: %v", err)
		}
	}()

	<-done
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
}
