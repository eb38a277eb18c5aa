package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"imgsearch/internal/middleware"
)

// New builds the HTTP server. gatherer backs /metrics and may be nil;
// staticDir is served at / when set.
func New(addr, staticDir string, svc SearchService, gatherer prometheus.Gatherer, logger *slog.Logger) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}
	handlers := NewHandlers(svc, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/search", handlers.HandleSearch)
	mux.HandleFunc("/api/status", handlers.HandleStatus)
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           middleware.Logger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("server configured", "addr", addr, "static_dir", staticDir)
	return srv
}
