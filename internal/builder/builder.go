// Package builder turns catalog rows into index entries: every row's image is
// resolved, normalized, embedded and L2-normalized. Rows that fail at any step
// are logged and left out of the index.
package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"imgsearch/internal/codec"
	"imgsearch/internal/domain"
	"imgsearch/internal/metrics"
	"imgsearch/internal/vecmath"
)

// Config controls build parallelism. Workers <= 0 uses GOMAXPROCS.
type Config struct {
	Workers int
}

// Builder produces index entries from catalog rows.
type Builder struct {
	source     domain.ImageSource
	normalizer domain.ImageNormalizer
	embedder   domain.Embedder
	workers    int
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// New creates a Builder. source resolves http(s) image URLs; any other
// image_url is read from the local filesystem. logger and m may be nil.
func New(source domain.ImageSource, normalizer domain.ImageNormalizer, embedder domain.Embedder, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Builder {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		source:     source,
		normalizer: normalizer,
		embedder:   embedder,
		workers:    cfg.Workers,
		logger:     logger,
		metrics:    m,
	}
}

// Build embeds every row and returns the surviving entries in catalog order.
// It returns ErrEmptyIndex when no row succeeds, and the context error when
// ctx is cancelled before all rows are processed.
func (b *Builder) Build(ctx context.Context, rows []domain.CatalogRow) ([]domain.Entry, error) {
	runID := uuid.NewString()
	logger := b.logger.With("run_id", runID)
	start := time.Now()
	logger.Info("index build started", "rows", len(rows), "workers", b.workers, "embedder", b.embedder.Name())

	results := make([]*domain.Entry, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i := range rows {
		i := i
		row := rows[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry, err := b.embedRow(gctx, row)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
					return ctxErr
				}
				logger.Warn("skipping row", "row_id", row.ID, "image_url", row.ImageURL, "error", err)
				b.metrics.BuildRow(metrics.RowSkipped)
				return nil
			}
			results[i] = &entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]domain.Entry, 0, len(rows))
	dim := 0
	for i, e := range results {
		if e == nil {
			continue
		}
		if dim == 0 {
			dim = len(e.Embedding)
		} else if len(e.Embedding) != dim {
			logger.Warn("skipping row", "row_id", rows[i].ID, "image_url", rows[i].ImageURL,
				"error", fmt.Errorf("embedding has dimension %d, index has %d: %w", len(e.Embedding), dim, domain.ErrDimensionMismatch))
			b.metrics.BuildRow(metrics.RowSkipped)
			continue
		}
		b.metrics.BuildRow(metrics.RowIndexed)
		entries = append(entries, *e)
	}

	logger.Info("index build finished",
		"entries", len(entries), "skipped", len(rows)-len(entries), "dimension", dim, "elapsed", time.Since(start))
	if len(entries) == 0 {
		return nil, domain.ErrEmptyIndex
	}
	return entries, nil
}

func (b *Builder) embedRow(ctx context.Context, row domain.CatalogRow) (domain.Entry, error) {
	raw, err := b.load(ctx, row.ImageURL)
	if err != nil {
		return domain.Entry{}, err
	}
	tensor, err := b.normalizer.Normalize(raw)
	if err != nil {
		return domain.Entry{}, err
	}
	vec, err := b.embedder.Embed(ctx, tensor)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("embed: %w", err)
	}
	if len(vec) == 0 {
		return domain.Entry{}, fmt.Errorf("embedder returned an empty vector: %w", domain.ErrInvalidVector)
	}
	vec = vecmath.Normalize(vec)
	if err := codec.Validate(vec); err != nil {
		return domain.Entry{}, err
	}
	return domain.Entry{
		ID:        row.ID,
		Name:      row.Name,
		Category:  row.Category,
		Price:     row.Price,
		ImageSrc:  row.ImageURL,
		Embedding: vec,
	}, nil
}

func (b *Builder) load(ctx context.Context, src string) ([]byte, error) {
	if IsRemote(src) {
		return b.source.Resolve(ctx, src)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read local image: %w", err)
	}
	return data, nil
}

// IsRemote reports whether src is an http or https URL.
func IsRemote(src string) bool {
	s := strings.ToLower(src)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
