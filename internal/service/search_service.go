package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"imgsearch/internal/codec"
	"imgsearch/internal/domain"
	"imgsearch/internal/metrics"
	"imgsearch/internal/vecmath"
)

const DefaultTopK = 10

var _ domain.SearchService = (*SearchServiceImpl)(nil)

// Status describes the loaded index and embedder.
type Status struct {
	Entries   int    `json:"entries"`
	Dimension int    `json:"dimension"`
	Embedder  string `json:"embedder"`
	ModelOK   bool   `json:"model_loaded"`
}

// SearchServiceImpl runs a query image through the normalizer and embedder
// and ranks it against the loaded index.
type SearchServiceImpl struct {
	normalizer domain.ImageNormalizer
	embedder   domain.Embedder
	index      domain.Searcher
	urls       domain.ImageSource
	topK       int
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewSearchService wires the query path. embedder may be nil, in which case
// every search fails with ErrModelUnavailable while the index stays loaded.
// urls resolves query URLs; logger and m may be nil.
func NewSearchService(normalizer domain.ImageNormalizer, embedder domain.Embedder, index domain.Searcher, urls domain.ImageSource, topK int, logger *slog.Logger, m *metrics.Metrics) *SearchServiceImpl {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	m.SetIndexEntries(index.Len())
	return &SearchServiceImpl{
		normalizer: normalizer,
		embedder:   embedder,
		index:      index,
		urls:       urls,
		topK:       topK,
		logger:     logger,
		metrics:    m,
	}
}

// SearchImage ranks the index against raw image bytes. k <= 0 uses the
// configured default.
func (s *SearchServiceImpl) SearchImage(ctx context.Context, raw []byte, k int) ([]domain.Result, error) {
	start := time.Now()
	res, err := s.search(ctx, raw, k)
	s.record("image", start, err)
	return res, err
}

// SearchURL downloads the query image from rawURL and ranks it.
func (s *SearchServiceImpl) SearchURL(ctx context.Context, rawURL string, k int) ([]domain.Result, error) {
	start := time.Now()
	res, err := s.searchURL(ctx, rawURL, k)
	s.record("url", start, err)
	return res, err
}

// Status reports what the service is serving.
func (s *SearchServiceImpl) Status() Status {
	st := Status{Entries: s.index.Len(), Dimension: s.index.Dimension()}
	if s.embedder != nil {
		st.Embedder = s.embedder.Name()
		st.ModelOK = true
	}
	return st
}

func (s *SearchServiceImpl) searchURL(ctx context.Context, rawURL string, k int) ([]domain.Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an http(s) URL", domain.ErrFetchFailed, rawURL)
	}
	if s.embedder == nil {
		return nil, domain.ErrModelUnavailable
	}
	raw, err := s.urls.Resolve(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return s.search(ctx, raw, k)
}

func (s *SearchServiceImpl) search(ctx context.Context, raw []byte, k int) ([]domain.Result, error) {
	if s.embedder == nil {
		return nil, domain.ErrModelUnavailable
	}
	if k <= 0 {
		k = s.topK
	}
	tensor, err := s.normalizer.Normalize(raw)
	if err != nil {
		return nil, err
	}
	vec, err := s.embedder.Embed(ctx, tensor)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	vec = vecmath.Normalize(vec)
	if err := codec.Validate(vec); err != nil {
		return nil, err
	}
	return s.index.Search(vec, k)
}

func (s *SearchServiceImpl) record(source string, start time.Time, err error) {
	elapsed := time.Since(start)
	if err != nil {
		kind := domain.ErrorKind(err)
		s.metrics.Search(kind, elapsed)
		s.logger.Warn("search failed", "source", source, "kind", kind, "error", err, "elapsed", elapsed)
		return
	}
	s.metrics.Search("ok", elapsed)
	s.logger.Debug("search finished", "source", source, "elapsed", elapsed)
}
