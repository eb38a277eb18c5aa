package domain

import "context"

// CatalogRow is a single product read from the catalog file.
type CatalogRow struct {
	ID       int64
	ImageURL string
	Name     string
	Category string
	Price    float64
}

// Entry is a catalog product with its unit-length image embedding.
type Entry struct {
	ID        int64
	Name      string
	Category  string
	Price     float64
	ImageSrc  string
	Embedding []float32
}

// Result is an index entry scored against a query.
type Result struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	ImageSrc string  `json:"image_src"`
	Score    float64 `json:"score"`
}

// Tensor is a dense float32 array in NHWC layout.
type Tensor struct {
	Shape []int
	Data  []float32
}

// Embedder turns a preprocessed image tensor of shape [1, H, W, 3] into a
// fixed-length vector. Implementations must be safe for concurrent use.
type Embedder interface {
	Name() string
	// Dimension returns the vector length, or 0 when not yet known.
	Dimension() int
	Embed(ctx context.Context, t Tensor) ([]float32, error)
}

// ImageNormalizer converts raw image bytes into the tensor an Embedder expects.
type ImageNormalizer interface {
	Normalize(raw []byte) (Tensor, error)
}

// ImageSource resolves a remote image URL to its bytes.
type ImageSource interface {
	Resolve(ctx context.Context, url string) ([]byte, error)
}

// Searcher ranks the loaded index against a query embedding.
type Searcher interface {
	Search(query []float32, k int) ([]Result, error)
	Len() int
	Dimension() int
}

// SearchService defines the operations exposed by the query side.
type SearchService interface {
	SearchImage(ctx context.Context, raw []byte, k int) ([]Result, error)
	SearchURL(ctx context.Context, url string, k int) ([]Result, error)
}
