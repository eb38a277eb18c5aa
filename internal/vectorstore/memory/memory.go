package memory

import (
	"fmt"
	"sort"

	"imgsearch/internal/domain"
	"imgsearch/internal/vecmath"
)

// DefaultTopK is used when Search is called with k <= 0.
const DefaultTopK = 10

// Index is an immutable in-memory index using brute-force cosine similarity.
// It is built once and then shared read-only, so searches take no locks.
type Index struct {
	dimension int
	entries   []domain.Entry
	norms     []float64
}

// NewIndex takes ownership of entries and precomputes their norms. Every
// embedding must have the length of the first one.
func NewIndex(entries []domain.Entry) (*Index, error) {
	idx := &Index{entries: entries, norms: make([]float64, len(entries))}
	for i, e := range entries {
		if len(e.Embedding) == 0 {
			return nil, fmt.Errorf("entry %d has an empty embedding: %w", e.ID, domain.ErrDimensionMismatch)
		}
		if i == 0 {
			idx.dimension = len(e.Embedding)
		} else if len(e.Embedding) != idx.dimension {
			return nil, fmt.Errorf("entry %d has dimension %d, index has %d: %w",
				e.ID, len(e.Embedding), idx.dimension, domain.ErrDimensionMismatch)
		}
		idx.norms[i] = vecmath.Norm(e.Embedding)
	}
	return idx, nil
}

// Len returns the number of entries.
func (x *Index) Len() int { return len(x.entries) }

// Dimension returns the shared embedding length, or 0 for an empty index.
func (x *Index) Dimension() int { return x.dimension }

// Entries returns the indexed entries in insertion order. Callers must not
// modify the returned slice.
func (x *Index) Entries() []domain.Entry { return x.entries }

// Search scores every entry against query and returns the best min(k, Len())
// results by descending score. Equal scores keep insertion order.
func (x *Index) Search(query []float32, k int) ([]domain.Result, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	if len(x.entries) == 0 {
		return []domain.Result{}, nil
	}
	if len(query) != x.dimension {
		return nil, fmt.Errorf("query has dimension %d, index has %d: %w",
			len(query), x.dimension, domain.ErrDimensionMismatch)
	}

	qn := vecmath.Norm(query)
	scores := make([]float64, len(x.entries))
	for i, e := range x.entries {
		scores[i] = vecmath.CosineWithNorms(query, qn, e.Embedding, x.norms[i])
	}
	idxs := argsortDesc(scores)
	if k > len(idxs) {
		k = len(idxs)
	}
	results := make([]domain.Result, 0, k)
	for _, j := range idxs[:k] {
		e := x.entries[j]
		results = append(results, domain.Result{
			ID:       e.ID,
			Name:     e.Name,
			Category: e.Category,
			Price:    e.Price,
			ImageSrc: e.ImageSrc,
			Score:    scores[j],
		})
	}
	return results, nil
}

func argsortDesc(vals []float64) []int {
	idxs := make([]int, len(vals))
	for i := range vals {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return vals[idxs[a]] > vals[idxs[b]] })
	return idxs
}
