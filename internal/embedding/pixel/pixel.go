package pixel

import (
	"context"

	"imgsearch/internal/domain"
	"imgsearch/internal/embedding"
)

// DefaultGrid is the number of cells per side used when New is given 0.
const DefaultGrid = 8

// Embedder is a model-free image embedder. It average-pools each RGB channel
// over a Grid x Grid layout of cells and subtracts the mean of the result, so
// flat images do not all point in the same direction.
// It holds no mutable state and is safe for concurrent use.
type Embedder struct {
	grid int
}

// New creates a pixel embedder with grid cells per side.
func New(grid int) *Embedder {
	if grid <= 0 {
		grid = DefaultGrid
	}
	return &Embedder{grid: grid}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "pixel" }

// Dimension is grid*grid*3.
func (e *Embedder) Dimension() int { return e.grid * e.grid * 3 }

// Embed pools the tensor into the grid. Images smaller than the grid reuse
// pixels across neighbouring cells.
func (e *Embedder) Embed(_ context.Context, t domain.Tensor) ([]float32, error) {
	if err := embedding.CheckTensor(t); err != nil {
		return nil, err
	}
	h, w := t.Shape[1], t.Shape[2]
	g := e.grid
	out := make([]float32, g*g*3)
	var total float64
	for cy := 0; cy < g; cy++ {
		y0, y1 := span(cy, g, h)
		for cx := 0; cx < g; cx++ {
			x0, x1 := span(cx, g, w)
			var sum [3]float64
			for y := y0; y < y1; y++ {
				row := y * w * 3
				for x := x0; x < x1; x++ {
					i := row + x*3
					sum[0] += float64(t.Data[i])
					sum[1] += float64(t.Data[i+1])
					sum[2] += float64(t.Data[i+2])
				}
			}
			n := float64((y1 - y0) * (x1 - x0))
			base := (cy*g + cx) * 3
			for c := 0; c < 3; c++ {
				v := sum[c] / n
				out[base+c] = float32(v)
				total += v
			}
		}
	}
	mean := float32(total / float64(len(out)))
	for i := range out {
		out[i] -= mean
	}
	return out, nil
}

// span returns the half-open pixel range covered by cell i of n along an axis
// of the given size. The range is never empty.
func span(i, n, size int) (int, int) {
	lo := i * size / n
	hi := (i + 1) * size / n
	if hi <= lo {
		hi = lo + 1
	}
	if hi > size {
		lo, hi = size-1, size
	}
	return lo, hi
}
