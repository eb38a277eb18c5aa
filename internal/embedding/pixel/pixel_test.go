package pixel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgsearch/internal/domain"
	"imgsearch/internal/vecmath"
)

func solid(h, w int, r, g, b float32) domain.Tensor {
	data := make([]float32, h*w*3)
	for i := 0; i < len(data); i += 3 {
		data[i], data[i+1], data[i+2] = r, g, b
	}
	return domain.Tensor{Shape: []int{1, h, w, 3}, Data: data}
}

func TestEmbedder_Dimension(t *testing.T) {
	e := New(4)
	v, err := e.Embed(context.Background(), solid(16, 16, 0.2, 0.4, 0.6))
	require.NoError(t, err)
	assert.Len(t, v, 48)
	assert.Equal(t, 48, e.Dimension())
	assert.Equal(t, DefaultGrid*DefaultGrid*3, New(0).Dimension())
}

func TestEmbedder_Deterministic(t *testing.T) {
	e := New(4)
	in := solid(10, 7, 0.1, 0.9, 0.3)
	in.Data[5] = 1
	a, err := e.Embed(context.Background(), in)
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEmbedder_SimilarColoursScoreHigher(t *testing.T) {
	e := New(2)
	ctx := context.Background()
	red, err := e.Embed(ctx, solid(8, 8, 1, 0, 0))
	require.NoError(t, err)
	darkRed, err := e.Embed(ctx, solid(8, 8, 0.8, 0.1, 0.1))
	require.NoError(t, err)
	blue, err := e.Embed(ctx, solid(8, 8, 0, 0, 1))
	require.NoError(t, err)

	assert.Greater(t, vecmath.Cosine(red, darkRed), vecmath.Cosine(red, blue))
	assert.InDelta(t, 1.0, vecmath.Cosine(red, darkRed), 1e-6)
}

func TestEmbedder_SmallerThanGrid(t *testing.T) {
	v, err := New(8).Embed(context.Background(), solid(3, 2, 0.5, 0.5, 0.5))
	require.NoError(t, err)
	assert.Len(t, v, 192)
	for _, x := range v {
		assert.InDelta(t, 0, x, 1e-6)
	}
}

func TestEmbedder_RejectsBadShape(t *testing.T) {
	_, err := New(2).Embed(context.Background(), domain.Tensor{Shape: []int{2, 2, 3}, Data: make([]float32, 12)})
	assert.Error(t, err)

	_, err = New(2).Embed(context.Background(), domain.Tensor{Shape: []int{1, 2, 2, 3}, Data: make([]float32, 5)})
	assert.Error(t, err)
}
