package codec

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgsearch/internal/domain"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	orig := []float32{0.0, 1.5, -2.25, 3.75, math.SmallestNonzeroFloat32, math.MaxFloat32, float32(math.Copysign(0, -1))}

	token, err := Encode(orig)
	require.NoError(t, err)
	assert.Len(t, token, len(orig)*8)

	decoded, err := Decode(token)
	require.NoError(t, err)
	require.Len(t, decoded, len(orig))
	for i := range orig {
		assert.Equal(t, math.Float32bits(orig[i]), math.Float32bits(decoded[i]), "position %d", i)
	}
}

func TestEncodeDecode_RandomVectors(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for n := 0; n < 50; n++ {
		v := make([]float32, 1+rng.Intn(1792))
		for i := range v {
			v[i] = float32(rng.NormFloat64())
		}
		token, err := Encode(v)
		require.NoError(t, err)
		got, err := Decode(token)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestEncode_KnownToken(t *testing.T) {
	token, err := Encode([]float32{1, -2})
	require.NoError(t, err)
	// 1.0 = 0x3f800000, -2.0 = 0xc0000000, little-endian.
	assert.Equal(t, "0000803f000000c0", token)
}

func TestEncode_Empty(t *testing.T) {
	token, err := Encode(nil)
	require.NoError(t, err)
	assert.Empty(t, token)

	v, err := Decode("")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestEncode_RejectsNonFinite(t *testing.T) {
	for _, bad := range []float32{float32(math.NaN()), float32(math.Inf(1)), float32(math.Inf(-1))} {
		_, err := Encode([]float32{0.5, bad})
		assert.ErrorIs(t, err, domain.ErrInvalidVector)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "odd hex length", token: "0000803"},
		{name: "not multiple of four bytes", token: "0000803f00"},
		{name: "not hex", token: "zz00803f"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.token)
			assert.ErrorIs(t, err, domain.ErrMalformedToken)
		})
	}
}
