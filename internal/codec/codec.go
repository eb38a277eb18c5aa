// Package codec converts embedding vectors to and from the hex token stored in
// the index artifact. A token is the lowercase hex rendering of the vector's
// little-endian IEEE 754 float32 values, with no length prefix; the length is
// derived from the token size on decode.
package codec

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"

	"imgsearch/internal/domain"
)

// Validate reports ErrInvalidVector when v contains NaN or an infinity.
func Validate(v []float32) error {
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite value %v at position %d", domain.ErrInvalidVector, x, i)
		}
	}
	return nil
}

// Encode renders v as a token.
func Encode(v []float32) (string, error) {
	if err := Validate(v); err != nil {
		return "", err
	}
	b := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(x))
	}
	return hex.EncodeToString(b), nil
}

// Decode parses a token produced by Encode.
func Decode(token string) ([]float32, error) {
	b, err := hex.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedToken, err)
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: byte length %d is not a multiple of 4", domain.ErrMalformedToken, len(b))
	}
	n := len(b) / 4
	v := make([]float32, n)
	for i := 0; i < n; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
