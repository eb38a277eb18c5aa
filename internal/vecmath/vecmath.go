// Package vecmath holds the float32 vector arithmetic shared by the index
// builder and the similarity engine.
package vecmath

import "math"

// Epsilon guards every division by a vector norm. A zero vector therefore
// normalizes to zero and scores 0 against anything instead of failing.
const Epsilon = 1e-8

// Dot returns the dot product over the common prefix of a and b.
func Dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 { return math.Sqrt(Dot(v, v)) }

// Normalize returns v / (‖v‖ + Epsilon) as a new slice.
func Normalize(v []float32) []float32 {
	d := Norm(v) + Epsilon
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / d)
	}
	return out
}

// Cosine returns dot(a,b) / ((‖a‖+Epsilon)(‖b‖+Epsilon)).
func Cosine(a, b []float32) float64 {
	return CosineWithNorms(a, Norm(a), b, Norm(b))
}

// CosineWithNorms is Cosine with precomputed norms.
func CosineWithNorms(a []float32, na float64, b []float32, nb float64) float64 {
	return Dot(a, b) / ((na + Epsilon) * (nb + Epsilon))
}
