// Package embedding holds helpers shared by the image embedder implementations.
package embedding

import (
	"fmt"

	"imgsearch/internal/domain"
)

// CheckTensor verifies that t is a single RGB image in NHWC layout.
func CheckTensor(t domain.Tensor) error {
	if len(t.Shape) != 4 || t.Shape[0] != 1 || t.Shape[3] != 3 || t.Shape[1] <= 0 || t.Shape[2] <= 0 {
		return fmt.Errorf("embedding: tensor shape %v, want [1 H W 3]", t.Shape)
	}
	if want := t.Shape[1] * t.Shape[2] * 3; len(t.Data) != want {
		return fmt.Errorf("embedding: tensor has %d values, shape %v needs %d", len(t.Data), t.Shape, want)
	}
	return nil
}
