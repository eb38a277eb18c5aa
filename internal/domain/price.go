package domain

import (
	"fmt"
	"math"
)

// ValidatePrice rejects negative and non-finite prices.
func ValidatePrice(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return fmt.Errorf("price %v is not a finite non-negative number", p)
	}
	return nil
}
