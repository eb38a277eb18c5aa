package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "direct", err: ErrFetchFailed, want: "fetch_failed"},
		{name: "wrapped", err: fmt.Errorf("decode upload: %w", ErrUnsupportedFormat), want: "unsupported_format"},
		{name: "double wrapped", err: fmt.Errorf("a: %w", fmt.Errorf("b: %w", ErrModelUnavailable)), want: "model_unavailable"},
		{name: "dimension", err: ErrDimensionMismatch, want: "dimension_mismatch"},
		{name: "unknown", err: errors.New("boom"), want: "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorKind(tt.err))
		})
	}
}
