package domain

import "errors"

// Failure kinds shared by the index pipeline and the query path.
var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrFetchFailed       = errors.New("image fetch failed")
	ErrMalformedToken    = errors.New("malformed vector token")
	ErrInvalidVector     = errors.New("invalid vector")
	ErrEmptyIndex        = errors.New("index is empty")
	ErrModelUnavailable  = errors.New("embedding model unavailable")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrUnsupportedFormat, "unsupported_format"},
	{ErrFetchFailed, "fetch_failed"},
	{ErrMalformedToken, "malformed_token"},
	{ErrInvalidVector, "invalid_vector"},
	{ErrEmptyIndex, "empty_index"},
	{ErrModelUnavailable, "model_unavailable"},
	{ErrDimensionMismatch, "dimension_mismatch"},
}

// ErrorKind returns a stable identifier for the failure wrapped by err, or
// "internal" when err matches none of the known kinds.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}
