package vectorstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgsearch/internal/domain"
	"imgsearch/internal/vectorstore/csvfile"
	"imgsearch/internal/vectorstore/sqlite"
)

func TestOpen_Formats(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		format string
		path   string
		want   any
	}{
		{name: "explicit csv", format: FormatCSV, path: filepath.Join(dir, "a.db"), want: &csvfile.Store{}},
		{name: "inferred csv", path: filepath.Join(dir, "a.csv"), want: &csvfile.Store{}},
		{name: "inferred sqlite", path: filepath.Join(dir, "b.db"), want: &sqlite.Store{}},
		{name: "explicit sqlite", format: FormatSQLite, path: filepath.Join(dir, "c.idx"), want: &sqlite.Store{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.format, tt.path)
			require.NoError(t, err)
			defer s.Close()
			assert.IsType(t, tt.want, s)
		})
	}

	_, err := Open("parquet", filepath.Join(dir, "x"))
	assert.Error(t, err)
}

func TestLoadIndex(t *testing.T) {
	for _, format := range []string{FormatCSV, FormatSQLite} {
		t.Run(format, func(t *testing.T) {
			s, err := Open(format, filepath.Join(t.TempDir(), "index."+format))
			require.NoError(t, err)
			defer s.Close()

			ctx := context.Background()
			require.NoError(t, s.Save(ctx, []domain.Entry{
				{ID: 1, Name: "a", ImageSrc: "a.jpg", Embedding: []float32{1, 0}},
				{ID: 2, Name: "b", ImageSrc: "b.jpg", Embedding: []float32{0, 1}},
			}))
			idx, err := LoadIndex(ctx, s)
			require.NoError(t, err)
			assert.Equal(t, 2, idx.Len())
			assert.Equal(t, 2, idx.Dimension())

			res, err := idx.Search([]float32{0, 1}, 1)
			require.NoError(t, err)
			require.Len(t, res, 1)
			assert.Equal(t, int64(2), res[0].ID)
		})
	}
}

func TestLoadIndex_DimensionMismatch(t *testing.T) {
	s, err := Open(FormatCSV, filepath.Join(t.TempDir(), "index.csv"))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, []domain.Entry{
		{ID: 1, Name: "a", ImageSrc: "a.jpg", Embedding: []float32{1, 0}},
		{ID: 2, Name: "b", ImageSrc: "b.jpg", Embedding: []float32{0, 1, 0}},
	}))
	_, err = LoadIndex(ctx, s)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestOpenExisting_MissingArtifact(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"missing.db", "missing.csv"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			_, err := OpenExisting("", path)
			assert.ErrorIs(t, err, os.ErrNotExist)

			_, statErr := os.Stat(path)
			assert.ErrorIs(t, statErr, os.ErrNotExist, "opening for read must not create the file")
		})
	}
}

func TestOpenExisting_SavedArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	w, err := Open("", path)
	require.NoError(t, err)
	require.NoError(t, w.Save(context.Background(), []domain.Entry{
		{ID: 1, Name: "a", ImageSrc: "a.jpg", Embedding: []float32{1, 0}},
	}))
	require.NoError(t, w.Close())

	r, err := OpenExisting("", path)
	require.NoError(t, err)
	defer r.Close()
	idx, err := LoadIndex(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
}
