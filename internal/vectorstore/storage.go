package vectorstore

import (
	"context"
	"fmt"
	"os"
	"strings"

	"imgsearch/internal/domain"
	"imgsearch/internal/vectorstore/csvfile"
	"imgsearch/internal/vectorstore/memory"
	"imgsearch/internal/vectorstore/sqlite"
)

// Storage persists a built index artifact. Save replaces the whole artifact;
// a reader never observes a partially written one.
type Storage interface {
	Save(ctx context.Context, entries []domain.Entry) error
	Load(ctx context.Context) ([]domain.Entry, error)
	Close() error
}

// Supported artifact formats.
const (
	FormatCSV    = "csv"
	FormatSQLite = "sqlite"
)

// Open returns the Storage for format at path. An empty format is inferred
// from the file extension and falls back to CSV.
func Open(format, path string) (Storage, error) {
	if format == "" {
		format = FormatCSV
		if ext := strings.ToLower(path); strings.HasSuffix(ext, ".db") || strings.HasSuffix(ext, ".sqlite") {
			format = FormatSQLite
		}
	}
	switch format {
	case FormatCSV:
		return csvfile.New(path), nil
	case FormatSQLite:
		db, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite index %s: %w", path, err)
		}
		s, err := sqlite.New(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown index format %q", format)
	}
}

// OpenExisting is Open for readers: it fails when path does not exist
// instead of letting the SQLite driver create an empty database.
func OpenExisting(format, path string) (Storage, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("index artifact: %w", err)
	}
	return Open(format, path)
}

// LoadIndex reads every entry from s and builds the in-memory search index.
// Any malformed row or dimension mismatch fails the whole load.
func LoadIndex(ctx context.Context, s Storage) (*memory.Index, error) {
	entries, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return memory.NewIndex(entries)
}
