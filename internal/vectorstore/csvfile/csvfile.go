// Package csvfile stores the index artifact as a CSV file with the columns
// id,name,category,price,image_src,emb where emb is a codec token.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"imgsearch/internal/codec"
	"imgsearch/internal/domain"
)

var header = []string{"id", "name", "category", "price", "image_src", "emb"}

// Store reads and writes one CSV file.
type Store struct {
	path string
}

func New(path string) *Store { return &Store{path: path} }

func (s *Store) Path() string { return s.path }

// Close is a no-op; the file is only open during Save and Load.
func (s *Store) Close() error { return nil }

// Save writes entries to a temporary file next to the target and renames it
// into place.
func (s *Store) Save(_ context.Context, entries []domain.Entry) (err error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".index-*.csv")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := csv.NewWriter(tmp)
	if err = w.Write(header); err != nil {
		return err
	}
	for _, e := range entries {
		if err = domain.ValidatePrice(e.Price); err != nil {
			return fmt.Errorf("entry %d: %w", e.ID, err)
		}
		token, encErr := codec.Encode(e.Embedding)
		if encErr != nil {
			return fmt.Errorf("entry %d: %w", e.ID, encErr)
		}
		rec := []string{
			strconv.FormatInt(e.ID, 10),
			e.Name,
			e.Category,
			strconv.FormatFloat(e.Price, 'f', -1, 64),
			e.ImageSrc,
			token,
		}
		if err = w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Load parses the file in row order. The category and price columns are
// optional and empty cells default to "" and 0.
func (s *Store) Load(_ context.Context) ([]domain.Entry, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read parses an index CSV from r.
func Read(r io.Reader) ([]domain.Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("index csv: missing header")
	}
	if err != nil {
		return nil, fmt.Errorf("index csv: %w", err)
	}
	col := make(map[string]int, len(head))
	for i, name := range head {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, req := range []string{"id", "name", "image_src", "emb"} {
		if _, ok := col[req]; !ok {
			return nil, fmt.Errorf("index csv: missing column %q", req)
		}
	}
	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var entries []domain.Entry
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("index csv line %d: %w", line, err)
		}
		id, err := strconv.ParseInt(field(rec, "id"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("index csv line %d: bad id: %w", line, err)
		}
		var price float64
		if p := field(rec, "price"); p != "" {
			if price, err = strconv.ParseFloat(p, 64); err != nil {
				return nil, fmt.Errorf("index csv line %d: bad price: %w", line, err)
			}
			if err := domain.ValidatePrice(price); err != nil {
				return nil, fmt.Errorf("index csv line %d: %w", line, err)
			}
		}
		emb, err := codec.Decode(field(rec, "emb"))
		if err != nil {
			return nil, fmt.Errorf("index csv line %d: %w", line, err)
		}
		entries = append(entries, domain.Entry{
			ID:        id,
			Name:      field(rec, "name"),
			Category:  field(rec, "category"),
			Price:     price,
			ImageSrc:  field(rec, "image_src"),
			Embedding: emb,
		})
	}
	return entries, nil
}
