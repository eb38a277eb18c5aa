// Package catalog reads the product catalog CSV that feeds the index builder.
//
// Required columns are id and image_url; name, category and price are
// optional. Rows that cannot be parsed are logged and skipped.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"imgsearch/internal/domain"
)

// Load reads the catalog at path.
func Load(path string, logger *slog.Logger) ([]domain.CatalogRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Read(f, logger)
}

// Read parses a catalog from r. Duplicate ids keep the first row.
func Read(r io.Reader, logger *slog.Logger) ([]domain.CatalogRow, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("catalog: missing header")
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	col := make(map[string]int, len(head))
	for i, name := range head {
		col[strings.TrimSpace(strings.ToLower(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, req := range []string{"id", "image_url"} {
		if _, ok := col[req]; !ok {
			return nil, fmt.Errorf("catalog: missing column %q", req)
		}
	}
	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []domain.CatalogRow
	seen := make(map[int64]struct{})
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				logger.Warn("skipping catalog row", "line", line, "error", err)
				continue
			}
			return nil, fmt.Errorf("catalog line %d: %w", line, err)
		}

		id, err := strconv.ParseInt(field(rec, "id"), 10, 64)
		if err != nil {
			logger.Warn("skipping catalog row", "line", line, "error", fmt.Errorf("bad id: %w", err))
			continue
		}
		if _, dup := seen[id]; dup {
			logger.Warn("skipping catalog row", "line", line, "row_id", id, "error", "duplicate id")
			continue
		}
		row := domain.CatalogRow{
			ID:       id,
			ImageURL: field(rec, "image_url"),
			Name:     field(rec, "name"),
			Category: field(rec, "category"),
		}
		if row.ImageURL == "" {
			logger.Warn("skipping catalog row", "line", line, "row_id", id, "error", "empty image_url")
			continue
		}
		if row.Name == "" {
			row.Name = fmt.Sprintf("Product %d", id)
		}
		if p := field(rec, "price"); p != "" {
			price, err := strconv.ParseFloat(p, 64)
			if err == nil {
				err = domain.ValidatePrice(price)
			}
			if err != nil {
				logger.Warn("skipping catalog row", "line", line, "row_id", id, "error", fmt.Sprintf("bad price %q", p))
				continue
			}
			row.Price = price
		}
		seen[id] = struct{}{}
		rows = append(rows, row)
	}
	return rows, nil
}
