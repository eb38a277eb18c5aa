// Package sqlite stores the index artifact in an "entries" table with the
// same columns as the CSV format, using the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	"imgsearch/internal/codec"
	"imgsearch/internal/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS entries (
	id        INTEGER NOT NULL,
	name      TEXT    NOT NULL,
	category  TEXT,
	price     REAL,
	image_src TEXT    NOT NULL,
	emb       TEXT    NOT NULL
)`

// Open opens a SQLite database. Pass ":memory:" for an in-memory database.
func Open(dsn string) (*sql.DB, error) { return sql.Open("sqlite", dsn) }

// Store keeps entries in db.
type Store struct {
	db *sql.DB
}

// New wraps db. The entries table is created by the first Save; loading a
// database that was never saved to fails.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite: db is nil")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save replaces the table contents inside one transaction.
func (s *Store) Save(ctx context.Context, entries []domain.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite: create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO entries(id, name, category, price, image_src, emb) VALUES(?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if err := domain.ValidatePrice(e.Price); err != nil {
			return fmt.Errorf("entry %d: %w", e.ID, err)
		}
		token, err := codec.Encode(e.Embedding)
		if err != nil {
			return fmt.Errorf("entry %d: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, e.ID, e.Name, e.Category, e.Price, e.ImageSrc, token); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Load returns entries in insertion order.
func (s *Store) Load(ctx context.Context) ([]domain.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, COALESCE(category, ''), COALESCE(price, 0), image_src, emb FROM entries ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Entry
	for rows.Next() {
		var (
			e     domain.Entry
			token string
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Category, &e.Price, &e.ImageSrc, &token); err != nil {
			return nil, err
		}
		if err := domain.ValidatePrice(e.Price); err != nil {
			return nil, fmt.Errorf("entry %d: %w", e.ID, err)
		}
		if e.Embedding, err = codec.Decode(token); err != nil {
			return nil, fmt.Errorf("entry %d: %w", e.ID, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
