// Package duckdb persists counting runs in DuckDB and caches parsed
// annotations on disk. Runs and their per-feature counts are stored in
// DuckDB (queryable, append-only); features are cached as gob files.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding counting runs.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database path, empty for in-memory databases.
func (s *Store) Path() string {
	return s.path
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		run_id VARCHAR PRIMARY KEY,
		created_at TIMESTAMP,
		alignments VARCHAR,
		annotation VARCHAR,
		feature_type VARCHAR,
		id_attribute VARCHAR,
		layout VARCHAR,
		strand VARCHAR,
		confidence DOUBLE,
		no_feature UBIGINT,
		ambiguous UBIGINT,
		too_low_aqual UBIGINT,
		not_aligned UBIGINT,
		alignment_not_unique UBIGINT,
		skipped UBIGINT,
		total UBIGINT
	)`); err != nil {
		return err
	}

	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS feature_counts (
		run_id VARCHAR,
		feature_id VARCHAR,
		count UBIGINT,
		PRIMARY KEY (run_id, feature_id)
	)`)
	return err
}
