package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-count/internal/count"
)

// ErrRunNotFound is returned when a run id is not in the store.
var ErrRunNotFound = errors.New("run not found")

// Run describes one counting run: its inputs, the library it was counted as
// and the discard statistics.
type Run struct {
	ID          string
	CreatedAt   time.Time
	Alignments  string
	Annotation  string
	FeatureType string
	IDAttribute string
	Layout      string
	Strand      string
	Confidence  float64

	NoFeature  uint64
	Ambiguous  uint64
	LowQuality uint64
	Unmapped   uint64
	Nonunique  uint64
	Skip       uint64
	Total      uint64
}

// SetStats copies the discard counters and total from c.
func (r *Run) SetStats(c *count.Context) {
	r.NoFeature = c.NoFeature
	r.Ambiguous = c.Ambiguous
	r.LowQuality = c.LowQuality
	r.Unmapped = c.Unmapped
	r.Nonunique = c.Nonunique
	r.Skip = c.Skip
	r.Total = c.Total
}

const runColumns = `run_id, created_at, alignments, annotation, feature_type, id_attribute,
	layout, strand, confidence,
	no_feature, ambiguous, too_low_aqual, not_aligned, alignment_not_unique, skipped, total`

// WriteRun stores run and one count row per id, in order. A run id and
// creation time are assigned when unset. It returns the run id. If the counts
// cannot be stored the run row is removed again, so a stored run always has
// its complete counts.
func (s *Store) WriteRun(run Run, ids []string, counts map[string]uint64) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	if _, err := s.db.Exec(`INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt, run.Alignments, run.Annotation, run.FeatureType, run.IDAttribute,
		run.Layout, run.Strand, run.Confidence,
		run.NoFeature, run.Ambiguous, run.LowQuality, run.Unmapped, run.Nonunique, run.Skip, run.Total,
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	if err := s.appendCounts(run.ID, ids, counts); err != nil {
		if derr := s.DeleteRun(run.ID); derr != nil {
			return "", errors.Join(err, fmt.Errorf("remove incomplete run %s: %w", run.ID, derr))
		}
		return "", err
	}
	return run.ID, nil
}

// appendCounts batch-inserts feature counts using the Appender API.
func (s *Store) appendCounts(runID string, ids []string, counts map[string]uint64) error {
	if len(ids) == 0 {
		return nil
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "feature_counts")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, id := range ids {
		if err := appender.AppendRow(runID, id, counts[id]); err != nil {
			return fmt.Errorf("append feature count: %w", err)
		}
	}

	return appender.Flush()
}

// LookupRun returns the run with the given id.
func (s *Store) LookupRun(id string) (*Run, error) {
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs WHERE run_id=?`, id)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return &runs[0], nil
}

// LatestRun returns the most recently created run.
func (s *Store) LatestRun() (*Run, error) {
	rows, err := s.db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC LIMIT 1`)
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}
	defer rows.Close()

	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrRunNotFound
	}
	return &runs[0], nil
}

// ListRuns returns all runs, oldest first.
func (s *Store) ListRuns() ([]Run, error) {
	rows, err := s.db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY created_at, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// LookupCounts returns the per-feature counts stored for a run.
func (s *Store) LookupCounts(runID string) (map[string]uint64, error) {
	rows, err := s.db.Query(`SELECT feature_id, count FROM feature_counts WHERE run_id=?`, runID)
	if err != nil {
		return nil, fmt.Errorf("query counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]uint64)
	for rows.Next() {
		var id string
		var n uint64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

// DeleteRun removes a run and its counts.
func (s *Store) DeleteRun(id string) error {
	if _, err := s.db.Exec("DELETE FROM feature_counts WHERE run_id=?", id); err != nil {
		return fmt.Errorf("delete counts: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM runs WHERE run_id=?", id); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

// scanRuns scans rows selected with runColumns.
func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(
			&r.ID, &r.CreatedAt, &r.Alignments, &r.Annotation, &r.FeatureType, &r.IDAttribute,
			&r.Layout, &r.Strand, &r.Confidence,
			&r.NoFeature, &r.Ambiguous, &r.LowQuality, &r.Unmapped, &r.Nonunique, &r.Skip, &r.Total,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
