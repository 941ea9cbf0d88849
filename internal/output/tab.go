// Package output reads and writes the tab-delimited count and value tables.
package output

import (
	"bufio"
	"io"
	"strconv"

	"github.com/inodb/vibe-count/internal/count"
	"github.com/inodb/vibe-count/internal/normalize"
)

// Statistic row names, in the order they are written.
const (
	StatNoFeature   = "__no_feature"
	StatAmbiguous   = "__ambiguous"
	StatLowQuality  = "__too_low_aQual"
	StatUnmapped    = "__not_aligned"
	StatNonunique   = "__alignment_not_unique"
	StatTotal       = "__total"
	statisticPrefix = "__"
)

// CountWriter writes per-feature counts followed by statistics.
type CountWriter struct {
	w *bufio.Writer
}

// NewCountWriter creates a new count table writer.
func NewCountWriter(w io.Writer) *CountWriter {
	return &CountWriter{w: bufio.NewWriter(w)}
}

// Write writes one row per id, in the given order, then the statistics rows.
func (cw *CountWriter) Write(ids []string, c *count.Context) error {
	if err := cw.WriteCounts(ids, c.Counts); err != nil {
		return err
	}
	return cw.WriteStats(c)
}

// WriteCounts writes one row per id. Ids missing from counts get 0.
func (cw *CountWriter) WriteCounts(ids []string, counts map[string]uint64) error {
	for _, id := range ids {
		if err := cw.writeRow(id, counts[id]); err != nil {
			return err
		}
	}
	return nil
}

// WriteStats writes the discard and total rows.
func (cw *CountWriter) WriteStats(c *count.Context) error {
	rows := []struct {
		name  string
		value uint64
	}{
		{StatNoFeature, c.NoFeature},
		{StatAmbiguous, c.Ambiguous},
		{StatLowQuality, c.LowQuality},
		{StatUnmapped, c.Unmapped},
		{StatNonunique, c.Nonunique},
		{StatTotal, c.Total},
	}
	for _, row := range rows {
		if err := cw.writeRow(row.name, row.value); err != nil {
			return err
		}
	}
	return nil
}

func (cw *CountWriter) writeRow(name string, n uint64) error {
	cw.w.WriteString(name)
	cw.w.WriteByte('\t')
	cw.w.WriteString(strconv.FormatUint(n, 10))
	return cw.w.WriteByte('\n')
}

// Flush flushes any buffered data to the underlying writer.
func (cw *CountWriter) Flush() error {
	return cw.w.Flush()
}

// ValueWriter writes normalized values with six decimal places.
type ValueWriter struct {
	w *bufio.Writer
}

// NewValueWriter creates a new value table writer.
func NewValueWriter(w io.Writer) *ValueWriter {
	return &ValueWriter{w: bufio.NewWriter(w)}
}

// Write writes one row per value, in order.
func (vw *ValueWriter) Write(values []normalize.Value) error {
	for _, v := range values {
		vw.w.WriteString(v.ID)
		vw.w.WriteByte('\t')
		vw.w.WriteString(strconv.FormatFloat(v.Value, 'f', 6, 64))
		if err := vw.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes any buffered data to the underlying writer.
func (vw *ValueWriter) Flush() error {
	return vw.w.Flush()
}
