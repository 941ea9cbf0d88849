// Package alignment provides sequential access to aligned reads and the
// per-record helpers used to count them.
package alignment

import (
	"fmt"
	"io"
	"os"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
)

// Source is a sequential stream of alignment records.
type Source interface {
	// Read returns the next record, or io.EOF when the stream is exhausted.
	Read() (*sam.Record, error)

	// References returns the reference sequence table from the header.
	// A record's reference ID indexes into this table.
	References() []*sam.Reference

	// Close releases the underlying resources.
	Close() error
}

// Opener opens a fresh Source positioned at the first record. Detection and
// counting each open their own Source from the same Opener.
type Opener func() (Source, error)

// bamSource reads records from a BAM file.
type bamSource struct {
	file   *os.File
	reader *bam.Reader
}

// OpenBAM opens the BAM file at path. readers is the number of concurrent
// BGZF block decompressors; values below 1 use a single decompressor.
func OpenBAM(path string, readers int) (Source, error) {
	if readers < 1 {
		readers = 1
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bam file: %w", err)
	}

	br, err := bam.NewReader(f, readers)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read bam header %s: %w", path, err)
	}

	return &bamSource{file: f, reader: br}, nil
}

// BAMOpener returns an Opener that re-opens the BAM file at path on each call.
func BAMOpener(path string, readers int) Opener {
	return func() (Source, error) {
		return OpenBAM(path, readers)
	}
}

func (s *bamSource) Read() (*sam.Record, error) {
	return s.reader.Read()
}

func (s *bamSource) References() []*sam.Reference {
	return s.reader.Header().Refs()
}

func (s *bamSource) Close() error {
	if err := s.reader.Close(); err != nil {
		s.file.Close()
		return fmt.Errorf("close bam reader: %w", err)
	}
	return s.file.Close()
}

// sliceSource serves records from memory.
type sliceSource struct {
	refs    []*sam.Reference
	records []*sam.Record
	next    int
}

// NewSliceSource returns a Source over records already in memory.
func NewSliceSource(refs []*sam.Reference, records []*sam.Record) Source {
	return &sliceSource{refs: refs, records: records}
}

// SliceOpener returns an Opener producing independent Sources over the same records.
func SliceOpener(refs []*sam.Reference, records []*sam.Record) Opener {
	return func() (Source, error) {
		return NewSliceSource(refs, records), nil
	}
}

func (s *sliceSource) Read() (*sam.Record, error) {
	if s.next >= len(s.records) {
		return nil, io.EOF
	}
	r := s.records[s.next]
	s.next++
	return r, nil
}

func (s *sliceSource) References() []*sam.Reference {
	return s.refs
}

func (s *sliceSource) Close() error {
	return nil
}

// ReferenceNames returns the names of refs indexed by reference ID.
func ReferenceNames(refs []*sam.Reference) []string {
	names := make([]string, len(refs))
	for i, ref := range refs {
		names[i] = ref.Name()
	}
	return names
}
