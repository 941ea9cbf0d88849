// Package annotation reads GTF and GFF3 feature annotations.
package annotation

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/inodb/vibe-count/internal/feature"
)

// Record represents a single parsed annotation line.
type Record struct {
	RefName    string
	Source     string
	Type       string
	Start      int // 0-based, inclusive
	End        int // 0-based, exclusive
	Strand     feature.Strand
	Attributes map[string]string
}

// Reader reads annotation records from GTF or GFF3 input.
// Plain and gzip-compressed input are both supported.
type Reader struct {
	scanner    *bufio.Scanner
	file       *os.File
	gzipReader *gzip.Reader
	lineNumber int
	done       bool
}

// Open opens an annotation file. Gzip input is detected from its magic bytes.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open annotation file: %w", err)
	}

	br := bufio.NewReader(file)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		file.Close()
		return nil, fmt.Errorf("read annotation header: %w", err)
	}

	// Check for gzip magic number (0x1f, 0x8b)
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		r := NewReader(gz)
		r.file = file
		r.gzipReader = gz
		return r, nil
	}

	r := NewReader(br)
	r.file = file
	return r, nil
}

// NewReader creates a reader over uncompressed annotation text.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for long attribute columns
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	return &Reader{scanner: scanner}
}

// Next reads the next record.
// Returns nil, nil when there are no more records.
func (r *Reader) Next() (*Record, error) {
	if r.done {
		return nil, nil
	}

	for r.scanner.Scan() {
		r.lineNumber++
		line := r.scanner.Text()

		// GFF3 may append sequences after a ##FASTA directive
		if strings.HasPrefix(line, "##FASTA") {
			r.done = true
			return nil, nil
		}

		// Skip comments and empty lines
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}

		rec, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.lineNumber, err)
		}
		return rec, nil
	}

	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan annotations: %w", err)
	}
	r.done = true
	return nil, nil
}

// LineNumber returns the current line number being processed.
func (r *Reader) LineNumber() int {
	return r.lineNumber
}

// Close closes the reader and releases resources.
func (r *Reader) Close() error {
	if r.gzipReader != nil {
		r.gzipReader.Close()
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// parseLine parses a single GTF/GFF3 line.
func parseLine(line string) (*Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 9 {
		return nil, fmt.Errorf("invalid annotation line: expected 9 fields, got %d", len(fields))
	}

	start, err := strconv.Atoi(fields[3])
	if err != nil {
		return nil, fmt.Errorf("parse start: %w", err)
	}

	end, err := strconv.Atoi(fields[4])
	if err != nil {
		return nil, fmt.Errorf("parse end: %w", err)
	}

	if start < 1 || end < start {
		return nil, fmt.Errorf("invalid interval %d-%d", start, end)
	}

	return &Record{
		RefName:    fields[0],
		Source:     fields[1],
		Type:       fields[2],
		Start:      start - 1,
		End:        end,
		Strand:     feature.ParseStrand(fields[6]),
		Attributes: parseAttributes(fields[8]),
	}, nil
}

// parseAttributes parses the attribute column.
// GTF format: key "value"; key "value"; ...
// GFF3 format: key=value;key=value;...
func parseAttributes(attrStr string) map[string]string {
	attrs := make(map[string]string)

	for _, part := range splitAttributes(attrStr) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		// GFF3 uses '=' between key and value and has no spaces in keys
		eq := strings.Index(part, "=")
		sp := strings.Index(part, " ")
		if eq != -1 && (sp == -1 || eq < sp) {
			attrs[part[:eq]] = part[eq+1:]
			continue
		}

		// Find the first space to separate key from value
		if sp == -1 {
			continue
		}

		key := part[:sp]
		value := strings.TrimSpace(part[sp+1:])

		// Remove quotes
		value = strings.Trim(value, "\"")

		attrs[key] = value
	}

	return attrs
}

// splitAttributes splits the attribute column on semicolons outside double
// quotes.
func splitAttributes(s string) []string {
	var parts []string
	quoted := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			quoted = !quoted
		case ';':
			if !quoted {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
