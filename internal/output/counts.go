package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ReadCounts parses a count table. Statistics rows are skipped; a feature
// id that appears twice is an error.
func ReadCounts(r io.Reader) (map[string]uint64, error) {
	counts := make(map[string]uint64)

	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, statisticPrefix) {
			continue
		}

		id, value, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("line %d: expected 2 tab-separated fields", lineNumber)
		}
		n, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid count %q: %w", lineNumber, value, err)
		}
		if _, dup := counts[id]; dup {
			return nil, fmt.Errorf("line %d: duplicate feature id %s", lineNumber, id)
		}
		counts[id] = n
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read counts: %w", err)
	}

	return counts, nil
}

// ReadCountsFile parses the count table at path.
func ReadCountsFile(path string) (map[string]uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	counts, err := ReadCounts(f)
	if err != nil {
		return nil, fmt.Errorf("parse counts %s: %w", path, err)
	}
	return counts, nil
}
