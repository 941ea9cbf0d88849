package duckdb

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file. Path is made
// absolute.
func StatFile(path string) (FileFingerprint, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    abs,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// metaFields returns the fingerprint as key/value pairs prefixed with name.
func (fp FileFingerprint) metaFields(name string) [][2]string {
	return [][2]string{
		{name + "_path", fp.Path},
		{name + "_size", strconv.FormatInt(fp.Size, 10)},
		{name + "_modtime", fp.ModTime.UTC().Format(time.RFC3339Nano)},
	}
}
