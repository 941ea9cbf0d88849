package duckdb

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/inodb/vibe-count/internal/feature"
)

// FeatureCache manages gob-serialized features on disk:
//
//	{dir}/features.gob       (serialized features)
//	{dir}/features.gob.meta  (annotation fingerprint and selection)
//
// A cache entry is valid only for the annotation file, feature type and id
// attribute it was built from.
type FeatureCache struct {
	dir string
}

// NewFeatureCache creates a feature cache in dir.
func NewFeatureCache(dir string) *FeatureCache {
	return &FeatureCache{dir: dir}
}

func (fc *FeatureCache) gobPath() string {
	return filepath.Join(fc.dir, "features.gob")
}

func (fc *FeatureCache) metaPath() string {
	return filepath.Join(fc.dir, "features.gob.meta")
}

// featureCacheFormat changes whenever the gob layout of feature.Feature does.
const featureCacheFormat = "2"

func cacheKey(annotation FileFingerprint, featureType, idAttribute string) [][2]string {
	return append(annotation.metaFields("annotation"),
		[2]string{"format", featureCacheFormat},
		[2]string{"feature_type", featureType},
		[2]string{"id_attribute", idAttribute},
	)
}

// Valid checks whether the cached features were built from the same
// annotation file with the same selection.
func (fc *FeatureCache) Valid(annotation FileFingerprint, featureType, idAttribute string) bool {
	meta, err := fc.readMeta()
	if err != nil {
		return false
	}

	for _, kv := range cacheKey(annotation, featureType, idAttribute) {
		if meta[kv[0]] != kv[1] {
			return false
		}
	}

	if _, err := os.Stat(fc.gobPath()); err != nil {
		return false
	}
	return true
}

// Load reads the cached features.
func (fc *FeatureCache) Load() ([]*feature.Feature, error) {
	f, err := os.Open(fc.gobPath())
	if err != nil {
		return nil, fmt.Errorf("open feature cache: %w", err)
	}
	defer f.Close()

	var features []*feature.Feature
	if err := gob.NewDecoder(f).Decode(&features); err != nil {
		return nil, fmt.Errorf("decode feature cache: %w", err)
	}
	return features, nil
}

// Write serializes features to disk and records the key they belong to.
func (fc *FeatureCache) Write(features []*feature.Feature, annotation FileFingerprint, featureType, idAttribute string) error {
	if err := os.MkdirAll(fc.dir, 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	f, err := os.Create(fc.gobPath())
	if err != nil {
		return fmt.Errorf("create feature cache: %w", err)
	}

	if err := gob.NewEncoder(f).Encode(features); err != nil {
		f.Close()
		os.Remove(fc.gobPath())
		return fmt.Errorf("encode feature cache: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close feature cache: %w", err)
	}

	return fc.writeMeta(cacheKey(annotation, featureType, idAttribute))
}

// Clear removes the cached files.
func (fc *FeatureCache) Clear() {
	os.Remove(fc.gobPath())
	os.Remove(fc.metaPath())
}

func (fc *FeatureCache) writeMeta(fields [][2]string) error {
	var b strings.Builder
	for _, kv := range fields {
		b.WriteString(kv[0] + "=" + kv[1] + "\n")
	}
	b.WriteString("created_at=" + time.Now().UTC().Format(time.RFC3339) + "\n")
	return os.WriteFile(fc.metaPath(), []byte(b.String()), 0644)
}

func (fc *FeatureCache) readMeta() (map[string]string, error) {
	data, err := os.ReadFile(fc.metaPath())
	if err != nil {
		return nil, err
	}

	meta := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			meta[k] = v
		}
	}
	return meta, nil
}
