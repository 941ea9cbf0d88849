// Package pipeline wires annotation loading, library detection, counting,
// normalization and output into the end-to-end quantify and normalize flows.
package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/vibe-count/internal/annotation"
	"github.com/inodb/vibe-count/internal/duckdb"
	"github.com/inodb/vibe-count/internal/feature"
)

// Pipeline runs quantification and normalization.
type Pipeline struct {
	logger *zap.Logger
	store  *duckdb.Store
}

// New creates a pipeline that logs nothing and stores no runs.
func New() *Pipeline {
	return &Pipeline{logger: zap.NewNop()}
}

// SetLogger sets the logger for progress and warning messages.
func (p *Pipeline) SetLogger(l *zap.Logger) {
	p.logger = l
}

// SetStore sets the database runs are recorded in and counts may be read from.
func (p *Pipeline) SetStore(s *duckdb.Store) {
	p.store = s
}

// FeatureSource selects features from an annotation file.
type FeatureSource struct {
	Annotation  string
	FeatureType string
	IDAttribute string

	// CacheDir, when set, holds parsed features between runs.
	CacheDir string
}

// loadIndex reads features, through the cache when one is configured, and
// indexes them.
func (p *Pipeline) loadIndex(src FeatureSource) (*feature.Index, error) {
	features, err := p.loadFeatures(src)
	if err != nil {
		return nil, err
	}

	ix, err := feature.NewIndex(features)
	if err != nil {
		return nil, fmt.Errorf("build feature index: %w", err)
	}
	p.logger.Info("loaded features",
		zap.Int("features", ix.Len()),
		zap.Int("references", len(ix.References())))
	return ix, nil
}

func (p *Pipeline) loadFeatures(src FeatureSource) ([]*feature.Feature, error) {
	if src.CacheDir == "" {
		return annotation.LoadFeatures(src.Annotation, src.FeatureType, src.IDAttribute)
	}

	fp, err := duckdb.StatFile(src.Annotation)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", src.Annotation, err)
	}

	fc := duckdb.NewFeatureCache(src.CacheDir)
	if fc.Valid(fp, src.FeatureType, src.IDAttribute) {
		features, err := fc.Load()
		if err == nil {
			p.logger.Debug("loaded features from cache", zap.String("dir", src.CacheDir))
			return features, nil
		}
		p.logger.Warn("feature cache unreadable, reparsing annotation", zap.Error(err))
	}

	features, err := annotation.LoadFeatures(src.Annotation, src.FeatureType, src.IDAttribute)
	if err != nil {
		return nil, err
	}
	if err := fc.Write(features, fp, src.FeatureType, src.IDAttribute); err != nil {
		p.logger.Warn("could not write feature cache", zap.Error(err))
	}
	return features, nil
}
