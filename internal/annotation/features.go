package annotation

import (
	"fmt"

	"github.com/inodb/vibe-count/internal/feature"
)

// RecordReader is the interface for sources of annotation records.
type RecordReader interface {
	// Next reads the next record.
	// Returns nil, nil when there are no more records.
	Next() (*Record, error)

	// LineNumber returns the current line number being processed.
	LineNumber() int
}

// ReadFeatures groups records of the given type into features keyed by the
// value of idAttr. Each matching record contributes one interval to the
// segment on its reference sequence and strand, so an id annotated on several
// references (e.g. PAR genes on chrX and chrY) stays one feature. Records of
// other types are ignored; a matching record without idAttr is an error.
// Features are returned in order of first appearance.
func ReadFeatures(r RecordReader, featureType, idAttr string) ([]*feature.Feature, error) {
	var features []*feature.Feature
	byID := make(map[string]*feature.Feature)

	for {
		rec, err := r.Next()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			break
		}

		if rec.Type != featureType {
			continue
		}

		id, ok := rec.Attributes[idAttr]
		if !ok || id == "" {
			return nil, fmt.Errorf("line %d: %s record is missing attribute %q", r.LineNumber(), featureType, idAttr)
		}

		f, ok := byID[id]
		if !ok {
			f = &feature.Feature{ID: id}
			byID[id] = f
			features = append(features, f)
		}
		f.Add(rec.RefName, rec.Strand, feature.Interval{Start: rec.Start, End: rec.End})
	}

	return features, nil
}

// LoadFeatures opens the annotation file at path and reads its features.
func LoadFeatures(path, featureType, idAttr string) ([]*feature.Feature, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	features, err := ReadFeatures(r, featureType, idAttr)
	if err != nil {
		return nil, fmt.Errorf("parse annotations %s: %w", path, err)
	}
	return features, nil
}
