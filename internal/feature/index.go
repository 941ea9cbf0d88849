package feature

import (
	"fmt"
	"sort"

	"github.com/biogo/store/interval"
)

// Index answers overlap queries against features, one interval tree per
// reference sequence. Every interval of every feature is stored tagged with
// its feature. An Index is read-only once built and safe for concurrent use.
type Index struct {
	trees    map[string]*interval.IntTree
	features map[string]*Feature
	ids      []string
}

// featureInterval is a single feature interval stored in a tree.
type featureInterval struct {
	start, end int
	uid        uintptr
	strand     Strand
	feature    *Feature
}

func (fi featureInterval) Overlap(b interval.IntRange) bool {
	return fi.end > b.Start && fi.start < b.End
}

func (fi featureInterval) ID() uintptr {
	return fi.uid
}

func (fi featureInterval) Range() interval.IntRange {
	return interval.IntRange{Start: fi.start, End: fi.end}
}

// query is a half-open range used to search a tree.
type query Interval

func (q query) Overlap(b interval.IntRange) bool {
	return q.End > b.Start && q.Start < b.End
}

// NewIndex builds an index over the given features. Feature IDs must be unique.
func NewIndex(features []*Feature) (*Index, error) {
	ix := &Index{
		trees:    make(map[string]*interval.IntTree),
		features: make(map[string]*Feature, len(features)),
		ids:      make([]string, 0, len(features)),
	}

	var uid uintptr
	for _, f := range features {
		if _, ok := ix.features[f.ID]; ok {
			return nil, fmt.Errorf("duplicate feature %q", f.ID)
		}
		ix.features[f.ID] = f
		ix.ids = append(ix.ids, f.ID)

		for _, seg := range f.Segments {
			tree, ok := ix.trees[seg.RefName]
			if !ok {
				tree = &interval.IntTree{}
				ix.trees[seg.RefName] = tree
			}

			for _, iv := range seg.Intervals {
				if iv.End < iv.Start {
					return nil, fmt.Errorf("feature %q: inverted interval [%d, %d)", f.ID, iv.Start, iv.End)
				}
				if iv.End == iv.Start {
					continue
				}
				fi := featureInterval{start: iv.Start, end: iv.End, uid: uid, strand: seg.Strand, feature: f}
				if err := tree.Insert(fi, true); err != nil {
					return nil, fmt.Errorf("feature %q: insert interval: %w", f.ID, err)
				}
				uid++
			}
		}
	}

	for _, tree := range ix.trees {
		tree.AdjustRanges()
	}
	sort.Strings(ix.ids)

	return ix, nil
}

// Hit is a feature interval found by an overlap query, with the strand of
// the segment it belongs to.
type Hit struct {
	Feature *Feature
	Strand  Strand
}

// Hits returns every feature interval on ref overlapping iv, regardless of
// strand. An unknown reference yields no hits.
func (ix *Index) Hits(ref string, iv Interval) []Hit {
	tree, ok := ix.trees[ref]
	if !ok || tree.Len() == 0 || iv.End <= iv.Start {
		return nil
	}

	var result []Hit
	for _, h := range tree.Get(query(iv)) {
		fi := h.(featureInterval)
		result = append(result, Hit{Feature: fi.feature, Strand: fi.strand})
	}
	return result
}

// Query returns the features on ref with an interval overlapping iv. When
// want is StrandUnknown all overlapping features are returned; otherwise only
// features annotated on strand want. A feature is reported once per
// overlapping interval, so a feature with two overlapping exons appears twice.
// An unknown reference yields no features.
func (ix *Index) Query(ref string, iv Interval, want Strand) []*Feature {
	var result []*Feature
	for _, h := range ix.Hits(ref, iv) {
		if want != StrandUnknown && h.Strand != want {
			continue
		}
		result = append(result, h.Feature)
	}
	return result
}

// Feature returns the feature with the given ID, or nil if it is unknown.
func (ix *Index) Feature(id string) *Feature {
	return ix.features[id]
}

// Features returns all features ordered by ID.
func (ix *Index) Features() []*Feature {
	features := make([]*Feature, len(ix.ids))
	for i, id := range ix.ids {
		features[i] = ix.features[id]
	}
	return features
}

// IDs returns all feature IDs in sorted order.
func (ix *Index) IDs() []string {
	return ix.ids
}

// Len returns the number of features in the index.
func (ix *Index) Len() int {
	return len(ix.ids)
}

// References returns the sorted reference names that carry at least one feature.
func (ix *Index) References() []string {
	refs := make([]string, 0, len(ix.trees))
	for ref := range ix.trees {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}
