// Package feature provides the annotated features reads are counted against
// and an overlap index over them.
package feature

import (
	"slices"
)

// Strand is the annotated strand of a feature or the inferred strand of a read.
type Strand int8

const (
	StrandUnknown Strand = 0
	StrandForward Strand = 1
	StrandReverse Strand = -1
)

// ParseStrand converts an annotation strand column ("+", "-", "." or "?").
func ParseStrand(s string) Strand {
	switch s {
	case "+":
		return StrandForward
	case "-":
		return StrandReverse
	default:
		return StrandUnknown
	}
}

// Opposite returns the other strand. Unknown stays unknown.
func (s Strand) Opposite() Strand {
	return -s
}

func (s Strand) String() string {
	switch s {
	case StrandForward:
		return "+"
	case StrandReverse:
		return "-"
	default:
		return "."
	}
}

// Interval is a half-open, 0-based genomic range [Start, End).
type Interval struct {
	Start int
	End   int
}

// Len returns the number of bases covered by the interval.
func (iv Interval) Len() int {
	return iv.End - iv.Start
}

// Overlaps reports whether two half-open intervals share at least one base.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start < other.End && other.Start < iv.End
}

// Segment is the part of a feature that lies on one reference sequence and
// strand.
type Segment struct {
	RefName   string     // Reference sequence name
	Strand    Strand     // Annotated strand
	Intervals []Interval // Intervals in annotation order
}

// Feature is an annotated region (usually a gene) made of one or more
// intervals, e.g. its exons. Most features have a single segment; genes in
// the pseudoautosomal regions or on alternate contigs carry one per
// reference sequence.
type Feature struct {
	ID       string // Feature identifier (e.g., ENSG00000133703)
	Segments []Segment
}

// New returns a single-segment feature.
func New(id, ref string, strand Strand, intervals ...Interval) *Feature {
	f := &Feature{ID: id}
	f.Add(ref, strand, intervals...)
	return f
}

// Add appends intervals to the segment on ref and strand, creating it if
// needed.
func (f *Feature) Add(ref string, strand Strand, intervals ...Interval) {
	for i := range f.Segments {
		seg := &f.Segments[i]
		if seg.RefName == ref && seg.Strand == strand {
			seg.Intervals = append(seg.Intervals, intervals...)
			return
		}
	}
	f.Segments = append(f.Segments, Segment{
		RefName:   ref,
		Strand:    strand,
		Intervals: append([]Interval(nil), intervals...),
	})
}

// Length returns the number of bases covered by the feature: the union of
// each segment's intervals, summed over segments. Overlapping intervals, such
// as exons shared between transcripts, are counted once.
func (f *Feature) Length() int {
	length := 0
	for _, seg := range f.Segments {
		for _, iv := range Flatten(seg.Intervals) {
			length += iv.Len()
		}
	}
	return length
}

// Flatten merges overlapping and adjacent intervals. The input is not
// modified; the result is sorted by Start.
func Flatten(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}

	sorted := slices.Clone(intervals)
	slices.SortFunc(sorted, func(a, b Interval) int {
		return a.Start - b.Start
	})

	merged := sorted[:1]
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if iv.Start > last.End {
			merged = append(merged, iv)
			continue
		}
		if iv.End > last.End {
			last.End = iv.End
		}
	}
	return merged
}
