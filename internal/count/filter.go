package count

import (
	"fmt"

	"github.com/biogo/hts/sam"

	"github.com/inodb/vibe-count/internal/alignment"
)

// ErrInvalidHitCount is returned when a record's NH tag is not an integer.
var ErrInvalidHitCount = alignment.ErrInvalidHitCount

// DefaultMinMappingQuality is the default minimum MAPQ.
const DefaultMinMappingQuality = 10

// FilterOptions configures which records are eligible for counting.
type FilterOptions struct {
	MinMappingQuality byte
	WithSecondary     bool
	WithSupplementary bool
	WithNonunique     bool
}

// Filter decides whether a record or pair is discarded before assignment.
// A Filter is immutable and safe for concurrent use.
type Filter struct {
	opts FilterOptions
}

// NewFilter creates a filter with the given options.
func NewFilter(opts FilterOptions) *Filter {
	return &Filter{opts: opts}
}

// Options returns the filter's options.
func (f *Filter) Options() FilterOptions {
	return f.opts
}

// Classify checks r against the filter. When discarded is true, ev holds the
// discard reason. A malformed NH tag is an error.
func (f *Filter) Classify(r *sam.Record) (ev Event, discarded bool, err error) {
	return f.classify(r)
}

// ClassifyPair checks both segments of a pair. Each check is applied to both
// mates before moving on to the next, and the pair is discarded if either
// mate fails it.
func (f *Filter) ClassifyPair(r1, r2 *sam.Record) (ev Event, discarded bool, err error) {
	return f.classify(r1, r2)
}

func (f *Filter) classify(records ...*sam.Record) (Event, bool, error) {
	for _, r := range records {
		if r.Flags&sam.Unmapped != 0 {
			return Event{Kind: Unmapped}, true, nil
		}
	}

	for _, r := range records {
		if !f.opts.WithSecondary && r.Flags&sam.Secondary != 0 {
			return Event{Kind: Skip}, true, nil
		}
		if !f.opts.WithSupplementary && r.Flags&sam.Supplementary != 0 {
			return Event{Kind: Skip}, true, nil
		}
	}

	if !f.opts.WithNonunique {
		for _, r := range records {
			nonunique, err := alignment.IsNonunique(r)
			if err != nil {
				return Event{}, false, fmt.Errorf("classify record %s: %w", r.Name, err)
			}
			if nonunique {
				return Event{Kind: Nonunique}, true, nil
			}
		}
	}

	for _, r := range records {
		if q, ok := alignment.MappingQuality(r); ok && q < f.opts.MinMappingQuality {
			return Event{Kind: LowQuality}, true, nil
		}
	}

	return Event{}, false, nil
}
