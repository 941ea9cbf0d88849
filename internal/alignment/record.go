package alignment

import (
	"errors"
	"fmt"

	"github.com/biogo/hts/sam"

	"github.com/inodb/vibe-count/internal/feature"
)

// MapQUnavailable is the mapping quality value meaning "not available".
const MapQUnavailable = 255

// ErrInvalidHitCount is returned when the NH tag holds a non-integer value.
var ErrInvalidHitCount = errors.New("invalid NH value type")

var hitCountTag = sam.NewTag("NH")

// MappingQuality returns the record's mapping quality and whether it is available.
func MappingQuality(r *sam.Record) (byte, bool) {
	if r.MapQ == MapQUnavailable {
		return 0, false
	}
	return r.MapQ, true
}

// HitCount returns the value of the NH (number of reported alignments) tag.
// ok is false when the tag is absent. A value of any non-integer type is an
// error.
func HitCount(r *sam.Record) (hits int, ok bool, err error) {
	aux := r.AuxFields.Get(hitCountTag)
	if aux == nil {
		return 0, false, nil
	}

	switch v := aux.Value().(type) {
	case int8:
		return int(v), true, nil
	case uint8:
		return int(v), true, nil
	case int16:
		return int(v), true, nil
	case uint16:
		return int(v), true, nil
	case int32:
		return int(v), true, nil
	case uint32:
		return int(v), true, nil
	default:
		return 0, false, fmt.Errorf("%w: expected integer, got %T", ErrInvalidHitCount, v)
	}
}

// IsNonunique reports whether the aligner reported more than one alignment
// for the read. A missing NH tag means the read is unique.
func IsNonunique(r *sam.Record) (bool, error) {
	hits, ok, err := HitCount(r)
	if err != nil {
		return false, err
	}
	return ok && hits > 1, nil
}

// Blocks returns the reference intervals covered by the aligned blocks of r.
// Matches, mismatches and deletions extend a block; skipped regions (introns)
// start a new one.
func Blocks(r *sam.Record) []feature.Interval {
	var blocks []feature.Interval

	pos := r.Pos
	start := pos
	for _, co := range r.Cigar {
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch, sam.CigarDeletion:
			pos += co.Len()
		case sam.CigarSkipped:
			if pos > start {
				blocks = append(blocks, feature.Interval{Start: start, End: pos})
			}
			pos += co.Len()
			start = pos
		}
	}
	if pos > start {
		blocks = append(blocks, feature.Interval{Start: start, End: pos})
	}

	return blocks
}

// FragmentStrand returns the strand of the sequenced fragment implied by r:
// the alignment strand, flipped for the second segment of a pair.
func FragmentStrand(r *sam.Record) feature.Strand {
	s := feature.Strand(r.Strand())
	if r.Flags&sam.Paired != 0 && r.Flags&sam.Read2 != 0 {
		return s.Opposite()
	}
	return s
}

// IsPrimary reports whether r is neither secondary nor supplementary.
func IsPrimary(r *sam.Record) bool {
	return r.Flags&(sam.Secondary|sam.Supplementary) == 0
}
