package alignment

import (
	"sort"

	"github.com/biogo/hts/sam"
	"github.com/cespare/xxhash"
)

// pendingMate is a record waiting for its mate.
type pendingMate struct {
	seq    int
	record *sam.Record
}

// MatePairer matches the two segments of paired reads as they stream past.
// Records are bucketed by a hash of the read name; within a bucket, mates are
// matched on name and on each record pointing at the other's position.
type MatePairer struct {
	pending map[uint64][]pendingMate
	seq     int
	size    int
}

// NewMatePairer creates an empty pairer.
func NewMatePairer() *MatePairer {
	return &MatePairer{pending: make(map[uint64][]pendingMate)}
}

// Add offers r to the pairer. If r's mate has already been seen, the pair is
// returned ordered as (first segment, second segment) and ok is true.
// Otherwise r is held until its mate arrives.
func (p *MatePairer) Add(r *sam.Record) (first, second *sam.Record, ok bool) {
	key := xxhash.Sum64String(r.Name)

	bucket := p.pending[key]
	for i, m := range bucket {
		if !isMate(m.record, r) {
			continue
		}

		bucket = append(bucket[:i], bucket[i+1:]...)
		if len(bucket) == 0 {
			delete(p.pending, key)
		} else {
			p.pending[key] = bucket
		}
		p.size--

		if r.Flags&sam.Read1 != 0 && m.record.Flags&sam.Read1 == 0 {
			return r, m.record, true
		}
		return m.record, r, true
	}

	p.pending[key] = append(bucket, pendingMate{seq: p.seq, record: r})
	p.seq++
	p.size++
	return nil, nil, false
}

// Len returns the number of records still waiting for a mate.
func (p *MatePairer) Len() int {
	return p.size
}

// Unpaired removes and returns all records still waiting for a mate, in the
// order they were added.
func (p *MatePairer) Unpaired() []*sam.Record {
	pending := make([]pendingMate, 0, p.size)
	for _, bucket := range p.pending {
		pending = append(pending, bucket...)
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].seq < pending[j].seq
	})

	records := make([]*sam.Record, len(pending))
	for i, m := range pending {
		records[i] = m.record
	}

	p.pending = make(map[uint64][]pendingMate)
	p.size = 0
	return records
}

// isMate reports whether a and b are the two segments of the same template.
func isMate(a, b *sam.Record) bool {
	if a.Name != b.Name {
		return false
	}
	if a.Flags&(sam.Read1|sam.Read2) == b.Flags&(sam.Read1|sam.Read2) {
		return false
	}
	return a.MateRef.ID() == b.Ref.ID() && a.MatePos == b.Pos &&
		b.MateRef.ID() == a.Ref.ID() && b.MatePos == a.Pos
}
