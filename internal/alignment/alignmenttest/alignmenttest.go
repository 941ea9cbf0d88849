// Package alignmenttest builds in-memory alignment records for tests.
package alignmenttest

import (
	"fmt"

	"github.com/biogo/hts/sam"
)

// ReferenceLength is the length given to every test reference.
const ReferenceLength = 10_000_000

// NewHeader returns a header with one reference per name, in order.
func NewHeader(names ...string) *sam.Header {
	refs := make([]*sam.Reference, len(names))
	for i, name := range names {
		ref, err := sam.NewReference(name, "", "", ReferenceLength, nil, nil)
		if err != nil {
			panic(fmt.Sprintf("new reference %s: %v", name, err))
		}
		refs[i] = ref
	}

	h, err := sam.NewHeader(nil, refs)
	if err != nil {
		panic(fmt.Sprintf("new header: %v", err))
	}
	return h
}

// NewReferences returns header-linked references, one per name.
func NewReferences(names ...string) []*sam.Reference {
	return NewHeader(names...).Refs()
}

// Option modifies a record under construction.
type Option func(*sam.Record)

// WithFlags sets additional flags.
func WithFlags(f sam.Flags) Option {
	return func(r *sam.Record) { r.Flags |= f }
}

// WithMapQ sets the mapping quality.
func WithMapQ(q byte) Option {
	return func(r *sam.Record) { r.MapQ = q }
}

// WithNH sets the NH (number of reported alignments) tag.
func WithNH(n int) Option {
	if n >= 0 && n <= 255 {
		return WithAux("NH", uint8(n))
	}
	return WithAux("NH", int32(n))
}

// WithAux appends an optional field.
func WithAux(tag string, value interface{}) Option {
	return func(r *sam.Record) {
		aux, err := sam.NewAux(sam.NewTag(tag), value)
		if err != nil {
			panic(fmt.Sprintf("new aux %s: %v", tag, err))
		}
		r.AuxFields = append(r.AuxFields, aux)
	}
}

// WithMate sets the mate reference and position.
func WithMate(ref *sam.Reference, pos int) Option {
	return func(r *sam.Record) {
		r.MateRef = ref
		r.MatePos = pos
	}
}

// NewRecord returns a mapped record at pos with the given CIGAR string,
// mapping quality 60 and a sequence matching the CIGAR query length.
func NewRecord(name string, ref *sam.Reference, pos int, cigar string, opts ...Option) *sam.Record {
	co, err := sam.ParseCigar([]byte(cigar))
	if err != nil {
		panic(fmt.Sprintf("parse cigar %q: %v", cigar, err))
	}

	r := &sam.Record{
		Name:    name,
		Ref:     ref,
		Pos:     pos,
		MapQ:    60,
		Cigar:   co,
		MatePos: -1,
	}
	setSequence(r, queryLength(co))

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewUnmapped returns an unmapped record with no reference.
func NewUnmapped(name string, opts ...Option) *sam.Record {
	r := &sam.Record{
		Name:    name,
		Pos:     -1,
		MapQ:    0,
		Flags:   sam.Unmapped,
		MatePos: -1,
	}
	setSequence(r, 50)

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewPair returns the two segments of a properly paired template: the first
// segment at pos1 on the forward strand (or reverse when reverse is true) and
// the second at pos2 on the opposite strand. opts apply to both segments.
func NewPair(name string, ref *sam.Reference, pos1, pos2 int, cigar string, reverse bool, opts ...Option) (r1, r2 *sam.Record) {
	f1 := sam.Paired | sam.ProperPair | sam.Read1
	f2 := sam.Paired | sam.ProperPair | sam.Read2
	if reverse {
		f1 |= sam.Reverse
		f2 |= sam.MateReverse
	} else {
		f1 |= sam.MateReverse
		f2 |= sam.Reverse
	}

	r1 = NewRecord(name, ref, pos1, cigar, append([]Option{WithFlags(f1), WithMate(ref, pos2)}, opts...)...)
	r2 = NewRecord(name, ref, pos2, cigar, append([]Option{WithFlags(f2), WithMate(ref, pos1)}, opts...)...)
	return r1, r2
}

func queryLength(co sam.Cigar) int {
	n := 0
	for _, op := range co {
		switch op.Type() {
		case sam.CigarMatch, sam.CigarInsertion, sam.CigarSoftClipped, sam.CigarEqual, sam.CigarMismatch:
			n += op.Len()
		}
	}
	return n
}

func setSequence(r *sam.Record, n int) {
	seq := make([]byte, n)
	qual := make([]byte, n)
	for i := range seq {
		seq[i] = "ACGT"[i%4]
		qual[i] = 30
	}
	r.Seq = sam.NewSeq(seq)
	r.Qual = qual
}
