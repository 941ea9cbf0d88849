package library

import (
	"fmt"
	"io"
	"math"

	"github.com/biogo/hts/sam"

	"github.com/inodb/vibe-count/internal/alignment"
	"github.com/inodb/vibe-count/internal/feature"
)

// Detection defaults.
const (
	DefaultSampleSize = 100_000
	DefaultThreshold  = 0.75
)

// DetectConfig controls library detection.
type DetectConfig struct {
	// SampleSize is the maximum number of records read.
	SampleSize int
	// Threshold is the fraction of usable records that must agree for a
	// stranded call.
	Threshold float64
}

// DefaultDetectConfig returns the default detection settings.
func DefaultDetectConfig() DetectConfig {
	return DetectConfig{SampleSize: DefaultSampleSize, Threshold: DefaultThreshold}
}

func (c DetectConfig) withDefaults() DetectConfig {
	if c.SampleSize <= 0 {
		c.SampleSize = DefaultSampleSize
	}
	if c.Threshold <= 0 || c.Threshold > 1 {
		c.Threshold = DefaultThreshold
	}
	return c
}

// Detection is the result of sampling a library.
type Detection struct {
	Layout     Layout
	Strand     StrandSpecification
	Confidence float64

	// Sampled is the number of records read; Usable the number that
	// contributed to the strand call.
	Sampled int
	Usable  int
}

// Detect samples up to cfg.SampleSize records from src and infers the library
// layout and strand specification against the features in ix. src should be
// opened for detection only; the records it yields are not counted.
func Detect(src alignment.Source, ix *feature.Index, cfg DetectConfig) (Detection, error) {
	cfg = cfg.withDefaults()
	refNames := alignment.ReferenceNames(src.References())

	var d Detection
	var paired, forward, reverse int
	for d.Sampled < cfg.SampleSize {
		r, err := src.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Detection{}, fmt.Errorf("read alignment record: %w", err)
		}
		d.Sampled++

		if r.Flags&sam.Paired != 0 {
			paired++
		}
		if r.Flags&sam.Unmapped != 0 || !alignment.IsPrimary(r) {
			continue
		}
		id := r.RefID()
		if id < 0 || id >= len(refNames) {
			continue
		}

		strand, ok := soleFeatureStrand(ix, refNames[id], alignment.Blocks(r))
		if !ok {
			continue
		}
		d.Usable++
		if alignment.FragmentStrand(r) == strand {
			forward++
		} else {
			reverse++
		}
	}

	if d.Sampled > 0 && 2*paired >= d.Sampled {
		d.Layout = PairedEnd
	}

	d.Strand, d.Confidence = callStrand(forward, reverse, cfg.Threshold)
	return d, nil
}

// callStrand turns the forward and reverse tallies into a strand call.
func callStrand(forward, reverse int, threshold float64) (StrandSpecification, float64) {
	usable := forward + reverse
	if usable == 0 {
		return StrandNone, 0
	}

	f := float64(forward) / float64(usable)
	r := float64(reverse) / float64(usable)
	switch {
	case f >= threshold:
		return StrandForward, f
	case r >= threshold:
		return StrandReverse, r
	default:
		return StrandNone, 1 - math.Abs(f-r)
	}
}

// soleFeatureStrand returns the strand of the single feature overlapped by
// blocks. ok is false when zero or several features overlap, when the hits
// disagree on strand, or when the strand is unknown.
func soleFeatureStrand(ix *feature.Index, ref string, blocks []feature.Interval) (feature.Strand, bool) {
	var (
		hit   *feature.Feature
		found feature.Strand
	)
	for _, b := range blocks {
		for _, h := range ix.Hits(ref, b) {
			if hit != nil && (hit.ID != h.Feature.ID || found != h.Strand) {
				return feature.StrandUnknown, false
			}
			hit, found = h.Feature, h.Strand
		}
	}
	if hit == nil || found == feature.StrandUnknown {
		return feature.StrandUnknown, false
	}
	return found, true
}
