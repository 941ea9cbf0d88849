// Package normalize converts raw feature counts into FPKM and TPM values.
package normalize

import (
	"fmt"
	"strings"

	"github.com/exascience/pargo/parallel"

	"github.com/inodb/vibe-count/internal/feature"
)

// Method selects a normalization.
type Method int

const (
	MethodFPKM Method = iota
	MethodTPM
)

// ParseMethod parses "fpkm" or "tpm", case-insensitively.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fpkm":
		return MethodFPKM, nil
	case "tpm":
		return MethodTPM, nil
	default:
		return MethodFPKM, fmt.Errorf("invalid normalization method %q (want fpkm or tpm)", s)
	}
}

func (m Method) String() string {
	switch m {
	case MethodFPKM:
		return "fpkm"
	case MethodTPM:
		return "tpm"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ZeroLengthError reports a feature whose intervals cover no bases.
type ZeroLengthError struct {
	ID string
}

func (e *ZeroLengthError) Error() string {
	return fmt.Sprintf("feature %s has zero length", e.ID)
}

// Value is a normalized value for one feature.
type Value struct {
	ID    string
	Value float64
}

// Calculate applies method to counts. Results follow the order of features;
// ids missing from counts are treated as zero.
func Calculate(method Method, counts map[string]uint64, features []*feature.Feature) ([]Value, error) {
	switch method {
	case MethodFPKM:
		return FPKM(counts, features)
	case MethodTPM:
		return TPM(counts, features)
	default:
		return nil, fmt.Errorf("unsupported normalization method %s", method)
	}
}

// FPKM returns fragments per kilobase of feature per million assigned
// fragments. Every value is 0 when no fragments were assigned.
func FPKM(counts map[string]uint64, features []*feature.Feature) ([]Value, error) {
	lengths, err := featureLengths(features)
	if err != nil {
		return nil, err
	}

	var total uint64
	for _, c := range counts {
		total += c
	}

	values := make([]Value, len(features))
	forRange(len(features), func(low, high int) {
		for i := low; i < high; i++ {
			f := features[i]
			values[i].ID = f.ID
			if total > 0 {
				values[i].Value = float64(counts[f.ID]) * 1e9 / (float64(lengths[i]) * float64(total))
			}
		}
	})
	return values, nil
}

// TPM returns transcripts per million. Every value is 0 when the summed
// per-base rate is 0.
func TPM(counts map[string]uint64, features []*feature.Feature) ([]Value, error) {
	lengths, err := featureLengths(features)
	if err != nil {
		return nil, err
	}

	values := make([]Value, len(features))
	forRange(len(features), func(low, high int) {
		for i := low; i < high; i++ {
			f := features[i]
			values[i] = Value{ID: f.ID, Value: float64(counts[f.ID]) * 1e3 / float64(lengths[i])}
		}
	})

	var sum float64
	if len(values) > 0 {
		sum = parallel.RangeReduceFloat64(0, len(values), 0,
			func(low, high int) float64 {
				var s float64
				for i := low; i < high; i++ {
					s += values[i].Value
				}
				return s
			},
			func(x, y float64) float64 { return x + y })
	}

	forRange(len(values), func(low, high int) {
		for i := low; i < high; i++ {
			if sum == 0 {
				values[i].Value = 0
			} else {
				values[i].Value = values[i].Value * 1e6 / sum
			}
		}
	})
	return values, nil
}

// featureLengths returns the union length of each feature, failing on the
// first feature with none.
func featureLengths(features []*feature.Feature) ([]int, error) {
	lengths := make([]int, len(features))
	for i, f := range features {
		lengths[i] = f.Length()
		if lengths[i] == 0 {
			return nil, &ZeroLengthError{ID: f.ID}
		}
	}
	return lengths, nil
}

// forRange runs fn over [0, n) in parallel batches.
func forRange(n int, fn func(low, high int)) {
	if n == 0 {
		return
	}
	parallel.Range(0, n, 0, fn)
}
