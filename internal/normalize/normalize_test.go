package normalize

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-count/internal/feature"
)

func newFeature(id string, intervals ...feature.Interval) *feature.Feature {
	return feature.New(id, "chr1", feature.StrandForward, intervals...)
}

func twoFeatures() []*feature.Feature {
	return []*feature.Feature{
		newFeature("A", feature.Interval{Start: 0, End: 1000}),
		// Two overlapping exons with a union of 2000 bases.
		newFeature("B", feature.Interval{Start: 5000, End: 6500}, feature.Interval{Start: 6000, End: 7000}),
	}
}

func TestFPKM(t *testing.T) {
	values, err := FPKM(map[string]uint64{"A": 10, "B": 10}, twoFeatures())
	require.NoError(t, err)
	require.Len(t, values, 2)

	assert.Equal(t, "A", values[0].ID)
	assert.InDelta(t, 500000.0, values[0].Value, 1e-6)
	assert.Equal(t, "B", values[1].ID)
	assert.InDelta(t, 250000.0, values[1].Value, 1e-6)
}

func TestTPM(t *testing.T) {
	values, err := TPM(map[string]uint64{"A": 10, "B": 10}, twoFeatures())
	require.NoError(t, err)
	require.Len(t, values, 2)

	assert.InDelta(t, 666666.67, values[0].Value, 0.01)
	assert.InDelta(t, 333333.33, values[1].Value, 0.01)
	assert.InDelta(t, 1e6, values[0].Value+values[1].Value, 1e-6)
}

func TestZeroTotal(t *testing.T) {
	for _, m := range []Method{MethodFPKM, MethodTPM} {
		values, err := Calculate(m, map[string]uint64{}, twoFeatures())
		require.NoError(t, err, m.String())
		for _, v := range values {
			assert.Zero(t, v.Value, "%s %s", m, v.ID)
		}
	}
}

func TestAbsentIDsCountZero(t *testing.T) {
	values, err := FPKM(map[string]uint64{"A": 5}, twoFeatures())
	require.NoError(t, err)
	assert.Positive(t, values[0].Value)
	assert.Zero(t, values[1].Value)
}

func TestCountsOutsideFeaturesIncludedInTotal(t *testing.T) {
	values, err := FPKM(map[string]uint64{"A": 10, "B": 10, "Z": 20}, twoFeatures())
	require.NoError(t, err)
	assert.InDelta(t, 250000.0, values[0].Value, 1e-6)
}

func TestZeroLength(t *testing.T) {
	features := append(twoFeatures(), newFeature("EMPTY"), newFeature("EMPTY2"))

	for _, m := range []Method{MethodFPKM, MethodTPM} {
		_, err := Calculate(m, map[string]uint64{"A": 1}, features)
		require.Error(t, err)

		var zl *ZeroLengthError
		require.ErrorAs(t, err, &zl)
		assert.Equal(t, "EMPTY", zl.ID)
		assert.Contains(t, err.Error(), "EMPTY")
	}
}

func TestManyFeatures(t *testing.T) {
	var features []*feature.Feature
	counts := make(map[string]uint64)
	for i := range 10000 {
		id := fmt.Sprintf("G%05d", i)
		features = append(features, newFeature(id, feature.Interval{Start: i * 10, End: i*10 + 100 + i%7}))
		counts[id] = uint64(i % 13)
	}

	values, err := TPM(counts, features)
	require.NoError(t, err)

	var sum float64
	for i, v := range values {
		assert.Equal(t, features[i].ID, v.ID)
		sum += v.Value
	}
	assert.InDelta(t, 1e6, sum, 1e-3)
}

func TestEmpty(t *testing.T) {
	values, err := TPM(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("TPM")
	require.NoError(t, err)
	assert.Equal(t, MethodTPM, m)

	m, err = ParseMethod("fpkm")
	require.NoError(t, err)
	assert.Equal(t, MethodFPKM, m)

	_, err = ParseMethod("rpkm")
	assert.Error(t, err)

	_, err = Calculate(Method(9), nil, nil)
	assert.Error(t, err)
}
