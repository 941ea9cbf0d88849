package annotation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-count/internal/feature"
)

func TestReadFeatures_GroupsExonsByGene(t *testing.T) {
	features, err := ReadFeatures(NewReader(strings.NewReader(sampleGTF)), "exon", "gene_id")
	require.NoError(t, err)
	require.Len(t, features, 2)

	kras := features[0]
	assert.Equal(t, "ENSG00000133703", kras.ID)
	require.Len(t, kras.Segments, 1)
	assert.Equal(t, "chr12", kras.Segments[0].RefName)
	assert.Equal(t, feature.StrandReverse, kras.Segments[0].Strand)
	assert.Equal(t, []feature.Interval{
		{Start: 25250750, End: 25250929},
		{Start: 25245273, End: 25245395},
	}, kras.Segments[0].Intervals)
	assert.Equal(t, 179+122, kras.Length())

	assert.Equal(t, "ENSG00000000001", features[1].ID)
	assert.Equal(t, feature.StrandForward, features[1].Segments[0].Strand)
}

func TestReadFeatures_ByTranscript(t *testing.T) {
	features, err := ReadFeatures(NewReader(strings.NewReader(sampleGTF)), "transcript", "transcript_id")
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, "ENST00000311936", features[0].ID)
}

func TestReadFeatures_NoMatchingType(t *testing.T) {
	features, err := ReadFeatures(NewReader(strings.NewReader(sampleGTF)), "CDS", "gene_id")
	require.NoError(t, err)
	assert.Empty(t, features)
}

func TestReadFeatures_MissingAttribute(t *testing.T) {
	content := "chr1\tsrc\texon\t1\t10\t.\t+\t.\tgene_id \"G1\";\n" +
		"chr1\tsrc\texon\t20\t30\t.\t+\t.\ttranscript_id \"T2\";\n"

	_, err := ReadFeatures(NewReader(strings.NewReader(content)), "exon", "gene_id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Contains(t, err.Error(), "gene_id")
}

func TestReadFeatures_MissingAttributeOnOtherTypeIgnored(t *testing.T) {
	content := "chr1\tsrc\tgene\t1\t100\t.\t+\t.\tName \"x\";\n" +
		"chr1\tsrc\texon\t1\t10\t.\t+\t.\tgene_id \"G1\";\n"

	features, err := ReadFeatures(NewReader(strings.NewReader(content)), "exon", "gene_id")
	require.NoError(t, err)
	assert.Len(t, features, 1)
}

func TestReadFeatures_SeveralReferencesAndStrands(t *testing.T) {
	content := "chrX\tsrc\texon\t1\t100\t.\t+\t.\tgene_id \"PAR1\";\n" +
		"chrY\tsrc\texon\t1\t100\t.\t+\t.\tgene_id \"PAR1\";\n" +
		"chrX\tsrc\texon\t201\t250\t.\t+\t.\tgene_id \"PAR1\";\n" +
		"chr1\tsrc\texon\t1\t10\t.\t+\t.\tgene_id \"G1\";\n" +
		"chr1\tsrc\texon\t21\t30\t.\t-\t.\tgene_id \"G1\";\n"

	features, err := ReadFeatures(NewReader(strings.NewReader(content)), "exon", "gene_id")
	require.NoError(t, err)
	require.Len(t, features, 2)

	par := features[0]
	assert.Equal(t, "PAR1", par.ID)
	assert.Equal(t, []feature.Segment{
		{RefName: "chrX", Strand: feature.StrandForward, Intervals: []feature.Interval{{Start: 0, End: 100}, {Start: 200, End: 250}}},
		{RefName: "chrY", Strand: feature.StrandForward, Intervals: []feature.Interval{{Start: 0, End: 100}}},
	}, par.Segments)
	assert.Equal(t, 250, par.Length())

	g1 := features[1]
	require.Len(t, g1.Segments, 2)
	assert.Equal(t, feature.StrandReverse, g1.Segments[1].Strand)
	assert.Equal(t, 20, g1.Length())

	_, err = feature.NewIndex(features)
	assert.NoError(t, err)
}

func TestReadFeatures_GFF3(t *testing.T) {
	content := "##gff-version 3\n" +
		"chr1\tsrc\tgene\t1\t500\t.\t-\t.\tID=gene:G1;Name=G1\n" +
		"chr1\tsrc\texon\t1\t100\t.\t-\t.\tParent=transcript:T1;gene_id=G1\n" +
		"chr1\tsrc\texon\t301\t500\t.\t-\t.\tParent=transcript:T1;gene_id=G1\n"

	features, err := ReadFeatures(NewReader(strings.NewReader(content)), "gene", "ID")
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, "gene:G1", features[0].ID)
	assert.Equal(t, 500, features[0].Length())

	features, err = ReadFeatures(NewReader(strings.NewReader(content)), "exon", "gene_id")
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, 300, features[0].Length())
}
