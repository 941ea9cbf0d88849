package annotation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-count/internal/feature"
)

const sampleGTF = `##description: Test GTF
chr12	HAVANA	gene	25205246	25250929	.	-	.	gene_id "ENSG00000133703"; gene_type "protein_coding"; gene_name "KRAS";
chr12	HAVANA	transcript	25205246	25250929	.	-	.	gene_id "ENSG00000133703"; transcript_id "ENST00000311936"; gene_name "KRAS";
chr12	HAVANA	exon	25250751	25250929	.	-	.	gene_id "ENSG00000133703"; transcript_id "ENST00000311936"; exon_number "1";
chr12	HAVANA	exon	25245274	25245395	.	-	.	gene_id "ENSG00000133703"; transcript_id "ENST00000311936"; exon_number "2";
chr1	HAVANA	exon	100	200	.	+	.	gene_id "ENSG00000000001"; transcript_id "ENST00000000001"; exon_number "1";
`

func TestParseAttributes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected map[string]string
	}{
		{
			name:  "gtf attributes",
			input: `gene_id "ENSG00000133703"; transcript_id "ENST00000311936"; gene_name "KRAS";`,
			expected: map[string]string{
				"gene_id":       "ENSG00000133703",
				"transcript_id": "ENST00000311936",
				"gene_name":     "KRAS",
			},
		},
		{
			name:  "gff3 attributes",
			input: `ID=exon:ENST00000311936.1;Parent=ENST00000311936;gene_id=ENSG00000133703`,
			expected: map[string]string{
				"ID":      "exon:ENST00000311936.1",
				"Parent":  "ENST00000311936",
				"gene_id": "ENSG00000133703",
			},
		},
		{
			name:  "gtf value containing equals sign",
			input: `note "a=b"; gene_id "G1";`,
			expected: map[string]string{
				"note":    "a=b",
				"gene_id": "G1",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseAttributes(tt.input)
			for key, want := range tt.expected {
				assert.Equal(t, want, result[key], "parseAttributes()[%q]", key)
			}
		})
	}
}

func TestParseAttributes_QuotedSemicolon(t *testing.T) {
	assert.Equal(t, map[string]string{
		"gene_id": "G1",
		"note":    "a; b",
		"tag":     "basic",
	}, parseAttributes(`gene_id "G1"; note "a; b"; tag "basic";`))

	assert.Equal(t, []string{`note "x;y"`, ` id "1"`, ""}, splitAttributes(`note "x;y"; id "1";`))
}

func TestParseLine(t *testing.T) {
	rec, err := parseLine("chr1\tsrc\texon\t11\t20\t.\t+\t.\tgene_id \"G1\";")
	require.NoError(t, err)

	assert.Equal(t, "chr1", rec.RefName)
	assert.Equal(t, "exon", rec.Type)
	assert.Equal(t, 10, rec.Start, "converted to 0-based")
	assert.Equal(t, 20, rec.End)
	assert.Equal(t, feature.StrandForward, rec.Strand)
	assert.Equal(t, "G1", rec.Attributes["gene_id"])
}

func TestParseLine_Invalid(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"too few fields", "chr1\tsrc\texon\t1\t10"},
		{"bad start", "chr1\tsrc\texon\tx\t10\t.\t+\t.\tgene_id \"G1\";"},
		{"bad end", "chr1\tsrc\texon\t1\ty\t.\t+\t.\tgene_id \"G1\";"},
		{"inverted", "chr1\tsrc\texon\t10\t5\t.\t+\t.\tgene_id \"G1\";"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseLine(tt.line)
			assert.Error(t, err)
		})
	}
}

func TestReader_Next(t *testing.T) {
	r := NewReader(strings.NewReader(sampleGTF))

	var types []string
	for {
		rec, err := r.Next()
		require.NoError(t, err)
		if rec == nil {
			break
		}
		types = append(types, rec.Type)
	}

	assert.Equal(t, []string{"gene", "transcript", "exon", "exon", "exon"}, types)
	assert.Equal(t, 6, r.LineNumber())
}

func TestReader_MalformedLineReportsLineNumber(t *testing.T) {
	r := NewReader(strings.NewReader("#header\nchr1\tsrc\texon\t1\n"))

	_, err := r.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestReader_StopsAtFASTA(t *testing.T) {
	content := "##gff-version 3\n" +
		"chr1\tsrc\texon\t1\t10\t.\t+\t.\tID=e1;gene_id=G1\n" +
		"##FASTA\n" +
		">chr1\n" +
		"ACGT\n"
	r := NewReader(strings.NewReader(content))

	rec, err := r.Next()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "G1", rec.Attributes["gene_id"])

	rec, err = r.Next()
	require.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = r.Next()
	require.NoError(t, err)
	assert.Nil(t, rec, "reader stays exhausted")
}

func TestOpen_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.gtf.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(sampleGTF))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	features, err := ReadFeatures(r, "exon", "gene_id")
	require.NoError(t, err)
	assert.Len(t, features, 2)
}

func TestOpen_Plain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.gtf")
	require.NoError(t, os.WriteFile(path, []byte(sampleGTF), 0o644))

	features, err := LoadFeatures(path, "exon", "gene_id")
	require.NoError(t, err)
	assert.Len(t, features, 2)
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.gtf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.gtf")
}
