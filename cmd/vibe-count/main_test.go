package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-count/internal/alignment/alignmenttest"
)

const testGTF = `chr1	test	exon	1001	1100	.	+	.	gene_id "GENE_A";
chr1	test	exon	2001	2100	.	+	.	gene_id "GENE_A";
chr1	test	exon	5001	6000	.	-	.	gene_id "GENE_B";
`

// runCLI runs the command with a clean configuration and home directory.
func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	viper.Reset()
	t.Setenv("HOME", t.TempDir())

	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func writeInputs(t *testing.T) (bamPath, gtfPath string) {
	t.Helper()
	dir := t.TempDir()

	gtfPath = filepath.Join(dir, "genes.gtf")
	require.NoError(t, os.WriteFile(gtfPath, []byte(testGTF), 0o644))

	h := alignmenttest.NewHeader("chr1")
	ref := h.Refs()[0]
	bamPath = filepath.Join(dir, "reads.bam")
	f, err := os.Create(bamPath)
	require.NoError(t, err)
	w, err := bam.NewWriter(f, h, 1)
	require.NoError(t, err)
	for i := range 8 {
		require.NoError(t, w.Write(alignmenttest.NewRecord(fmt.Sprintf("a%d", i), ref, 1010+i, "50M")))
	}
	for i := range 2 {
		require.NoError(t, w.Write(alignmenttest.NewRecord(fmt.Sprintf("b%d", i), ref, 5100+i, "50M", alignmenttest.WithFlags(sam.Reverse))))
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return bamPath, gtfPath
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCLI(t, "--version")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "dev")
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"quantify", "--bogus"}},
		{"missing alignments", []string{"quantify", "-a", "genes.gtf"}},
		{"missing annotations", []string{"quantify", "reads.bam"}},
		{"bad strand", []string{"quantify", "-a", "genes.gtf", "--strand", "sideways", "reads.bam"}},
		{"bad method", []string{"normalize", "-a", "genes.gtf", "--method", "rpkm", "counts.tsv"}},
		{"normalize without counts", []string{"normalize", "-a", "genes.gtf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, tt.args...)
			assert.Equal(t, ExitUsage, code)
			assert.Contains(t, stderr, "Error:")
		})
	}
}

func TestRun_MissingInput(t *testing.T) {
	_, gtfPath := writeInputs(t)
	code, _, stderr := runCLI(t, "quantify", "-a", gtfPath, filepath.Join(t.TempDir(), "missing.bam"))
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, "missing.bam")
}

func TestRun_QuantifyAndNormalize(t *testing.T) {
	bamPath, gtfPath := writeInputs(t)
	countsPath := filepath.Join(t.TempDir(), "counts.tsv")

	code, _, stderr := runCLI(t, "quantify", "-a", gtfPath, "-t", "2", "-o", countsPath, bamPath)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stderr, "detected strand specification")

	counts, err := os.ReadFile(countsPath)
	require.NoError(t, err)
	assert.Equal(t, "GENE_A\t8\nGENE_B\t2\n__no_feature\t0\n__ambiguous\t0\n__too_low_aQual\t0\n__not_aligned\t0\n__alignment_not_unique\t0\n__total\t10\n", string(counts))

	code, stdout, stderr := runCLI(t, "normalize", "-a", gtfPath, "--method", "tpm", countsPath)
	require.Equal(t, ExitSuccess, code, stderr)
	// Rates: 8 reads / 200 bases and 2 reads / 1000 bases.
	assert.Equal(t, "GENE_A\t952380.952381\nGENE_B\t47619.047619\n", stdout)
}

func TestRun_QuantifyWithDatabase(t *testing.T) {
	bamPath, gtfPath := writeInputs(t)
	dbPath := filepath.Join(t.TempDir(), "runs.duckdb")

	code, _, stderr := runCLI(t, "quantify", "-a", gtfPath, "--db", dbPath, bamPath)
	require.Equal(t, ExitSuccess, code, stderr)

	code, stdout, stderr := runCLI(t, "normalize", "-a", gtfPath, "--db", dbPath)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, "GENE_A\t4000000.000000\nGENE_B\t200000.000000\n", stdout)

	code, _, stderr = runCLI(t, "normalize", "-a", gtfPath, "--db", dbPath, "--run", "no-such-run")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, "run not found")
}

func TestRun_Runs(t *testing.T) {
	bamPath, gtfPath := writeInputs(t)
	dbPath := filepath.Join(t.TempDir(), "runs.duckdb")

	code, _, stderr := runCLI(t, "quantify", "-a", gtfPath, "--db", dbPath, "-o", filepath.Join(t.TempDir(), "counts.tsv"), bamPath)
	require.Equal(t, ExitSuccess, code, stderr)

	code, stdout, stderr := runCLI(t, "runs", "list", "--db", dbPath)
	require.Equal(t, ExitSuccess, code, stderr)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "run_id\tcreated_at\tlayout\tstrand\ttotal\talignments", lines[0])
	fields := strings.Split(lines[1], "\t")
	require.Len(t, fields, 6)
	assert.Equal(t, []string{"single-end", "forward", "10", bamPath}, fields[2:])

	runID := fields[0]
	code, stdout, stderr = runCLI(t, "runs", "delete", "--db", dbPath, runID)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, runID)

	code, _, stderr = runCLI(t, "runs", "delete", "--db", dbPath, runID)
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, "run not found")

	code, stdout, _ = runCLI(t, "runs", "list", "--db", dbPath)
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "run_id\tcreated_at\tlayout\tstrand\ttotal\talignments\n", stdout)

	code, _, _ = runCLI(t, "runs", "list")
	assert.Equal(t, ExitUsage, code)
}

func TestRun_CacheClear(t *testing.T) {
	bamPath, gtfPath := writeInputs(t)
	cacheDir := filepath.Join(t.TempDir(), "cache")

	code, _, stderr := runCLI(t, "quantify", "-a", gtfPath, "--annotation-cache", cacheDir, "-o", filepath.Join(t.TempDir(), "counts.tsv"), bamPath)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.FileExists(t, filepath.Join(cacheDir, "features.gob"))

	code, _, stderr = runCLI(t, "cache", "clear", "--annotation-cache", cacheDir)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.NoFileExists(t, filepath.Join(cacheDir, "features.gob"))
	assert.NoFileExists(t, filepath.Join(cacheDir, "features.gob.meta"))

	code, _, _ = runCLI(t, "cache", "clear")
	assert.Equal(t, ExitUsage, code)
}

func TestRun_Config(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "config.yaml")

	code, stdout, stderr := runCLI(t, "--config", cfgFile, "config", "set", "quantify.strand", "reverse")
	// A missing explicit config file is an error.
	assert.Equal(t, ExitError, code, stdout)
	assert.Contains(t, stderr, "read config")

	require.NoError(t, os.WriteFile(cfgFile, []byte("detect:\n  sample_size: 500\n"), 0o644))

	code, stdout, stderr = runCLI(t, "--config", cfgFile, "config", "set", "quantify.strand", "reverse")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "Set quantify.strand = reverse")

	code, stdout, _ = runCLI(t, "--config", cfgFile, "config", "get", "quantify.strand")
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "reverse\n", stdout)

	code, stdout, _ = runCLI(t, "--config", cfgFile, "config", "get", "detect.sample_size")
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "500\n", stdout)

	code, _, _ = runCLI(t, "--config", cfgFile, "config", "get", "no.such.key")
	assert.Equal(t, ExitError, code)
}

func TestRun_ConfigFromEnvironment(t *testing.T) {
	bamPath, gtfPath := writeInputs(t)
	t.Setenv("VIBE_COUNT_QUANTIFY_STRAND", "sideways")

	code, _, stderr := runCLI(t, "quantify", "-a", gtfPath, bamPath)
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, stderr, "sideways")
}
