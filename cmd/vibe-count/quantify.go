package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-count/internal/count"
	"github.com/inodb/vibe-count/internal/duckdb"
	"github.com/inodb/vibe-count/internal/library"
	"github.com/inodb/vibe-count/internal/pipeline"
)

func newQuantifyCmd(logger func() *zap.Logger) *cobra.Command {
	var annotations string

	cmd := &cobra.Command{
		Use:   "quantify [flags] --annotations <file> <alignments.bam>",
		Short: "Count reads per feature",
		Long: `Count aligned reads per feature. The library layout and strand
specification are detected from a sample of the alignments before counting.

Counts are written as tab-separated id/count rows sorted by id, followed by
statistics rows (__no_feature, __ambiguous, __too_low_aQual, __not_aligned,
__alignment_not_unique, __total).`,
		Example: `  vibe-count quantify -a genes.gtf.gz sample.bam > counts.tsv
  vibe-count quantify -a genes.gtf --strand reverse -t 8 -o counts.tsv sample.bam
  vibe-count quantify -a genes.gtf --db runs.duckdb sample.bam`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if annotations == "" {
				return &usageError{fmt.Errorf("--annotations is required")}
			}
			return runQuantify(cmd, logger(), args[0], annotations)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&annotations, "annotations", "a", "", "GTF/GFF3 annotation file (optionally gzipped)")
	f.StringP("output", "o", "", "Output file (default: stdout)")
	f.String("type", "exon", "Feature type to count")
	f.String("id", "gene_id", "Attribute used as the feature id")
	f.Uint8("min-mapq", count.DefaultMinMappingQuality, "Minimum mapping quality")
	f.Bool("with-secondary", false, "Count secondary alignments")
	f.Bool("with-supplementary", false, "Count supplementary alignments")
	f.Bool("with-nonunique", false, "Count alignments with NH > 1")
	f.String("strand", "auto", "Strand specification: auto, none, forward, reverse")
	f.IntP("threads", "t", runtime.NumCPU(), "Number of counting workers")
	f.Int("chunk-size", count.DefaultChunkSize, "Records per work chunk")
	f.Int("sample-size", library.DefaultSampleSize, "Records sampled for library detection")
	f.Float64("detect-threshold", library.DefaultThreshold, "Fraction of sampled reads that must agree for a stranded call")
	f.String("db", "", "DuckDB database to record the run in")
	f.String("annotation-cache", "", "Directory for cached parsed features")

	for key, flag := range map[string]string{
		"quantify.output":             "output",
		"quantify.type":               "type",
		"quantify.id":                 "id",
		"quantify.min_mapq":           "min-mapq",
		"quantify.with_secondary":     "with-secondary",
		"quantify.with_supplementary": "with-supplementary",
		"quantify.with_nonunique":     "with-nonunique",
		"quantify.strand":             "strand",
		"quantify.threads":            "threads",
		"quantify.chunk_size":         "chunk-size",
		"quantify.db":                 "db",
		"quantify.annotation_cache":   "annotation-cache",
		"detect.sample_size":          "sample-size",
		"detect.threshold":            "detect-threshold",
	} {
		viper.BindPFlag(key, f.Lookup(flag))
	}

	return cmd
}

func runQuantify(cmd *cobra.Command, logger *zap.Logger, bamPath, annotations string) error {
	defer logger.Sync()

	strand, err := library.ParseStrandOption(viper.GetString("quantify.strand"))
	if err != nil {
		return &usageError{err}
	}
	minMapQ := viper.GetUint("quantify.min_mapq")
	if minMapQ > 255 {
		return &usageError{fmt.Errorf("invalid --min-mapq %d (want 0-255)", minMapQ)}
	}
	workers := viper.GetInt("quantify.threads")
	if workers < 1 {
		return &usageError{fmt.Errorf("invalid --threads %d (want at least 1)", workers)}
	}

	cfg := pipeline.QuantifyConfig{
		FeatureSource: pipeline.FeatureSource{
			Annotation:  annotations,
			FeatureType: viper.GetString("quantify.type"),
			IDAttribute: viper.GetString("quantify.id"),
			CacheDir:    viper.GetString("quantify.annotation_cache"),
		},
		Alignments: bamPath,
		Filter: count.FilterOptions{
			MinMappingQuality: byte(minMapQ),
			WithSecondary:     viper.GetBool("quantify.with_secondary"),
			WithSupplementary: viper.GetBool("quantify.with_supplementary"),
			WithNonunique:     viper.GetBool("quantify.with_nonunique"),
		},
		Strand: strand,
		Detect: library.DetectConfig{
			SampleSize: viper.GetInt("detect.sample_size"),
			Threshold:  viper.GetFloat64("detect.threshold"),
		},
		Workers:   workers,
		ChunkSize: viper.GetInt("quantify.chunk_size"),
	}

	p := pipeline.New()
	p.SetLogger(logger)

	if dbPath := viper.GetString("quantify.db"); dbPath != "" {
		store, err := duckdb.Open(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		p.SetStore(store)
	}

	out, closeOut, err := openOutput(viper.GetString("quantify.output"), cmd.OutOrStdout())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := p.Quantify(ctx, cfg, out)
	if cerr := closeOut(); err == nil && cerr != nil {
		err = fmt.Errorf("close output: %w", cerr)
	}
	if err != nil {
		return err
	}

	logger.Info("done",
		zap.Uint64("total", res.Context.Total),
		zap.Uint64("assigned", res.Context.Assigned()))
	return nil
}
