package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-count/internal/duckdb"
	"github.com/inodb/vibe-count/internal/normalize"
	"github.com/inodb/vibe-count/internal/pipeline"
)

func newNormalizeCmd(logger func() *zap.Logger) *cobra.Command {
	var (
		annotations string
		runID       string
	)

	cmd := &cobra.Command{
		Use:   "normalize [flags] --annotations <file> [counts.tsv]",
		Short: "Convert counts to FPKM or TPM",
		Long: `Convert a count table to normalized values, one row per annotated
feature sorted by id. Counts are read from the given file, or from a run
recorded in a DuckDB database (--db, optionally --run; default the latest run).`,
		Example: `  vibe-count normalize -a genes.gtf counts.tsv
  vibe-count normalize -a genes.gtf --method tpm -o tpm.tsv counts.tsv
  vibe-count normalize -a genes.gtf --db runs.duckdb --run <run-id>`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if annotations == "" {
				return &usageError{fmt.Errorf("--annotations is required")}
			}
			var counts string
			if len(args) == 1 {
				counts = args[0]
			}
			if counts == "" && viper.GetString("normalize.db") == "" {
				return &usageError{fmt.Errorf("a counts file or --db is required")}
			}
			return runNormalize(cmd, logger(), annotations, counts, runID)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&annotations, "annotations", "a", "", "GTF/GFF3 annotation file (optionally gzipped)")
	f.StringVar(&runID, "run", "", "Run id to read counts from (with --db)")
	f.StringP("output", "o", "", "Output file (default: stdout)")
	f.String("method", "fpkm", "Normalization method: fpkm, tpm")
	f.String("type", "exon", "Feature type used for feature lengths")
	f.String("id", "gene_id", "Attribute used as the feature id")
	f.String("db", "", "DuckDB database holding recorded runs")
	f.String("annotation-cache", "", "Directory for cached parsed features")

	for key, flag := range map[string]string{
		"normalize.output":           "output",
		"normalize.method":           "method",
		"normalize.type":             "type",
		"normalize.id":               "id",
		"normalize.db":               "db",
		"normalize.annotation_cache": "annotation-cache",
	} {
		viper.BindPFlag(key, f.Lookup(flag))
	}

	return cmd
}

func runNormalize(cmd *cobra.Command, logger *zap.Logger, annotations, counts, runID string) error {
	defer logger.Sync()

	method, err := normalize.ParseMethod(viper.GetString("normalize.method"))
	if err != nil {
		return &usageError{err}
	}

	cfg := pipeline.NormalizeConfig{
		FeatureSource: pipeline.FeatureSource{
			Annotation:  annotations,
			FeatureType: viper.GetString("normalize.type"),
			IDAttribute: viper.GetString("normalize.id"),
			CacheDir:    viper.GetString("normalize.annotation_cache"),
		},
		Counts: counts,
		RunID:  runID,
		Method: method,
	}

	p := pipeline.New()
	p.SetLogger(logger)

	if dbPath := viper.GetString("normalize.db"); dbPath != "" && counts == "" {
		store, err := duckdb.Open(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		p.SetStore(store)
	}

	out, closeOut, err := openOutput(viper.GetString("normalize.output"), cmd.OutOrStdout())
	if err != nil {
		return err
	}

	_, err = p.Normalize(cfg, out)
	if cerr := closeOut(); err == nil && cerr != nil {
		err = fmt.Errorf("close output: %w", cerr)
	}
	return err
}
