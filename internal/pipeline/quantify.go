package pipeline

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"go.uber.org/zap"

	"github.com/inodb/vibe-count/internal/alignment"
	"github.com/inodb/vibe-count/internal/count"
	"github.com/inodb/vibe-count/internal/duckdb"
	"github.com/inodb/vibe-count/internal/feature"
	"github.com/inodb/vibe-count/internal/library"
	"github.com/inodb/vibe-count/internal/output"
)

// QuantifyConfig configures a quantification run.
type QuantifyConfig struct {
	FeatureSource

	// Alignments is the BAM path. It is opened twice: once for detection
	// and once for counting.
	Alignments string
	// Open overrides how alignment sources are opened.
	Open alignment.Opener

	Filter    count.FilterOptions
	Strand    library.StrandOption
	Detect    library.DetectConfig
	Workers   int
	ChunkSize int
}

// QuantifyResult summarizes a quantification run.
type QuantifyResult struct {
	Detection library.Detection
	// Strand is the specification counting used.
	Strand  library.StrandSpecification
	IDs     []string
	Context *count.Context
	// RunID is set when the run was recorded in a store.
	RunID string
}

// Quantify detects the library type, counts every alignment against the
// annotation and writes the count table to out.
func (p *Pipeline) Quantify(ctx context.Context, cfg QuantifyConfig, out io.Writer) (*QuantifyResult, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	open := cfg.Open
	if open == nil {
		// Decompress BGZF blocks on as many goroutines as there are workers.
		open = alignment.BAMOpener(cfg.Alignments, workers)
	}

	ix, err := p.loadIndex(cfg.FeatureSource)
	if err != nil {
		return nil, err
	}

	p.logger.Info("detecting library type")
	det, err := detect(open, ix, cfg.Detect)
	if err != nil {
		return nil, err
	}
	p.logger.Info("detected library layout", zap.Stringer("layout", det.Layout))
	p.logger.Info("detected strand specification",
		zap.Stringer("strand", det.Strand),
		zap.Float64("confidence", det.Confidence),
		zap.Int("sampled", det.Sampled),
		zap.Int("usable", det.Usable))

	strand := cfg.Strand.Resolve(det.Strand)
	if cfg.Strand.IsExplicit() && strand != det.Strand {
		p.logger.Warn("strand specification does not match detected strandedness",
			zap.Stringer("input", strand),
			zap.Stringer("detected", det.Strand))
	}

	src, err := open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Alignments, err)
	}
	defer src.Close()
	p.checkReferences(ix, src)

	filter := count.NewFilter(cfg.Filter)
	engine := count.NewEngine(ix, filter, strand, workers)
	engine.SetLogger(p.logger)
	engine.SetChunkSize(cfg.ChunkSize)

	opts := filter.Options()
	p.logger.Info("counting features",
		zap.Stringer("layout", det.Layout),
		zap.Stringer("strand", strand),
		zap.Int("workers", engine.Workers()),
		zap.Int("min_mapq", int(opts.MinMappingQuality)),
		zap.Bool("with_secondary", opts.WithSecondary),
		zap.Bool("with_supplementary", opts.WithSupplementary),
		zap.Bool("with_nonunique", opts.WithNonunique))
	c, err := engine.Count(ctx, src, det.Layout)
	if err != nil {
		return nil, err
	}

	ids := ix.IDs()
	cw := output.NewCountWriter(out)
	if err := cw.Write(ids, c); err != nil {
		return nil, fmt.Errorf("write counts: %w", err)
	}
	if err := cw.Flush(); err != nil {
		return nil, fmt.Errorf("write counts: %w", err)
	}

	res := &QuantifyResult{
		Detection: det,
		Strand:    strand,
		IDs:       ids,
		Context:   c,
	}

	if p.store != nil {
		run := duckdb.Run{
			Alignments:  cfg.Alignments,
			Annotation:  cfg.Annotation,
			FeatureType: cfg.FeatureType,
			IDAttribute: cfg.IDAttribute,
			Layout:      det.Layout.String(),
			Strand:      strand.String(),
			Confidence:  det.Confidence,
		}
		run.SetStats(c)
		id, err := p.store.WriteRun(run, ids, c.Counts)
		if err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
		res.RunID = id
		p.logger.Info("recorded run", zap.String("run_id", id), zap.String("db", p.store.Path()))
	}

	return res, nil
}

// detect samples a source opened only for detection.
func detect(open alignment.Opener, ix *feature.Index, cfg library.DetectConfig) (library.Detection, error) {
	src, err := open()
	if err != nil {
		return library.Detection{}, fmt.Errorf("open alignments for detection: %w", err)
	}
	defer src.Close()

	det, err := library.Detect(src, ix, cfg)
	if err != nil {
		return library.Detection{}, fmt.Errorf("detect library type: %w", err)
	}
	return det, nil
}

// checkReferences warns when no annotated reference appears in the
// alignment header, which usually means mismatched naming (chr1 vs 1).
func (p *Pipeline) checkReferences(ix *feature.Index, src alignment.Source) {
	if ix.Len() == 0 {
		return
	}
	names := make(map[string]bool)
	for _, name := range alignment.ReferenceNames(src.References()) {
		names[name] = true
	}
	for _, ref := range ix.References() {
		if names[ref] {
			return
		}
	}
	p.logger.Warn("no annotated reference sequence appears in the alignment header",
		zap.Strings("annotation_references", ix.References()))
}
