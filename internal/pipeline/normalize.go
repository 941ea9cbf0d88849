package pipeline

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/inodb/vibe-count/internal/normalize"
	"github.com/inodb/vibe-count/internal/output"
)

// NormalizeConfig configures a normalization run. Counts come from the
// Counts file when set, otherwise from the store: RunID, or the latest run
// when RunID is empty.
type NormalizeConfig struct {
	FeatureSource

	Counts string
	RunID  string
	Method normalize.Method
}

// Normalize converts counts to normalized values for every annotated
// feature, sorted by id, and writes them to out.
func (p *Pipeline) Normalize(cfg NormalizeConfig, out io.Writer) ([]normalize.Value, error) {
	counts, err := p.readCounts(cfg)
	if err != nil {
		return nil, err
	}

	ix, err := p.loadIndex(cfg.FeatureSource)
	if err != nil {
		return nil, err
	}

	p.logger.Info("calculating normalized values", zap.Stringer("method", cfg.Method))
	values, err := normalize.Calculate(cfg.Method, counts, ix.Features())
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}

	vw := output.NewValueWriter(out)
	if err := vw.Write(values); err != nil {
		return nil, fmt.Errorf("write values: %w", err)
	}
	if err := vw.Flush(); err != nil {
		return nil, fmt.Errorf("write values: %w", err)
	}
	return values, nil
}

func (p *Pipeline) readCounts(cfg NormalizeConfig) (map[string]uint64, error) {
	if cfg.Counts != "" {
		return output.ReadCountsFile(cfg.Counts)
	}
	if p.store == nil {
		return nil, errors.New("no counts source: give a counts file or a database")
	}

	runID := cfg.RunID
	if runID == "" {
		run, err := p.store.LatestRun()
		if err != nil {
			return nil, fmt.Errorf("find latest run: %w", err)
		}
		runID = run.ID
	} else if _, err := p.store.LookupRun(runID); err != nil {
		return nil, err
	}

	p.logger.Info("reading counts from database", zap.String("run_id", runID))
	return p.store.LookupCounts(runID)
}
