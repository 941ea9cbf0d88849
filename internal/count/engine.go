package count

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/biogo/hts/sam"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/inodb/vibe-count/internal/alignment"
	"github.com/inodb/vibe-count/internal/feature"
	"github.com/inodb/vibe-count/internal/library"
)

// DefaultChunkSize is the number of units handed to a worker at a time.
const DefaultChunkSize = 4096

// unit is a single record or, when second is set, a mate pair.
type unit struct {
	first  *sam.Record
	second *sam.Record
}

// Engine counts records against a feature index using a pool of workers.
type Engine struct {
	index     *feature.Index
	filter    *Filter
	strand    library.StrandSpecification
	workers   int
	chunkSize int
	logger    *zap.Logger
}

// NewEngine creates an engine. If workers is 0, runtime.NumCPU() is used.
func NewEngine(ix *feature.Index, filter *Filter, strand library.StrandSpecification, workers int) *Engine {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Engine{
		index:     ix,
		filter:    filter,
		strand:    strand,
		workers:   workers,
		chunkSize: DefaultChunkSize,
		logger:    zap.NewNop(),
	}
}

// SetLogger sets the logger for progress messages.
func (e *Engine) SetLogger(l *zap.Logger) {
	e.logger = l
}

// SetChunkSize sets the number of units per work chunk.
func (e *Engine) SetChunkSize(n int) {
	if n > 0 {
		e.chunkSize = n
	}
}

// Workers returns the number of counting workers.
func (e *Engine) Workers() int {
	return e.workers
}

// Count reads src to the end and counts it according to layout.
func (e *Engine) Count(ctx context.Context, src alignment.Source, layout library.Layout) (*Context, error) {
	if layout == library.PairedEnd {
		return e.CountPairedEnd(ctx, src)
	}
	return e.CountSingleEnd(ctx, src)
}

// CountSingleEnd counts every record of src as an independent unit.
func (e *Engine) CountSingleEnd(ctx context.Context, src alignment.Source) (*Context, error) {
	return e.run(ctx, src, func(emit func(unit) error) error {
		for {
			r, err := src.Read()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read alignment record: %w", err)
			}
			if err := emit(unit{first: r}); err != nil {
				return err
			}
		}
	})
}

// CountPairedEnd counts mate pairs as single units. Records without the
// paired flag, and records whose mate never appears, are counted alone.
func (e *Engine) CountPairedEnd(ctx context.Context, src alignment.Source) (*Context, error) {
	return e.run(ctx, src, func(emit func(unit) error) error {
		pairer := alignment.NewMatePairer()
		for {
			r, err := src.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("read alignment record: %w", err)
			}

			if r.Flags&sam.Paired == 0 {
				if err := emit(unit{first: r}); err != nil {
					return err
				}
				continue
			}
			if first, second, ok := pairer.Add(r); ok {
				if err := emit(unit{first: first, second: second}); err != nil {
					return err
				}
			}
		}

		orphans := pairer.Unpaired()
		if len(orphans) > 0 {
			e.logger.Info("mates not found, counting records individually",
				zap.Int("records", len(orphans)))
		}
		for _, r := range orphans {
			if err := emit(unit{first: r}); err != nil {
				return err
			}
		}
		return nil
	})
}

// run feeds the units produced by produce to the worker pool in chunks and
// merges the per-worker contexts in worker order once all have finished.
func (e *Engine) run(ctx context.Context, src alignment.Source, produce func(emit func(unit) error) error) (*Context, error) {
	refNames := alignment.ReferenceNames(src.References())

	g, gctx := errgroup.WithContext(ctx)
	chunks := make(chan []unit, 2*e.workers)

	g.Go(func() error {
		defer close(chunks)

		chunk := make([]unit, 0, e.chunkSize)
		send := func() error {
			select {
			case chunks <- chunk:
			case <-gctx.Done():
				return gctx.Err()
			}
			chunk = make([]unit, 0, e.chunkSize)
			return nil
		}

		err := produce(func(u unit) error {
			chunk = append(chunk, u)
			if len(chunk) < e.chunkSize {
				return nil
			}
			return send()
		})
		if err != nil {
			return err
		}
		if len(chunk) > 0 {
			return send()
		}
		return nil
	})

	partial := make([]*Context, e.workers)
	for i := range partial {
		c := NewContext()
		partial[i] = c
		g.Go(func() error {
			for chunk := range chunks {
				if err := gctx.Err(); err != nil {
					return err
				}
				for _, u := range chunk {
					if err := e.process(c, refNames, u); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := NewContext()
	for _, c := range partial {
		total.Merge(c)
	}

	e.logger.Debug("counting finished",
		zap.Int("workers", e.workers),
		zap.Uint64("total", total.Total),
		zap.Uint64("assigned", total.Assigned()),
		zap.Uint64("no_feature", total.NoFeature),
		zap.Uint64("ambiguous", total.Ambiguous))
	return total, nil
}

// process classifies one unit and records its event in c.
func (e *Engine) process(c *Context, refNames []string, u unit) error {
	var (
		ev        Event
		discarded bool
		err       error
	)
	if u.second == nil {
		ev, discarded, err = e.filter.Classify(u.first)
	} else {
		ev, discarded, err = e.filter.ClassifyPair(u.first, u.second)
	}
	if err != nil {
		return err
	}
	if !discarded {
		ev = e.assign(refNames, u)
	}
	c.Add(ev)
	return nil
}

// assign queries the aligned blocks of each segment on its own reference and
// returns the resulting event. It stops at the second distinct feature.
func (e *Engine) assign(refNames []string, u unit) Event {
	want := e.strand.Want(alignment.FragmentStrand(u.first))

	var (
		hit   string
		found bool
	)
	for _, r := range [2]*sam.Record{u.first, u.second} {
		if r == nil {
			continue
		}
		id := r.RefID()
		if id < 0 || id >= len(refNames) {
			continue
		}
		ref := refNames[id]

		for _, b := range alignment.Blocks(r) {
			for _, f := range e.index.Query(ref, b, want) {
				if !found {
					hit, found = f.ID, true
					continue
				}
				if f.ID != hit {
					return Event{Kind: Ambiguous}
				}
			}
		}
	}

	if !found {
		return Event{Kind: NoFeature}
	}
	return AssignedTo(hit)
}
