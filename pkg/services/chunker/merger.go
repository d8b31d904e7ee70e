package chunker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"menu-scan/pkg/logging"
	"menu-scan/pkg/models"
)

var log = logging.For("chunker")

// Structurer turns one chunk of text into menu items.
type Structurer interface {
	Structure(ctx context.Context, text string) ([]models.MenuItem, error)
}

// StructurerFunc adapts a function to Structurer.
type StructurerFunc func(ctx context.Context, text string) ([]models.MenuItem, error)

func (f StructurerFunc) Structure(ctx context.Context, text string) ([]models.MenuItem, error) {
	return f(ctx, text)
}

// ChunkFailure records a chunk that was skipped.
type ChunkFailure struct {
	Index int
	Err   error
}

// MergedResult is the ordered concatenation of every chunk that succeeded.
type MergedResult struct {
	Items      []models.MenuItem
	ChunkCount int
	Failed     []ChunkFailure
}

// FailedIndexes lists the indexes of skipped chunks.
func (r MergedResult) FailedIndexes() []int {
	out := make([]int, len(r.Failed))
	for i, f := range r.Failed {
		out[i] = f.Index
	}
	return out
}

// Merger calls a Structurer once per chunk and reassembles results by chunk index.
type Merger struct {
	concurrency int
	callTimeout time.Duration
}

// MergerOption configures a Merger.
type MergerOption func(*Merger)

// WithConcurrency bounds the number of in-flight structuring calls.
func WithConcurrency(n int) MergerOption {
	return func(m *Merger) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithCallTimeout bounds each structuring call. Zero means only the parent
// context applies.
func WithCallTimeout(d time.Duration) MergerOption {
	return func(m *Merger) {
		if d >= 0 {
			m.callTimeout = d
		}
	}
}

// NewMerger creates a sequential Merger unless configured otherwise.
func NewMerger(opts ...MergerOption) *Merger {
	m := &Merger{concurrency: 1}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type outcome struct {
	items []models.MenuItem
	err   error
	done  bool
}

// Merge structures every chunk and concatenates the successful results in
// chunk order, regardless of completion order. Failed chunks are logged and
// skipped. If ctx ends early, the items gathered so far are returned along
// with the context error and chunks that never ran are not called.
func (m *Merger) Merge(ctx context.Context, chunks []models.Chunk, s Structurer) (MergedResult, error) {
	result := MergedResult{ChunkCount: len(chunks)}
	if len(chunks) == 0 {
		return result, nil
	}

	outcomes := make([]outcome, len(chunks))

	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for i, chunk := range chunks {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			callCtx := ctx
			if m.callTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, m.callTimeout)
				defer cancel()
			}
			items, err := s.Structure(callCtx, chunk.Text())
			outcomes[i] = outcome{items: items, err: err, done: true}
			return nil
		})
	}
	_ = g.Wait()

	logger := logging.Ctx(ctx, log)
	for i, o := range outcomes {
		switch {
		case !o.done:
			result.Failed = append(result.Failed, ChunkFailure{Index: chunks[i].Index, Err: ctx.Err()})
		case o.err != nil:
			logger.WithFields(logrus.Fields{
				"chunk": chunks[i].Index,
				"error": o.err,
			}).Warn("Skipping chunk after structuring failure")
			result.Failed = append(result.Failed, ChunkFailure{Index: chunks[i].Index, Err: o.err})
		default:
			result.Items = append(result.Items, o.items...)
		}
	}

	logger.WithFields(logrus.Fields{
		"chunks": len(chunks),
		"failed": len(result.Failed),
		"items":  len(result.Items),
	}).Info("Merged chunk results")

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}
