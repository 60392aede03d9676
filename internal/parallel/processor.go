package parallel

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/gochunk/pkg/types"
)

// Processor runs per-chunk work on a bounded pool of goroutines. Results are
// always returned in input order.
type Processor struct {
	workers int
	logger  *zap.Logger

	// Cumulative counters across calls
	processed atomic.Int64
	failed    atomic.Int64
}

// Option configures a Processor
type Option func(*Processor)

// WithWorkers sets the pool size. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithLogger sets the logger used for dispatch diagnostics
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Processor with runtime.NumCPU() workers unless configured
func New(opts ...Option) *Processor {
	p := &Processor{
		workers: runtime.NumCPU(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Workers returns the pool size
func (p *Processor) Workers() int {
	return p.workers
}

// Statistics reports the processor's cumulative task counts
type Statistics struct {
	Processed int64 // Tasks that returned without error
	Failed    int64 // Tasks that returned an error or panicked
}

// Stats returns the cumulative task counts
func (p *Processor) Stats() Statistics {
	return Statistics{
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
	}
}

// TaskFunc processes the chunk at index
type TaskFunc[T, R any] func(ctx context.Context, index int, chunk []T) (R, error)

// ProcessChunks applies fn to every chunk and returns the results in chunk
// order. A task error or panic is wrapped in *types.WorkerError; every
// dispatched task is joined before returning and the first failure is
// reported. Cancelling ctx stops further dispatch. Empty input returns
// immediately without starting any goroutine.
func ProcessChunks[T, R any](ctx context.Context, p *Processor, chunks [][]T, fn TaskFunc[T, R]) ([]R, error) {
	if fn == nil {
		return nil, types.InvalidArgument("ProcessChunks", "fn", nil)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	start := time.Now()
	results := make([]R, len(chunks))

	// Bounded pool: the semaphore caps in-flight tasks at p.workers
	semaphore := make(chan struct{}, p.workers)
	g, gctx := errgroup.WithContext(ctx)

	dispatched := 0
dispatch:
	for i, chunk := range chunks {
		if gctx.Err() != nil {
			break
		}
		select {
		case <-gctx.Done():
			break dispatch
		case semaphore <- struct{}{}:
		}

		dispatched++
		g.Go(func() (err error) {
			defer func() { <-semaphore }()
			defer func() {
				if r := recover(); r != nil {
					err = &types.WorkerError{Index: i, Err: fmt.Errorf("panic: %v", r)}
				}
				if err != nil {
					p.failed.Add(1)
				}
			}()

			res, err := fn(gctx, i, chunk)
			if err != nil {
				return &types.WorkerError{Index: i, Err: err}
			}
			results[i] = res
			p.processed.Add(1)
			return nil
		})
	}

	// Join every dispatched task before inspecting the outcome
	err := g.Wait()

	p.logger.Debug("parallel chunk processing finished",
		zap.Int("chunks", len(chunks)),
		zap.Int("dispatched", dispatched),
		zap.Int("workers", p.workers),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err))

	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parallel processing canceled: %w", err)
	}
	return results, nil
}

// Map applies fn to every element, chunk by chunk in parallel, preserving
// chunk and element order
func Map[T, U any](ctx context.Context, p *Processor, chunks [][]T, fn func(T) U) ([][]U, error) {
	if fn == nil {
		return nil, types.InvalidArgument("Map", "fn", nil)
	}
	return ProcessChunks(ctx, p, chunks, func(_ context.Context, _ int, chunk []T) ([]U, error) {
		out := make([]U, len(chunk))
		for i, v := range chunk {
			out[i] = fn(v)
		}
		return out, nil
	})
}

// Reduce folds every chunk locally from identity in parallel, then folds the
// partial results sequentially in chunk order. The result equals a
// sequential left fold whenever fn is associative and identity is neutral.
func Reduce[T any](ctx context.Context, p *Processor, chunks [][]T, fn func(a, b T) T, identity T) (T, error) {
	if fn == nil {
		return identity, types.InvalidArgument("Reduce", "fn", nil)
	}
	if len(chunks) == 0 {
		return identity, nil
	}

	partials, err := ProcessChunks(ctx, p, chunks, func(_ context.Context, _ int, chunk []T) (T, error) {
		acc := identity
		for _, v := range chunk {
			acc = fn(acc, v)
		}
		return acc, nil
	})
	if err != nil {
		return identity, err
	}

	acc := identity
	for _, v := range partials {
		acc = fn(acc, v)
	}
	return acc, nil
}
