package resilience

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/gochunk/internal/strategy"
	"github.com/dshills/gochunk/pkg/types"
)

// ErrBusy is returned when a run is started on a chunker that is already running
var ErrBusy = errors.New("resilient chunker is busy")

// State is the lifecycle state of a ResilientChunker
type State int32

const (
	StateIdle State = iota
	StateProcessing
	StateCheckpointing
	StateCompleted
	StateFailed
	StateRecovering
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StateCheckpointing:
		return "checkpointing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateRecovering:
		return "recovering"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Config configures a ResilientChunker
type Config[T any] struct {
	Dir            string // Checkpoint directory; ignored when Store is set
	MaxMemUsage    int64  // Buffered bytes that force a checkpoint and flush
	CheckpointFreq int    // Elements between scheduled checkpoints
	HistorySize    int    // Checkpoints retained, oldest pruned first

	// RunID names a fresh run in its checkpoints. A random UUID is used
	// when empty.
	RunID string

	Strategy strategy.Strategy[T]

	// Sink receives every sealed chunk in order. When nil, chunks are
	// collected in Result.Chunks.
	Sink func(types.Chunk[T]) error

	// ElementSize estimates the memory held by one element. Defaults to the
	// element type's in-memory size.
	ElementSize func(T) int64

	Store  Store
	Logger *zap.Logger
}

// Result summarizes a run
type Result[T any] struct {
	RunID             string
	Processed         int64 // Elements consumed, including those before a resumed checkpoint
	Emitted           int   // Chunks delivered, including those before a resumed checkpoint
	Checkpoints       int   // Scheduled checkpoints written
	ForcedCheckpoints int   // Checkpoints forced by memory pressure
	FailedCheckpoints int   // Checkpoint writes that failed
	Chunks            []types.Chunk[T]
}

// ResilientChunker applies a strategy to a stream, checkpointing progress so
// that an interrupted run can be resumed. Only the goroutine running Process
// or Resume touches the buffer; a second concurrent run gets ErrBusy.
type ResilientChunker[T any] struct {
	cfg    Config[T]
	store  Store
	codec  *codec
	logger *zap.Logger
	mu     sync.Mutex // held for a whole run, only ever taken with TryLock
	state  atomic.Int32

	// Run state, owned by the holder of mu
	runID       string
	processed   int64
	emitted     int
	buffer      []T
	bufferBytes int64
	result      *Result[T]
}

// New validates cfg and creates a ResilientChunker
func New[T any](cfg Config[T]) (*ResilientChunker[T], error) {
	if cfg.Strategy == nil {
		return nil, types.InvalidArgument("resilience.New", "strategy", nil)
	}
	if cfg.MaxMemUsage <= 0 {
		return nil, types.InvalidArgument("resilience.New", "max_mem_usage", cfg.MaxMemUsage)
	}
	if cfg.CheckpointFreq <= 0 {
		return nil, types.InvalidArgument("resilience.New", "checkpoint_freq", cfg.CheckpointFreq)
	}
	if cfg.HistorySize <= 0 {
		return nil, types.InvalidArgument("resilience.New", "history_size", cfg.HistorySize)
	}
	if cfg.Store == nil && cfg.Dir == "" {
		return nil, types.InvalidArgument("resilience.New", "checkpoint_dir", cfg.Dir)
	}

	store := cfg.Store
	if store == nil {
		fs, err := NewFileStore(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
		}
		store = fs
	}

	c, err := newCodec()
	if err != nil {
		return nil, err
	}

	if cfg.ElementSize == nil {
		cfg.ElementSize = defaultElementSize[T]()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ResilientChunker[T]{
		cfg:    cfg,
		store:  store,
		codec:  c,
		logger: logger.With(zap.String("strategy", cfg.Strategy.Name())),
	}, nil
}

// Close releases the compression resources
func (r *ResilientChunker[T]) Close() {
	r.codec.close()
}

// State returns the current lifecycle state
func (r *ResilientChunker[T]) State() State {
	return State(r.state.Load())
}

func (r *ResilientChunker[T]) setState(s State) {
	r.state.Store(int32(s))
}

// Process consumes seq from the beginning
func (r *ResilientChunker[T]) Process(ctx context.Context, seq iter.Seq[T]) (*Result[T], error) {
	if !r.mu.TryLock() {
		return nil, ErrBusy
	}
	defer r.mu.Unlock()

	r.begin(nil)
	return r.run(ctx, seq)
}

// Resume continues the run captured by cp. rest must yield the input
// elements that follow the first cp.Processed ones.
func (r *ResilientChunker[T]) Resume(ctx context.Context, cp *Checkpoint[T], rest iter.Seq[T]) (*Result[T], error) {
	if cp == nil {
		return nil, types.InvalidArgument("Resume", "checkpoint", nil)
	}
	if !r.mu.TryLock() {
		return nil, ErrBusy
	}
	defer r.mu.Unlock()

	r.begin(cp)
	r.logger.Info("resuming from checkpoint",
		zap.String("run_id", cp.RunID),
		zap.Uint64("sequence", cp.Sequence),
		zap.Int64("processed", cp.Processed))
	return r.run(ctx, rest)
}

func (r *ResilientChunker[T]) begin(cp *Checkpoint[T]) {
	r.runID = r.cfg.RunID
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	r.processed = 0
	r.emitted = 0
	r.buffer = nil
	r.bufferBytes = 0

	if cp != nil {
		r.runID = cp.RunID
		r.processed = cp.Processed
		r.emitted = cp.Emitted
		r.buffer = append([]T(nil), cp.Buffer...)
		for _, v := range r.buffer {
			r.bufferBytes += r.cfg.ElementSize(v)
		}
	}

	r.result = &Result[T]{RunID: r.runID}
}

func (r *ResilientChunker[T]) run(ctx context.Context, seq iter.Seq[T]) (*Result[T], error) {
	r.setState(StateProcessing)
	start := time.Now()

	for v := range seq {
		if err := ctx.Err(); err != nil {
			return r.fail(fmt.Errorf("run canceled: %w", err))
		}

		r.buffer = append(r.buffer, v)
		r.bufferBytes += r.cfg.ElementSize(v)
		r.processed++

		// Backpressure: seal what we can before accepting more input
		if r.bufferBytes > r.cfg.MaxMemUsage {
			r.logger.Debug("memory budget exceeded, forcing checkpoint",
				zap.Int64("buffered_bytes", r.bufferBytes),
				zap.Int64("max_mem_usage", r.cfg.MaxMemUsage))
			if err := r.flush(true); err != nil {
				return r.fail(err)
			}
			if r.checkpoint(ctx) {
				r.result.ForcedCheckpoints++
			}
		}

		if r.processed%int64(r.cfg.CheckpointFreq) == 0 {
			if err := r.flush(false); err != nil {
				return r.fail(err)
			}
			if r.checkpoint(ctx) {
				r.result.Checkpoints++
			}
		}
	}

	if err := r.flushAll(); err != nil {
		return r.fail(err)
	}

	r.syncResult()
	r.setState(StateCompleted)
	r.logger.Info("run completed",
		zap.String("run_id", r.runID),
		zap.Int64("processed", r.processed),
		zap.Int("emitted", r.emitted),
		zap.Int("checkpoints", r.result.Checkpoints),
		zap.Int("failed_checkpoints", r.result.FailedCheckpoints),
		zap.Duration("duration", time.Since(start)))
	return r.result, nil
}

func (r *ResilientChunker[T]) fail(err error) (*Result[T], error) {
	r.syncResult()
	r.setState(StateFailed)
	r.logger.Error("run failed", zap.String("run_id", r.runID), zap.Error(err))
	return r.result, err
}

func (r *ResilientChunker[T]) syncResult() {
	r.result.Processed = r.processed
	r.result.Emitted = r.emitted
}

// flush emits every chunk that ends before the last boundary in the buffer
// and keeps the open tail. With force set, a buffer without any internal
// boundary is sealed as a single chunk.
func (r *ResilientChunker[T]) flush(force bool) error {
	if len(r.buffer) == 0 {
		return nil
	}

	boundaries := r.cfg.Strategy.Split(r.buffer)
	if len(boundaries) == 0 {
		if force {
			return r.flushAll()
		}
		return nil
	}

	cut := boundaries[len(boundaries)-1]
	sealed := strategy.Materialize(r.buffer[:cut], boundaries[:len(boundaries)-1])
	if err := r.emit(sealed); err != nil {
		return err
	}
	r.keep(cut)
	return nil
}

// flushAll emits the whole buffer
func (r *ResilientChunker[T]) flushAll() error {
	if len(r.buffer) == 0 {
		return nil
	}
	if err := r.emit(strategy.Apply(r.cfg.Strategy, r.buffer)); err != nil {
		return err
	}
	r.keep(len(r.buffer))
	return nil
}

// keep drops buffer[:cut] and retains the rest in a fresh backing array
func (r *ResilientChunker[T]) keep(cut int) {
	r.buffer = append([]T(nil), r.buffer[cut:]...)
	r.bufferBytes = 0
	for _, v := range r.buffer {
		r.bufferBytes += r.cfg.ElementSize(v)
	}
}

func (r *ResilientChunker[T]) emit(chunks []types.Chunk[T]) error {
	base := int(r.processed) - len(r.buffer)
	for _, c := range chunks {
		c.Index = r.emitted
		c.Offset += base

		if r.cfg.Sink != nil {
			if err := r.cfg.Sink(c); err != nil {
				return fmt.Errorf("sink rejected chunk %d: %w", c.Index, err)
			}
		} else {
			r.result.Chunks = append(r.result.Chunks, c)
		}
		r.emitted++
	}
	return nil
}

// checkpoint writes a snapshot of the run. Failures are logged and counted
// but never stop processing; the next scheduled checkpoint tries again.
func (r *ResilientChunker[T]) checkpoint(ctx context.Context) bool {
	r.setState(StateCheckpointing)
	defer r.setState(StateProcessing)

	if err := r.writeCheckpoint(ctx); err != nil {
		r.result.FailedCheckpoints++
		r.logger.Warn("checkpoint write failed, continuing",
			zap.String("run_id", r.runID),
			zap.Int64("processed", r.processed),
			zap.Error(err))
		return false
	}
	return true
}

func (r *ResilientChunker[T]) writeCheckpoint(ctx context.Context) error {
	cp := &Checkpoint[T]{
		Version:   CheckpointVersion,
		RunID:     r.runID,
		Sequence:  r.store.NextSequence(),
		Processed: r.processed,
		Emitted:   r.emitted,
		Buffer:    append([]T(nil), r.buffer...),
		Params:    r.cfg.Strategy.Params(),
		Strategy:  r.cfg.Strategy.Name(),
		CreatedAt: time.Now().UTC(),
	}

	payload, err := encodeCheckpoint(r.codec, cp)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrResilience, err)
	}

	path, err := r.store.Write(ctx, cp.Sequence, payload)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrResilience, err)
	}

	if err := r.store.Prune(ctx, r.cfg.HistorySize); err != nil {
		// The new checkpoint is durable; stale history only costs disk
		r.logger.Warn("checkpoint pruning failed", zap.Error(err))
	}

	r.logger.Debug("checkpoint written",
		zap.String("path", path),
		zap.Uint64("sequence", cp.Sequence),
		zap.Int64("processed", cp.Processed),
		zap.Int("buffered", len(cp.Buffer)))
	return nil
}

// CreateCheckpoint writes a snapshot of the current run state and reports
// any failure to the caller
func (r *ResilientChunker[T]) CreateCheckpoint(ctx context.Context) error {
	if !r.mu.TryLock() {
		return ErrBusy
	}
	defer r.mu.Unlock()

	if r.result == nil {
		r.begin(nil)
	}
	return r.writeCheckpoint(ctx)
}

// RestoreFromCheckpoint loads the newest valid checkpoint among the newest
// HistorySize. Unreadable or corrupted checkpoints are skipped; when none is
// valid the error wraps types.ErrRecovery.
func (r *ResilientChunker[T]) RestoreFromCheckpoint(ctx context.Context) (*Checkpoint[T], error) {
	entries, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrRecovery, err)
	}

	candidates := entries[:min(len(entries), r.cfg.HistorySize)]
	for _, e := range candidates {
		data, err := r.store.Read(ctx, e.Path)
		if err != nil {
			r.logger.Warn("skipping unreadable checkpoint", zap.String("path", e.Path), zap.Error(err))
			continue
		}
		cp, err := decodeCheckpoint[T](r.codec, data)
		if err != nil {
			r.logger.Warn("skipping corrupted checkpoint", zap.String("path", e.Path), zap.Error(err))
			continue
		}
		r.logger.Info("restored checkpoint",
			zap.String("path", e.Path),
			zap.Uint64("sequence", cp.Sequence),
			zap.Int64("processed", cp.Processed))
		return cp, nil
	}

	return nil, fmt.Errorf("%w: no valid checkpoint among %d candidates", types.ErrRecovery, len(candidates))
}

// Recover moves a failed chunker through Recovering back to Idle and returns
// the checkpoint to resume from. The chunker stays Failed if nothing can be
// restored.
func (r *ResilientChunker[T]) Recover(ctx context.Context) (*Checkpoint[T], error) {
	if !r.mu.TryLock() {
		return nil, ErrBusy
	}
	defer r.mu.Unlock()

	r.setState(StateRecovering)
	cp, err := r.RestoreFromCheckpoint(ctx)
	if err != nil {
		r.setState(StateFailed)
		return nil, err
	}
	r.setState(StateIdle)
	return cp, nil
}

// Purge removes every checkpoint from the store
func (r *ResilientChunker[T]) Purge(ctx context.Context) error {
	if !r.mu.TryLock() {
		return ErrBusy
	}
	defer r.mu.Unlock()

	if err := r.store.Purge(ctx); err != nil {
		return fmt.Errorf("%w: %w", types.ErrResilience, err)
	}
	return nil
}

func defaultElementSize[T any]() func(T) int64 {
	var zero T
	size := max(int64(unsafe.Sizeof(zero)), 1)
	return func(T) int64 { return size }
}
