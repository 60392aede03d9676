package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/gochunk/internal/metrics"
	"github.com/dshills/gochunk/internal/parallel"
	"github.com/dshills/gochunk/internal/registry"
	"github.com/dshills/gochunk/internal/resilience"
	"github.com/dshills/gochunk/internal/storage"
	"github.com/dshills/gochunk/internal/strategy"
	"github.com/dshills/gochunk/pkg/types"
)

// Pipeline coordinates a run: strategy -> quality -> storage
type Pipeline struct {
	storage   storage.Storage
	processor *parallel.Processor
	analyzer  *metrics.QualityAnalyzer[float64]
	logger    *zap.Logger

	workers int
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithWorkers sets the number of goroutines scoring chunks. Values below 1
// use every CPU.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		p.workers = n
	}
}

// WithLogger sets the pipeline logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// CheckpointOptions enables resilient execution. Checkpoints for a run live
// in <Dir>/<run id> and are removed once the run completes.
type CheckpointOptions struct {
	Dir         string
	MaxMemUsage int64
	Freq        int
	HistorySize int
}

// Request describes a run over numeric samples
type Request struct {
	Spec       registry.Spec
	Data       []float64
	Checkpoint *CheckpointOptions // nil chunks in memory
}

// ResumeRequest continues a failed checkpointed run
type ResumeRequest struct {
	RunID string
	// Spec must resolve to the strategy and parameters the run started
	// with. An empty name reuses the stored run's strategy; params given for
	// that strategy are layered over the stored ones.
	Spec       registry.Spec
	Data       []float64 // The complete original input
	Checkpoint CheckpointOptions
}

// TextRequest describes a run over tokens
type TextRequest struct {
	Strategy string
	Params   map[string]float64
	Tokens   []string
}

// BytesRequest describes a run over raw bytes
type BytesRequest struct {
	Strategy string
	Params   map[string]float64
	Data     []byte
}

// Result summarizes a stored run
type Result struct {
	Run         *storage.Run
	Sizes       []int           // Chunk lengths in order
	Checkpoints int             // Checkpoints written, scheduled and forced
	Report      *metrics.Report // Nil for text and byte runs or empty input
	Duration    time.Duration
}

// New creates a Pipeline storing runs in store
func New(store storage.Storage, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		storage: store,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	analyzer, err := metrics.NewQualityAnalyzer[float64]()
	if err != nil {
		return nil, fmt.Errorf("failed to create quality analyzer: %w", err)
	}
	p.analyzer = analyzer
	p.processor = parallel.New(parallel.WithWorkers(p.workers), parallel.WithLogger(p.logger))
	return p, nil
}

// Run chunks numeric samples, scores the chunks in parallel and stores the
// run with its chunks
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	s, err := registry.NumericSpec(req.Spec)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	run, err := startRun(ctx, p, s, storage.KindNumeric, len(req.Data))
	if err != nil {
		return nil, err
	}

	if req.Checkpoint == nil {
		chunks := strategy.Apply(s, req.Data)
		return p.finishNumeric(ctx, run, chunks, 0, start)
	}

	var chunks []types.Chunk[float64]
	rc, err := p.resilientChunker(ctx, run, s, *req.Checkpoint, &chunks)
	if err != nil {
		return nil, p.failRun(ctx, run, err)
	}
	defer rc.Close()

	res, err := rc.Process(ctx, slices.Values(req.Data))
	if err != nil {
		return nil, p.failRun(ctx, run, err)
	}
	p.purgeCheckpoints(ctx, rc, *req.Checkpoint, run.RunID)
	return p.finishNumeric(ctx, run, chunks, res.Checkpoints+res.ForcedCheckpoints, start)
}

// Resume recovers the newest valid checkpoint of a failed run and finishes
// it. Chunks stored before the checkpoint are kept; chunks past it are
// rewritten.
func (p *Pipeline) Resume(ctx context.Context, req ResumeRequest) (*Result, error) {
	run, err := p.storage.GetRun(ctx, req.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", req.RunID, err)
	}
	if run.ElementKind != storage.KindNumeric || run.Status == storage.RunCompleted {
		return nil, types.InvalidArgument("Resume", "run_id", req.RunID)
	}

	s, err := registry.NumericSpec(resumeSpec(run, req.Spec))
	if err != nil {
		return nil, err
	}
	if s.Name() != run.Strategy {
		return nil, types.InvalidArgument("Resume", "strategy", s.Name())
	}
	if !maps.Equal(s.Params(), run.Params) {
		return nil, types.InvalidArgument("Resume", "params", s.Params())
	}

	start := time.Now()
	var fresh []types.Chunk[float64]
	rc, err := p.resilientChunker(ctx, run, s, req.Checkpoint, &fresh)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	cp, err := rc.Recover(ctx)
	if err != nil {
		return nil, err
	}
	if cp.Strategy != run.Strategy {
		return nil, fmt.Errorf("%w: checkpoint was written by strategy %q", types.ErrRecovery, cp.Strategy)
	}
	if !maps.Equal(cp.Params, run.Params) {
		return nil, fmt.Errorf("%w: checkpoint parameters %v differ from run parameters %v",
			types.ErrRecovery, cp.Params, run.Params)
	}
	if cp.Processed > int64(len(req.Data)) {
		return nil, types.InvalidArgument("Resume", "data", len(req.Data))
	}

	stored, err := LoadChunks[float64](ctx, p.storage, run.ID)
	if err != nil {
		return nil, err
	}
	kept := slices.DeleteFunc(stored, func(c types.Chunk[float64]) bool {
		return c.Index >= cp.Emitted
	})
	if len(kept) != cp.Emitted {
		return nil, fmt.Errorf("%w: run %s has %d stored chunks, checkpoint expects %d",
			types.ErrRecovery, run.RunID, len(kept), cp.Emitted)
	}

	run.Status = storage.RunRunning
	run.Error = nil
	run.InputCount = int64(len(req.Data))
	if err := p.storage.UpdateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to update run: %w", err)
	}

	res, err := rc.Resume(ctx, cp, slices.Values(req.Data[cp.Processed:]))
	if err != nil {
		return nil, p.failRun(ctx, run, err)
	}
	p.purgeCheckpoints(ctx, rc, req.Checkpoint, run.RunID)
	return p.finishNumeric(ctx, run, append(kept, fresh...), res.Checkpoints+res.ForcedCheckpoints, start)
}

// resumeSpec resolves the spec a resumed run is rebuilt from
func resumeSpec(run *storage.Run, spec registry.Spec) registry.Spec {
	if spec.Name == "" {
		spec.Name = run.Strategy
	}
	if spec.Name != run.Strategy || spec.Name == "multi" {
		return spec
	}

	params := make(map[string]float64, len(run.Params)+len(spec.Params))
	maps.Copy(params, run.Params)
	maps.Copy(params, spec.Params)
	spec.Params = params
	return spec
}

// RunText chunks a token sequence and stores the run
func (p *Pipeline) RunText(ctx context.Context, req TextRequest) (*Result, error) {
	s, err := registry.Text(req.Strategy, req.Params)
	if err != nil {
		return nil, err
	}
	return runInMemory(ctx, p, s, storage.KindText, req.Tokens)
}

// RunBytes chunks a byte stream and stores the run
func (p *Pipeline) RunBytes(ctx context.Context, req BytesRequest) (*Result, error) {
	s, err := registry.Bytes(req.Strategy, req.Params)
	if err != nil {
		return nil, err
	}
	return runInMemory(ctx, p, s, storage.KindBytes, req.Data)
}

func runInMemory[T any](ctx context.Context, p *Pipeline, s strategy.Strategy[T], kind string, data []T) (*Result, error) {
	start := time.Now()
	run, err := startRun(ctx, p, s, kind, len(data))
	if err != nil {
		return nil, err
	}

	chunks := strategy.Apply(s, data)
	if err := persist(ctx, p.storage, run, chunks); err != nil {
		return nil, p.failRun(ctx, run, err)
	}
	return p.complete(run, sizes(chunks), 0, nil, start), nil
}

func startRun[T any](ctx context.Context, p *Pipeline, s strategy.Strategy[T], kind string, n int) (*storage.Run, error) {
	run := &storage.Run{
		RunID:       uuid.NewString(),
		Strategy:    s.Name(),
		Params:      s.Params(),
		ElementKind: kind,
		InputCount:  int64(n),
	}
	if err := p.storage.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	p.logger.Info("run started",
		zap.String("run_id", run.RunID),
		zap.String("strategy", run.Strategy),
		zap.String("kind", kind),
		zap.Int("elements", n))
	return run, nil
}

// finishNumeric scores chunks and stores them with the completed run
func (p *Pipeline) finishNumeric(ctx context.Context, run *storage.Run, chunks []types.Chunk[float64],
	checkpoints int, start time.Time) (*Result, error) {

	scored, report, err := p.score(ctx, chunks)
	if err != nil {
		return nil, p.failRun(ctx, run, err)
	}
	if report != nil {
		q := report.Quality
		run.Quality = &q
	}

	if err := persist(ctx, p.storage, run, scored); err != nil {
		return nil, p.failRun(ctx, run, err)
	}
	return p.complete(run, sizes(scored), checkpoints, report, start), nil
}

// score attaches each chunk's cohesion, computed on the worker pool, and
// analyzes the partition as a whole
func (p *Pipeline) score(ctx context.Context, chunks []types.Chunk[float64]) ([]types.Chunk[float64], *metrics.Report, error) {
	if len(chunks) == 0 {
		return chunks, nil, nil
	}

	data := types.Slices(chunks)
	cohesion, err := parallel.ProcessChunks(ctx, p.processor, data,
		func(_ context.Context, _ int, chunk []float64) (float64, error) {
			return p.analyzer.Cohesion(chunk), nil
		})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to score chunks: %w", err)
	}

	scored := make([]types.Chunk[float64], len(chunks))
	for i, c := range chunks {
		scored[i] = c.WithQuality(cohesion[i])
	}

	report, err := p.analyzer.Analyze(data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to analyze chunks: %w", err)
	}
	return scored, &report, nil
}

func (p *Pipeline) complete(run *storage.Run, sizes []int, checkpoints int, report *metrics.Report, start time.Time) *Result {
	res := &Result{
		Run:         run,
		Sizes:       sizes,
		Checkpoints: checkpoints,
		Report:      report,
		Duration:    time.Since(start),
	}

	fields := []zap.Field{
		zap.String("run_id", run.RunID),
		zap.Int("chunks", run.ChunkCount),
		zap.Int("checkpoints", checkpoints),
		zap.Duration("duration", res.Duration),
	}
	if run.Quality != nil {
		fields = append(fields, zap.Float64("quality", *run.Quality))
	}
	p.logger.Info("run completed", fields...)
	return res
}

// failRun records cause on the run and returns it
func (p *Pipeline) failRun(ctx context.Context, run *storage.Run, cause error) error {
	msg := cause.Error()
	run.Status = storage.RunFailed
	run.Error = &msg

	// The run context may be the reason for the failure
	if err := p.storage.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
		p.logger.Error("failed to record run failure", zap.String("run_id", run.RunID), zap.Error(err))
	}
	p.logger.Error("run failed", zap.String("run_id", run.RunID), zap.Error(cause))
	return cause
}

// resilientChunker streams sealed chunks straight into storage so that a
// resumed run finds every chunk delivered before its checkpoint
func (p *Pipeline) resilientChunker(ctx context.Context, run *storage.Run, s strategy.Strategy[float64],
	opts CheckpointOptions, collected *[]types.Chunk[float64]) (*resilience.ResilientChunker[float64], error) {

	if opts.Dir == "" {
		return nil, types.InvalidArgument("pipeline", "checkpoint_dir", opts.Dir)
	}

	return resilience.New(resilience.Config[float64]{
		Dir:            filepath.Join(opts.Dir, run.RunID),
		MaxMemUsage:    opts.MaxMemUsage,
		CheckpointFreq: opts.Freq,
		HistorySize:    opts.HistorySize,
		RunID:          run.RunID,
		Strategy:       s,
		Sink: func(c types.Chunk[float64]) error {
			rec, err := toRecord(run.ID, c)
			if err != nil {
				return err
			}
			if err := p.storage.UpsertChunk(ctx, rec); err != nil {
				return err
			}
			*collected = append(*collected, c)
			return nil
		},
		Logger: p.logger,
	})
}

func (p *Pipeline) purgeCheckpoints(ctx context.Context, rc *resilience.ResilientChunker[float64], opts CheckpointOptions, runID string) {
	if err := rc.Purge(ctx); err != nil {
		p.logger.Warn("failed to purge checkpoints", zap.String("run_id", runID), zap.Error(err))
		return
	}
	// Drops the lock file and the emptied directory
	if err := os.RemoveAll(filepath.Join(opts.Dir, runID)); err != nil {
		p.logger.Warn("failed to remove checkpoint directory", zap.String("run_id", runID), zap.Error(err))
	}
}

// persist replaces the run's chunks and marks it completed in one transaction
func persist[T any](ctx context.Context, store storage.Storage, run *storage.Run, chunks []types.Chunk[T]) error {
	tx, err := store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.DeleteChunksByRun(ctx, run.ID); err != nil {
		return fmt.Errorf("failed to delete old chunks: %w", err)
	}
	for _, c := range chunks {
		rec, err := toRecord(run.ID, c)
		if err != nil {
			return err
		}
		if err := tx.UpsertChunk(ctx, rec); err != nil {
			return fmt.Errorf("failed to store chunk: %w", err)
		}
	}

	now := time.Now()
	run.Status = storage.RunCompleted
	run.ChunkCount = len(chunks)
	run.CompletedAt = &now
	if err := tx.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadChunks decodes the stored chunks of a run in index order
func LoadChunks[T any](ctx context.Context, store storage.Storage, runID int64) ([]types.Chunk[T], error) {
	records, err := store.ListChunksByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}

	chunks := make([]types.Chunk[T], 0, len(records))
	for _, rec := range records {
		c, err := fromRecord[T](rec)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func toRecord[T any](runID int64, c types.Chunk[T]) (*storage.Chunk, error) {
	elements, err := json.Marshal(c.Elements)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chunk %d: %w", c.Index, err)
	}

	rec := &storage.Chunk{
		RunID:       runID,
		ChunkIndex:  c.Index,
		Offset:      c.Offset,
		Length:      c.Len(),
		Elements:    elements,
		ContentHash: c.ContentHash(),
	}
	if c.HasQuality {
		q := c.Quality
		rec.Quality = &q
	}
	return rec, nil
}

func fromRecord[T any](rec *storage.Chunk) (types.Chunk[T], error) {
	var elements []T
	if err := json.Unmarshal(rec.Elements, &elements); err != nil {
		return types.Chunk[T]{}, fmt.Errorf("failed to decode chunk %d: %w", rec.ChunkIndex, err)
	}

	c := types.Chunk[T]{
		Index:    rec.ChunkIndex,
		Offset:   rec.Offset,
		Elements: elements,
	}
	if rec.Quality != nil {
		c = c.WithQuality(*rec.Quality)
	}
	if err := c.Validate(); err != nil {
		return types.Chunk[T]{}, fmt.Errorf("stored chunk %d: %w", rec.ChunkIndex, err)
	}
	return c, nil
}

func sizes[T any](chunks []types.Chunk[T]) []int {
	out := make([]int, len(chunks))
	for i, c := range chunks {
		out[i] = c.Len()
	}
	return out
}
