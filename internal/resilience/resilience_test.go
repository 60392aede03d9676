package resilience

import (
	"context"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dshills/gochunk/pkg/types"
)

// everyN splits at each multiple of n, counted from the start of its input
type everyN int

func (e everyN) Name() string               { return "every_n" }
func (e everyN) Params() map[string]float64 { return map[string]float64{"n": float64(e)} }
func (e everyN) Split(data []int) []int {
	var out []int
	for b := int(e); b < len(data); b += int(e) {
		out = append(out, b)
	}
	return out
}

// never places no boundaries
type never struct{}

func (never) Name() string               { return "never" }
func (never) Params() map[string]float64 { return nil }
func (never) Split([]int) []int          { return nil }

// flakyStore fails the first failures writes
type flakyStore struct {
	*FileStore
	mu       sync.Mutex
	failures int
}

func (s *flakyStore) Write(ctx context.Context, seq uint64, payload []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return "", errors.New("disk full")
	}
	return s.FileStore.Write(ctx, seq, payload)
}

func seqOf(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func newTestChunker(t *testing.T, cfg Config[int]) *ResilientChunker[int] {
	t.Helper()
	if cfg.Dir == "" && cfg.Store == nil {
		cfg.Dir = t.TempDir()
	}
	if cfg.Logger == nil {
		cfg.Logger = zaptest.NewLogger(t)
	}
	rc, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(rc.Close)
	return rc
}

func TestNew_Validation(t *testing.T) {
	valid := func() Config[int] {
		return Config[int]{
			Dir:            t.TempDir(),
			MaxMemUsage:    1024,
			CheckpointFreq: 10,
			HistorySize:    3,
			Strategy:       everyN(4),
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config[int])
		param  string
	}{
		{"nil strategy", func(c *Config[int]) { c.Strategy = nil }, "strategy"},
		{"zero memory", func(c *Config[int]) { c.MaxMemUsage = 0 }, "max_mem_usage"},
		{"negative frequency", func(c *Config[int]) { c.CheckpointFreq = -1 }, "checkpoint_freq"},
		{"zero history", func(c *Config[int]) { c.HistorySize = 0 }, "history_size"},
		{"missing directory", func(c *Config[int]) { c.Dir = "" }, "checkpoint_dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			_, err := New(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrInvalidArgument)

			var pe *types.ParamError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.param, pe.Param)
		})
	}
}

func TestProcess_CheckpointsAndChunks(t *testing.T) {
	dir := t.TempDir()
	rc := newTestChunker(t, Config[int]{
		Dir:            dir,
		MaxMemUsage:    1 << 20,
		CheckpointFreq: 3,
		HistorySize:    5,
		Strategy:       everyN(4),
	})

	data := seqOf(10)
	res, err := rc.Process(context.Background(), slices.Values(data))
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, rc.State())
	assert.Equal(t, int64(10), res.Processed)
	assert.Equal(t, 3, res.Emitted)
	assert.Equal(t, 3, res.Checkpoints)
	assert.Zero(t, res.ForcedCheckpoints)
	assert.Zero(t, res.FailedCheckpoints)
	assert.NotEmpty(t, res.RunID)

	assert.Equal(t, [][]int{{0, 1, 2, 3}, {4, 5, 6, 7}, {8, 9}}, types.Slices(res.Chunks))
	for i, c := range res.Chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, 4*i, c.Offset)
	}

	files, err := filepath.Glob(filepath.Join(dir, "ckpt-*.gck"))
	require.NoError(t, err)
	assert.Len(t, files, 3)
}

func TestProcess_MatchesBatchForLocalStrategy(t *testing.T) {
	rc := newTestChunker(t, Config[int]{
		MaxMemUsage:    1 << 20,
		CheckpointFreq: 7,
		HistorySize:    2,
		Strategy:       everyN(5),
	})

	data := seqOf(53)
	res, err := rc.Process(context.Background(), slices.Values(data))
	require.NoError(t, err)

	var want [][]int
	for start := 0; start < len(data); start += 5 {
		want = append(want, data[start:min(start+5, len(data))])
	}
	assert.Equal(t, want, types.Slices(res.Chunks))
}

func TestProcess_HistoryPruned(t *testing.T) {
	dir := t.TempDir()
	rc := newTestChunker(t, Config[int]{
		Dir:            dir,
		MaxMemUsage:    1 << 20,
		CheckpointFreq: 2,
		HistorySize:    2,
		Strategy:       everyN(3),
	})

	res, err := rc.Process(context.Background(), slices.Values(seqOf(12)))
	require.NoError(t, err)
	assert.Equal(t, 6, res.Checkpoints)

	files, err := filepath.Glob(filepath.Join(dir, "ckpt-*.gck"))
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestRestoreAndResume(t *testing.T) {
	dir := t.TempDir()
	cfg := Config[int]{
		Dir:            dir,
		MaxMemUsage:    1 << 20,
		CheckpointFreq: 3,
		HistorySize:    5,
		Strategy:       everyN(4),
	}
	rc := newTestChunker(t, cfg)

	data := seqOf(10)
	first, err := rc.Process(context.Background(), slices.Values(data))
	require.NoError(t, err)

	// A fresh chunker on the same directory sees the same history
	restorer := newTestChunker(t, cfg)
	cp, err := restorer.RestoreFromCheckpoint(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.RunID, cp.RunID)
	assert.Equal(t, int64(9), cp.Processed)
	assert.Equal(t, 2, cp.Emitted)
	assert.Equal(t, []int{8}, cp.Buffer)
	assert.Equal(t, "every_n", cp.Strategy)
	assert.Equal(t, 4.0, cp.Params["n"])
	assert.Equal(t, CheckpointVersion, cp.Version)

	resumed, err := restorer.Resume(context.Background(), cp, slices.Values(data[cp.Processed:]))
	require.NoError(t, err)
	assert.Equal(t, first.RunID, resumed.RunID)
	assert.Equal(t, int64(10), resumed.Processed)
	assert.Equal(t, 3, resumed.Emitted)

	combined := append(slices.Clone(first.Chunks[:cp.Emitted]), resumed.Chunks...)
	assert.Equal(t, first.Chunks, combined)
	assert.Equal(t, data, types.Flatten(combined))
}

func TestRestore_SkipsCorruptedCheckpoint(t *testing.T) {
	dir := t.TempDir()
	cfg := Config[int]{
		Dir:            dir,
		MaxMemUsage:    1 << 20,
		CheckpointFreq: 3,
		HistorySize:    5,
		Strategy:       everyN(4),
	}

	core, logs := observer.New(zapcore.WarnLevel)
	cfg.Logger = zap.New(core)
	rc := newTestChunker(t, cfg)

	_, err := rc.Process(context.Background(), slices.Values(seqOf(10)))
	require.NoError(t, err)

	store, err := NewFileStore(dir)
	require.NoError(t, err)
	entries, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Flip a payload byte so the checksum no longer matches
	raw, err := os.ReadFile(entries[0].Path)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	require.NoError(t, os.WriteFile(entries[0].Path, raw, 0o644))

	cp, err := rc.RestoreFromCheckpoint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(6), cp.Processed)
	assert.Equal(t, 1, cp.Emitted)
	assert.Equal(t, []int{4, 5}, cp.Buffer)
	assert.Equal(t, 1, logs.FilterMessage("skipping corrupted checkpoint").Len())
}

func TestRestore_NoValidCheckpoint(t *testing.T) {
	t.Run("empty directory", func(t *testing.T) {
		rc := newTestChunker(t, Config[int]{
			MaxMemUsage:    1 << 20,
			CheckpointFreq: 3,
			HistorySize:    3,
			Strategy:       everyN(4),
		})
		_, err := rc.RestoreFromCheckpoint(context.Background())
		assert.ErrorIs(t, err, types.ErrRecovery)
	})

	t.Run("all corrupted", func(t *testing.T) {
		dir := t.TempDir()
		rc := newTestChunker(t, Config[int]{
			Dir:            dir,
			MaxMemUsage:    1 << 20,
			CheckpointFreq: 3,
			HistorySize:    3,
			Strategy:       everyN(4),
		})
		_, err := rc.Process(context.Background(), slices.Values(seqOf(9)))
		require.NoError(t, err)

		files, err := filepath.Glob(filepath.Join(dir, "ckpt-*.gck"))
		require.NoError(t, err)
		require.NotEmpty(t, files)
		for _, f := range files {
			require.NoError(t, os.WriteFile(f, []byte("garbage"), 0o644))
		}

		_, err = rc.RestoreFromCheckpoint(context.Background())
		assert.ErrorIs(t, err, types.ErrRecovery)
	})
}

func TestProcess_MemoryPressureForcesFlush(t *testing.T) {
	rc := newTestChunker(t, Config[int]{
		MaxMemUsage:    32,
		CheckpointFreq: 100,
		HistorySize:    3,
		Strategy:       never{},
		ElementSize:    func(int) int64 { return 8 },
	})

	data := seqOf(12)
	res, err := rc.Process(context.Background(), slices.Values(data))
	require.NoError(t, err)

	assert.Equal(t, 2, res.ForcedCheckpoints)
	assert.Zero(t, res.Checkpoints)
	assert.Equal(t, [][]int{{0, 1, 2, 3, 4}, {5, 6, 7, 8, 9}, {10, 11}}, types.Slices(res.Chunks))
	for _, c := range res.Chunks {
		assert.LessOrEqual(t, c.Len(), 5)
	}
}

func TestProcess_CheckpointFailureContinues(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	store := &flakyStore{FileStore: fs, failures: 2}

	core, logs := observer.New(zapcore.WarnLevel)
	rc := newTestChunker(t, Config[int]{
		Store:          store,
		MaxMemUsage:    1 << 20,
		CheckpointFreq: 3,
		HistorySize:    5,
		Strategy:       everyN(4),
		Logger:         zap.New(core),
	})

	data := seqOf(10)
	res, err := rc.Process(context.Background(), slices.Values(data))
	require.NoError(t, err)

	assert.Equal(t, 2, res.FailedCheckpoints)
	assert.Equal(t, 1, res.Checkpoints)
	assert.Equal(t, data, types.Flatten(res.Chunks))
	assert.Equal(t, 2, logs.FilterMessage("checkpoint write failed, continuing").Len())

	// The surviving checkpoint is the third, scheduled one
	cp, err := rc.RestoreFromCheckpoint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(9), cp.Processed)
}

func TestCreateCheckpoint_ReportsFailure(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	rc := newTestChunker(t, Config[int]{
		Store:          &flakyStore{FileStore: fs, failures: 1},
		MaxMemUsage:    1 << 20,
		CheckpointFreq: 3,
		HistorySize:    5,
		Strategy:       everyN(4),
	})

	err = rc.CreateCheckpoint(context.Background())
	assert.ErrorIs(t, err, types.ErrResilience)

	require.NoError(t, rc.CreateCheckpoint(context.Background()))
	cp, err := rc.RestoreFromCheckpoint(context.Background())
	require.NoError(t, err)
	assert.Zero(t, cp.Processed)
}

func TestProcess_ConcurrentRunIsBusy(t *testing.T) {
	rc := newTestChunker(t, Config[int]{
		MaxMemUsage:    1 << 20,
		CheckpointFreq: 100,
		HistorySize:    3,
		Strategy:       everyN(4),
	})

	started := make(chan struct{})
	release := make(chan struct{})
	blocking := iter.Seq[int](func(yield func(int) bool) {
		if !yield(1) {
			return
		}
		close(started)
		<-release
		yield(2)
	})

	type outcome struct {
		res *Result[int]
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := rc.Process(context.Background(), blocking)
		done <- outcome{res, err}
	}()

	<-started
	assert.Equal(t, StateProcessing, rc.State())

	_, err := rc.Process(context.Background(), slices.Values([]int{9}))
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, rc.CreateCheckpoint(context.Background()), ErrBusy)
	assert.ErrorIs(t, rc.Purge(context.Background()), ErrBusy)

	close(release)
	select {
	case out := <-done:
		require.NoError(t, out.err)
		assert.Equal(t, [][]int{{1, 2}}, types.Slices(out.res.Chunks))
	case <-time.After(5 * time.Second):
		t.Fatal("first run did not finish")
	}
}

func TestProcess_ContextCanceled(t *testing.T) {
	rc := newTestChunker(t, Config[int]{
		MaxMemUsage:    1 << 20,
		CheckpointFreq: 3,
		HistorySize:    3,
		Strategy:       everyN(4),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rc.Process(ctx, slices.Values(seqOf(10)))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, rc.State())
}

func TestSinkFailure_RecoverAndResume(t *testing.T) {
	var (
		delivered []types.Chunk[int]
		fail      = true
	)
	sinkErr := errors.New("downstream unavailable")

	rc := newTestChunker(t, Config[int]{
		MaxMemUsage:    1 << 20,
		CheckpointFreq: 3,
		HistorySize:    5,
		Strategy:       everyN(4),
		Sink: func(c types.Chunk[int]) error {
			if fail && c.Index == 1 {
				return sinkErr
			}
			delivered = append(delivered, c)
			return nil
		},
	})

	data := seqOf(10)
	res, err := rc.Process(context.Background(), slices.Values(data))
	require.Error(t, err)
	assert.ErrorIs(t, err, sinkErr)
	assert.Equal(t, StateFailed, rc.State())
	assert.Equal(t, 1, res.Emitted)
	assert.Empty(t, res.Chunks)

	cp, err := rc.Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateIdle, rc.State())
	assert.Equal(t, int64(6), cp.Processed)
	assert.Equal(t, 1, cp.Emitted)

	fail = false
	_, err = rc.Resume(context.Background(), cp, slices.Values(data[cp.Processed:]))
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, rc.State())

	assert.Equal(t, data, types.Flatten(delivered))
	for i, c := range delivered {
		assert.Equal(t, i, c.Index)
	}
}

func TestRecover_NothingToRestore(t *testing.T) {
	rc := newTestChunker(t, Config[int]{
		MaxMemUsage:    1 << 20,
		CheckpointFreq: 3,
		HistorySize:    3,
		Strategy:       everyN(4),
	})

	_, err := rc.Recover(context.Background())
	assert.ErrorIs(t, err, types.ErrRecovery)
	assert.Equal(t, StateFailed, rc.State())
}

func TestPurge(t *testing.T) {
	dir := t.TempDir()
	rc := newTestChunker(t, Config[int]{
		Dir:            dir,
		MaxMemUsage:    1 << 20,
		CheckpointFreq: 2,
		HistorySize:    5,
		Strategy:       everyN(4),
	})
	_, err := rc.Process(context.Background(), slices.Values(seqOf(8)))
	require.NoError(t, err)

	require.NoError(t, rc.Purge(context.Background()))
	files, err := filepath.Glob(filepath.Join(dir, "ckpt-*.gck"))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewFileStore(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, store.Dir())

	for i := 0; i < 3; i++ {
		seq := store.NextSequence()
		_, err := store.Write(ctx, seq, []byte{byte(seq)})
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []uint64{3, 2, 1}, []uint64{entries[0].Sequence, entries[1].Sequence, entries[2].Sequence})

	data, err := store.Read(ctx, entries[0].Path)
	require.NoError(t, err)
	assert.Equal(t, []byte{3}, data)

	// Sequence numbers continue across reopen
	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), reopened.NextSequence())

	require.NoError(t, store.Prune(ctx, 2))
	entries, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(3), entries[0].Sequence)
	assert.Equal(t, uint64(2), entries[1].Sequence)

	require.NoError(t, store.Purge(ctx))
	entries, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = os.Stat(filepath.Join(dir, "notes.txt"))
	assert.NoError(t, err)
}

func TestNewFileStore_RequiresDir(t *testing.T) {
	_, err := NewFileStore("")
	assert.Error(t, err)
}

func TestDecodeCheckpoint_Corruption(t *testing.T) {
	c, err := newCodec()
	require.NoError(t, err)
	defer c.close()

	payload, err := encodeCheckpoint(c, &Checkpoint[int]{Version: CheckpointVersion, RunID: "r", Buffer: []int{1, 2}})
	require.NoError(t, err)

	cp, err := decodeCheckpoint[int](c, payload)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, cp.Buffer)

	_, err = decodeCheckpoint[int](c, payload[:headerSize-1])
	assert.ErrorIs(t, err, ErrCorruptCheckpoint)

	tampered := slices.Clone(payload)
	tampered[0] = 'X'
	_, err = decodeCheckpoint[int](c, tampered)
	assert.ErrorIs(t, err, ErrCorruptCheckpoint)

	future, err := encodeCheckpoint(c, &Checkpoint[int]{Version: CheckpointVersion + 1})
	require.NoError(t, err)
	_, err = decodeCheckpoint[int](c, future)
	assert.ErrorIs(t, err, types.ErrResilience)
}

func TestFileStore_WriteRetries(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	store.retry = RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

	attempts := 0
	failing := 2
	store.createTemp = func(dir, pattern string) (*os.File, error) {
		attempts++
		if failing > 0 {
			failing--
			return nil, errors.New("too many open files")
		}
		return os.CreateTemp(dir, pattern)
	}

	path, err := store.Write(ctx, store.NextSequence(), []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	data, err := store.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	attempts = 0
	failing = 10
	_, err = store.Write(ctx, store.NextSequence(), []byte("payload"))
	assert.ErrorContains(t, err, "too many open files")
	assert.Equal(t, 3, attempts)

	entries, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "a failed write leaves no checkpoint behind")
}

func TestRetryWithBackoff(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}

	calls := 0
	v, err := retryWithBackoff(context.Background(), cfg, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("contended")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)

	calls = 0
	_, err = retryWithBackoff(context.Background(), cfg, func() (int, error) {
		calls++
		return 0, errors.New("contended")
	})
	assert.EqualError(t, err, "contended")
	assert.Equal(t, 3, calls)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "checkpointing", StateCheckpointing.String())
	assert.Equal(t, "recovering", StateRecovering.String())
	assert.Equal(t, "State(42)", State(42).String())
}

func TestDefaultElementSize(t *testing.T) {
	assert.Equal(t, int64(1), defaultElementSize[struct{}]()(struct{}{}))
	assert.Equal(t, int64(8), defaultElementSize[float64]()(0))
}
