package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gochunk/internal/chunker"
	"github.com/dshills/gochunk/internal/registry"
	"github.com/dshills/gochunk/pkg/types"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gochunk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
chunk_size: 256
threshold: 2.5
window_size: 16
checkpoint_dir: /tmp/ckpt
max_mem_usage: 128MB
checkpoint_freq: 500
history_size: 4
db_path: /tmp/gochunk.db
workers: 3
log_level: debug
strategy:
  name: quantile
  params:
    qlow: 0.05
    qhigh: 0.95
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 256, cfg.ChunkSize)
	assert.Equal(t, 2.5, cfg.Threshold)
	assert.Equal(t, 16, cfg.WindowSize)
	assert.Equal(t, "/tmp/ckpt", cfg.CheckpointDir)
	assert.Equal(t, ByteSize(128_000_000), cfg.MaxMemUsage)
	assert.Equal(t, 500, cfg.CheckpointFreq)
	assert.Equal(t, 4, cfg.HistorySize)
	assert.Equal(t, "/tmp/gochunk.db", cfg.DBPath)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "quantile", cfg.Strategy.Name)
	assert.Equal(t, 0.05, cfg.Strategy.Params["qlow"])
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, "chunk_size: 64\ndb_path: /tmp/x.db\ncheckpoint_dir: /tmp/c\n"))
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.ChunkSize)
	assert.Equal(t, Default().HistorySize, cfg.HistorySize)
	assert.Equal(t, Default().MaxMemUsage, cfg.MaxMemUsage)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default().ChunkSize, cfg.ChunkSize)
}

func TestLoad_UnknownKey(t *testing.T) {
	_, err := Load(writeFile(t, "chunk_sise: 10\n"))
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_ExpandsTilde(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".gochunk", "gochunk.db"), cfg.DBPath)
	assert.Equal(t, filepath.Join(home, ".gochunk", "checkpoints"), cfg.CheckpointDir)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "chunk_size: 64\nmax_mem_usage: 1MB\n")
	t.Setenv("GOCHUNK_CHUNK_SIZE", "99")
	t.Setenv("GOCHUNK_MAX_MEM_USAGE", "2GiB")
	t.Setenv("GOCHUNK_THRESHOLD", "0.75")
	t.Setenv("GOCHUNK_LOG_LEVEL", "warn")
	t.Setenv("GOCHUNK_STRATEGY", "dtw")
	t.Setenv("GOCHUNK_DB_PATH", "/tmp/env.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 99, cfg.ChunkSize)
	assert.Equal(t, ByteSize(2<<30), cfg.MaxMemUsage)
	assert.Equal(t, 0.75, cfg.Threshold)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "dtw", cfg.Strategy.Name)
	assert.Equal(t, "/tmp/env.db", cfg.DBPath)
}

func TestApplyEnv_BadValuesNameKey(t *testing.T) {
	tests := []struct {
		env string
		key string
	}{
		{"GOCHUNK_WORKERS", "workers"},
		{"GOCHUNK_THRESHOLD", "threshold"},
		{"GOCHUNK_MAX_MEM_USAGE", "max_mem_usage"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			env := map[string]string{tt.env: "lots"}
			err := Default().ApplyEnv(func(k string) (string, bool) {
				v, ok := env[k]
				return v, ok
			})
			assert.ErrorIs(t, err, types.ErrInvalidArgument)

			var pe *types.ParamError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.key, pe.Param)
		})
	}
}

func TestValidate_NamesOffendingKey(t *testing.T) {
	tests := []struct {
		key    string
		mutate func(*Config)
	}{
		{"chunk_size", func(c *Config) { c.ChunkSize = 0 }},
		{"chunk_size", func(c *Config) { c.ChunkSize = chunker.MaxChunkSize + 1 }},
		{"window_size", func(c *Config) { c.WindowSize = -1 }},
		{"max_mem_usage", func(c *Config) { c.MaxMemUsage = 0 }},
		{"checkpoint_freq", func(c *Config) { c.CheckpointFreq = 0 }},
		{"history_size", func(c *Config) { c.HistorySize = 0 }},
		{"workers", func(c *Config) { c.Workers = -2 }},
		{"checkpoint_dir", func(c *Config) { c.CheckpointDir = "" }},
		{"db_path", func(c *Config) { c.DBPath = "" }},
		{"log_level", func(c *Config) { c.LogLevel = "chatty" }},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, types.ErrInvalidArgument)

			var pe *types.ParamError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.key, pe.Param)
		})
	}
}

func TestValidate_Strategy(t *testing.T) {
	cfg := Default()
	cfg.Strategy = registry.Spec{Name: "nope"}
	assert.ErrorIs(t, cfg.Validate(), types.ErrInvalidArgument)

	cfg.Strategy = registry.Spec{Name: "wavelet"}
	cfg.WindowSize = 6
	assert.ErrorIs(t, cfg.Validate(), types.ErrInvalidConfiguration)
}

func TestStrategySpec_FillsWindowAndThreshold(t *testing.T) {
	cfg := Default()
	cfg.WindowSize = 8
	cfg.Threshold = 3
	cfg.Strategy = registry.Spec{
		Name: "multi",
		Children: []registry.Spec{
			{Name: "variance", Params: map[string]float64{"threshold": 9}},
			{Name: "mutual_information"},
		},
	}

	spec := cfg.StrategySpec()
	require.Len(t, spec.Children, 2)
	assert.Equal(t, map[string]float64{"window": 8, "threshold": 9}, spec.Children[0].Params)
	// mutual_information takes a threshold but no window
	assert.Equal(t, map[string]float64{"threshold": 3}, spec.Children[1].Params)

	// The configured spec is left untouched
	assert.Equal(t, map[string]float64{"threshold": 9}, cfg.Strategy.Children[0].Params)
	assert.Nil(t, cfg.Strategy.Children[1].Params)
}

func TestStrategySpec_FillsChunkSize(t *testing.T) {
	cfg := Default()
	cfg.ChunkSize = 256
	cfg.Strategy = registry.Spec{Name: "size"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, map[string]float64{"size": 256}, cfg.StrategySpec().Params)

	s, err := registry.NumericSpec(cfg.StrategySpec())
	require.NoError(t, err)
	assert.Equal(t, []int{256, 512}, s.Split(make([]float64, 600)))

	// An explicit size wins over chunk_size
	cfg.Strategy.Params = map[string]float64{"size": 100}
	assert.Equal(t, map[string]float64{"size": 100}, cfg.StrategySpec().Params)
}

func TestSpecFor(t *testing.T) {
	cfg := Default()
	cfg.WindowSize = 8
	cfg.Threshold = 3
	cfg.Strategy = registry.Spec{Name: "variance"}

	spec := cfg.SpecFor("", map[string]float64{"threshold": 1})
	assert.Equal(t, "variance", spec.Name)
	assert.Equal(t, map[string]float64{"window": 8, "threshold": 1}, spec.Params)

	// An explicit name takes params as given
	spec = cfg.SpecFor("entropy", map[string]float64{"window": 4})
	assert.Equal(t, registry.Spec{Name: "entropy", Params: map[string]float64{"window": 4}}, spec)
}

func TestByteSize(t *testing.T) {
	tests := []struct {
		in   string
		want ByteSize
	}{
		{"1024", 1024},
		{"64MB", 64_000_000},
		{"64MiB", 64 << 20},
		{"1.5 KiB", 1536},
	}
	for _, tt := range tests {
		got, err := ParseByteSize(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseByteSize("many")
	assert.Error(t, err)

	assert.Equal(t, "64 MiB", ByteSize(64<<20).String())
}

func TestSave_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.MaxMemUsage = 3 << 20
	cfg.CheckpointDir = "/tmp/c"
	cfg.DBPath = "/tmp/d.db"

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.MaxMemUsage, loaded.MaxMemUsage)
	assert.Equal(t, cfg.Strategy.Name, loaded.Strategy.Name)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	_, err = NewLogger("loud")
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}
