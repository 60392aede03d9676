package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/dshills/gochunk/internal/chunker"
	"github.com/dshills/gochunk/internal/registry"
	"github.com/dshills/gochunk/pkg/types"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "GOCHUNK_"

// ByteSize is a byte count that also accepts humanized values such as
// "64MB" or "1.5GiB" in YAML and the environment
type ByteSize int64

// ParseByteSize parses a plain integer or a humanized size
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ByteSize(n), nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	return ByteSize(n), nil
}

func (b ByteSize) String() string {
	if b < 0 {
		return strconv.FormatInt(int64(b), 10)
	}
	return humanize.IBytes(uint64(b))
}

func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseByteSize(node.Value)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

func (b ByteSize) MarshalYAML() (any, error) {
	return b.String(), nil
}

// Config is the engine configuration
type Config struct {
	ChunkSize      int           `yaml:"chunk_size"`
	Threshold      float64       `yaml:"threshold"`
	WindowSize     int           `yaml:"window_size"`
	CheckpointDir  string        `yaml:"checkpoint_dir"`
	MaxMemUsage    ByteSize      `yaml:"max_mem_usage"`
	CheckpointFreq int           `yaml:"checkpoint_freq"`
	HistorySize    int           `yaml:"history_size"`
	DBPath         string        `yaml:"db_path"`
	Workers        int           `yaml:"workers"` // 0 uses every CPU
	LogLevel       string        `yaml:"log_level"`
	Strategy       registry.Spec `yaml:"strategy"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		ChunkSize:      chunker.DefaultChunkSize,
		Threshold:      1.0,
		WindowSize:     5,
		CheckpointDir:  "~/.gochunk/checkpoints",
		MaxMemUsage:    64 << 20,
		CheckpointFreq: 10000,
		HistorySize:    3,
		DBPath:         "~/.gochunk/gochunk.db",
		LogLevel:       "info",
		Strategy:       registry.Spec{Name: "variance"},
	}
}

// Load reads path over the defaults, applies GOCHUNK_* environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}

	if err := cfg.expandTilde(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from GOCHUNK_<KEY> variables found by lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	ints := map[string]*int{
		"chunk_size":      &c.ChunkSize,
		"window_size":     &c.WindowSize,
		"checkpoint_freq": &c.CheckpointFreq,
		"history_size":    &c.HistorySize,
		"workers":         &c.Workers,
	}
	strs := map[string]*string{
		"checkpoint_dir": &c.CheckpointDir,
		"db_path":        &c.DBPath,
		"log_level":      &c.LogLevel,
		"strategy":       &c.Strategy.Name,
	}

	for key, dst := range ints {
		if v, ok := lookup(envName(key)); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return types.InvalidArgument("config", key, v)
			}
			*dst = n
		}
	}
	for key, dst := range strs {
		if v, ok := lookup(envName(key)); ok {
			*dst = v
		}
	}

	if v, ok := lookup(envName("threshold")); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return types.InvalidArgument("config", "threshold", v)
		}
		c.Threshold = f
	}
	if v, ok := lookup(envName("max_mem_usage")); ok {
		b, err := ParseByteSize(v)
		if err != nil {
			return types.InvalidArgument("config", "max_mem_usage", v)
		}
		c.MaxMemUsage = b
	}
	return nil
}

func envName(key string) string {
	return EnvPrefix + strings.ToUpper(key)
}

// Validate checks every field and names the first offending key
func (c *Config) Validate() error {
	positive := []struct {
		key   string
		value int64
	}{
		{"chunk_size", int64(c.ChunkSize)},
		{"window_size", int64(c.WindowSize)},
		{"max_mem_usage", int64(c.MaxMemUsage)},
		{"checkpoint_freq", int64(c.CheckpointFreq)},
		{"history_size", int64(c.HistorySize)},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return types.InvalidArgument("config", p.key, p.value)
		}
	}

	if c.ChunkSize > chunker.MaxChunkSize {
		return types.InvalidArgument("config", "chunk_size", c.ChunkSize)
	}
	if c.Workers < 0 {
		return types.InvalidArgument("config", "workers", c.Workers)
	}
	if c.CheckpointDir == "" {
		return types.InvalidArgument("config", "checkpoint_dir", c.CheckpointDir)
	}
	if c.DBPath == "" {
		return types.InvalidArgument("config", "db_path", c.DBPath)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return types.InvalidArgument("config", "log_level", c.LogLevel)
	}
	if _, err := registry.NumericSpec(c.StrategySpec()); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	return nil
}

// StrategySpec returns the configured strategy with window_size, threshold
// and chunk_size filled in wherever the strategy takes a "window",
// "threshold" or "size" parameter left unset
func (c *Config) StrategySpec() registry.Spec {
	return c.fill(c.Strategy)
}

// SpecFor returns the spec for strategy name with params. An empty name
// selects the configured strategy with params layered over its values.
func (c *Config) SpecFor(name string, params map[string]float64) registry.Spec {
	if name != "" {
		return registry.Spec{Name: name, Params: params}
	}

	spec := c.StrategySpec()
	if len(params) > 0 {
		merged := make(map[string]float64, len(spec.Params)+len(params))
		maps.Copy(merged, spec.Params)
		maps.Copy(merged, params)
		spec.Params = merged
	}
	return spec
}

func (c *Config) fill(spec registry.Spec) registry.Spec {
	out := spec
	if len(spec.Children) > 0 {
		out.Children = make([]registry.Spec, len(spec.Children))
		for i, child := range spec.Children {
			out.Children[i] = c.fill(child)
		}
	}

	defaults, ok := registry.Defaults(spec.Name)
	if !ok {
		return out
	}

	out.Params = make(map[string]float64, len(spec.Params)+2)
	for k, v := range spec.Params {
		out.Params[k] = v
	}
	configured := map[string]float64{
		"window":    float64(c.WindowSize),
		"threshold": c.Threshold,
		"size":      float64(c.ChunkSize),
	}
	for key, v := range configured {
		if _, takes := defaults[key]; !takes {
			continue
		}
		if _, set := out.Params[key]; !set {
			out.Params[key] = v
		}
	}
	return out
}

func (c *Config) expandTilde() error {
	for _, p := range []*string{&c.CheckpointDir, &c.DBPath} {
		rest, ok := strings.CutPrefix(*p, "~/")
		if !ok {
			continue
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		*p = filepath.Join(home, rest)
	}
	return nil
}

// NewLogger builds a JSON production logger at level that writes to
// stderr, leaving stdout to the MCP transport
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, types.InvalidArgument("config", "log_level", level)
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
