package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/gochunk/internal/config"
	"github.com/dshills/gochunk/internal/pipeline"
	"github.com/dshills/gochunk/internal/storage"
)

// openInput returns the named file, or stdin for "" and "-"
func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, nil
}

// readFloats parses numbers separated by whitespace or commas. Lines
// starting with # are skipped.
func readFloats(r io.Reader) ([]float64, error) {
	var data []float64
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid number %q", line, f)
			}
			data = append(data, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return data, nil
}

// readTokens splits the input on whitespace
func readTokens(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return strings.Fields(string(data)), nil
}

// parseParams converts key=value flag pairs to strategy parameters
func parseParams(raw map[string]string) (map[string]float64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	params := make(map[string]float64, len(raw))
	for k, v := range raw {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("param %s: invalid number %q", k, v)
		}
		params[k] = f
	}
	return params, nil
}

func checkpointOptions(cfg *config.Config) pipeline.CheckpointOptions {
	return pipeline.CheckpointOptions{
		Dir:         cfg.CheckpointDir,
		MaxMemUsage: int64(cfg.MaxMemUsage),
		Freq:        cfg.CheckpointFreq,
		HistorySize: cfg.HistorySize,
	}
}

// openPipeline opens the store at cfg.DBPath. The caller closes the store.
func openPipeline(cfg *config.Config, logger *zap.Logger) (*pipeline.Pipeline, storage.Storage, error) {
	store, err := storage.NewSQLiteStorage(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}
	p, err := pipeline.New(store,
		pipeline.WithWorkers(cfg.Workers),
		pipeline.WithLogger(logger.Named("pipeline")))
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return p, store, nil
}
