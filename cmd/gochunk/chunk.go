package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dshills/gochunk/internal/pipeline"
	"github.com/dshills/gochunk/internal/storage"
)

type chunkOptions struct {
	kind       string
	strategy   string
	params     map[string]string
	checkpoint bool
	asJSON     bool
}

func newChunkCmd(opts *globalOptions) *cobra.Command {
	co := &chunkOptions{}

	cmd := &cobra.Command{
		Use:   "chunk [file]",
		Short: "Chunk a file and store the run",
		Long: `Chunk reads a file (or stdin when the file is omitted or "-"), splits it
with the chosen strategy and stores the run.

Numeric input is numbers separated by whitespace or commas. Text input is
split into whitespace-separated tokens. Byte input is read as is.`,
		Example: `  gochunk chunk samples.txt
  gochunk chunk --strategy variance --param window=8 --param threshold=2 samples.txt
  gochunk chunk --kind bytes --strategy rolling_hash --json < image.bin`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			params, err := parseParams(co.params)
			if err != nil {
				return err
			}

			var path string
			if len(args) == 1 {
				path = args[0]
			}
			in, err := openInput(path, cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer in.Close()

			p, store, err := openPipeline(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			var res *pipeline.Result
			switch co.kind {
			case storage.KindNumeric:
				data, err := readFloats(in)
				if err != nil {
					return err
				}
				req := pipeline.Request{Spec: cfg.SpecFor(co.strategy, params), Data: data}
				if co.checkpoint {
					cp := checkpointOptions(cfg)
					req.Checkpoint = &cp
				}
				res, err = p.Run(ctx, req)
				if err != nil {
					return err
				}

			case storage.KindText:
				tokens, err := readTokens(in)
				if err != nil {
					return err
				}
				name := co.strategy
				if name == "" {
					name = "text_entropy"
				}
				res, err = p.RunText(ctx, pipeline.TextRequest{Strategy: name, Params: params, Tokens: tokens})
				if err != nil {
					return err
				}

			case storage.KindBytes:
				data, err := io.ReadAll(in)
				if err != nil {
					return fmt.Errorf("failed to read input: %w", err)
				}
				name := co.strategy
				if name == "" {
					name = "rolling_hash"
				}
				res, err = p.RunBytes(ctx, pipeline.BytesRequest{Strategy: name, Params: params, Data: data})
				if err != nil {
					return err
				}

			default:
				return fmt.Errorf("invalid kind %q: must be numeric, text or bytes", co.kind)
			}

			return printResult(cmd.OutOrStdout(), res, co.asJSON)
		},
	}

	f := cmd.Flags()
	f.StringVar(&co.kind, "kind", storage.KindNumeric, "input kind: numeric, text or bytes")
	f.StringVarP(&co.strategy, "strategy", "s", "", "strategy name (default: configured strategy, text_entropy or rolling_hash)")
	f.StringToStringVarP(&co.params, "param", "p", nil, "strategy parameter as key=value (repeatable)")
	f.BoolVar(&co.checkpoint, "checkpoint", false, "checkpoint numeric runs so they can be restored")
	f.BoolVar(&co.asJSON, "json", false, "print the result as JSON")
	return cmd
}

// printResult writes a run summary, or its JSON form
func printResult(out io.Writer, res *pipeline.Result, asJSON bool) error {
	run := res.Run
	if asJSON {
		summary := map[string]interface{}{
			"run_id":      run.RunID,
			"strategy":    run.Strategy,
			"params":      run.Params,
			"kind":        run.ElementKind,
			"elements":    run.InputCount,
			"chunks":      run.ChunkCount,
			"sizes":       res.Sizes,
			"checkpoints": res.Checkpoints,
			"duration_ms": res.Duration.Milliseconds(),
		}
		if r := res.Report; r != nil {
			summary["quality"] = map[string]interface{}{
				"score":      r.Quality,
				"cohesion":   r.Cohesion,
				"separation": r.Separation,
				"silhouette": r.Silhouette,
			}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Fprintf(out, "Run:         %s\n", run.RunID)
	fmt.Fprintf(out, "Strategy:    %s\n", run.Strategy)
	fmt.Fprintf(out, "Kind:        %s\n", run.ElementKind)
	fmt.Fprintf(out, "Elements:    %s\n", humanize.Comma(run.InputCount))
	fmt.Fprintf(out, "Chunks:      %s\n", humanize.Comma(int64(run.ChunkCount)))
	if res.Checkpoints > 0 {
		fmt.Fprintf(out, "Checkpoints: %d\n", res.Checkpoints)
	}
	if r := res.Report; r != nil {
		fmt.Fprintf(out, "Quality:     %.4f (cohesion %.4f, separation %.4f, silhouette %.4f)\n",
			r.Quality, r.Cohesion, r.Separation, r.Silhouette)
		fmt.Fprintf(out, "Sizes:       mean %.1f, min %d, max %d\n", r.Sizes.Mean, r.Sizes.Min, r.Sizes.Max)
	}
	fmt.Fprintf(out, "Duration:    %s\n", res.Duration)
	return nil
}
