package main

import (
	"github.com/spf13/cobra"

	"github.com/dshills/gochunk/internal/pipeline"
	"github.com/dshills/gochunk/internal/registry"
)

func newRestoreCmd(opts *globalOptions) *cobra.Command {
	var (
		strategy  string
		rawParams map[string]string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "restore <run-id> [file]",
		Short: "Finish an interrupted checkpointed run",
		Long: `Restore loads the latest checkpoint of a failed or interrupted numeric run
and chunks the rest of the input. The input must be the complete original
sequence. The strategy defaults to the one stored with the run; parameters
given with --param are layered over the stored ones and must not change them.`,
		Example: `  gochunk chunk --checkpoint samples.txt
  gochunk restore 6f1c2a8e-0d5b-4e53-9f0e-2b7c1d4a9e10 samples.txt`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			params, err := parseParams(rawParams)
			if err != nil {
				return err
			}

			var path string
			if len(args) == 2 {
				path = args[1]
			}
			in, err := openInput(path, cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer in.Close()

			data, err := readFloats(in)
			if err != nil {
				return err
			}

			p, store, err := openPipeline(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := p.Resume(cmd.Context(), pipeline.ResumeRequest{
				RunID:      args[0],
				Spec:       registry.Spec{Name: strategy, Params: params},
				Data:       data,
				Checkpoint: checkpointOptions(cfg),
			})
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), res, asJSON)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&strategy, "strategy", "s", "", "strategy name (default: the run's strategy)")
	f.StringToStringVarP(&rawParams, "param", "p", nil, "strategy parameter as key=value (repeatable)")
	f.BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
