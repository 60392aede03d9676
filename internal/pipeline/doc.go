// Package pipeline coordinates chunking runs from strategy construction to
// storage.
//
// A numeric run goes through three stages:
//
//  1. Chunk: the strategy named by a registry.Spec splits the input, either
//     in memory or through a resilience.ResilientChunker when checkpoint
//     options are given
//  2. Score: per-chunk cohesion is computed on a parallel.Processor pool and
//     the whole partition is analyzed by a metrics.QualityAnalyzer
//  3. Store: the run and its chunks are written in one transaction
//
// Text and byte runs skip scoring.
//
// Every run is recorded in storage before chunking starts, so a failure
// leaves a failed run carrying the error message.
//
// # Basic Usage
//
//	p, err := pipeline.New(store, pipeline.WithWorkers(4), pipeline.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//
//	res, err := p.Run(ctx, pipeline.Request{
//	    Spec: registry.Spec{Name: "variance", Params: map[string]float64{"window": 5}},
//	    Data: samples,
//	})
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("%d chunks, quality %.3f\n", res.Run.ChunkCount, res.Report.Quality)
//
// # Checkpointed Runs
//
// With CheckpointOptions set, sealed chunks are stored as soon as they are
// produced and checkpoints land in <Dir>/<run id>. A run that fails can be
// finished later from its newest valid checkpoint:
//
//	res, err := p.Resume(ctx, pipeline.ResumeRequest{
//	    RunID:      runID,
//	    Spec:       spec,
//	    Data:       samples,
//	    Checkpoint: opts,
//	})
//
// Checkpoints are removed once a run completes.
package pipeline
