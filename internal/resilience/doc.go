// Package resilience runs a chunking strategy over a stream while writing
// periodic checkpoints, so an interrupted run can pick up where it stopped.
//
// A ResilientChunker buffers input, and every CheckpointFreq elements it
// seals the chunks that end before the buffer's last boundary, keeps the open
// tail, and snapshots the run. When the buffered elements exceed MaxMemUsage
// bytes the same flush happens early; a buffer without any internal boundary
// is sealed as one chunk.
//
// # Checkpoint Files
//
// Checkpoints live in one directory as ckpt-<seq>-<unixnano>.gck. Each file
// is the magic "GCK1", a SHA-256 of the payload, and the zstd-compressed JSON
// body. Writers hold an exclusive flock on <dir>/.lock and rename a fully
// synced temp file into place. Only the newest HistorySize files are kept.
//
// # Failure Handling
//
// A failed checkpoint write is logged and counted in Result.FailedCheckpoints;
// the run continues and the next scheduled checkpoint tries again. Restoring
// walks the retained checkpoints newest first and skips any that fail the
// checksum, returning types.ErrRecovery when none is usable.
//
// # Basic Usage
//
//	v, err := strategy.NewVariance[float64](16, 2.5)
//	if err != nil {
//	    return err
//	}
//	rc, err := resilience.New(resilience.Config[float64]{
//	    Dir:            "/var/lib/gochunk/ckpt",
//	    MaxMemUsage:    64 << 20,
//	    CheckpointFreq: 10000,
//	    HistorySize:    3,
//	    Strategy:       v,
//	    Logger:         logger,
//	})
//	if err != nil {
//	    return err
//	}
//	defer rc.Close()
//
//	res, err := rc.Process(ctx, slices.Values(samples))
//	if err != nil {
//	    cp, rerr := rc.Recover(ctx)
//	    if rerr != nil {
//	        return rerr
//	    }
//	    res, err = rc.Resume(ctx, cp, slices.Values(samples[cp.Processed:]))
//	}
package resilience
