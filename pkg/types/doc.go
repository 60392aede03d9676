// Package types provides shared type definitions for the gochunk engine.
//
// This package defines the domain types used across the chunker, the strategy
// family, the parallel processor and the resilient chunker.
//
// # Core Types
//
// Chunk is a sealed, contiguous run of input elements:
//
//	chunk := types.NewChunk(0, 0, []float64{1, 1, 1})
//	fmt.Println(chunk.Len(), chunk.End()) // 3 3
//
// NewChunk copies its input, so chunks never alias the caller's slice.
//
// Number is the constraint numeric strategies (variance, quantile, wavelet,
// neural) accept: every integer and float kind.
//
// # Errors
//
// All components report failures through one taxonomy:
//
//	ErrInvalidArgument      // zero/negative size, nil predicate
//	ErrInvalidConfiguration // inverted quantile bounds, threshold <= 0
//	ErrResilience           // checkpoint write/read failure
//	ErrRecovery             // no valid checkpoint to restore
//	ErrWorker               // failure inside a parallel task
//
// ParamError and WorkerError carry the operation, parameter and chunk index
// needed to reproduce a failure while still matching the sentinels:
//
//	if errors.Is(err, types.ErrInvalidConfiguration) {
//	    var pe *types.ParamError
//	    errors.As(err, &pe)
//	    log.Printf("bad %s: %v", pe.Param, pe.Value)
//	}
package types
