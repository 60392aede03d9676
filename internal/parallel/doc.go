// Package parallel applies work to chunk sequences on a bounded worker pool.
//
// ProcessChunks, Map and Reduce are package functions taking a *Processor so
// that the element and result types can vary per call. Results always follow
// input order regardless of which worker finishes first.
//
// # Failure Semantics
//
// A task that returns an error or panics is reported as *types.WorkerError.
// Peers observe cancellation through their context, every dispatched task is
// joined, and the first failure is returned. No goroutine outlives the call.
//
// # Reduction
//
// Reduce folds each chunk locally starting from identity, then folds the
// partial results sequentially in chunk order:
//
//	p := parallel.New(parallel.WithWorkers(4))
//	sum, err := parallel.Reduce(ctx, p, [][]int{{1, 2}, {3, 4}, {5}},
//	    func(a, b int) int { return a + b }, 0) // 15
package parallel
