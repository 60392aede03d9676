// Package strategy provides the boundary-decision strategies of the chunking
// engine.
//
// A Strategy looks at an ordered sequence and returns the indexes where it
// should be cut. Strategies never mutate their input and never produce an
// empty chunk. Apply and Materialize turn boundaries into sealed
// types.Chunk values that own their elements.
//
// # Trailing Windows
//
// Windowed strategies evaluate each candidate element i against a window that
// is confined to the currently open chunk: the last window-1 elements of the
// open chunk followed by the candidate. Immediately after a boundary the
// window is short, so a new chunk is never split on the evidence of the
// chunk that preceded it. Quantile differs slightly: its history excludes the
// candidate and it waits until the open chunk holds a full window.
//
// # Basic Usage
//
//	v, err := strategy.NewVariance[float64](3, 1.0)
//	if err != nil {
//	    return err // ErrInvalidConfiguration for non-positive window or threshold
//	}
//
//	data := []float64{1, 1, 1, 5, 5, 5, 1, 1, 1}
//	fmt.Println(v.Split(data)) // [3 6]
//
//	for _, c := range strategy.Apply[float64](v, data) {
//	    fmt.Println(c.Offset, c.Elements)
//	}
//
// # Available Strategies
//
//   - Entropy / TextEntropy: Shannon entropy of symbols or characters
//   - Variance: population variance
//   - Quantile: candidate outside the [qlow, qhigh] band of recent history
//   - CyclePattern / WindowPattern: repeating blocks or a caller predicate
//   - MultiCriteria: AnyOf, AllOf or WeightedVote over sub-strategies
//   - Adaptive / DynamicThreshold: thresholds that move after each chunk
//   - RollingHash: content-defined chunking of bytes with buzhash64
//
// # Sub-chunking
//
// Recursive, Hierarchical and Conditional implement SubStrategy and refine
// already-formed chunks. Their output groups leaves by input chunk; use
// Leaves to flatten it.
//
// # Combining Votes
//
// Tie handling belongs to the Combiner. WeightedVote splits when the weighted
// yes-sum is greater than or equal to the quorum:
//
//	vote, _ := strategy.WeightedVote([]float64{0.5, 0.5}, 0.5)
//	multi, _ := strategy.NewMultiCriteria[float64](vote, variance, quantile)
package strategy
