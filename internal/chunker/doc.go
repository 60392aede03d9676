// Package chunker accumulates elements and divides them into chunks.
//
// A Chunker owns a growable buffer of elements of any type and offers the
// simple, strategy-free ways of cutting it: fixed size, caller predicate,
// overlapping and sliding windows, and equal division. Content-aware boundary
// decisions live in the strategy, advanced and neural packages.
//
// # Basic Usage
//
//	c, err := chunker.New[int](4)
//	if err != nil {
//	    log.Fatal(err) // chunk size must be > 0
//	}
//
//	c.AddAll(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
//	fmt.Println(c.ChunkCount()) // 3
//
//	for _, chunk := range c.Chunks() {
//	    fmt.Println(chunk.Elements) // [1 2 3 4] [5 6 7 8] [9 10]
//	}
//
// # Lazy Sequences
//
// ChunkBySize returns an iter.Seq that can be ranged over repeatedly:
//
//	seq, _ := c.ChunkBySize(3)
//	for chunk := range seq {
//	    process(chunk)
//	}
//
// # Threshold Chunking
//
// ChunkByThreshold hands the predicate the current element and the open chunk
// so far, which is never empty:
//
//	chunks, _ := c.ChunkByThreshold(func(cur int, window []int) bool {
//	    return cur < window[len(window)-1] // new chunk on every descent
//	})
//
// Every chunk returned by this package owns its elements; mutating the
// chunker afterwards does not change chunks already produced.
package chunker
