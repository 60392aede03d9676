// Package neural provides a small feed-forward network and the chunking
// strategy built on it.
//
// Weights are initialized once, from a generator owned by the network and
// seeded by the caller. Two strategies built from the same Config produce the
// same boundaries.
//
//	n, err := neural.New[float64](neural.Config{
//	    Window:    8,
//	    Threshold: 0.7,
//	    Seed:      42,
//	})
package neural
