// Package metrics scores numeric chunk sequences.
//
// Cohesion rewards chunks whose elements sit close to their centroid,
// separation rewards distant centroids, and the silhouette compares each
// element's distance to its own chunk against the nearest other chunk. The
// overall quality score weights them 0.3, 0.3 and 0.4 and is clamped to
// [0, 1]. Per-chunk cohesion is cached by content hash, so rescoring a run
// that shares chunks with an earlier one is cheap.
package metrics
