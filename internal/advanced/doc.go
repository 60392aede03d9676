// Package advanced implements signal-processing chunking strategies:
// dynamic time warping, mutual information and Haar wavelets.
//
// All three satisfy strategy.Strategy and compare windows that never reach
// back past the most recent boundary. DTW and MutualInformation compare the
// open chunk's trailing window with the window that follows the candidate
// position; Wavelet inspects the trailing window alone.
//
// # Basic Usage
//
//	dtw, err := advanced.NewDTW(4, 10.0, advanced.AbsDiff[float64])
//	if err != nil {
//	    return err
//	}
//	chunks := strategy.Apply[float64](dtw, samples)
//
// MutualInformation suits symbolic streams and splits where the two sides
// share little information. Wavelet requires a power-of-two window and places
// its boundary at the center of the strongest detail coefficient.
package advanced
