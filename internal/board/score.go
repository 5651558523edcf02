package board

import "math"

// Score returns the points awarded for eliminating a region of n pieces.
// Regions below MinRegion score nothing; each extra piece multiplies by 1.5.
// Scores too large for an int saturate at math.MaxInt.
func Score(n int) int {
	if n < MinRegion {
		return 0
	}
	f := float64(n) * 100 * math.Pow(1.5, float64(n-MinRegion))
	if f >= math.MaxInt {
		return math.MaxInt
	}
	return int(f)
}
