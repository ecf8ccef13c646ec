package escalate

import (
	"math"
	"sort"
)

// WilsonInterval returns the Wilson score confidence interval for successes
// out of n trials. z defaults to 1.96 (95%) when non-positive.
func WilsonInterval(successes, n int, z float64) (low, high float64) {
	if n <= 0 {
		return 0, 0
	}
	if z <= 0 {
		z = 1.96
	}
	phat := float64(successes) / float64(n)
	nf := float64(n)
	denom := 1.0 + z*z/nf
	center := (phat + z*z/(2*nf)) / denom
	radius := z * math.Sqrt((phat*(1-phat)+z*z/(4*nf))/nf) / denom
	return math.Max(0, center-radius), math.Min(1, center+radius)
}

// Percentile returns the p-th percentile (0..100) of values using linear
// interpolation between closest ranks. Returns 0 on an empty slice.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	k := float64(len(sorted)-1) * p / 100
	f := math.Floor(k)
	c := math.Ceil(k)
	if f == c {
		return sorted[int(k)]
	}
	return sorted[int(f)]*(c-k) + sorted[int(c)]*(k-f)
}

// LongestStreak returns the longest run of consecutive entries equal to want.
func LongestStreak(flags []bool, want bool) int {
	best, cur := 0, 0
	for _, f := range flags {
		if f == want {
			cur++
			if cur > best {
				best = cur
			}
		} else {
			cur = 0
		}
	}
	return best
}
