package escalate

import (
	"math"
	"testing"
)

func TestWilsonInterval(t *testing.T) {
	// WHAT: Known values for the 95% Wilson score interval.
	low, high := WilsonInterval(8, 10, 0)
	if math.Abs(low-0.4902) > 0.001 || math.Abs(high-0.9433) > 0.001 {
		t.Fatalf("8/10: got [%.4f, %.4f]", low, high)
	}

	low, high = WilsonInterval(0, 0, 0)
	if low != 0 || high != 0 {
		t.Fatalf("empty: got [%v, %v]", low, high)
	}

	low, high = WilsonInterval(10, 10, 0)
	if low <= 0.69 || high != 1 {
		t.Fatalf("10/10: got [%v, %v]", low, high)
	}
}

func TestPercentile(t *testing.T) {
	// WHAT: Linear interpolation between closest ranks.
	vals := []float64{10, 20, 30, 40}
	cases := []struct {
		p    float64
		want float64
	}{
		{0, 10},
		{50, 25},
		{95, 38.5},
		{100, 40},
	}
	for _, c := range cases {
		if got := Percentile(vals, c.p); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("p%v: got %v, want %v", c.p, got, c.want)
		}
	}
	if got := Percentile(nil, 50); got != 0 {
		t.Errorf("empty: got %v", got)
	}
}

func TestLongestStreak(t *testing.T) {
	// WHAT: Longest consecutive run of the wanted flag.
	flags := []bool{true, false, false, false, true, false, false, true}
	if got := LongestStreak(flags, false); got != 3 {
		t.Fatalf("false streak: got %d, want 3", got)
	}
	if got := LongestStreak(flags, true); got != 1 {
		t.Fatalf("true streak: got %d, want 1", got)
	}
	if got := LongestStreak(nil, false); got != 0 {
		t.Fatalf("empty: got %d", got)
	}
}
