package templatetags

import "math"

// Percentage returns num/den*100, never below zero. A zero denominator
// yields 100. When maximum is given the result is capped at maximum[0];
// otherwise values above 100 are returned as-is.
func Percentage(num, den float64, maximum ...float64) float64 {
	if den == 0 {
		return 100
	}
	perc := math.Max(0, num/den*100)
	if len(maximum) > 0 {
		perc = math.Min(perc, maximum[0])
	}
	return perc
}
