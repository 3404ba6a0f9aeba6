// Package stats computes the summary statistics attached to a prediction run.
package stats

import (
	"math"
	"sort"

	"github.com/corn-moisture/platform/types"
)

// Summarize returns the summary of values rounded to two decimals.
// Sample (n-1) estimators are used for SD and variance; skewness and
// kurtosis use biased population moments, kurtosis in excess form.
// It reports false when values is empty.
func Summarize(values []float64) (types.Statistics, bool) {
	n := len(values)
	if n == 0 {
		return types.Statistics{}, false
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	var m2, m3, m4 float64
	for _, v := range sorted {
		d := v - mean
		d2 := d * d
		m2 += d2
		m3 += d2 * d
		m4 += d2 * d2
	}

	var variance float64
	if n > 1 {
		variance = m2 / float64(n-1)
	}
	sd := math.Sqrt(variance)

	m2 /= float64(n)
	m3 /= float64(n)
	m4 /= float64(n)

	var skewness, kurtosis float64
	if m2 > 0 {
		skewness = m3 / math.Pow(m2, 1.5)
		kurtosis = m4/(m2*m2) - 3
	}

	out := types.Statistics{
		N:        n,
		Min:      round2(sorted[0]),
		Max:      round2(sorted[n-1]),
		Range:    round2(sorted[n-1] - sorted[0]),
		Average:  round2(mean),
		SD:       round2(sd),
		Median:   round2(median(sorted)),
		Variance: round2(variance),
		Skewness: round2(skewness),
		Kurtosis: round2(kurtosis),
	}
	if mean != 0 {
		if cv := sd / mean * 100; cv != 0 {
			cv = round2(cv)
			out.CV = &cv
		}
	}
	return out, true
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
