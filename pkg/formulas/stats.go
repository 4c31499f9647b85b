package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values.
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// PopulationStdDev calculates the population standard deviation (divisor N,
// not N-1). Eligibility scoring treats the observed driver pool as the full
// population, not a sample, so gonum's default Bessel-corrected StdDev would
// overstate the spread for small fleets.
func PopulationStdDev(data []float64) float64 {
	return math.Sqrt(PopulationVariance(data))
}

// PopulationVariance is the divisor-N variance underlying PopulationStdDev.
func PopulationVariance(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	mean := Mean(data)
	var sum float64
	for _, v := range data {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(data))
}

// ZScore returns how many population standard deviations value sits above
// mean. A non-positive stddev (degenerate population) always yields 0.
func ZScore(value, mean, stdDev float64) float64 {
	if stdDev <= 0 {
		return 0
	}
	return (value - mean) / stdDev
}

// Gini computes the Gini coefficient of a set of non-negative values using
// the rank-sum form: G = (2*sum(i*s_i))/(n*sum(s_i)) - (n+1)/n, over values
// sorted ascending with 1-indexed rank i.
func Gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	var weighted, total float64
	for i, v := range sorted {
		rank := float64(i + 1)
		weighted += rank * v
		total += v
	}
	if total == 0 {
		return 0
	}
	nf := float64(n)
	return (2*weighted)/(nf*total) - (nf+1)/nf
}
