package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.InDelta(t, 2.0, Mean([]float64{1, 2, 3}), 1e-9)
}

func TestPopulationStdDev(t *testing.T) {
	// population variance of {2,4,4,4,5,5,7,9} is 4, stddev is 2
	data := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 2.0, PopulationStdDev(data), 1e-9)
}

func TestZScore(t *testing.T) {
	assert.InDelta(t, -1.0, ZScore(8, 10, 2), 1e-9)
	assert.InDelta(t, 1.0, ZScore(12, 10, 2), 1e-9)
	assert.Equal(t, 0.0, ZScore(8, 10, 0))
}

func TestGini_PerfectEquality(t *testing.T) {
	g := Gini([]float64{10, 10, 10, 10})
	assert.InDelta(t, 0.0, g, 1e-9)
}

func TestGini_MaximalInequality(t *testing.T) {
	g := Gini([]float64{0, 0, 0, 100})
	assert.Greater(t, g, 0.5)
	assert.False(t, math.IsNaN(g))
}
