package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

func TestObjectives_GradientMatchesFiniteDifference(t *testing.T) {
	points := [][]float64{{-1.5, 2}, {0.3, -0.7, 1.1}, {1, 1}}
	for _, name := range objectiveNames() {
		obj, err := lookupObjective(name)
		require.NoError(t, err)
		for _, x := range points {
			grad := make([]float64, len(x))
			obj.Eval(x, grad)

			const h = 1e-6
			scratch := make([]float64, len(x))
			for i := range x {
				plus := append([]float64(nil), x...)
				minus := append([]float64(nil), x...)
				plus[i] += h
				minus[i] -= h
				numeric := (obj.Eval(plus, scratch) - obj.Eval(minus, scratch)) / (2 * h)
				assert.True(t, scalar.EqualWithinAbsOrRel(numeric, grad[i], 1e-4, 1e-4),
					"%s at %v: d/dx%d numeric %v, analytic %v", name, x, i, numeric, grad[i])
			}
		}
	}
}

func TestObjectives_Minimum(t *testing.T) {
	for _, name := range objectiveNames() {
		obj, err := lookupObjective(name)
		require.NoError(t, err)
		m := obj.Minimum(3)
		grad := make([]float64, 3)
		assert.InDelta(t, 0, obj.Eval(m, grad), 1e-12, name)
		assert.InDelta(t, 0, floats.Norm(grad, 2), 1e-12, name)
	}

	_, err := lookupObjective("himmelblau")
	assert.Error(t, err)
}
