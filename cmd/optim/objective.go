package main

import (
	"sort"

	"github.com/pkg/errors"
)

// Objective is a differentiable function of a parameter vector.
type Objective interface {
	// Start returns the default starting point.
	Start() []float64
	// Eval returns f(x) and writes the gradient of f at x into grad.
	Eval(x, grad []float64) float64
	// Minimum returns the location of the global minimum for a point of dimension n.
	Minimum(n int) []float64
}

var objectives = map[string]Objective{
	"quadratic":  quadratic{center: 3},
	"rosenbrock": rosenbrock{},
}

func objectiveNames() []string {
	names := make([]string, 0, len(objectives))
	for name := range objectives {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupObjective(name string) (Objective, error) {
	obj, ok := objectives[name]
	if !ok {
		return nil, errors.Errorf("unknown objective %q (available: %v)", name, objectiveNames())
	}
	return obj, nil
}

// quadratic is f(x) = sum (x_i - center)².
type quadratic struct {
	center float64
}

func (q quadratic) Start() []float64 { return []float64{0, 0} }

func (q quadratic) Eval(x, grad []float64) float64 {
	var f float64
	for i, xi := range x {
		d := xi - q.center
		f += d * d
		grad[i] = 2 * d
	}
	return f
}

func (q quadratic) Minimum(n int) []float64 {
	m := make([]float64, n)
	for i := range m {
		m[i] = q.center
	}
	return m
}

// rosenbrock is the n-dimensional Rosenbrock function
// f(x) = sum 100 (x_{i+1} - x_i²)² + (1 - x_i)², minimized at (1, ..., 1).
type rosenbrock struct{}

func (rosenbrock) Start() []float64 { return []float64{-1.5, 2} }

func (rosenbrock) Eval(x, grad []float64) float64 {
	for i := range grad {
		grad[i] = 0
	}
	var f float64
	for i := 0; i+1 < len(x); i++ {
		a := x[i+1] - x[i]*x[i]
		b := 1 - x[i]
		f += 100*a*a + b*b
		grad[i] += -400*x[i]*a - 2*b
		grad[i+1] += 200 * a
	}
	return f
}

func (rosenbrock) Minimum(n int) []float64 {
	m := make([]float64, n)
	for i := range m {
		m[i] = 1
	}
	return m
}
