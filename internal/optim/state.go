package optim

import (
	"math"

	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/optimizers/internal/nn"
	"github.com/born-ml/optimizers/internal/tensor"
)

// paramState holds the auxiliary buffers of one tracked parameter.
//
// Buffers are allocated at construction with the parameter's shape, dtype and
// device and are zero-filled.
type paramState struct {
	param   *nn.Parameter
	index   int // Position across all groups
	group   int
	steps   int // Successful updates applied to this parameter
	buffers map[string]*tensor.RawTensor
}

func newParamState(param *nn.Parameter, index, group int, names []string) *paramState {
	st := &paramState{
		param:   param,
		index:   index,
		group:   group,
		buffers: make(map[string]*tensor.RawTensor, len(names)),
	}
	for _, name := range names {
		st.buffers[name] = tensor.ZerosLike(param.Tensor())
	}
	return st
}

// Buffer returns the named state buffer, or nil if the algorithm keeps none by that name.
func (st *paramState) Buffer(name string) *tensor.RawTensor {
	return st.buffers[name]
}

// view returns the elements of r as []T, where T matches r's dtype.
func view[T constraints.Float](r *tensor.RawTensor) []T {
	if r == nil {
		return nil
	}
	var zero T
	switch any(zero).(type) {
	case float32:
		return any(r.AsFloat32()).([]T)
	case float64:
		return any(r.AsFloat64()).([]T)
	}
	panic("unsupported element type")
}

func sqrt[T constraints.Float](x T) T {
	return T(math.Sqrt(float64(x)))
}

func abs[T constraints.Float](x T) T {
	if x < 0 {
		return -x
	}
	return x
}

// scale multiplies xs by a in place.
func scale[T constraints.Float](a T, xs []T) {
	if xs64, ok := any(xs).([]float64); ok {
		floats.Scale(float64(a), xs64)
		return
	}
	for i := range xs {
		xs[i] *= a
	}
}

// allFinite reports whether every element of r is neither NaN nor Inf.
func allFinite(r *tensor.RawTensor) bool {
	switch r.DType() {
	case tensor.Float32:
		for _, v := range r.AsFloat32() {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return false
			}
		}
	case tensor.Float64:
		for _, v := range r.AsFloat64() {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
