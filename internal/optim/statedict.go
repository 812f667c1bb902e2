package optim

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/optimizers/internal/tensor"
)

// State dictionary keys.
const (
	keyStep      = "step"
	keyParamStep = "step.%d"       // Successful updates of parameter i
	keyBuffer    = "%s.%d"         // Buffer name, parameter index
	keyMuProduct = "mu_product.%d" // NAdam running product of group g
)

// StateDict returns the optimizer state for serialization.
//
// Every tensor is a deep copy. State keys:
//   - "step" -> int64 scalar, the global timestep
//   - "step.{param_index}" -> int64 scalar, updates applied to that parameter
//   - "{buffer}.{param_index}" -> buffer tensor, e.g. "exp_avg.0"
//   - "mu_product.{group_index}" -> float64 scalar (NAdam only)
func (o *Optimizer) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	stateDict[keyStep] = int64Scalar(int64(o.t))

	for _, st := range o.order {
		stateDict[fmt.Sprintf(keyParamStep, st.index)] = int64Scalar(int64(st.steps))
		for name, buf := range st.buffers {
			stateDict[fmt.Sprintf(keyBuffer, name, st.index)] = buf.Clone()
		}
	}

	if o.kind == KindNAdam {
		for gi, grp := range o.groups {
			stateDict[fmt.Sprintf(keyMuProduct, gi)] = float64Scalar(grp.muProduct)
		}
	}
	return stateDict
}

// LoadStateDict restores optimizer state exported by StateDict.
//
// The dictionary must hold exactly the keys StateDict would produce for this
// optimizer. Every entry is checked before anything is copied, so on error
// the optimizer is unchanged. Missing or unexpected keys fail with
// ErrUnsupportedOperation; tensors of the wrong shape or dtype fail with
// ErrShapeMismatch; negative steps and NAdam products outside [0, 1] fail with
// ErrUnsupportedOperation.
//
// Restoring replaces the step counter with the saved one, which may be lower
// than the current value. This is the only way the counter moves backwards.
func (o *Optimizer) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	expected := o.StateDict()

	var unknown []string
	for key := range stateDict {
		if _, ok := expected[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return errors.Wrapf(ErrUnsupportedOperation, "unexpected state keys %v", unknown)
	}

	for key, want := range expected {
		got, ok := stateDict[key]
		if !ok || got == nil {
			return errors.Wrapf(ErrUnsupportedOperation, "missing state key %q", key)
		}
		if got.Layout() != tensor.Dense || got.DType() != want.DType() || !got.Shape().Equal(want.Shape()) {
			return errors.Wrapf(ErrShapeMismatch, "state %q: expected %s %v, got %s %s %v",
				key, want.DType(), want.Shape(), got.Layout(), got.DType(), got.Shape())
		}
		if want.DType() == tensor.Int64 && got.AsInt64()[0] < 0 {
			return errors.Wrapf(ErrUnsupportedOperation, "state %q: negative step %d", key, got.AsInt64()[0])
		}
		if strings.HasPrefix(key, "mu_product.") {
			if mu := got.AsFloat64()[0]; !(mu >= 0 && mu <= 1) {
				return errors.Wrapf(ErrUnsupportedOperation, "state %q: momentum product %v outside [0, 1]", key, mu)
			}
		}
	}

	o.t = int(stateDict[keyStep].AsInt64()[0])

	for _, st := range o.order {
		st.steps = int(stateDict[fmt.Sprintf(keyParamStep, st.index)].AsInt64()[0])
		for name, buf := range st.buffers {
			// Shapes and dtypes were checked above.
			_ = buf.CopyFrom(stateDict[fmt.Sprintf(keyBuffer, name, st.index)])
		}
	}

	if o.kind == KindNAdam {
		for gi, grp := range o.groups {
			grp.muProduct = stateDict[fmt.Sprintf(keyMuProduct, gi)].AsFloat64()[0]
		}
	}

	o.opts.logger.Debug("optimizer state loaded")
	return nil
}

func int64Scalar(v int64) *tensor.RawTensor {
	t, _ := tensor.NewRaw(tensor.Shape{}, tensor.Int64, tensor.CPU)
	t.AsInt64()[0] = v
	return t
}

func float64Scalar(v float64) *tensor.RawTensor {
	t, _ := tensor.NewRaw(tensor.Shape{}, tensor.Float64, tensor.CPU)
	t.AsFloat64()[0] = v
	return t
}
