package optim_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/born-ml/optimizers/internal/nn"
	"github.com/born-ml/optimizers/internal/optim"
	"github.com/born-ml/optimizers/internal/tensor"
)

const tol = 1e-5

// newParam creates a float64 vector parameter.
func newParam(t testing.TB, name string, values ...float64) *nn.Parameter {
	t.Helper()
	raw, err := tensor.FromFloat64(values, tensor.Shape{len(values)})
	require.NoError(t, err)
	return nn.NewParameter(name, raw)
}

func newGrad(t testing.TB, values ...float64) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.FromFloat64(values, tensor.Shape{len(values)})
	require.NoError(t, err)
	return raw
}

// step runs one Step with g as the gradient of param.
func step(t testing.TB, opt *optim.Optimizer, param *nn.Parameter, g ...float64) {
	t.Helper()
	grads := map[*tensor.RawTensor]*tensor.RawTensor{param.Tensor(): newGrad(t, g...)}
	require.NoError(t, opt.Step(grads))
}

func values(param *nn.Parameter) []float64 {
	return param.Tensor().AsFloat64()
}

func assertClose(t testing.TB, want, got float64, msgAndArgs ...any) {
	t.Helper()
	if !scalar.EqualWithinAbsOrRel(want, got, 1e-12, tol) {
		assert.Fail(t, fmt.Sprintf("want %v, got %v", want, got), msgAndArgs...)
	}
}

func assertAllClose(t testing.TB, want, got []float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assertClose(t, want[i], got[i], "element %d", i)
	}
}

func TestSGD_SimpleUpdate(t *testing.T) {
	x := newParam(t, "x", 2.0)
	opt, err := optim.NewSGD([]*nn.Parameter{x}, optim.SGDConfig{LR: 0.1})
	require.NoError(t, err)

	step(t, opt, x, 1.0)

	// x_new = x_old - lr * grad = 2.0 - 0.1 * 1.0 = 1.9
	assertClose(t, 1.9, values(x)[0])
}

func TestSGD_WithMomentum(t *testing.T) {
	x := newParam(t, "x", 1.0)
	opt, err := optim.NewSGD([]*nn.Parameter{x}, optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	require.NoError(t, err)

	// v_1 = 1.0, x_1 = 1.0 - 0.1 * 1.0 = 0.9
	step(t, opt, x, 1.0)
	assertClose(t, 0.9, values(x)[0])

	// v_2 = 0.9 * 1.0 + 1.0 = 1.9, x_2 = 0.9 - 0.1 * 1.9 = 0.71
	step(t, opt, x, 1.0)
	assertClose(t, 0.71, values(x)[0])
}

func TestSGD_NesterovAndDampening(t *testing.T) {
	x := newParam(t, "x", 0.0)
	opt, err := optim.NewSGD([]*nn.Parameter{x}, optim.SGDConfig{LR: 0.1, Momentum: 0.5, Nesterov: true})
	require.NoError(t, err)

	// v_1 = 2, update = 2 + 0.5*2 = 3
	step(t, opt, x, 2.0)
	assertClose(t, -0.3, values(x)[0])
	// v_2 = 0.5*2 + 2 = 3, update = 2 + 0.5*3 = 3.5
	step(t, opt, x, 2.0)
	assertClose(t, -0.65, values(x)[0])

	y := newParam(t, "y", 0.0)
	opt, err = optim.NewSGD([]*nn.Parameter{y}, optim.SGDConfig{LR: 1, Momentum: 0.5, Dampening: 0.5})
	require.NoError(t, err)

	// The first buffer is the raw gradient, dampening applies from step 2 on.
	step(t, opt, y, 1.0)
	assertClose(t, -1.0, values(y)[0])
	// v_2 = 0.5*1 + 0.5*1 = 1
	step(t, opt, y, 1.0)
	assertClose(t, -2.0, values(y)[0])
}

func TestZeroGrad(t *testing.T) {
	x := newParam(t, "x", 1.0)
	x.SetGrad(newGrad(t, 1.0))
	opt, err := optim.NewSGD([]*nn.Parameter{x}, optim.SGDConfig{LR: 0.1})
	require.NoError(t, err)

	require.NotNil(t, x.Grad())
	opt.ZeroGrad()
	assert.Nil(t, x.Grad())
}

func TestGradientFromParameter(t *testing.T) {
	x := newParam(t, "x", 1.0)
	opt, err := optim.NewSGD([]*nn.Parameter{x}, optim.SGDConfig{LR: 0.5})
	require.NoError(t, err)

	x.SetGrad(newGrad(t, 1.0))
	require.NoError(t, opt.Step(nil))
	assertClose(t, 0.5, values(x)[0])
}

func TestGetSetLR(t *testing.T) {
	x := newParam(t, "x", 1.0)
	opt, err := optim.NewAdam([]*nn.Parameter{x}, optim.DefaultAdamConfig())
	require.NoError(t, err)

	assert.Equal(t, 0.001, opt.GetLR())
	opt.SetLR(0.01)
	assert.Equal(t, 0.01, opt.GetLR())

	cfg, ok := opt.GroupConfig(0).(optim.AdamConfig)
	require.True(t, ok)
	assert.Equal(t, 0.01, cfg.LR)
}

func TestAdam_SimpleUpdate(t *testing.T) {
	x := newParam(t, "x", 1.0)
	opt, err := optim.NewAdam([]*nn.Parameter{x}, optim.AdamConfig{
		LR: 0.1, Betas: [2]float64{0.9, 0.999}, Eps: 1e-8,
	})
	require.NoError(t, err)

	step(t, opt, x, 1.0)

	// m_hat = v_hat = 1 after bias correction, so x_1 = 1 - 0.1 * 1/(1+1e-8)
	assertClose(t, 1-0.1/(1+1e-8), values(x)[0])
	assert.Equal(t, 1, opt.GetTimestep())
}

func TestAdam_BiasCorrection(t *testing.T) {
	x := newParam(t, "x", 0.0)
	cfg := optim.AdamConfig{LR: 0.01, Betas: [2]float64{0.9, 0.999}, Eps: 1e-8}
	opt, err := optim.NewAdam([]*nn.Parameter{x}, cfg)
	require.NoError(t, err)

	grads := []float64{1.0, -0.5, 2.0, 0.25}
	var m, v, p float64
	for i, g := range grads {
		step(t, opt, x, g)

		tt := float64(i + 1)
		m = 0.9*m + 0.1*g
		v = 0.999*v + 0.001*g*g
		mHat := m / (1 - math.Pow(0.9, tt))
		vHat := v / (1 - math.Pow(0.999, tt))
		p -= 0.01 * mHat / (math.Sqrt(vHat) + 1e-8)
		assertClose(t, p, values(x)[0], "step %d", i+1)
	}
}

func TestOptimizer_QuadraticConvergence(t *testing.T) {
	// Minimize f(x) = (x - 3)², gradient 2(x - 3).
	configs := map[string]optim.Config{
		"sgd":      optim.SGDConfig{LR: 0.1, Momentum: 0.9},
		"adagrad":  optim.AdaGradConfig{LR: 0.5, Eps: 1e-10},
		"adadelta": optim.AdaDeltaConfig{LR: 10, Rho: 0.9, Eps: 1e-6},
		"adamax":   optim.AdaMaxConfig{LR: 0.1, Betas: [2]float64{0.9, 0.999}, Eps: 1e-8},
		"adam":     optim.AdamConfig{LR: 0.1, Betas: [2]float64{0.9, 0.999}, Eps: 1e-8},
		"nadam":    optim.NAdamConfig{LR: 0.1, Betas: [2]float64{0.9, 0.999}, Eps: 1e-8, MomentumDecay: 0.004},
		"radam":    optim.RAdamConfig{LR: 0.1, Betas: [2]float64{0.9, 0.999}, Eps: 1e-8},
		"rmsprop":  optim.RMSpropConfig{LR: 0.01, Alpha: 0.99, Eps: 1e-8},
	}
	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			x := newParam(t, "x", 0.0)
			opt, err := optim.New([]*nn.Parameter{x}, cfg)
			require.NoError(t, err)

			start := math.Abs(values(x)[0] - 3)
			for range 500 {
				step(t, opt, x, 2*(values(x)[0]-3))
			}
			final := math.Abs(values(x)[0] - 3)
			assert.Less(t, final, start/2, "x = %v", values(x)[0])
		})
	}
}

func TestOptimizer_MultipleParameters(t *testing.T) {
	w := newParam(t, "weight", 1.0, 2.0, 3.0)
	b := newParam(t, "bias", 0.5)
	opt, err := optim.NewSGD([]*nn.Parameter{w, b}, optim.SGDConfig{LR: 0.1})
	require.NoError(t, err)

	grads := map[*tensor.RawTensor]*tensor.RawTensor{
		w.Tensor(): newGrad(t, 1.0, 1.0, 1.0),
		b.Tensor(): newGrad(t, 0.5),
	}
	require.NoError(t, opt.Step(grads))

	assertAllClose(t, []float64{0.9, 1.9, 2.9}, values(w))
	assertAllClose(t, []float64{0.45}, values(b))
	assert.Equal(t, 2, opt.NumParams())
	assert.Equal(t, []*nn.Parameter{w, b}, opt.Parameters())
}

func TestOptimizer_Float32(t *testing.T) {
	raw, err := tensor.FromFloat32([]float32{1, 2}, tensor.Shape{2})
	require.NoError(t, err)
	x := nn.NewParameter("x", raw)
	opt, err := optim.NewAdaGrad([]*nn.Parameter{x}, optim.AdaGradConfig{LR: 0.1, Eps: 1e-10})
	require.NoError(t, err)

	g, err := tensor.FromFloat32([]float32{2, -4}, tensor.Shape{2})
	require.NoError(t, err)
	require.NoError(t, opt.Step(map[*tensor.RawTensor]*tensor.RawTensor{raw: g}))

	assert.InDelta(t, 0.9, raw.AsFloat32()[0], 1e-6)
	assert.InDelta(t, 2.1, raw.AsFloat32()[1], 1e-6)
}
