package optim_test

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/optimizers/internal/nn"
	"github.com/born-ml/optimizers/internal/optim"
	"github.com/born-ml/optimizers/internal/tensor"
)

// rosenbrock returns a closure evaluating f(x, y) = (1-x)^2 + 100(y-x^2)^2
// at the two-element parameter p.
func rosenbrock(t testing.TB, p *nn.Parameter) optim.Closure {
	return func() (float64, error) {
		v := values(p)
		x, y := v[0], v[1]
		a, b := 1-x, y-x*x
		p.SetGrad(newGrad(t, -2*a-400*x*b, 200*b))
		return a*a + 100*b*b, nil
	}
}

func TestLBFGS_Rosenbrock(t *testing.T) {
	tests := map[string]optim.LineSearch{
		"NoLineSearch": optim.LineSearchNone,
		"StrongWolfe":  optim.LineSearchStrongWolfe,
	}
	for name, ls := range tests {
		t.Run(name, func(t *testing.T) {
			p := newParam(t, "xy", 10, 10)
			cfg := optim.DefaultLBFGSConfig()
			cfg.LineSearch = ls
			opt, err := optim.NewLBFGS([]*nn.Parameter{p}, cfg)
			require.NoError(t, err)

			closure := rosenbrock(t, p)
			for range 500 {
				res, err := opt.Step(closure)
				require.NoError(t, err)
				if res.Converged {
					break
				}
			}
			assert.InDelta(t, 1.0, values(p)[0], 1e-4)
			assert.InDelta(t, 1.0, values(p)[1], 1e-4)
			assert.LessOrEqual(t, opt.HistoryLen(), cfg.HistorySize)
			assert.GreaterOrEqual(t, opt.Evaluations(), opt.Iterations())
		})
	}
}

func TestLBFGS_QuadraticAcrossParameters(t *testing.T) {
	small, err := tensor.FromFloat32([]float32{-1, 0.5}, tensor.Shape{2})
	require.NoError(t, err)
	a := nn.NewParameter("a", small)
	b := newParam(t, "b", 7, -2, 4)

	opt, err := optim.NewLBFGS([]*nn.Parameter{a, b}, optim.DefaultLBFGSConfig())
	require.NoError(t, err)

	// f = sum((v - 3)^2) over both parameters.
	closure := func() (float64, error) {
		loss := 0.0
		ga := make([]float32, 2)
		for i, v := range a.Tensor().AsFloat32() {
			d := float64(v) - 3
			loss += d * d
			ga[i] = float32(2 * d)
		}
		gb := make([]float64, 3)
		for i, v := range values(b) {
			d := v - 3
			loss += d * d
			gb[i] = 2 * d
		}
		rawA, err := tensor.FromFloat32(ga, tensor.Shape{2})
		if err != nil {
			return 0, err
		}
		a.SetGrad(rawA)
		b.SetGrad(newGrad(t, gb...))
		return loss, nil
	}

	for range 10 {
		res, err := opt.Step(closure)
		require.NoError(t, err)
		if res.Converged {
			break
		}
	}
	for _, v := range a.Tensor().AsFloat32() {
		assert.InDelta(t, 3.0, float64(v), 1e-4)
	}
	for _, v := range values(b) {
		assert.InDelta(t, 3.0, v, 1e-6)
	}
}

func TestLBFGS_HistoryIsBounded(t *testing.T) {
	p := newParam(t, "xy", -1.5, 2)
	cfg := optim.DefaultLBFGSConfig()
	cfg.HistorySize = 2
	cfg.MaxIter = 5
	opt, err := optim.NewLBFGS([]*nn.Parameter{p}, cfg)
	require.NoError(t, err)

	closure := rosenbrock(t, p)
	for range 20 {
		res, err := opt.Step(closure)
		require.NoError(t, err)
		assert.LessOrEqual(t, res.Iterations, cfg.MaxIter)
		assert.LessOrEqual(t, opt.HistoryLen(), 2)
	}
	assert.Equal(t, 2, opt.HistoryLen())
}

func TestLBFGS_GetSetLR(t *testing.T) {
	cfg := optim.DefaultLBFGSConfig()
	cfg.LR = 0.004
	opt, err := optim.NewLBFGS([]*nn.Parameter{newParam(t, "x", 1.0)}, cfg)
	require.NoError(t, err)

	assert.Equal(t, 0.004, opt.GetLR())
	opt.SetLR(0.002)
	assert.Equal(t, 0.002, opt.GetLR())
	assert.Equal(t, 0.002, opt.Config().LR)
}

func TestLBFGS_MissingGradientIsZero(t *testing.T) {
	p := newParam(t, "x", 1.0, 2.0)
	opt, err := optim.NewLBFGS([]*nn.Parameter{p}, optim.DefaultLBFGSConfig())
	require.NoError(t, err)

	res, err := opt.Step(func() (float64, error) { return 5, nil })
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Equal(t, 0, res.Iterations)
	assert.Equal(t, 1, res.Evaluations)
	assert.Equal(t, 5.0, res.Loss)
	assert.Equal(t, []float64{1, 2}, values(p))
}

func TestLBFGS_StepErrors(t *testing.T) {
	errBoom := errors.New("boom")
	p := newParam(t, "x", 1.0, 2.0)

	tests := map[string]struct {
		closure optim.Closure
		want    error
	}{
		"NilClosure": {
			closure: nil,
			want:    optim.ErrUnsupportedOperation,
		},
		"ClosureFails": {
			closure: func() (float64, error) { return 0, errBoom },
			want:    errBoom,
		},
		"ShapeMismatch": {
			closure: func() (float64, error) {
				p.SetGrad(newGrad(t, 1, 2, 3))
				return 1, nil
			},
			want: optim.ErrShapeMismatch,
		},
		"NonFinite": {
			closure: func() (float64, error) {
				p.SetGrad(newGrad(t, math.NaN(), 1))
				return 1, nil
			},
			want: optim.ErrNonFiniteGradient,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			opt, err := optim.NewLBFGS([]*nn.Parameter{p}, optim.DefaultLBFGSConfig(),
				optim.WithNonFinitePolicy(optim.NonFiniteReject))
			require.NoError(t, err)
			_, err = opt.Step(tc.closure)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
			assert.Equal(t, []float64{1, 2}, values(p))
		})
	}
}

func TestNewLBFGS_Errors(t *testing.T) {
	shared := newParam(t, "weight", 1.0)
	with := func(edit func(*optim.LBFGSConfig)) optim.LBFGSConfig {
		cfg := optim.DefaultLBFGSConfig()
		edit(&cfg)
		return cfg
	}

	tests := map[string]struct {
		params []*nn.Parameter
		config optim.LBFGSConfig
	}{
		"NoParameters": {
			config: optim.DefaultLBFGSConfig(),
		},
		"SharedTensor": {
			params: []*nn.Parameter{shared, nn.NewParameter("alias", shared.Tensor())},
			config: optim.DefaultLBFGSConfig(),
		},
		"ZeroLearningRate": {
			config: with(func(c *optim.LBFGSConfig) { c.LR = 0 }),
		},
		"InfiniteLearningRate": {
			config: with(func(c *optim.LBFGSConfig) { c.LR = math.Inf(1) }),
		},
		"ZeroMaxIter": {
			config: with(func(c *optim.LBFGSConfig) { c.MaxIter = 0 }),
		},
		"NegativeMaxEval": {
			config: with(func(c *optim.LBFGSConfig) { c.MaxEval = -1 }),
		},
		"ZeroHistory": {
			config: with(func(c *optim.LBFGSConfig) { c.HistorySize = 0 }),
		},
		"NegativeToleranceGrad": {
			config: with(func(c *optim.LBFGSConfig) { c.ToleranceGrad = -1e-7 }),
		},
		"NaNToleranceChange": {
			config: with(func(c *optim.LBFGSConfig) { c.ToleranceChange = math.NaN() }),
		},
		"CurvatureBelowDecrease": {
			config: with(func(c *optim.LBFGSConfig) {
				c.LineSearch = optim.LineSearchStrongWolfe
				c.C1, c.C2 = 0.5, 0.1
			}),
		},
		"CurvatureAtOne": {
			config: with(func(c *optim.LBFGSConfig) {
				c.LineSearch = optim.LineSearchStrongWolfe
				c.C2 = 1
			}),
		},
		"UnknownLineSearch": {
			config: with(func(c *optim.LBFGSConfig) { c.LineSearch = optim.LineSearch(7) }),
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			params := tc.params
			if params == nil && name != "NoParameters" {
				params = []*nn.Parameter{newParam(t, "x", 1.0)}
			}
			opt, err := optim.NewLBFGS(params, tc.config)
			assert.Nil(t, opt)
			require.Error(t, err)
			assert.True(t, errors.Is(err, optim.ErrInvalidHyperparameter), "got %v", err)
		})
	}
}

func TestLBFGSConfig_YAML(t *testing.T) {
	input := `
lr: 0.5
history_size: 10
line_search: strong_wolfe
`
	cfg := optim.DefaultLBFGSConfig()
	require.NoError(t, yaml.Unmarshal([]byte(input), &cfg))
	assert.Equal(t, 0.5, cfg.LR)
	assert.Equal(t, 10, cfg.HistorySize)
	assert.Equal(t, optim.LineSearchStrongWolfe, cfg.LineSearch)
	assert.Equal(t, 20, cfg.MaxIter)
	require.NoError(t, cfg.Validate())

	out, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(out), "line_search: strong_wolfe")

	err = yaml.Unmarshal([]byte("line_search: backtracking"), &cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, optim.ErrInvalidHyperparameter), "got %v", err)
	assert.Equal(t, "LineSearch(7)", optim.LineSearch(7).String())
}

func TestLBFGS_Logging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	p := newParam(t, "xy", 0, 0)
	opt, err := optim.NewLBFGS([]*nn.Parameter{p}, optim.DefaultLBFGSConfig(), optim.WithLogger(zap.New(core)))
	require.NoError(t, err)

	created := logs.FilterMessage("optimizer created").All()
	require.Len(t, created, 1)
	assert.Equal(t, "lbfgs", created[0].ContextMap()["kind"])

	_, err = opt.Step(rosenbrock(t, p))
	require.NoError(t, err)
	assert.Len(t, logs.FilterMessage("lbfgs step").All(), 1)
}
