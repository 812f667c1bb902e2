package optim

import (
	"golang.org/x/exp/constraints"

	"github.com/born-ml/optimizers/internal/nn"
	"github.com/born-ml/optimizers/internal/parallel"
)

// AdaDeltaConfig holds configuration for the AdaDelta optimizer.
//
// AdaDelta scales each step by the ratio of two running RMS values, so the
// learning rate is mostly self-tuning:
//
//	s_t = rho * s_{t-1} + (1-rho) * gradient²
//	u_t = gradient * sqrt(delta_{t-1} + eps) / sqrt(s_t + eps)
//	delta_t = rho * delta_{t-1} + (1-rho) * u_t²
//	param = param - lr * u_t
//
// Both accumulators are convex combinations of squares and stay non-negative.
//
// Reference: "ADADELTA: An Adaptive Learning Rate Method" (Zeiler, 2012)
type AdaDeltaConfig struct {
	LR          float64 `yaml:"lr"`           // Scale applied to the delta (default: 1.0)
	Rho         float64 `yaml:"rho"`          // Decay of the running averages (default: 0.9)
	Eps         float64 `yaml:"eps"`          // Term for numerical stability (default: 1e-6)
	WeightDecay float64 `yaml:"weight_decay"` // L2 penalty, coupled (default: 0)
	Maximize    bool    `yaml:"maximize"`     // Maximize the objective instead of minimizing
}

// DefaultAdaDeltaConfig returns the default AdaDelta hyperparameters.
func DefaultAdaDeltaConfig() AdaDeltaConfig {
	return AdaDeltaConfig{LR: 1.0, Rho: 0.9, Eps: 1e-6}
}

// NewAdaDelta creates an AdaDelta optimizer.
func NewAdaDelta(params []*nn.Parameter, config AdaDeltaConfig, opts ...Option) (*Optimizer, error) {
	return New(params, config, opts...)
}

// Kind implements Config.
func (c AdaDeltaConfig) Kind() Kind { return KindAdaDelta }

// Validate implements Config.
func (c AdaDeltaConfig) Validate() error {
	if err := checkNonNegative("lr", c.LR); err != nil {
		return err
	}
	if err := checkDecay("rho", c.Rho); err != nil {
		return err
	}
	if err := checkPositive("eps", c.Eps); err != nil {
		return err
	}
	return checkNonNegative("weight_decay", c.WeightDecay)
}

func (c AdaDeltaConfig) learningRate() float64 { return c.LR }

func (c AdaDeltaConfig) withLearningRate(lr float64) Config {
	c.LR = lr
	return c
}

func (c AdaDeltaConfig) buffers() []string { return []string{bufSquareAvg, bufAccDelta} }

func adadeltaUpdate[T constraints.Float](c AdaDeltaConfig, sc stepContext, p, g, squareAvg, accDelta []T) {
	lr := T(sc.lr)
	rho := T(c.Rho)
	eps := T(c.Eps)
	wd := T(c.WeightDecay)

	parallel.Range(len(p), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			d := g[i]
			if c.Maximize {
				d = -d
			}
			if wd != 0 {
				d += wd * p[i]
			}
			squareAvg[i] = rho*squareAvg[i] + (1-rho)*d*d
			u := d * sqrt(accDelta[i]+eps) / sqrt(squareAvg[i]+eps)
			accDelta[i] = rho*accDelta[i] + (1-rho)*u*u
			p[i] -= lr * u
		}
	}, sc.par)
}
