package optim

import (
	"golang.org/x/exp/constraints"

	"github.com/born-ml/optimizers/internal/nn"
	"github.com/born-ml/optimizers/internal/parallel"
)

// RMSpropConfig holds configuration for the RMSprop optimizer.
//
// Update rule:
//
//	s_t = alpha * s_{t-1} + (1-alpha) * gradient²
//	denom = sqrt(s_t + eps)                              // plain
//	g_avg_t = alpha * g_avg_{t-1} + (1-alpha) * gradient  // centered only
//	denom = sqrt(s_t - g_avg_t² + eps)                    // centered
//	v_t = momentum * v_{t-1} + gradient / denom           // momentum > 0
//	param = param - lr * v_t   or   param - lr * gradient / denom
//
// The centered variance is clamped at zero before eps is added.
//
// Reference: Hinton, "Neural Networks for Machine Learning", lecture 6e
type RMSpropConfig struct {
	LR          float64 `yaml:"lr"`           // Learning rate (default: 0.01)
	Alpha       float64 `yaml:"alpha"`        // Smoothing constant (default: 0.99)
	Eps         float64 `yaml:"eps"`          // Term for numerical stability (default: 1e-8)
	Momentum    float64 `yaml:"momentum"`     // Momentum factor (default: 0)
	Centered    bool    `yaml:"centered"`     // Normalize by the estimated gradient variance
	WeightDecay float64 `yaml:"weight_decay"` // L2 penalty, coupled (default: 0)
	Maximize    bool    `yaml:"maximize"`     // Maximize the objective instead of minimizing
}

// DefaultRMSpropConfig returns the default RMSprop hyperparameters.
func DefaultRMSpropConfig() RMSpropConfig {
	return RMSpropConfig{LR: 0.01, Alpha: 0.99, Eps: 1e-8}
}

// NewRMSprop creates an RMSprop optimizer.
func NewRMSprop(params []*nn.Parameter, config RMSpropConfig, opts ...Option) (*Optimizer, error) {
	return New(params, config, opts...)
}

// Kind implements Config.
func (c RMSpropConfig) Kind() Kind { return KindRMSprop }

// Validate implements Config.
func (c RMSpropConfig) Validate() error {
	if err := checkNonNegative("lr", c.LR); err != nil {
		return err
	}
	if err := checkDecay("alpha", c.Alpha); err != nil {
		return err
	}
	if err := checkPositive("eps", c.Eps); err != nil {
		return err
	}
	if err := checkNonNegative("momentum", c.Momentum); err != nil {
		return err
	}
	return checkNonNegative("weight_decay", c.WeightDecay)
}

func (c RMSpropConfig) learningRate() float64 { return c.LR }

func (c RMSpropConfig) withLearningRate(lr float64) Config {
	c.LR = lr
	return c
}

func (c RMSpropConfig) buffers() []string {
	names := []string{bufSquareAvg}
	if c.Centered {
		names = append(names, bufGradAvg)
	}
	if c.Momentum > 0 {
		names = append(names, bufMomentum)
	}
	return names
}

// rmspropUpdate applies one RMSprop step. gradAvg is nil unless centered and
// buf is nil unless momentum > 0.
func rmspropUpdate[T constraints.Float](c RMSpropConfig, sc stepContext, p, g, squareAvg, gradAvg, buf []T) {
	lr := T(sc.lr)
	alpha := T(c.Alpha)
	eps := T(c.Eps)
	mom := T(c.Momentum)
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
			squareAvg[i] = alpha*squareAvg[i] + (1-alpha)*d*d

			variance := squareAvg[i]
			if gradAvg != nil {
				gradAvg[i] = alpha*gradAvg[i] + (1-alpha)*d
				variance = max(variance-gradAvg[i]*gradAvg[i], 0)
			}
			denom := sqrt(variance + eps)

			if buf != nil {
				buf[i] = mom*buf[i] + d/denom
				p[i] -= lr * buf[i]
			} else {
				p[i] -= lr * d / denom
			}
		}
	}, sc.par)
}
