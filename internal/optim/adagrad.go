package optim

import (
	"golang.org/x/exp/constraints"

	"github.com/born-ml/optimizers/internal/nn"
	"github.com/born-ml/optimizers/internal/parallel"
)

// AdaGradConfig holds configuration for the AdaGrad optimizer.
//
// AdaGrad accumulates the squared gradients of every element, so frequently
// updated coordinates take progressively smaller steps:
//
//	s_t = s_{t-1} + gradient²
//	lr_t = lr / (1 + (t-1) * lr_decay)
//	param = param - lr_t * gradient / (sqrt(s_t) + eps)
//
// The accumulator never decreases.
//
// Reference: "Adaptive Subgradient Methods for Online Learning and Stochastic
// Optimization" (Duchi et al., 2011)
type AdaGradConfig struct {
	LR          float64 `yaml:"lr"`           // Learning rate (default: 0.01)
	LRDecay     float64 `yaml:"lr_decay"`     // Learning rate decay (default: 0)
	Eps         float64 `yaml:"eps"`          // Term for numerical stability (default: 1e-10)
	WeightDecay float64 `yaml:"weight_decay"` // L2 penalty, coupled (default: 0)
	Maximize    bool    `yaml:"maximize"`     // Maximize the objective instead of minimizing
}

// DefaultAdaGradConfig returns the default AdaGrad hyperparameters.
func DefaultAdaGradConfig() AdaGradConfig {
	return AdaGradConfig{LR: 0.01, Eps: 1e-10}
}

// NewAdaGrad creates an AdaGrad optimizer.
func NewAdaGrad(params []*nn.Parameter, config AdaGradConfig, opts ...Option) (*Optimizer, error) {
	return New(params, config, opts...)
}

// Kind implements Config.
func (c AdaGradConfig) Kind() Kind { return KindAdaGrad }

// Validate implements Config.
func (c AdaGradConfig) Validate() error {
	if err := checkNonNegative("lr", c.LR); err != nil {
		return err
	}
	if err := checkNonNegative("lr_decay", c.LRDecay); err != nil {
		return err
	}
	if err := checkPositive("eps", c.Eps); err != nil {
		return err
	}
	return checkNonNegative("weight_decay", c.WeightDecay)
}

func (c AdaGradConfig) learningRate() float64 { return c.LR }

func (c AdaGradConfig) withLearningRate(lr float64) Config {
	c.LR = lr
	return c
}

func (c AdaGradConfig) buffers() []string { return []string{bufSum} }

func adagradUpdate[T constraints.Float](c AdaGradConfig, sc stepContext, p, g, sum []T) {
	clr := T(sc.lr / (1 + float64(sc.t-1)*c.LRDecay))
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
			sum[i] += d * d
			p[i] -= clr * d / (sqrt(sum[i]) + eps)
		}
	}, sc.par)
}
