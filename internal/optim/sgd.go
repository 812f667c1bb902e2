package optim

import (
	"golang.org/x/exp/constraints"

	"github.com/born-ml/optimizers/internal/nn"
	"github.com/born-ml/optimizers/internal/parallel"
)

// SGDConfig holds configuration for Stochastic Gradient Descent with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	v_1 = gradient                                        // first observed gradient
//	v_t = momentum * v_{t-1} + (1 - dampening) * gradient
//	update = gradient + momentum * v_t  (nesterov)  or  v_t
//	param = param - lr * update
//
// Weight decay is always coupled: weight_decay * param is added to the gradient
// before the recurrence.
//
// Example:
//
//	optimizer, err := optim.NewSGD(params, optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	})
type SGDConfig struct {
	LR          float64 `yaml:"lr"`           // Learning rate (default: 0.01)
	Momentum    float64 `yaml:"momentum"`     // Momentum factor (default: 0, range: [0, Inf))
	Dampening   float64 `yaml:"dampening"`    // Dampening for momentum (default: 0, range: [0, 1])
	WeightDecay float64 `yaml:"weight_decay"` // L2 penalty (default: 0)
	Nesterov    bool    `yaml:"nesterov"`     // Enables Nesterov momentum (requires momentum > 0, dampening == 0)
	Maximize    bool    `yaml:"maximize"`     // Maximize the objective instead of minimizing
}

// DefaultSGDConfig returns the default SGD hyperparameters.
func DefaultSGDConfig() SGDConfig {
	return SGDConfig{LR: 0.01}
}

// NewSGD creates a momentum SGD optimizer.
func NewSGD(params []*nn.Parameter, config SGDConfig, opts ...Option) (*Optimizer, error) {
	return New(params, config, opts...)
}

// Kind implements Config.
func (c SGDConfig) Kind() Kind { return KindSGD }

// Validate implements Config.
func (c SGDConfig) Validate() error {
	if err := checkNonNegative("lr", c.LR); err != nil {
		return err
	}
	if err := checkNonNegative("momentum", c.Momentum); err != nil {
		return err
	}
	if err := checkUnitClosed("dampening", c.Dampening); err != nil {
		return err
	}
	if err := checkNonNegative("weight_decay", c.WeightDecay); err != nil {
		return err
	}
	if c.Nesterov && (c.Momentum <= 0 || c.Dampening != 0) {
		return invalid("nesterov", c.Momentum, "nesterov momentum requires momentum > 0 and zero dampening")
	}
	return nil
}

func (c SGDConfig) learningRate() float64 { return c.LR }

func (c SGDConfig) withLearningRate(lr float64) Config {
	c.LR = lr
	return c
}

func (c SGDConfig) buffers() []string {
	if c.Momentum == 0 {
		return nil
	}
	return []string{bufMomentum}
}

// sgdUpdate applies one SGD step. first is true when the parameter has never
// been updated, in which case the momentum buffer is seeded with the gradient.
func sgdUpdate[T constraints.Float](c SGDConfig, sc stepContext, p, g, buf []T, first bool) {
	lr := T(sc.lr)
	wd := T(c.WeightDecay)
	mom := T(c.Momentum)
	damp := 1 - T(c.Dampening)

	parallel.Range(len(p), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			d := g[i]
			if c.Maximize {
				d = -d
			}
			if wd != 0 {
				d += wd * p[i]
			}

			if buf != nil {
				if first {
					buf[i] = d
				} else {
					buf[i] = mom*buf[i] + damp*d
				}
				if c.Nesterov {
					d += mom * buf[i]
				} else {
					d = buf[i]
				}
			}

			p[i] -= lr * d
		}
	}, sc.par)
}
