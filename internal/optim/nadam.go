package optim

import (
	"math"

	"golang.org/x/exp/constraints"

	"github.com/born-ml/optimizers/internal/nn"
	"github.com/born-ml/optimizers/internal/parallel"
)

// NAdamConfig holds configuration for the NAdam optimizer (Adam with Nesterov momentum).
//
// NAdam replaces beta1 with a warming-up momentum schedule and looks one step
// ahead when forming the first-moment estimate:
//
//	mu_t = beta1 * (1 - 0.5 * 0.96^(t * momentum_decay))
//	P_t = mu_1 * ... * mu_t
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²
//	denom = sqrt(v_t / (1 - beta2^t)) + eps
//	param = param - lr * (1-mu_t) / (1-P_t) * gradient / denom
//	              - lr * mu_{t+1} / (1 - P_t*mu_{t+1}) * m_t / denom
//
// Reference: "Incorporating Nesterov Momentum into Adam" (Dozat, 2016)
type NAdamConfig struct {
	LR              float64         `yaml:"lr"`                // Learning rate (default: 0.002)
	Betas           [2]float64      `yaml:"betas"`             // Coefficients for running averages (default: [0.9, 0.999])
	Eps             float64         `yaml:"eps"`               // Term for numerical stability (default: 1e-8)
	MomentumDecay   float64         `yaml:"momentum_decay"`    // psi in the momentum schedule (default: 0.004)
	WeightDecay     float64         `yaml:"weight_decay"`      // Weight decay coefficient (default: 0)
	WeightDecayMode WeightDecayMode `yaml:"weight_decay_mode"` // Coupled (default) or decoupled
	Maximize        bool            `yaml:"maximize"`          // Maximize the objective instead of minimizing
}

// DefaultNAdamConfig returns the default NAdam hyperparameters.
func DefaultNAdamConfig() NAdamConfig {
	return NAdamConfig{LR: 0.002, Betas: [2]float64{0.9, 0.999}, Eps: 1e-8, MomentumDecay: 0.004}
}

// NewNAdam creates a NAdam optimizer.
func NewNAdam(params []*nn.Parameter, config NAdamConfig, opts ...Option) (*Optimizer, error) {
	return New(params, config, opts...)
}

// Kind implements Config.
func (c NAdamConfig) Kind() Kind { return KindNAdam }

// Validate implements Config.
func (c NAdamConfig) Validate() error {
	if err := validateAdamFamily(c.LR, c.Betas, c.Eps, c.WeightDecay, c.WeightDecayMode); err != nil {
		return err
	}
	return checkNonNegative("momentum_decay", c.MomentumDecay)
}

func (c NAdamConfig) learningRate() float64 { return c.LR }

func (c NAdamConfig) withLearningRate(lr float64) Config {
	c.LR = lr
	return c
}

func (c NAdamConfig) buffers() []string { return []string{bufExpAvg, bufExpAvgSq} }

// momentum returns mu_t of the NAdam momentum schedule.
func (c NAdamConfig) momentum(t int) float64 {
	return c.Betas[0] * (1 - 0.5*math.Pow(0.96, float64(t)*c.MomentumDecay))
}

func nadamUpdate[T constraints.Float](c NAdamConfig, sc stepContext, p, g, m, v []T) {
	mu := c.momentum(sc.t)
	muNext := c.momentum(sc.t + 1)
	// sc.muProduct already includes mu_t.
	gradCoef := T(sc.lr * (1 - mu) / (1 - sc.muProduct))
	momCoef := T(sc.lr * muNext / (1 - sc.muProduct*muNext))
	_, bc2 := biasCorrections(c.Betas, sc.t)
	invBC2 := T(1 / bc2)

	b1, b2 := T(c.Betas[0]), T(c.Betas[1])
	eps := T(c.Eps)
	decoupled := c.WeightDecayMode == WeightDecayDecoupled && c.WeightDecay != 0
	coupledWD := T(0)
	if c.WeightDecayMode == WeightDecayCoupled {
		coupledWD = T(c.WeightDecay)
	}
	decay := T(1 - sc.lr*c.WeightDecay)

	parallel.Range(len(p), func(lo, hi int) {
		if decoupled {
			scale(decay, p[lo:hi])
		}
		for i := lo; i < hi; i++ {
			d := g[i]
			if c.Maximize {
				d = -d
			}
			if coupledWD != 0 {
				d += coupledWD * p[i]
			}
			m[i] = b1*m[i] + (1-b1)*d
			v[i] = b2*v[i] + (1-b2)*d*d
			denom := sqrt(v[i]*invBC2) + eps
			p[i] -= gradCoef*d/denom + momCoef*m[i]/denom
		}
	}, sc.par)
}
