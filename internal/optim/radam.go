package optim

import (
	"math"

	"golang.org/x/exp/constraints"

	"github.com/born-ml/optimizers/internal/nn"
	"github.com/born-ml/optimizers/internal/parallel"
)

// rectificationThreshold is the SMA length at or below which RAdam skips the
// adaptive denominator.
const rectificationThreshold = 4

// RAdamConfig holds configuration for the RAdam (Rectified Adam) optimizer.
//
// RAdam computes the Adam moments and bias corrections, then estimates the
// length of the simple moving average approximating the second moment:
//
//	rho_inf = 2 / (1-beta2) - 1
//	rho_t = rho_inf - 2 * t * beta2^t / (1 - beta2^t)
//
// While rho_t <= 4 the variance of the adaptive term is intractable and the
// update falls back to momentum SGD:
//
//	param = param - lr * m_hat
//
// Afterwards the adaptive step is rectified:
//
//	r_t = sqrt(((rho_t-4)(rho_t-2)rho_inf) / ((rho_inf-4)(rho_inf-2)rho_t))
//	param = param - lr * r_t * m_hat / (sqrt(v_hat) + eps)
//
// Reference: "On the Variance of the Adaptive Learning Rate and Beyond" (Liu et al., 2020)
type RAdamConfig struct {
	LR              float64         `yaml:"lr"`                // Learning rate (default: 0.001)
	Betas           [2]float64      `yaml:"betas"`             // Coefficients for running averages (default: [0.9, 0.999])
	Eps             float64         `yaml:"eps"`               // Term for numerical stability (default: 1e-8)
	WeightDecay     float64         `yaml:"weight_decay"`      // Weight decay coefficient (default: 0)
	WeightDecayMode WeightDecayMode `yaml:"weight_decay_mode"` // Coupled (default) or decoupled
	Maximize        bool            `yaml:"maximize"`          // Maximize the objective instead of minimizing
}

// DefaultRAdamConfig returns the default RAdam hyperparameters.
func DefaultRAdamConfig() RAdamConfig {
	return RAdamConfig{LR: 0.001, Betas: [2]float64{0.9, 0.999}, Eps: 1e-8}
}

// NewRAdam creates a RAdam optimizer.
func NewRAdam(params []*nn.Parameter, config RAdamConfig, opts ...Option) (*Optimizer, error) {
	return New(params, config, opts...)
}

// Kind implements Config.
func (c RAdamConfig) Kind() Kind { return KindRAdam }

// Validate implements Config.
func (c RAdamConfig) Validate() error {
	return validateAdamFamily(c.LR, c.Betas, c.Eps, c.WeightDecay, c.WeightDecayMode)
}

func (c RAdamConfig) learningRate() float64 { return c.LR }

func (c RAdamConfig) withLearningRate(lr float64) Config {
	c.LR = lr
	return c
}

func (c RAdamConfig) buffers() []string { return []string{bufExpAvg, bufExpAvgSq} }

// smaLength returns rho_t and rho_inf for step t.
func (c RAdamConfig) smaLength(t int) (rhoT, rhoInf float64) {
	beta2 := c.Betas[1]
	rhoInf = 2/(1-beta2) - 1
	beta2T := math.Pow(beta2, float64(t))
	rhoT = rhoInf - 2*float64(t)*beta2T/(1-beta2T)
	return rhoT, rhoInf
}

// rectification returns r_t. It is exactly 0 for rho_t <= 4 and grows
// continuously from 0 above it; it never returns NaN.
func rectification(rhoT, rhoInf float64) float64 {
	if !(rhoT > rectificationThreshold) || !(rhoInf > rectificationThreshold) {
		return 0
	}
	num := (rhoT - 4) * (rhoT - 2) * rhoInf
	den := (rhoInf - 4) * (rhoInf - 2) * rhoT
	return math.Sqrt(num / den)
}

func radamUpdate[T constraints.Float](c RAdamConfig, sc stepContext, p, g, m, v []T) {
	bc1, bc2 := biasCorrections(c.Betas, sc.t)
	rhoT, rhoInf := c.smaLength(sc.t)
	rectified := rhoT > rectificationThreshold

	b1, b2 := T(c.Betas[0]), T(c.Betas[1])
	eps := T(c.Eps)
	stepSize := T(sc.lr / bc1)
	if rectified {
		stepSize = T(sc.lr * rectification(rhoT, rhoInf) / bc1)
	}
	invBC2 := T(1 / bc2)
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
			if rectified {
				p[i] -= stepSize * m[i] / (sqrt(v[i]*invBC2) + eps)
			} else {
				p[i] -= stepSize * m[i]
			}
		}
	}, sc.par)
}
