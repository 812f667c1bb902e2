package optim

import (
	"math"

	"golang.org/x/exp/constraints"

	"github.com/born-ml/optimizers/internal/nn"
	"github.com/born-ml/optimizers/internal/parallel"
)

// AdamConfig holds configuration for the Adam (Adaptive Moment Estimation)
// optimizer and its decoupled weight decay variant AdamW.
//
// Adam combines ideas from RMSprop and momentum:
//   - Maintains exponential moving averages of gradients (first moment)
//   - Maintains exponential moving averages of squared gradients (second moment)
//   - Applies bias correction to compensate for initialization at zero
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)  // Parameter update
//
// With WeightDecayCoupled, weight_decay * param is added to the gradient before
// the moments are updated. With WeightDecayDecoupled (AdamW), the gradient is
// left untouched and the parameter is shrunk by lr * weight_decay * param
// before the adaptive step.
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014);
// "Decoupled Weight Decay Regularization" (Loshchilov & Hutter, 2019)
//
// Example:
//
//	optimizer, err := optim.NewAdam(model.Parameters(), optim.AdamConfig{
//	    LR:    0.001,
//	    Betas: [2]float64{0.9, 0.999},
//	    Eps:   1e-8,
//	})
type AdamConfig struct {
	LR              float64         `yaml:"lr"`                // Learning rate (default: 0.001)
	Betas           [2]float64      `yaml:"betas"`             // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps             float64         `yaml:"eps"`               // Term for numerical stability (default: 1e-8)
	WeightDecay     float64         `yaml:"weight_decay"`      // Weight decay coefficient (default: 0, AdamW: 0.01)
	WeightDecayMode WeightDecayMode `yaml:"weight_decay_mode"` // Coupled (Adam, default) or decoupled (AdamW)
	AMSGrad         bool            `yaml:"amsgrad"`           // Use the running maximum of v_t in the denominator
	Maximize        bool            `yaml:"maximize"`          // Maximize the objective instead of minimizing
}

// DefaultAdamConfig returns the default Adam hyperparameters (coupled weight decay).
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{LR: 0.001, Betas: [2]float64{0.9, 0.999}, Eps: 1e-8}
}

// DefaultAdamWConfig returns the default AdamW hyperparameters (decoupled weight decay).
func DefaultAdamWConfig() AdamConfig {
	c := DefaultAdamConfig()
	c.WeightDecay = 0.01
	c.WeightDecayMode = WeightDecayDecoupled
	return c
}

// NewAdam creates an Adam optimizer.
//
// The weight decay mode is taken from config as is; see NewAdamW for the
// decoupled variant.
func NewAdam(params []*nn.Parameter, config AdamConfig, opts ...Option) (*Optimizer, error) {
	return New(params, config, opts...)
}

// NewAdamW creates an Adam optimizer with decoupled weight decay.
//
// config.WeightDecayMode is forced to WeightDecayDecoupled.
func NewAdamW(params []*nn.Parameter, config AdamConfig, opts ...Option) (*Optimizer, error) {
	config.WeightDecayMode = WeightDecayDecoupled
	return New(params, config, opts...)
}

// Kind implements Config.
func (c AdamConfig) Kind() Kind { return KindAdam }

// Validate implements Config.
func (c AdamConfig) Validate() error {
	return validateAdamFamily(c.LR, c.Betas, c.Eps, c.WeightDecay, c.WeightDecayMode)
}

func (c AdamConfig) learningRate() float64 { return c.LR }

func (c AdamConfig) withLearningRate(lr float64) Config {
	c.LR = lr
	return c
}

func (c AdamConfig) buffers() []string {
	if c.AMSGrad {
		return []string{bufExpAvg, bufExpAvgSq, bufMaxExpAvgSq}
	}
	return []string{bufExpAvg, bufExpAvgSq}
}

// validateAdamFamily checks the hyperparameters shared by Adam, NAdam and RAdam.
func validateAdamFamily(lr float64, betas [2]float64, eps, weightDecay float64, mode WeightDecayMode) error {
	if err := checkNonNegative("lr", lr); err != nil {
		return err
	}
	if err := checkDecay("beta1", betas[0]); err != nil {
		return err
	}
	if err := checkDecay("beta2", betas[1]); err != nil {
		return err
	}
	if err := checkPositive("eps", eps); err != nil {
		return err
	}
	if err := checkNonNegative("weight_decay", weightDecay); err != nil {
		return err
	}
	return checkMode(mode)
}

// biasCorrections returns 1 - beta1^t and 1 - beta2^t.
func biasCorrections(betas [2]float64, t int) (float64, float64) {
	return 1 - math.Pow(betas[0], float64(t)), 1 - math.Pow(betas[1], float64(t))
}

func adamUpdate[T constraints.Float](c AdamConfig, sc stepContext, p, g, m, v, vMax []T) {
	bc1, bc2 := biasCorrections(c.Betas, sc.t)
	b1, b2 := T(c.Betas[0]), T(c.Betas[1])
	eps := T(c.Eps)
	stepSize := T(sc.lr / bc1)
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
			vi := v[i]
			if vMax != nil {
				vMax[i] = max(vMax[i], vi)
				vi = vMax[i]
			}
			p[i] -= stepSize * m[i] / (sqrt(vi*invBC2) + eps)
		}
	}, sc.par)
}
