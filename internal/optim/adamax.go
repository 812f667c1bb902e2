package optim

import (
	"math"

	"golang.org/x/exp/constraints"

	"github.com/born-ml/optimizers/internal/nn"
	"github.com/born-ml/optimizers/internal/parallel"
)

// AdaMaxConfig holds configuration for the AdaMax optimizer, the infinity-norm
// variant of Adam.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient
//	u_t = max(beta2 * u_{t-1}, |gradient| + eps)
//	param = param - (lr / (1 - beta1^t)) * m_t / u_t
//
// u_t is bounded below by eps, so the division is always defined.
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014), section 7.1
type AdaMaxConfig struct {
	LR          float64    `yaml:"lr"`           // Learning rate (default: 0.002)
	Betas       [2]float64 `yaml:"betas"`        // Decay rates of m and u (default: [0.9, 0.999])
	Eps         float64    `yaml:"eps"`          // Term for numerical stability (default: 1e-8)
	WeightDecay float64    `yaml:"weight_decay"` // L2 penalty, coupled (default: 0)
	Maximize    bool       `yaml:"maximize"`     // Maximize the objective instead of minimizing
}

// DefaultAdaMaxConfig returns the default AdaMax hyperparameters.
func DefaultAdaMaxConfig() AdaMaxConfig {
	return AdaMaxConfig{LR: 0.002, Betas: [2]float64{0.9, 0.999}, Eps: 1e-8}
}

// NewAdaMax creates an AdaMax optimizer.
func NewAdaMax(params []*nn.Parameter, config AdaMaxConfig, opts ...Option) (*Optimizer, error) {
	return New(params, config, opts...)
}

// Kind implements Config.
func (c AdaMaxConfig) Kind() Kind { return KindAdaMax }

// Validate implements Config.
func (c AdaMaxConfig) Validate() error {
	if err := checkNonNegative("lr", c.LR); err != nil {
		return err
	}
	if err := checkDecay("beta1", c.Betas[0]); err != nil {
		return err
	}
	if err := checkDecay("beta2", c.Betas[1]); err != nil {
		return err
	}
	if err := checkPositive("eps", c.Eps); err != nil {
		return err
	}
	return checkNonNegative("weight_decay", c.WeightDecay)
}

func (c AdaMaxConfig) learningRate() float64 { return c.LR }

func (c AdaMaxConfig) withLearningRate(lr float64) Config {
	c.LR = lr
	return c
}

func (c AdaMaxConfig) buffers() []string { return []string{bufExpAvg, bufExpInf} }

func adamaxUpdate[T constraints.Float](c AdaMaxConfig, sc stepContext, p, g, m, u []T) {
	b1, b2 := T(c.Betas[0]), T(c.Betas[1])
	eps := T(c.Eps)
	wd := T(c.WeightDecay)
	clr := T(sc.lr / (1 - math.Pow(c.Betas[0], float64(sc.t))))

	parallel.Range(len(p), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			d := g[i]
			if c.Maximize {
				d = -d
			}
			if wd != 0 {
				d += wd * p[i]
			}
			m[i] = b1*m[i] + (1-b1)*d
			u[i] = max(b2*u[i], abs(d)+eps)
			p[i] -= clr * m[i] / u[i]
		}
	}, sc.par)
}
