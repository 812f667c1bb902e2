// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"go.uber.org/zap"

	"github.com/born-ml/optimizers/internal/optim"
	"github.com/born-ml/optimizers/internal/parallel"
	"github.com/born-ml/optimizers/nn"
)

// Optimizer binds parameters, their state and one algorithm into a single
// steppable unit.
type Optimizer = optim.Optimizer

// Config is the hyperparameter set of one algorithm. It is implemented only by
// the *Config types of this package.
type Config = optim.Config

// Group is a subset of parameters sharing hyperparameters.
type Group = optim.Group

// Option configures facade behavior that is independent of the algorithm.
type Option = optim.Option

// Kind identifies an optimization algorithm.
type Kind = optim.Kind

// Phase is the lifecycle state of an Optimizer.
type Phase = optim.Phase

// WeightDecayMode selects how weight decay enters an update.
type WeightDecayMode = optim.WeightDecayMode

// NonFinitePolicy selects how Step treats NaN or Inf gradient elements.
type NonFinitePolicy = optim.NonFinitePolicy

// ParallelConfig controls how large tensors are split across goroutines.
type ParallelConfig = parallel.Config

// Algorithms.
const (
	KindSGD      = optim.KindSGD
	KindAdaGrad  = optim.KindAdaGrad
	KindAdaDelta = optim.KindAdaDelta
	KindAdaMax   = optim.KindAdaMax
	KindAdam     = optim.KindAdam
	KindNAdam    = optim.KindNAdam
	KindRAdam    = optim.KindRAdam
	KindRMSprop  = optim.KindRMSprop
)

// Lifecycle phases.
const (
	PhaseUninitialized = optim.PhaseUninitialized
	PhaseStepping      = optim.PhaseStepping
)

// Weight decay modes.
const (
	WeightDecayCoupled   = optim.WeightDecayCoupled
	WeightDecayDecoupled = optim.WeightDecayDecoupled
)

// Non-finite gradient policies.
const (
	NonFinitePropagate = optim.NonFinitePropagate
	NonFiniteReject    = optim.NonFiniteReject
)

// Errors

// Error categories, matchable with errors.Is.
var (
	ErrInvalidHyperparameter = optim.ErrInvalidHyperparameter
	ErrShapeMismatch         = optim.ErrShapeMismatch
	ErrUnsupportedOperation  = optim.ErrUnsupportedOperation
	ErrMissingGradient       = optim.ErrMissingGradient
	ErrNonFiniteGradient     = optim.ErrNonFiniteGradient
)

// HyperparameterError describes a rejected configuration value.
type HyperparameterError = optim.HyperparameterError

// ParameterError reports the failure of a single parameter.
type ParameterError = optim.ParameterError

// Construction

// New creates an optimizer over params using the algorithm selected by cfg.
func New(params []*nn.Parameter, cfg Config, opts ...Option) (*Optimizer, error) {
	return optim.New(params, cfg, opts...)
}

// NewWithGroups creates an optimizer with per-group hyperparameter overrides.
func NewWithGroups(groups []Group, defaults Config, opts ...Option) (*Optimizer, error) {
	return optim.NewWithGroups(groups, defaults, opts...)
}

// MustNew is like New but panics on error.
func MustNew(params []*nn.Parameter, cfg Config, opts ...Option) *Optimizer {
	return optim.MustNew(params, cfg, opts...)
}

// WithLogger sets the logger used for construction and step diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return optim.WithLogger(logger)
}

// WithParallel sets how elementwise kernels split large tensors.
func WithParallel(cfg ParallelConfig) Option {
	return optim.WithParallel(cfg)
}

// WithNonFinitePolicy sets the policy for NaN or Inf gradients.
func WithNonFinitePolicy(policy NonFinitePolicy) Option {
	return optim.WithNonFinitePolicy(policy)
}

// DefaultParallelConfig returns parallel settings based on CPU count.
func DefaultParallelConfig() ParallelConfig {
	return parallel.DefaultConfig()
}

// Kinds returns every supported algorithm.
func Kinds() []Kind {
	return optim.Kinds()
}

// ParseKind returns the Kind for an algorithm name such as "adam" or "rmsprop".
func ParseKind(name string) (Kind, error) {
	return optim.ParseKind(name)
}

// SGD (Stochastic Gradient Descent)

// SGDConfig contains configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// DefaultSGDConfig returns the default SGD hyperparameters.
func DefaultSGDConfig() SGDConfig { return optim.DefaultSGDConfig() }

// NewSGD creates a new SGD optimizer.
//
// Example:
//
//	optimizer, err := optim.NewSGD(
//	    model.Parameters(),
//	    optim.SGDConfig{
//	        LR:       0.01,
//	        Momentum: 0.9,
//	    },
//	)
func NewSGD(params []*nn.Parameter, config SGDConfig, opts ...Option) (*Optimizer, error) {
	return optim.NewSGD(params, config, opts...)
}

// AdaGrad

// AdaGradConfig contains configuration for AdaGrad optimizer.
type AdaGradConfig = optim.AdaGradConfig

// DefaultAdaGradConfig returns the default AdaGrad hyperparameters.
func DefaultAdaGradConfig() AdaGradConfig { return optim.DefaultAdaGradConfig() }

// NewAdaGrad creates a new AdaGrad optimizer.
func NewAdaGrad(params []*nn.Parameter, config AdaGradConfig, opts ...Option) (*Optimizer, error) {
	return optim.NewAdaGrad(params, config, opts...)
}

// AdaDelta

// AdaDeltaConfig contains configuration for AdaDelta optimizer.
type AdaDeltaConfig = optim.AdaDeltaConfig

// DefaultAdaDeltaConfig returns the default AdaDelta hyperparameters.
func DefaultAdaDeltaConfig() AdaDeltaConfig { return optim.DefaultAdaDeltaConfig() }

// NewAdaDelta creates a new AdaDelta optimizer.
func NewAdaDelta(params []*nn.Parameter, config AdaDeltaConfig, opts ...Option) (*Optimizer, error) {
	return optim.NewAdaDelta(params, config, opts...)
}

// AdaMax

// AdaMaxConfig contains configuration for AdaMax optimizer.
type AdaMaxConfig = optim.AdaMaxConfig

// DefaultAdaMaxConfig returns the default AdaMax hyperparameters.
func DefaultAdaMaxConfig() AdaMaxConfig { return optim.DefaultAdaMaxConfig() }

// NewAdaMax creates a new AdaMax optimizer.
func NewAdaMax(params []*nn.Parameter, config AdaMaxConfig, opts ...Option) (*Optimizer, error) {
	return optim.NewAdaMax(params, config, opts...)
}

// Adam (Adaptive Moment Estimation)

// AdamConfig contains configuration for Adam and AdamW optimizers.
type AdamConfig = optim.AdamConfig

// DefaultAdamConfig returns the default Adam hyperparameters.
func DefaultAdamConfig() AdamConfig { return optim.DefaultAdamConfig() }

// DefaultAdamWConfig returns the default AdamW hyperparameters.
func DefaultAdamWConfig() AdamConfig { return optim.DefaultAdamWConfig() }

// NewAdam creates a new Adam optimizer with bias correction.
//
// Example:
//
//	optimizer, err := optim.NewAdam(
//	    model.Parameters(),
//	    optim.AdamConfig{
//	        LR:    0.001,
//	        Betas: [2]float64{0.9, 0.999},
//	        Eps:   1e-8,
//	    },
//	)
func NewAdam(params []*nn.Parameter, config AdamConfig, opts ...Option) (*Optimizer, error) {
	return optim.NewAdam(params, config, opts...)
}

// NewAdamW creates a new Adam optimizer with decoupled weight decay.
func NewAdamW(params []*nn.Parameter, config AdamConfig, opts ...Option) (*Optimizer, error) {
	return optim.NewAdamW(params, config, opts...)
}

// NAdam

// NAdamConfig contains configuration for NAdam optimizer.
type NAdamConfig = optim.NAdamConfig

// DefaultNAdamConfig returns the default NAdam hyperparameters.
func DefaultNAdamConfig() NAdamConfig { return optim.DefaultNAdamConfig() }

// NewNAdam creates a new NAdam optimizer.
func NewNAdam(params []*nn.Parameter, config NAdamConfig, opts ...Option) (*Optimizer, error) {
	return optim.NewNAdam(params, config, opts...)
}

// RAdam

// RAdamConfig contains configuration for RAdam optimizer.
type RAdamConfig = optim.RAdamConfig

// DefaultRAdamConfig returns the default RAdam hyperparameters.
func DefaultRAdamConfig() RAdamConfig { return optim.DefaultRAdamConfig() }

// NewRAdam creates a new RAdam optimizer.
func NewRAdam(params []*nn.Parameter, config RAdamConfig, opts ...Option) (*Optimizer, error) {
	return optim.NewRAdam(params, config, opts...)
}

// RMSprop

// RMSpropConfig contains configuration for RMSprop optimizer.
type RMSpropConfig = optim.RMSpropConfig

// DefaultRMSpropConfig returns the default RMSprop hyperparameters.
func DefaultRMSpropConfig() RMSpropConfig { return optim.DefaultRMSpropConfig() }

// NewRMSprop creates a new RMSprop optimizer.
func NewRMSprop(params []*nn.Parameter, config RMSpropConfig, opts ...Option) (*Optimizer, error) {
	return optim.NewRMSprop(params, config, opts...)
}

// L-BFGS (Limited-memory BFGS)

// LBFGS is a closure-driven quasi-Newton optimizer.
type LBFGS = optim.LBFGS

// LBFGSConfig contains configuration for the L-BFGS optimizer.
type LBFGSConfig = optim.LBFGSConfig

// LBFGSResult summarizes one L-BFGS step.
type LBFGSResult = optim.LBFGSResult

// Closure re-evaluates the loss and stores parameter gradients.
type Closure = optim.Closure

// LineSearch selects the L-BFGS step length strategy.
type LineSearch = optim.LineSearch

// Line searches.
const (
	LineSearchNone        = optim.LineSearchNone
	LineSearchStrongWolfe = optim.LineSearchStrongWolfe
)

// DefaultLBFGSConfig returns the default L-BFGS hyperparameters.
func DefaultLBFGSConfig() LBFGSConfig { return optim.DefaultLBFGSConfig() }

// NewLBFGS creates a new L-BFGS optimizer.
//
// Example:
//
//	optimizer, err := optim.NewLBFGS(model.Parameters(), optim.DefaultLBFGSConfig())
//	res, err := optimizer.Step(func() (float64, error) {
//	    loss, grads := model.Evaluate()
//	    // store grads with Parameter.SetGrad
//	    return loss, nil
//	})
func NewLBFGS(params []*nn.Parameter, config LBFGSConfig, opts ...Option) (*LBFGS, error) {
	return optim.NewLBFGS(params, config, opts...)
}
