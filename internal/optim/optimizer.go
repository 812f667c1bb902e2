// Package optim implements stateful optimization algorithms for training neural networks.
//
// This package provides:
//   - Optimizer: a steppable facade binding parameters, state and one algorithm
//   - SGD (momentum, dampening, Nesterov), AdaGrad, AdaDelta, AdaMax
//   - Adam/AdamW, NAdam, RAdam, RMSprop (plain, centered, momentum)
//
// Design inspired by PyTorch's torch.optim but adapted for Go with type safety.
//
// Example usage:
//
//	// Create optimizer
//	optimizer, err := optim.New(model.Parameters(), optim.DefaultAdamConfig())
//	if err != nil {
//	    return err
//	}
//
//	// Training loop
//	for epoch := range epochs {
//	    grads := autodiff.Backward(loss, backend)
//
//	    // Update parameters
//	    if err := optimizer.Step(grads); err != nil {
//	        return err
//	    }
//	    optimizer.ZeroGrad()
//	}
//
// An Optimizer is not safe for concurrent use; callers must serialize Step.
package optim

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/exp/constraints"

	"github.com/born-ml/optimizers/internal/nn"
	"github.com/born-ml/optimizers/internal/parallel"
	"github.com/born-ml/optimizers/internal/tensor"
)

// Phase is the lifecycle state of an Optimizer.
type Phase int

const (
	// PhaseUninitialized means state is allocated but Step was never called.
	PhaseUninitialized Phase = iota
	// PhaseStepping is entered on the first Step call and never left.
	PhaseStepping
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseStepping:
		return "stepping"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// NonFinitePolicy selects how Step treats NaN or Inf gradient elements.
type NonFinitePolicy int

const (
	// NonFinitePropagate lets non-finite values flow through the arithmetic.
	NonFinitePropagate NonFinitePolicy = iota
	// NonFiniteReject fails the affected parameter with ErrNonFiniteGradient
	// before any of its state is touched.
	NonFiniteReject
)

type options struct {
	logger    *zap.Logger
	parallel  parallel.Config
	nonFinite NonFinitePolicy
}

// Option configures facade behavior that is independent of the algorithm.
type Option func(*options)

func newOptions(opts []Option) options {
	o := options{
		logger:   zap.NewNop(),
		parallel: parallel.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger used for construction and step diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithParallel sets how elementwise kernels split large tensors across goroutines.
func WithParallel(cfg parallel.Config) Option {
	return func(o *options) {
		o.parallel = cfg
	}
}

// WithNonFinitePolicy sets the policy for NaN or Inf gradients (default: NonFinitePropagate).
func WithNonFinitePolicy(policy NonFinitePolicy) Option {
	return func(o *options) {
		o.nonFinite = policy
	}
}

// Group is a subset of parameters sharing hyperparameters.
//
// A nil Config inherits the optimizer defaults. A non-nil Config must be of the
// same Kind as the defaults.
type Group struct {
	Params []*nn.Parameter
	Config Config
}

type group struct {
	cfg       Config
	lr        float64
	muProduct float64 // NAdam running product of mu_t
	states    []*paramState
}

// begin advances per-group scalar state for step t.
func (g *group) begin(t int, par parallel.Config) stepContext {
	if c, ok := g.cfg.(NAdamConfig); ok {
		g.muProduct *= c.momentum(t)
	}
	return stepContext{t: t, lr: g.lr, muProduct: g.muProduct, par: par}
}

// stepContext carries the per-step scalars shared by every parameter of a group.
type stepContext struct {
	t         int
	lr        float64
	muProduct float64
	par       parallel.Config
}

// Optimizer binds a parameter set, its per-parameter state and one algorithm
// into a single steppable unit.
type Optimizer struct {
	kind   Kind
	groups []*group
	states map[uuid.UUID]*paramState
	order  []*paramState // All states in parameter order
	t      int           // Timestep for bias correction
	opts   options
}

// New creates an optimizer over params using the algorithm selected by cfg.
func New(params []*nn.Parameter, cfg Config, opts ...Option) (*Optimizer, error) {
	return NewWithGroups([]Group{{Params: params}}, cfg, opts...)
}

// MustNew is like New but panics on error.
func MustNew(params []*nn.Parameter, cfg Config, opts ...Option) *Optimizer {
	opt, err := New(params, cfg, opts...)
	if err != nil {
		panic(err)
	}
	return opt
}

// NewWithGroups creates an optimizer whose parameters are split into groups
// with individual hyperparameter overrides.
//
// All configuration is validated and all state is allocated before returning.
// Fails with ErrInvalidHyperparameter for out-of-range values, empty or
// duplicated parameters, and ErrUnsupportedOperation for sparse or non-float
// parameter tensors.
func NewWithGroups(groups []Group, defaults Config, opts ...Option) (*Optimizer, error) {
	if defaults == nil {
		return nil, errors.Wrap(ErrInvalidHyperparameter, "nil configuration")
	}
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, invalid("params", 0, "optimizer got an empty parameter list")
	}

	o := &Optimizer{
		kind:   defaults.Kind(),
		states: make(map[uuid.UUID]*paramState),
		opts:   newOptions(opts),
	}
	seen := newParamSet()

	for gi, pg := range groups {
		cfg := pg.Config
		if cfg == nil {
			cfg = defaults
		}
		if cfg.Kind() != o.kind {
			return nil, invalid("config", float64(gi),
				fmt.Sprintf("group %d uses %s, optimizer uses %s", gi, cfg.Kind(), o.kind))
		}
		if err := cfg.Validate(); err != nil {
			return nil, errors.Wrapf(err, "group %d", gi)
		}
		if len(pg.Params) == 0 {
			return nil, invalid("params", float64(gi), fmt.Sprintf("group %d has no parameters", gi))
		}

		grp := &group{cfg: cfg, lr: cfg.learningRate(), muProduct: 1}
		for _, param := range pg.Params {
			index := len(o.order)
			if err := seen.add(param, index); err != nil {
				return nil, err
			}
			st := newParamState(param, index, gi, cfg.buffers())
			o.states[param.ID()] = st
			o.order = append(o.order, st)
			grp.states = append(grp.states, st)
		}
		o.groups = append(o.groups, grp)
	}

	o.opts.logger.Debug("optimizer created",
		zap.Stringer("kind", o.kind),
		zap.Int("params", len(o.order)),
		zap.Int("groups", len(o.groups)),
	)
	return o, nil
}

// paramSet tracks the parameters accepted so far by a constructor.
type paramSet struct {
	ids     map[uuid.UUID]struct{}
	tensors map[*tensor.RawTensor]struct{}
}

func newParamSet() *paramSet {
	return &paramSet{
		ids:     make(map[uuid.UUID]struct{}),
		tensors: make(map[*tensor.RawTensor]struct{}),
	}
}

// add rejects nil, repeated, sparse and non-float parameters. Two parameters
// wrapping the same value tensor count as repeated.
func (ps *paramSet) add(param *nn.Parameter, index int) error {
	if param == nil || param.Tensor() == nil {
		return invalid("params", float64(index), fmt.Sprintf("parameter %d is nil", index))
	}
	t := param.Tensor()
	if _, dup := ps.ids[param.ID()]; dup {
		return invalid("params", float64(index),
			fmt.Sprintf("parameter %d (%q) appears more than once", index, param.Name()))
	}
	if _, dup := ps.tensors[t]; dup {
		return invalid("params", float64(index),
			fmt.Sprintf("parameter %d (%q) shares its tensor with another parameter", index, param.Name()))
	}
	if t.Layout() != tensor.Dense {
		return errors.WithStack(&ParameterError{Index: index, Name: param.Name(),
			Err: errors.Wrapf(ErrUnsupportedOperation, "%s parameter layout", t.Layout())})
	}
	if !t.DType().IsFloat() {
		return errors.WithStack(&ParameterError{Index: index, Name: param.Name(),
			Err: errors.Wrapf(ErrUnsupportedOperation, "%s parameter dtype", t.DType())})
	}
	ps.ids[param.ID()] = struct{}{}
	ps.tensors[t] = struct{}{}
	return nil
}

// Step performs a single optimization step.
//
// The step counter advances by exactly one. Each tracked parameter is updated
// with its gradient, looked up in grads by the parameter's value tensor and
// falling back to Parameter.Grad(). A parameter whose gradient is missing,
// sparse, on another device, of another dtype or shape (or non-finite under
// NonFiniteReject) is left untouched, state included, and reported; the other
// parameters are still updated. The returned error is nil or a
// *multierror.Error of *ParameterError values.
func (o *Optimizer) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) error {
	o.t++

	var result *multierror.Error
	for _, grp := range o.groups {
		sc := grp.begin(o.t, o.opts.parallel)
		for _, st := range grp.states {
			grad := gradientFor(st.param, grads)
			if err := checkGradient(st.param, grad, o.opts.nonFinite); err != nil {
				perr := &ParameterError{Index: st.index, Name: st.param.Name(), Err: err}
				o.opts.logger.Debug("parameter update failed",
					zap.Int("step", o.t),
					zap.Int("index", st.index),
					zap.String("name", st.param.Name()),
					zap.Error(err),
				)
				result = multierror.Append(result, perr)
				continue
			}
			applyUpdate(grp.cfg, sc, st, grad)
			st.steps++
		}
	}
	return result.ErrorOrNil()
}

func gradientFor(param *nn.Parameter, grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if grad, ok := grads[param.Tensor()]; ok && grad != nil {
		return grad
	}
	return param.Grad()
}

// checkGradient validates everything that could make an update fail, so that
// no parameter is ever partially updated.
func checkGradient(param *nn.Parameter, grad *tensor.RawTensor, policy NonFinitePolicy) error {
	p := param.Tensor()
	switch {
	case grad == nil:
		return errors.WithStack(ErrMissingGradient)
	case grad.Layout() != tensor.Dense:
		return errors.Wrapf(ErrUnsupportedOperation, "%s gradient layout", grad.Layout())
	case grad.DType() != p.DType():
		return errors.Wrapf(ErrUnsupportedOperation, "gradient dtype %s, parameter dtype %s", grad.DType(), p.DType())
	case grad.Device() != p.Device():
		return errors.Wrapf(ErrUnsupportedOperation, "gradient on %s, parameter on %s", grad.Device(), p.Device())
	case !grad.Shape().Equal(p.Shape()):
		return errors.Wrapf(ErrShapeMismatch, "gradient shape %v, parameter shape %v", grad.Shape(), p.Shape())
	case policy == NonFiniteReject && !allFinite(grad):
		return errors.WithStack(ErrNonFiniteGradient)
	}
	return nil
}

func applyUpdate(cfg Config, sc stepContext, st *paramState, grad *tensor.RawTensor) {
	switch st.param.Tensor().DType() {
	case tensor.Float32:
		applyRule[float32](cfg, sc, st, grad)
	case tensor.Float64:
		applyRule[float64](cfg, sc, st, grad)
	default:
		panic(fmt.Sprintf("optim: unsupported dtype %s", st.param.Tensor().DType()))
	}
}

// applyRule dispatches to the update rule of cfg's algorithm.
func applyRule[T constraints.Float](cfg Config, sc stepContext, st *paramState, grad *tensor.RawTensor) {
	p, g := view[T](st.param.Tensor()), view[T](grad)
	buf := func(name string) []T { return view[T](st.buffers[name]) }

	switch c := cfg.(type) {
	case SGDConfig:
		sgdUpdate(c, sc, p, g, buf(bufMomentum), st.steps == 0)
	case AdaGradConfig:
		adagradUpdate(c, sc, p, g, buf(bufSum))
	case AdaDeltaConfig:
		adadeltaUpdate(c, sc, p, g, buf(bufSquareAvg), buf(bufAccDelta))
	case AdaMaxConfig:
		adamaxUpdate(c, sc, p, g, buf(bufExpAvg), buf(bufExpInf))
	case AdamConfig:
		adamUpdate(c, sc, p, g, buf(bufExpAvg), buf(bufExpAvgSq), buf(bufMaxExpAvgSq))
	case NAdamConfig:
		nadamUpdate(c, sc, p, g, buf(bufExpAvg), buf(bufExpAvgSq))
	case RAdamConfig:
		radamUpdate(c, sc, p, g, buf(bufExpAvg), buf(bufExpAvgSq))
	case RMSpropConfig:
		rmspropUpdate(c, sc, p, g, buf(bufSquareAvg), buf(bufGradAvg), buf(bufMomentum))
	default:
		panic(fmt.Sprintf("optim: unhandled config %T", cfg))
	}
}

// ZeroGrad clears gradients for all parameters.
func (o *Optimizer) ZeroGrad() {
	for _, st := range o.order {
		st.param.ZeroGrad()
	}
}

// GetLR returns the current learning rate of the first group.
func (o *Optimizer) GetLR() float64 {
	return o.groups[0].lr
}

// SetLR updates the learning rate of every group.
//
// Useful for learning rate scheduling during training.
func (o *Optimizer) SetLR(lr float64) {
	for _, grp := range o.groups {
		grp.lr = lr
	}
}

// NumGroups returns the number of parameter groups.
func (o *Optimizer) NumGroups() int {
	return len(o.groups)
}

// GroupLR returns the current learning rate of group i.
func (o *Optimizer) GroupLR(i int) float64 {
	return o.groups[i].lr
}

// SetGroupLR updates the learning rate of group i.
func (o *Optimizer) SetGroupLR(i int, lr float64) {
	o.groups[i].lr = lr
}

// GroupConfig returns the configuration of group i with its current learning rate.
func (o *Optimizer) GroupConfig(i int) Config {
	grp := o.groups[i]
	return grp.cfg.withLearningRate(grp.lr)
}

// GetTimestep returns the number of Step calls so far.
func (o *Optimizer) GetTimestep() int {
	return o.t
}

// Phase returns the lifecycle phase.
func (o *Optimizer) Phase() Phase {
	if o.t == 0 {
		return PhaseUninitialized
	}
	return PhaseStepping
}

// Kind returns the optimizer's algorithm.
func (o *Optimizer) Kind() Kind {
	return o.kind
}

// NumParams returns the number of tracked parameters.
func (o *Optimizer) NumParams() int {
	return len(o.order)
}

// Parameters returns the tracked parameters in order.
func (o *Optimizer) Parameters() []*nn.Parameter {
	params := make([]*nn.Parameter, len(o.order))
	for i, st := range o.order {
		params[i] = st.param
	}
	return params
}

// State returns the live state buffers of param keyed by buffer name.
//
// The returned tensors are owned by the optimizer and must not be modified.
func (o *Optimizer) State(param *nn.Parameter) (map[string]*tensor.RawTensor, bool) {
	if param == nil {
		return nil, false
	}
	st, ok := o.states[param.ID()]
	if !ok {
		return nil, false
	}
	out := make(map[string]*tensor.RawTensor, len(st.buffers))
	for name, buf := range st.buffers {
		out[name] = buf
	}
	return out, true
}
