// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimization algorithms for training neural networks.
//
// # Overview
//
// This package contains:
//   - SGD: Stochastic Gradient Descent with momentum, dampening and Nesterov
//   - AdaGrad, AdaDelta and AdaMax
//   - Adam and AdamW: Adaptive Moment Estimation with bias correction
//   - NAdam: Adam with Nesterov momentum
//   - RAdam: Adam with variance rectification
//   - RMSprop: plain, centered and with momentum
//   - L-BFGS: limited-memory quasi-Newton, optionally with a strong Wolfe line search
//
// Every algorithm is driven through the same Optimizer type. State buffers are
// allocated when the optimizer is created and hyperparameters are validated at
// the same time, so Step only fails for problems with the gradients it is given.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/optimizers/nn"
//	    "github.com/born-ml/optimizers/optim"
//	)
//
//	func main() {
//	    optimizer, err := optim.NewAdam(model.Parameters(), optim.DefaultAdamConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    // Training loop
//	    for epoch := range 10 {
//	        // Backward pass
//	        grads := engine.Backward(loss)
//
//	        // Update parameters
//	        if err := optimizer.Step(grads); err != nil {
//	            log.Fatal(err)
//	        }
//	        optimizer.ZeroGrad()
//	    }
//	}
//
// # Optimizers
//
// SGD (Stochastic Gradient Descent):
//
//	optimizer, err := optim.NewSGD(
//	    model.Parameters(),
//	    optim.SGDConfig{
//	        LR:       0.01,
//	        Momentum: 0.9,
//	    },
//	)
//
// AdamW (decoupled weight decay):
//
//	optimizer, err := optim.NewAdamW(model.Parameters(), optim.DefaultAdamWConfig())
//
// Parameter groups with their own learning rates:
//
//	optimizer, err := optim.NewWithGroups([]optim.Group{
//	    {Params: backbone.Parameters()},
//	    {Params: head.Parameters(), Config: optim.SGDConfig{LR: 0.1, Momentum: 0.9}},
//	}, optim.SGDConfig{LR: 0.01, Momentum: 0.9})
//
// L-BFGS re-evaluates the loss several times per step, so it has its own type
// and Step takes a closure instead of a gradient map:
//
//	optimizer, err := optim.NewLBFGS(model.Parameters(), optim.LBFGSConfig{
//	    LR: 1, MaxIter: 20, HistorySize: 100, LineSearch: optim.LineSearchStrongWolfe,
//	    ToleranceGrad: 1e-7, ToleranceChange: 1e-9, C1: 1e-4, C2: 0.9,
//	})
//	res, err := optimizer.Step(closure)
//
// # Errors
//
// Construction fails with ErrInvalidHyperparameter or ErrUnsupportedOperation.
// Step returns a multi-error of *ParameterError values; a failing parameter is
// left untouched and the others are still updated.
//
// # Concurrency
//
// An Optimizer must not be stepped from several goroutines at once. Large
// tensors are updated in parallel chunks internally (see WithParallel).
package optim
