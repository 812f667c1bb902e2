// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/optimizers/internal/nn"
	"github.com/born-ml/optimizers/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// Example:
//
//	// Create a weight parameter
//	weight := nn.NewParameter("weight", weightTensor)
//
//	// Access the tensor
//	w := weight.Tensor()
//
//	// Get gradient after backward pass
//	grad := weight.Grad()
//
// Methods:
//
//	ID() uuid.UUID
//	    Returns the stable identifier optimizers key their state by.
//
//	Name() string
//	    Returns the parameter name (e.g., "weight", "bias").
//
//	Tensor() *tensor.RawTensor
//	    Returns the parameter tensor.
//
//	Grad() *tensor.RawTensor
//	    Returns the gradient tensor (nil if not computed yet).
//
//	SetGrad(grad *tensor.RawTensor)
//	    Sets the gradient tensor.
//
//	ZeroGrad()
//	    Clears the gradient tensor.
type Parameter = nn.Parameter

// NewParameter creates a new trainable parameter wrapping t.
func NewParameter(name string, t *tensor.RawTensor) *Parameter {
	return nn.NewParameter(name, t)
}
