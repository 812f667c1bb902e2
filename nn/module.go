// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/optimizers/internal/nn"
)

// Module is anything that owns trainable parameters.
//
// Modules hand their parameters to an optimizer:
//
//	optimizer, err := optim.NewAdam(model.Parameters(), optim.DefaultAdamConfig())
type Module = nn.Module

// ParameterList is an ordered, name-addressable collection of parameters.
type ParameterList = nn.ParameterList

// NewParameterList creates a list holding params in order.
func NewParameterList(params ...*Parameter) *ParameterList {
	return nn.NewParameterList(params...)
}
