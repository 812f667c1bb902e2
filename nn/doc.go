// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the trainable parameter handles updated by package optim.
//
// # Overview
//
// A Parameter pairs a value tensor with a gradient slot and a stable
// identifier. Models expose their parameters through the Module interface;
// ParameterList is the simplest Module.
//
// # Basic Usage
//
//	w, _ := tensor.FromFloat32([]float32{0.1, -0.2}, tensor.Shape{2})
//	model := nn.NewParameterList(nn.NewParameter("weight", w))
//
//	optimizer, err := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.01})
package nn
