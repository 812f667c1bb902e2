// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the host-memory tensors that optimizers read
// gradients from and update in place.
//
// # Overview
//
// A RawTensor is a dense (or sparse-tagged) buffer with a shape, a data type
// and a device tag. This package does no arithmetic of its own: tensors are
// produced by an external engine and handed to the optimizers in package optim.
//
// # Basic Usage
//
//	import "github.com/born-ml/optimizers/tensor"
//
//	func main() {
//	    w, _ := tensor.FromFloat32([]float32{1, 2, 3, 4}, tensor.Shape{2, 2})
//	    g := tensor.ZerosLike(w)
//	    g.AsFloat32()[0] = 0.5
//	}
//
// # Supported Data Types
//
//   - float32, float64 (updatable by every optimizer)
//   - int32, int64 (step counters in state dictionaries)
package tensor
