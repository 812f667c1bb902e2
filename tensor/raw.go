// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/optimizers/internal/tensor"
)

// RawTensor is the low-level tensor representation.
//
// RawTensor provides:
//   - Shape and type information via Shape(), DType(), Device(), Layout()
//   - Zero-copy element access via AsFloat32(), AsFloat64(), AsInt64()
//   - Deep copies via Clone() and CopyFrom()
//
// Example:
//
//	raw, _ := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
//	data := raw.AsFloat32()  // Writes go straight to the tensor
//	clone := raw.Clone()     // Independent copy
type RawTensor = tensor.RawTensor

// Shape represents tensor dimensions.
type Shape = tensor.Shape

// DataType represents runtime type information.
type DataType = tensor.DataType

// Layout describes how tensor elements are stored.
type Layout = tensor.Layout

// Device represents compute device.
type Device = tensor.Device

// Data type constants.
const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
	Int32   = tensor.Int32
	Int64   = tensor.Int64
)

// Layout constants.
const (
	Dense  = tensor.Dense
	Sparse = tensor.Sparse
)

// Device constants.
const (
	CPU    = tensor.CPU
	CUDA   = tensor.CUDA
	Vulkan = tensor.Vulkan
	Metal  = tensor.Metal
	WebGPU = tensor.WebGPU
)

// NewRaw creates a new dense zero-filled tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// NewSparse creates a sparse tensor header. Optimizers reject sparse tensors.
func NewSparse(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewSparse(shape, dtype, device)
}

// FromFloat32 creates a dense float32 CPU tensor holding a copy of data.
func FromFloat32(data []float32, shape Shape) (*RawTensor, error) {
	return tensor.FromFloat32(data, shape)
}

// FromFloat64 creates a dense float64 CPU tensor holding a copy of data.
func FromFloat64(data []float64, shape Shape) (*RawTensor, error) {
	return tensor.FromFloat64(data, shape)
}

// ZerosLike allocates a zero-filled dense tensor matching r.
func ZerosLike(r *RawTensor) *RawTensor {
	return tensor.ZerosLike(r)
}
