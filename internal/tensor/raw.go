package tensor

import (
	"fmt"
	"unsafe"

	"github.com/pkg/errors"
)

// Device represents the compute device for tensor operations.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	CUDA
	Vulkan
	Metal
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case CUDA:
		return "CUDA"
	case Vulkan:
		return "Vulkan"
	case Metal:
		return "Metal"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// RawTensor is the low-level tensor representation.
//
// Element data always lives in a host byte buffer; the device tag records where
// the owning engine placed the tensor so that derived buffers can follow it.
type RawTensor struct {
	data   []byte   // Element storage (nil for sparse tensors)
	shape  Shape    // Tensor dimensions
	dtype  DataType // Runtime type information
	device Device   // Compute device
	layout Layout   // Storage layout
}

// NewRaw creates a new dense RawTensor with the given shape and type.
// Memory is zero-initialized.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid shape")
	}

	return &RawTensor{
		data:   make([]byte, shape.NumElements()*dtype.Size()),
		shape:  shape.Clone(),
		dtype:  dtype,
		device: device,
		layout: Dense,
	}, nil
}

// NewSparse creates a sparse tensor header with the given shape and type.
//
// Sparse tensors carry no dense element buffer; consumers that need raw element
// access must reject them.
func NewSparse(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid shape")
	}
	return &RawTensor{
		shape:  shape.Clone(),
		dtype:  dtype,
		device: device,
		layout: Sparse,
	}, nil
}

// FromFloat32 creates a dense float32 CPU tensor holding a copy of data.
func FromFloat32(data []float32, shape Shape) (*RawTensor, error) {
	t, err := NewRaw(shape, Float32, CPU)
	if err != nil {
		return nil, err
	}
	if len(data) != t.NumElements() {
		return nil, errors.Errorf("data length %d does not match shape %v (%d elements)", len(data), shape, t.NumElements())
	}
	copy(t.AsFloat32(), data)
	return t, nil
}

// FromFloat64 creates a dense float64 CPU tensor holding a copy of data.
func FromFloat64(data []float64, shape Shape) (*RawTensor, error) {
	t, err := NewRaw(shape, Float64, CPU)
	if err != nil {
		return nil, err
	}
	if len(data) != t.NumElements() {
		return nil, errors.Errorf("data length %d does not match shape %v (%d elements)", len(data), shape, t.NumElements())
	}
	copy(t.AsFloat64(), data)
	return t, nil
}

// ZerosLike allocates a zero-filled dense tensor with the shape, dtype and
// device of r.
func ZerosLike(r *RawTensor) *RawTensor {
	return &RawTensor{
		data:   make([]byte, r.NumElements()*r.dtype.Size()),
		shape:  r.shape.Clone(),
		dtype:  r.dtype,
		device: r.device,
		layout: Dense,
	}
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// Layout returns the tensor's storage layout.
func (r *RawTensor) Layout() Layout {
	return r.layout
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return len(r.data)
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.data
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32 or the tensor is not dense.
func (r *RawTensor) AsFloat32() []float32 {
	r.mustDense(Float32)
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64 or the tensor is not dense.
func (r *RawTensor) AsFloat64() []float64 {
	r.mustDense(Float64)
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*float64)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsInt64 interprets the data as []int64.
// Panics if the tensor's dtype is not Int64 or the tensor is not dense.
func (r *RawTensor) AsInt64() []int64 {
	r.mustDense(Int64)
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*int64)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

func (r *RawTensor) mustDense(dtype DataType) {
	if r.layout != Dense {
		panic(fmt.Sprintf("tensor layout is %s, not dense", r.layout))
	}
	if r.dtype != dtype {
		panic(fmt.Sprintf("tensor dtype is %s, not %s", r.dtype, dtype))
	}
}

// Clone returns a deep copy of the tensor.
func (r *RawTensor) Clone() *RawTensor {
	c := &RawTensor{
		shape:  r.shape.Clone(),
		dtype:  r.dtype,
		device: r.device,
		layout: r.layout,
	}
	if r.data != nil {
		c.data = append([]byte(nil), r.data...)
	}
	return c
}

// CopyFrom overwrites r's elements with those of src.
//
// Both tensors must be dense with identical shape and dtype.
func (r *RawTensor) CopyFrom(src *RawTensor) error {
	if r.layout != Dense || src.layout != Dense {
		return errors.Errorf("copy requires dense tensors, got %s and %s", r.layout, src.layout)
	}
	if r.dtype != src.dtype {
		return errors.Errorf("dtype mismatch: expected %s, got %s", r.dtype, src.dtype)
	}
	if !r.shape.Equal(src.shape) {
		return errors.Errorf("shape mismatch: expected %v, got %v", r.shape, src.shape)
	}
	copy(r.data, src.data)
	return nil
}
