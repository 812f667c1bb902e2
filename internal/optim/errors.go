package optim

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// Error categories. Every error returned by this package matches exactly one
// of these with errors.Is.
var (
	// ErrInvalidHyperparameter is returned at construction when a configuration
	// value is out of range.
	ErrInvalidHyperparameter = errors.New("invalid hyperparameter")
	// ErrShapeMismatch is returned when a gradient's shape differs from its parameter's.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrUnsupportedOperation is returned for tensor representations an optimizer
	// cannot update in place (sparse layout, non-float dtype).
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrMissingGradient is returned when a tracked parameter has no gradient for a step.
	ErrMissingGradient = errors.New("missing gradient")
	// ErrNonFiniteGradient is returned under NonFiniteReject when a gradient holds NaN or Inf.
	ErrNonFiniteGradient = errors.New("non-finite gradient")
)

// HyperparameterError describes a rejected configuration value.
// Message is optional and is omitted from the error message if not provided.
type HyperparameterError struct {
	Name    string  // Name of the field, e.g., "eps"
	Value   float64 // The rejected value
	Message string  // Why the value is invalid, e.g., "must be > 0"
}

func (err *HyperparameterError) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("%s: value %v is invalid for %q", ErrInvalidHyperparameter, err.Value, err.Name)
	}
	return fmt.Sprintf("%s: value %v is invalid for %q; %s", ErrInvalidHyperparameter, err.Value, err.Name, err.Message)
}

// Unwrap makes HyperparameterError match ErrInvalidHyperparameter.
func (err *HyperparameterError) Unwrap() error {
	return ErrInvalidHyperparameter
}

// ParameterError reports the failure of a single parameter during construction or Step.
type ParameterError struct {
	Index int    // Position of the parameter across all groups
	Name  string // Parameter name
	Err   error  // Underlying cause
}

func (err *ParameterError) Error() string {
	return fmt.Sprintf("parameter %d (%q): %v", err.Index, err.Name, err.Err)
}

// Unwrap returns the underlying cause.
func (err *ParameterError) Unwrap() error {
	return err.Err
}

func invalid(name string, value float64, message string) error {
	return errors.WithStack(&HyperparameterError{Name: name, Value: value, Message: message})
}

func checkNonNegative(name string, value float64) error {
	if !(value >= 0) || math.IsInf(value, 1) {
		return invalid(name, value, "outside allowed range [0, Inf)")
	}
	return nil
}

func checkPositive(name string, value float64) error {
	if !(value > 0) || math.IsInf(value, 1) {
		return invalid(name, value, "outside allowed range (0, Inf)")
	}
	return nil
}

// checkDecay validates a moving-average coefficient.
func checkDecay(name string, value float64) error {
	if !(value >= 0 && value < 1) {
		return invalid(name, value, "outside allowed range [0, 1)")
	}
	return nil
}

func checkUnitClosed(name string, value float64) error {
	if !(value >= 0 && value <= 1) {
		return invalid(name, value, "outside allowed range [0, 1]")
	}
	return nil
}
