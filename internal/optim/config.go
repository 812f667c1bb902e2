package optim

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind identifies an optimization algorithm.
type Kind int

// Supported algorithms.
const (
	KindSGD Kind = iota
	KindAdaGrad
	KindAdaDelta
	KindAdaMax
	KindAdam
	KindNAdam
	KindRAdam
	KindRMSprop
)

var kindNames = map[Kind]string{
	KindSGD:      "sgd",
	KindAdaGrad:  "adagrad",
	KindAdaDelta: "adadelta",
	KindAdaMax:   "adamax",
	KindAdam:     "adam",
	KindNAdam:    "nadam",
	KindRAdam:    "radam",
	KindRMSprop:  "rmsprop",
}

// Kinds returns every supported algorithm in declaration order.
func Kinds() []Kind {
	return []Kind{KindSGD, KindAdaGrad, KindAdaDelta, KindAdaMax, KindAdam, KindNAdam, KindRAdam, KindRMSprop}
}

// String returns the lower-case algorithm name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind returns the Kind for a case-insensitive algorithm name.
// "adamw" is accepted as an alias of "adam".
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "adamw" {
		return KindAdam, nil
	}
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, errors.Wrapf(ErrUnsupportedOperation, "unknown optimizer %q", name)
}

// WeightDecayMode selects how weight decay enters an update.
type WeightDecayMode int

const (
	// WeightDecayCoupled adds weight_decay*param to the gradient (L2 penalty).
	WeightDecayCoupled WeightDecayMode = iota
	// WeightDecayDecoupled shrinks the parameter by lr*weight_decay*param
	// independently of the adaptive step (AdamW).
	WeightDecayDecoupled
)

// String returns "coupled" or "decoupled".
func (m WeightDecayMode) String() string {
	switch m {
	case WeightDecayCoupled:
		return "coupled"
	case WeightDecayDecoupled:
		return "decoupled"
	default:
		return fmt.Sprintf("WeightDecayMode(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m WeightDecayMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *WeightDecayMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "coupled", "l2", "":
		*m = WeightDecayCoupled
	case "decoupled", "adamw":
		*m = WeightDecayDecoupled
	default:
		return invalid("weight_decay_mode", float64(-1), fmt.Sprintf("unknown mode %q", text))
	}
	return nil
}

func checkMode(m WeightDecayMode) error {
	if m != WeightDecayCoupled && m != WeightDecayDecoupled {
		return invalid("weight_decay_mode", float64(m), "must be coupled or decoupled")
	}
	return nil
}

// Config is the hyperparameter set of one algorithm.
//
// Config is closed: it is implemented only by the configuration structs of
// this package (SGDConfig, AdaGradConfig, AdaDeltaConfig, AdaMaxConfig,
// AdamConfig, NAdamConfig, RAdamConfig, RMSpropConfig).
type Config interface {
	// Kind returns the algorithm this configuration belongs to.
	Kind() Kind
	// Validate reports the first out-of-range hyperparameter.
	Validate() error

	learningRate() float64
	withLearningRate(lr float64) Config
	// buffers lists the per-parameter state buffers the algorithm keeps.
	buffers() []string
}

// Per-parameter state buffer names.
const (
	bufMomentum    = "momentum_buffer"
	bufExpAvg      = "exp_avg"
	bufExpAvgSq    = "exp_avg_sq"
	bufMaxExpAvgSq = "max_exp_avg_sq"
	bufExpInf      = "exp_inf"
	bufSum         = "sum"
	bufSquareAvg   = "square_avg"
	bufAccDelta    = "acc_delta"
	bufGradAvg     = "grad_avg"
)
