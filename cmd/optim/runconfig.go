package main

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/optimizers/optim"
)

// RunConfig describes one minimization run.
//
// Example run.yaml:
//
//	optimizer: adamw
//	objective: rosenbrock
//	steps: 2000
//	start: [-1.5, 2.0]
//	log_every: 100
//	hyperparameters:
//	  lr: 0.01
//	  weight_decay: 0.0
type RunConfig struct {
	Optimizer       string    `yaml:"optimizer"`
	Objective       string    `yaml:"objective"`
	Steps           int       `yaml:"steps"`
	Start           []float64 `yaml:"start"`
	LogEvery        int       `yaml:"log_every"`
	Hyperparameters yaml.Node `yaml:"hyperparameters"`
}

// DefaultRunConfig returns the run used when neither flags nor a file say otherwise.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Optimizer: "adam",
		Objective: "quadratic",
		Steps:     200,
		LogEvery:  20,
	}
}

// lbfgsName selects optim.LBFGS, which is not one of optim.Kinds.
const lbfgsName = "lbfgs"

// LoadRunConfig reads a YAML run file on top of DefaultRunConfig.
// Unknown keys are errors.
func LoadRunConfig(path string) (RunConfig, error) {
	cfg := DefaultRunConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading run config %s", path)
	}
	if err := decodeStrict(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing run config %s", path)
	}
	return cfg, nil
}

// Validate reports the first unusable run setting.
func (c RunConfig) Validate() error {
	if c.Steps <= 0 {
		return errors.Errorf("steps must be positive, got %d", c.Steps)
	}
	if c.LogEvery < 0 {
		return errors.Errorf("log_every must be non-negative, got %d", c.LogEvery)
	}
	if c.Start != nil && len(c.Start) == 0 {
		return errors.New("start must not be empty")
	}
	return nil
}

// IsLBFGS reports whether the run uses the closure-driven L-BFGS optimizer.
func (c RunConfig) IsLBFGS() bool {
	return strings.EqualFold(strings.TrimSpace(c.Optimizer), lbfgsName)
}

// LBFGSConfig decodes the hyperparameters onto DefaultLBFGSConfig.
func (c RunConfig) LBFGSConfig() (optim.LBFGSConfig, error) {
	cfg := optim.DefaultLBFGSConfig()
	if !c.IsLBFGS() {
		return cfg, errors.Wrapf(optim.ErrUnsupportedOperation, "optimizer %q is not %s", c.Optimizer, lbfgsName)
	}
	if err := decodeNode(&c.Hyperparameters, &cfg); err != nil {
		return cfg, errors.Wrap(err, "decoding hyperparameters")
	}
	return cfg, nil
}

// OptimizerConfig decodes the hyperparameters onto the defaults of the
// selected algorithm. "adamw" starts from the AdamW defaults.
func (c RunConfig) OptimizerConfig() (optim.Config, error) {
	kind, err := optim.ParseKind(c.Optimizer)
	if err != nil {
		return nil, err
	}

	var cfg optim.Config
	switch kind {
	case optim.KindSGD:
		cfg, err = decodeOnto(&c.Hyperparameters, optim.DefaultSGDConfig())
	case optim.KindAdaGrad:
		cfg, err = decodeOnto(&c.Hyperparameters, optim.DefaultAdaGradConfig())
	case optim.KindAdaDelta:
		cfg, err = decodeOnto(&c.Hyperparameters, optim.DefaultAdaDeltaConfig())
	case optim.KindAdaMax:
		cfg, err = decodeOnto(&c.Hyperparameters, optim.DefaultAdaMaxConfig())
	case optim.KindAdam:
		defaults := optim.DefaultAdamConfig()
		if strings.EqualFold(strings.TrimSpace(c.Optimizer), "adamw") {
			defaults = optim.DefaultAdamWConfig()
		}
		cfg, err = decodeOnto(&c.Hyperparameters, defaults)
	case optim.KindNAdam:
		cfg, err = decodeOnto(&c.Hyperparameters, optim.DefaultNAdamConfig())
	case optim.KindRAdam:
		cfg, err = decodeOnto(&c.Hyperparameters, optim.DefaultRAdamConfig())
	case optim.KindRMSprop:
		cfg, err = decodeOnto(&c.Hyperparameters, optim.DefaultRMSpropConfig())
	default:
		return nil, errors.Wrapf(optim.ErrUnsupportedOperation, "optimizer %s", kind)
	}
	if err != nil {
		return nil, errors.Wrap(err, "decoding hyperparameters")
	}
	return cfg, nil
}

func decodeOnto[C optim.Config](node *yaml.Node, defaults C) (optim.Config, error) {
	if err := decodeNode(node, &defaults); err != nil {
		return nil, err
	}
	return defaults, nil
}

// decodeNode decodes node into out, rejecting keys out does not have.
// An absent node leaves out unchanged.
func decodeNode(node *yaml.Node, out any) error {
	if node.Kind == 0 {
		return nil
	}
	data, err := yaml.Marshal(node)
	if err != nil {
		return errors.WithStack(err)
	}
	return decodeStrict(data, out)
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
