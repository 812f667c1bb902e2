package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/born-ml/optimizers/optim"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunCommand(t *testing.T) {
	out, err := execute(t, "run", "--optimizer", "adam", "--steps", "300", "--lr", "0.1", "--log-every", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "step=100 ")
	assert.Contains(t, out, "step=300 ")
	assert.Contains(t, out, "final step=300")
}

func TestRunCommand_ConfigFile(t *testing.T) {
	path := writeFile(t, `
optimizer: sgd
objective: rosenbrock
steps: 50
start: [-1.0, 1.0]
log_every: 0
hyperparameters:
  lr: 0.0001
  momentum: 0.9
`)
	out, err := execute(t, "run", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.True(t, strings.HasPrefix(out, "final step=50 "))

	// Flags win over the file.
	out, err = execute(t, "run", "--config", path, "--steps", "20")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "final step=20 "))
}

func TestRunCommand_Errors(t *testing.T) {
	zeroEps := writeFile(t, "optimizer: rmsprop\nhyperparameters:\n  eps: 0\n")
	unknownKey := writeFile(t, "optimizer: adam\niterations: 10\n")
	unknownHyper := writeFile(t, "optimizer: adam\nhyperparameters:\n  learning_rate: 0.1\n")
	badLineSearch := writeFile(t, "optimizer: lbfgs\nhyperparameters:\n  line_search: armijo\n")
	zeroHistory := writeFile(t, "optimizer: lbfgs\nhyperparameters:\n  history_size: 0\n")
	tests := map[string]struct {
		args []string
		want error
	}{
		"UnknownOptimizer": {args: []string{"run", "--optimizer", "lion"}, want: optim.ErrUnsupportedOperation},
		"UnknownKey":       {args: []string{"run", "--config", unknownKey}},
		"UnknownHyper":     {args: []string{"run", "--config", unknownHyper}},
		"BadLineSearch":    {args: []string{"run", "--config", badLineSearch}, want: optim.ErrInvalidHyperparameter},
		"LBFGSZeroHistory": {args: []string{"run", "--config", zeroHistory}, want: optim.ErrInvalidHyperparameter},
		"NegativeLR":       {args: []string{"run", "--lr=-1"}, want: optim.ErrInvalidHyperparameter},
		"ZeroEps":          {args: []string{"run", "--config", zeroEps}, want: optim.ErrInvalidHyperparameter},
		"UnknownObjective": {args: []string{"run", "--objective", "himmelblau"}},
		"ZeroSteps":        {args: []string{"run", "--steps", "0"}},
		"MissingFile":      {args: []string{"run", "--config", filepath.Join(t.TempDir(), "missing.yaml")}},
		"BadLogLevel":      {args: []string{"version", "--log-level", "loud"}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cmd := rootCmd()
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)
			cmd.SetArgs(tc.args)
			err := cmd.Execute()
			require.Error(t, err)
			if tc.want != nil {
				assert.True(t, errors.Is(err, tc.want), "got %v", err)
			}
		})
	}
}

func TestRunCommand_LBFGS(t *testing.T) {
	path := writeFile(t, `
optimizer: lbfgs
objective: rosenbrock
steps: 100
log_every: 0
hyperparameters:
  line_search: strong_wolfe
`)
	out, err := execute(t, "run", "--config", path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "final step=100 "), out)

	// The quadratic is solved within the first step.
	out, err = execute(t, "run", "--optimizer", "lbfgs", "--steps", "50", "--log-every", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "step=1 ")
	assert.Contains(t, out, "final step=1 ")

	_, err = execute(t, "run", "--optimizer", "lbfgs", "--lr", "0.5", "--steps", "5")
	require.NoError(t, err)
}

func TestListCommand(t *testing.T) {
	out, err := execute(t, "list")
	require.NoError(t, err)
	for _, kind := range optim.Kinds() {
		assert.Contains(t, out, kind.String()+":\n")
	}
	assert.Contains(t, out, "adamw:\n")
	assert.Contains(t, out, "lbfgs:\n")
	assert.Contains(t, out, "line_search: none")
	assert.Contains(t, out, "weight_decay_mode: decoupled")
	assert.Contains(t, out, "objectives: quadratic, rosenbrock")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "optim "+version+"\n", out)
}

func TestRunConfig_OptimizerConfig(t *testing.T) {
	path := writeFile(t, "optimizer: AdamW\nhyperparameters:\n  lr: 0.01\n")
	cfg, err := LoadRunConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "quadratic", cfg.Objective)
	assert.Equal(t, 200, cfg.Steps)

	optCfg, err := cfg.OptimizerConfig()
	require.NoError(t, err)
	want := optim.DefaultAdamWConfig()
	want.LR = 0.01
	assert.Equal(t, want, optCfg)

	optCfg, err = RunConfig{Optimizer: "radam"}.OptimizerConfig()
	require.NoError(t, err)
	assert.Equal(t, optim.DefaultRAdamConfig(), optCfg)

	_, err = RunConfig{Optimizer: "lbfgs"}.OptimizerConfig()
	assert.True(t, errors.Is(err, optim.ErrUnsupportedOperation), "got %v", err)
}

func TestRunConfig_LBFGSConfig(t *testing.T) {
	path := writeFile(t, "optimizer: LBFGS\nhyperparameters:\n  max_iter: 5\n  line_search: strong_wolfe\n")
	cfg, err := LoadRunConfig(path)
	require.NoError(t, err)
	require.True(t, cfg.IsLBFGS())

	lcfg, err := cfg.LBFGSConfig()
	require.NoError(t, err)
	want := optim.DefaultLBFGSConfig()
	want.MaxIter = 5
	want.LineSearch = optim.LineSearchStrongWolfe
	assert.Equal(t, want, lcfg)

	_, err = RunConfig{Optimizer: "lbfgs:"}.LBFGSConfig()
	assert.True(t, errors.Is(err, optim.ErrUnsupportedOperation), "got %v", err)
}

func TestLoadRunConfig_UnknownFields(t *testing.T) {
	tests := map[string]string{
		"TopLevel":        "optimizer: adam\nstep: 10\n",
		"Hyperparameters": "optimizer: sgd\nhyperparameters:\n  learning_rate: 0.1\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			cfg, err := LoadRunConfig(writeFile(t, content))
			if err == nil {
				_, err = cfg.OptimizerConfig()
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), "not found")
		})
	}

	cfg, err := LoadRunConfig(writeFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultRunConfig().Steps, cfg.Steps)
}

func TestRunner_EveryOptimizerDescends(t *testing.T) {
	names := []string{"adamw", "lbfgs"}
	for _, kind := range optim.Kinds() {
		names = append(names, kind.String())
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			cfg := RunConfig{Optimizer: name, Objective: "quadratic", Steps: 500}
			r, err := newRunner(cfg)
			require.NoError(t, err)

			res, err := r.Run(context.Background(), io.Discard, zap.NewNop())
			require.NoError(t, err)
			assert.LessOrEqual(t, res.Steps, 500)
			// f(0, 0) = 18 for the quadratic centered at 3.
			assert.Less(t, res.Loss, 18.0)
		})
	}
}

func TestRunner_Cancelled(t *testing.T) {
	r, err := newRunner(DefaultRunConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := r.Run(ctx, io.Discard, zap.NewNop())
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, res.Steps)
	assert.Equal(t, []float64{0, 0}, res.X)
}
