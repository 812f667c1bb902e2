package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/optimizers/nn"
	"github.com/born-ml/optimizers/optim"
	"github.com/born-ml/optimizers/tensor"
)

func runCmd(a *app) *cobra.Command {
	var (
		configPath string
		lr         float64
		start      []float64
	)
	run := DefaultRunConfig()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Minimize an objective with one optimizer",
		Long: `Minimizes a built-in objective and prints the trajectory.

Flags override values from --config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := run
			if configPath != "" {
				loaded, err := LoadRunConfig(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
				flags := cmd.Flags()
				if flags.Changed("optimizer") {
					cfg.Optimizer = run.Optimizer
				}
				if flags.Changed("objective") {
					cfg.Objective = run.Objective
				}
				if flags.Changed("steps") {
					cfg.Steps = run.Steps
				}
				if flags.Changed("log-every") {
					cfg.LogEvery = run.LogEvery
				}
			}
			if cmd.Flags().Changed("start") {
				cfg.Start = start
			}

			opts := []optim.Option{optim.WithLogger(a.logger.Named("optim"))}
			r, err := newRunner(cfg, opts...)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("lr") {
				if !(lr >= 0) {
					return errors.Wrapf(optim.ErrInvalidHyperparameter, "--lr %v must be non-negative", lr)
				}
				r.setLR(lr)
			}
			_, err = r.Run(cmd.Context(), cmd.OutOrStdout(), a.logger)
			return err
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML run configuration file")
	cmd.Flags().StringVar(&run.Optimizer, "optimizer", run.Optimizer, "Optimizer name (see 'optim list')")
	cmd.Flags().StringVar(&run.Objective, "objective", run.Objective, "Objective to minimize (quadratic, rosenbrock)")
	cmd.Flags().IntVar(&run.Steps, "steps", run.Steps, "Number of optimizer steps")
	cmd.Flags().IntVar(&run.LogEvery, "log-every", run.LogEvery, "Print the trajectory every N steps (0 prints only the result)")
	cmd.Flags().Float64Var(&lr, "lr", 0, "Override the learning rate")
	cmd.Flags().Float64SliceVar(&start, "start", nil, "Starting point, e.g. --start=-1.5,2")
	return cmd
}

// Result summarizes a finished run.
type Result struct {
	Steps int
	Loss  float64
	X     []float64
}

// runner drives exactly one of opt and lbfgs.
type runner struct {
	cfg       RunConfig
	objective Objective
	param     *nn.Parameter
	grad      *tensor.RawTensor
	opt       *optim.Optimizer
	lbfgs     *optim.LBFGS
}

func newRunner(cfg RunConfig, opts ...optim.Option) (*runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	obj, err := lookupObjective(cfg.Objective)
	if err != nil {
		return nil, err
	}
	start := cfg.Start
	if start == nil {
		start = obj.Start()
	}

	x, err := tensor.FromFloat64(start, tensor.Shape{len(start)})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	model := nn.NewParameterList(nn.NewParameter("x", x))
	p, _ := model.Get("x")
	r := &runner{
		cfg:       cfg,
		objective: obj,
		param:     p,
		grad:      tensor.ZerosLike(x),
	}

	if cfg.IsLBFGS() {
		lcfg, err := cfg.LBFGSConfig()
		if err != nil {
			return nil, err
		}
		if r.lbfgs, err = optim.NewLBFGS(model.Parameters(), lcfg, opts...); err != nil {
			return nil, err
		}
		return r, nil
	}

	optCfg, err := cfg.OptimizerConfig()
	if err != nil {
		return nil, err
	}
	if r.opt, err = optim.New(model.Parameters(), optCfg, opts...); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *runner) lr() float64 {
	if r.lbfgs != nil {
		return r.lbfgs.GetLR()
	}
	return r.opt.GetLR()
}

func (r *runner) setLR(lr float64) {
	if r.lbfgs != nil {
		r.lbfgs.SetLR(lr)
		return
	}
	r.opt.SetLR(lr)
}

// step advances the optimizer once. It reports whether L-BFGS has converged.
func (r *runner) step() (bool, error) {
	if r.lbfgs == nil {
		return false, r.opt.Step(map[*tensor.RawTensor]*tensor.RawTensor{r.param.Tensor(): r.grad})
	}
	res, err := r.lbfgs.Step(func() (float64, error) {
		loss := r.objective.Eval(r.param.Tensor().AsFloat64(), r.grad.AsFloat64())
		r.param.SetGrad(r.grad)
		return loss, nil
	})
	return res.Converged, err
}

// Run performs cfg.Steps optimizer steps, writing the trajectory to out.
func (r *runner) Run(ctx context.Context, out io.Writer, logger *zap.Logger) (Result, error) {
	x := r.param.Tensor().AsFloat64()
	g := r.grad.AsFloat64()

	logger.Info("starting run",
		zap.String("optimizer", r.cfg.Optimizer),
		zap.String("objective", r.cfg.Objective),
		zap.Int("steps", r.cfg.Steps),
		zap.Float64("lr", r.lr()),
	)

	loss := r.objective.Eval(x, g)
	steps := 0
	for steps < r.cfg.Steps {
		if err := ctx.Err(); err != nil {
			return Result{Steps: steps, Loss: loss, X: clone(x)}, errors.WithStack(err)
		}
		converged, err := r.step()
		if err != nil {
			return Result{Steps: steps, Loss: loss, X: clone(x)}, errors.Wrapf(err, "step %d", steps+1)
		}
		steps++
		loss = r.objective.Eval(x, g)
		if r.cfg.LogEvery > 0 && steps%r.cfg.LogEvery == 0 {
			fmt.Fprintf(out, "step=%d loss=%.6g grad_norm=%.3g x=%.6g\n", steps, loss, floats.Norm(g, 2), x)
		}
		if converged {
			logger.Debug("converged", zap.Int("step", steps))
			break
		}
	}

	dist := floats.Distance(x, r.objective.Minimum(len(x)), 2)
	fmt.Fprintf(out, "final step=%d loss=%.6g distance_to_minimum=%.3g x=%.6g\n", steps, loss, dist, x)
	logger.Info("run finished", zap.Float64("loss", loss), zap.Float64("distance", dist))
	return Result{Steps: steps, Loss: loss, X: clone(x)}, nil
}

func clone(xs []float64) []float64 {
	return append([]float64(nil), xs...)
}
