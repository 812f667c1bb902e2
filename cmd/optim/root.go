package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app carries state shared by subcommands.
type app struct {
	logLevel string
	logger   *zap.Logger
}

// rootCmd is the root Cobra command that gets called from the main func.
func rootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}
	cmd := &cobra.Command{
		Use:   "optim",
		Short: "Minimize test objectives with stateful gradient optimizers",
		Long: `optim drives the SGD, AdaGrad, AdaDelta, AdaMax, Adam/AdamW, NAdam, RAdam and
RMSprop optimizers, and L-BFGS, on small analytic objectives, printing the
trajectory.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(a.logLevel)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		runCmd(a),
		listCmd(),
		versionCmd(),
	)
	return cmd
}

// newLogger builds a console logger writing to stderr.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}
	pe := zap.NewProductionEncoderConfig()
	pe.EncodeTime = zapcore.ISO8601TimeEncoder
	pe.ConsoleSeparator = " "
	pe.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(pe), zapcore.AddSync(os.Stderr), lvl)
	return zap.New(core), nil
}
