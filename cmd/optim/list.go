package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/optimizers/optim"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List optimizers, their default hyperparameters and objectives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			names := []string{}
			for _, kind := range optim.Kinds() {
				names = append(names, kind.String())
			}
			names = append(names, "adamw")
			for _, name := range names {
				cfg, err := RunConfig{Optimizer: name}.OptimizerConfig()
				if err != nil {
					return err
				}
				if err := printDefaults(out, name, cfg); err != nil {
					return err
				}
			}
			if err := printDefaults(out, lbfgsName, optim.DefaultLBFGSConfig()); err != nil {
				return err
			}
			fmt.Fprintf(out, "objectives: %s\n", strings.Join(objectiveNames(), ", "))
			return nil
		},
	}
}

func printDefaults(out io.Writer, name string, cfg any) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s:\n", name)
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		fmt.Fprintf(out, "  %s\n", line)
	}
	return nil
}
