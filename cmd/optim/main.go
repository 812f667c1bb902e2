// Command optim minimizes built-in objectives with the optimizers of this module.
//
// Usage:
//
//	optim run --optimizer adam --steps 200 --objective rosenbrock
//	optim run --config run.yaml
//	optim list
//	optim version
package main

import (
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
