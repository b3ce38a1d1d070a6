// Command apiserver is the fixed-purpose server binary: it runs the CLI
// "serve" command with any extra flags passed through, so deployments get a
// single-binary server without duplicating the wiring.
package main

import (
	"fmt"
	"os"

	"github.com/nadlantech/appraisal-engine/internal/interfaces/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	cmd.SetArgs(append([]string{"serve"}, os.Args[1:]...))
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
