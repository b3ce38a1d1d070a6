// Command appraisal is the full command-line interface: offline valuation
// and report tooling plus the server and migration entry points.
package main

import "github.com/nadlantech/appraisal-engine/internal/interfaces/cli"

func main() {
	cli.Execute()
}
