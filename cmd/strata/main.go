// Command strata is the command-line interface to the strata record
// store.
package main

import "github.com/mesh-intelligence/strata/internal/cli"

func main() {
	cli.Execute()
}
