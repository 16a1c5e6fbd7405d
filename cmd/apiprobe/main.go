// Command apiprobe runs black-box conformance suites against a task API.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/apiprobe/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
