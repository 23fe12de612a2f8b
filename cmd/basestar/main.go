// Command basestar evaluates expressions and maintains aggregate views
// over objects stored in SQLite.
package main

import (
	"fmt"
	"os"

	"github.com/stage-tech/basestar-sub001/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		if !cli.IsReported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
