// Command gelsim simulates agarose gel electrophoresis.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/gelsim/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gelsim:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
