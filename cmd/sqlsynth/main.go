// Command sqlsynth synthesizes SQL queries from input/output examples.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/sqlsynth/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
