// Command vacatrack runs the offline-first vacation tracker agent.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/vacatrack/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Command errors were already written by the formatter.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
