// Command stimsync runs neurofeedback presentation sessions and reports
// their stimulus timing.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/stimsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// ExitErrors were already written by the command's formatter.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
