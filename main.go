package main

import (
	"os"

	"github.com/adalundhe/subspace/cmd"
	coreerrors "github.com/adalundhe/subspace/core/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(coreerrors.GetBehavior(err).ExitCode)
	}
}
