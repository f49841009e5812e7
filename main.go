package main

import (
	"fmt"
	"os"

	"github.com/agentx-labs/agentsync/internal/cli"
	apperrors "github.com/agentx-labs/agentsync/internal/errors"
)

// version, commit, and date are set via ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := cli.Execute(version, commit, date); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(apperrors.ExitCode(err))
	}
}
