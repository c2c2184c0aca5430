package main

import (
	"fmt"
	"os"

	"github.com/graceinfra/ibmisteps/cmd"
	"github.com/graceinfra/ibmisteps/internal/logging"
	"github.com/graceinfra/ibmisteps/internal/steps"
	"github.com/rs/zerolog/log"
)

func main() {
	isVerbose := false
	for _, arg := range os.Args {
		if arg == "--verbose" || arg == "-v" {
			isVerbose = true
		}
	}

	// 'run' redirects logging into its log directory once it exists.
	err := logging.ConfigureGlobalLogger(isVerbose, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	cmd.SetDependencies(&cmd.AppDependencies{
		Registry: steps.NewDefaultRegistry(),
	})

	log.Debug().Msg("Starting ibmisteps command execution")
	cmd.Execute()
}
