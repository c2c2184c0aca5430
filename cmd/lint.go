package cmd

import (
	"fmt"
	"os"

	"github.com/graceinfra/ibmisteps/internal/config"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(lintCmd)
}

var lintCmd = &cobra.Command{
	Use:   "lint [pipeline-file]",
	Short: "Validate the servers file and a pipeline file",
	Long: `Lint checks ibmisteps.yml and a pipeline file for correctness.
It validates required fields, server and step names, object names, known
step types and each step's parameters without connecting to any server.

Use this command to check your pipeline before running 'run'.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		lintFile := config.DefaultPipelineFile
		if len(args) > 0 {
			lintFile = args[0]
		}

		fmt.Printf("Linting files: %s, %s\n", configPath, lintFile)

		servers, err := config.LoadServers(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "✖ Validation failed: %v\n", err)
			os.Exit(1)
		}

		pipeline, err := config.LoadPipeline(lintFile)
		if err == nil {
			applyFlags(pipeline, servers)
			err = config.ValidatePipeline(pipeline, servers, GetDependencies().Registry)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "✖ Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ %s is valid!\n", lintFile)
	},
}
