package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Verbose    bool
	wantJSON   bool
	configPath string
	serverFlag string
	iaspFlag   string
	traceFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "ibmisteps",
	Short: "ibmisteps runs CL commands, SQL and transfers against IBM i servers",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("ibmisteps: IBM i build steps from the command line.")
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "v", false, "Enable verbose logs to stderr")
	rootCmd.PersistentFlags().BoolVar(&wantJSON, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "ibmisteps.yml", "Path to the servers file")
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "Server to connect to (overrides the pipeline's server)")
	rootCmd.PersistentFlags().StringVar(&iaspFlag, "iasp", "", "Independent ASP to switch to after connecting")
	rootCmd.PersistentFlags().BoolVar(&traceFlag, "trace", false, "Log every host interaction")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
