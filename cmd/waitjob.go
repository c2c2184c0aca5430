package cmd

import (
	"github.com/graceinfra/ibmisteps/types"
	"github.com/spf13/cobra"
)

var (
	waitTimeout       int
	waitOnMSGW        string
	waitFailOnTimeout bool
)

func init() {
	rootCmd.AddCommand(waitjobCmd)

	waitjobCmd.Flags().IntVar(&waitTimeout, "timeout", 0, "Give up after this many seconds (0 waits forever)")
	waitjobCmd.Flags().StringVar(&waitOnMSGW, "on-msgw", "WAIT", "What to do when the job waits on a message: WAIT, FAIL or KILL")
	waitjobCmd.Flags().BoolVar(&waitFailOnTimeout, "fail-on-timeout", false, "Exit with an error when the timeout expires")
}

var waitjobCmd = &cobra.Command{
	Use:   "waitjob <number/user/name>",
	Short: "Wait for a submitted job to end",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runSingleStep(&types.Step{
			Name: "waitjob",
			Type: "waitjob",
			With: map[string]any{
				"job":           args[0],
				"timeout":       waitTimeout,
				"onMSGW":        waitOnMSGW,
				"failOnTimeout": waitFailOnTimeout,
			},
		})
	},
}
