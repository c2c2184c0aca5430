package cmd

import (
	"strings"

	"github.com/graceinfra/ibmisteps/types"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(commandCmd)
	rootCmd.AddCommand(shellCmd)
}

var commandCmd = &cobra.Command{
	Use:   "command <cl-command>",
	Short: "Run a CL command and print its messages",
	Long: `Command runs one CL command in the server's command job and prints every
message it sent. The command fails when the host reports the command failed.

Quote the command or pass it as several arguments:
  ibmisteps command "CRTLIB LIB(BUILD) TEXT('Build output')"`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runSingleStep(&types.Step{
			Name: "command",
			Type: "command",
			With: map[string]any{"command": strings.Join(args, " ")},
		})
	},
}

var shellCmd = &cobra.Command{
	Use:   "shell <pase-command>",
	Short: "Run a PASE shell command",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runSingleStep(&types.Step{
			Name: "shell",
			Type: "shell",
			With: map[string]any{"command": strings.Join(args, " ")},
		})
	},
}
