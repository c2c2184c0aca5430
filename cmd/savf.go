package cmd

import (
	"fmt"
	"strings"

	"github.com/graceinfra/ibmisteps/types"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(getsavfCmd)
	rootCmd.AddCommand(putsavfCmd)
}

var getsavfCmd = &cobra.Command{
	Use:   "getsavf <library/name> <local-file>",
	Short: "Download a save file and list its objects",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		library, name, err := splitObject(args[0])
		cobra.CheckErr(err)
		runSingleStep(&types.Step{
			Name: "getsavf",
			Type: "getsavf",
			With: map[string]any{"library": library, "name": name, "toFile": args[1]},
		})
	},
}

var putsavfCmd = &cobra.Command{
	Use:   "putsavf <local-file> <library/name>",
	Short: "Upload a local file into a save file",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		library, name, err := splitObject(args[1])
		cobra.CheckErr(err)
		runSingleStep(&types.Step{
			Name: "putsavf",
			Type: "putsavf",
			With: map[string]any{"library": library, "name": name, "fromFile": args[0]},
		})
	},
}

// splitObject splits a qualified "LIBRARY/NAME" object name.
func splitObject(qualified string) (string, string, error) {
	library, name, ok := strings.Cut(qualified, "/")
	if !ok || library == "" || name == "" {
		return "", "", fmt.Errorf("expected LIBRARY/NAME, got %q", qualified)
	}
	return library, name, nil
}
