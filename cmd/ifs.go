package cmd

import (
	"github.com/graceinfra/ibmisteps/types"
	"github.com/spf13/cobra"
)

var putCCSID int

func init() {
	rootCmd.AddCommand(getifsCmd)
	rootCmd.AddCommand(putifsCmd)

	putifsCmd.Flags().IntVar(&putCCSID, "ccsid", 1208, "CCSID to tag uploaded files with")
}

var getifsCmd = &cobra.Command{
	Use:   "getifs <remote-path> <local-path>",
	Short: "Download an IFS file or directory",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runSingleStep(&types.Step{
			Name: "getifs",
			Type: "getifs",
			With: map[string]any{"from": args[0], "to": args[1]},
		})
	},
}

var putifsCmd = &cobra.Command{
	Use:   "putifs <local-path> <remote-path>",
	Short: "Upload a file or directory to the IFS",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runSingleStep(&types.Step{
			Name: "putifs",
			Type: "putifs",
			With: map[string]any{"from": args[0], "to": args[1], "ccsid": putCCSID},
		})
	},
}
