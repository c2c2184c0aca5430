package cmd

import (
	"github.com/graceinfra/ibmisteps/types"
	"github.com/spf13/cobra"
)

var (
	splfTo      string
	splfClearTo bool
)

func init() {
	rootCmd.AddCommand(splfCmd)

	splfCmd.Flags().StringVar(&splfTo, "to", ".", "Directory the spooled files are written to")
	splfCmd.Flags().BoolVar(&splfClearTo, "clear", false, "Empty the directory first")
}

var splfCmd = &cobra.Command{
	Use:   "splf <number/user/name>",
	Short: "Download the spooled files of a job",
	Long: `Splf lists every spooled file of a job and saves each one as
<file>_<number>.txt in the target directory.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runSingleStep(&types.Step{
			Name: "splf",
			Type: "splf",
			With: map[string]any{"job": args[0], "to": splfTo, "clearTo": splfClearTo},
		})
	},
}
