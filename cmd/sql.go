package cmd

import (
	"strings"

	"github.com/graceinfra/ibmisteps/types"
	"github.com/spf13/cobra"
)

var sqlTo string

func init() {
	rootCmd.AddCommand(sqlCmd)

	sqlCmd.Flags().StringVar(&sqlTo, "to", "", "Also write the rows to a .csv or .json file")
}

var sqlCmd = &cobra.Command{
	Use:   "sql <statement>",
	Short: "Run an SQL statement and print the result",
	Long: `SQL runs one statement over the session's SQL connection. Queries print a
table of rows, other statements print the number of rows they changed.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		with := map[string]any{"sql": strings.Join(args, " ")}
		if sqlTo != "" {
			with["to"] = sqlTo
		}
		runSingleStep(&types.Step{Name: "sql", Type: "sql", With: with})
	},
}
