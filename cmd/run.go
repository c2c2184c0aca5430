package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/graceinfra/ibmisteps/internal/config"
	"github.com/graceinfra/ibmisteps/internal/logging"
	"github.com/graceinfra/ibmisteps/internal/runner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var runOnly []string
var pipelinePath string

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVar(&runOnly, "only", nil, "Run only the specified step(s)")
	runCmd.Flags().StringVarP(&pipelinePath, "file", "f", config.DefaultPipelineFile, "Pipeline file to run")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a pipeline against an IBM i server",
	Long: `Run executes the steps of pipeline.yml in order against the pipeline's server.

The first failing step stops the run and the remaining steps are recorded as
skipped. Each step's result is written to '.ibmisteps/logs/' along with a
summary.json for the whole run.

Use --only to run a subset of the steps.`,
	Run: func(cmd *cobra.Command, args []string) {
		// --- Load and validate the pipeline ---

		pipeline, err := config.LoadPipeline(pipelinePath)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to load %q: %w", pipelinePath, err))
		}

		ec, err := newExecutionContext("run", pipeline)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to validate %q: %w", pipelinePath, err))
		}
		ec.Only = runOnly
		ec.WorkDir = filepath.Dir(mustAbs(pipelinePath))

		log.Info().Msgf("✓ Pipeline %q loaded and validated.", pipelinePath)

		// --- Initialize logging ---

		logDir, err := logging.CreateLogDir(ec.RunID, ec.RunStartTime, "run")
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to create log directory for run %s: %w", ec.RunID.String(), err))
		}
		ec.LogDir = logDir

		err = logging.ConfigureGlobalLogger(Verbose, filepath.Join(logDir, "pipeline.log"))
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to initialize logging: %w", err))
		}

		logCtx := log.With().Str("run_id", ec.RunID.String()).Logger()
		logCtx.Info().Msgf("Logs will be stored in: %s", logDir)

		// --- Run the steps ---

		ctx, stop := signalContext()
		logCtx.Info().Msgf("Starting pipeline on server %q...", ec.ServerName())
		records, err := runner.New(ec, GetDependencies().Registry).Run(ctx)
		stop()

		pool := ""
		if s, ok := ec.Current(); ok {
			pool = s.StoragePool()
		}
		ec.Close()
		if err != nil {
			logCtx.Error().Err(err).Msg("Pipeline could not start")
			cobra.CheckErr(err)
		}

		// --- Construct and write run summary ---

		logCtx.Debug().Msg("Generating execution summary...")
		summary := generateExecutionSummary(records, ec, pool)
		if err = logging.SaveSummary(logDir, &summary); err != nil {
			logCtx.Error().Err(err).Msg("Failed to write summary.json")
		}

		ec.Console.Json(summary)
		fmt.Fprintln(os.Stderr) // Visual spacing
		if summary.OverallStatus == overallFailed {
			logCtx.Error().Msgf("✖ Pipeline failed at step %q, logs saved to: %s", summary.FirstFailure.StepName, logDir)
			os.Exit(1)
		}
		logCtx.Info().Msgf("✓ Pipeline complete, logs saved to: %s", logDir)
	},
}

func mustAbs(p string) string {
	abs, err := filepath.Abs(p)
	cobra.CheckErr(err)
	return abs
}
