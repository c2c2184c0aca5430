// Package runner executes a pipeline's steps in order against one session.
package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	execctx "github.com/graceinfra/ibmisteps/internal/context"
	"github.com/graceinfra/ibmisteps/internal/logging"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/graceinfra/ibmisteps/internal/steps"
	"github.com/graceinfra/ibmisteps/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Runner struct {
	ec       *execctx.ExecutionContext
	registry *steps.Registry
	logger   zerolog.Logger
}

func New(ec *execctx.ExecutionContext, registry *steps.Registry) *Runner {
	return &Runner{
		ec:       ec,
		registry: registry,
		logger: log.With().
			Str("component", "runner").
			Str("run_id", ec.RunID.String()).
			Logger(),
	}
}

// Run executes the selected steps one after the other. The first failing step
// stops the run; every selected step after it is recorded as SKIPPED. A
// cancelled ctx skips the steps that have not started.
//
// The returned error only reports a run that could not start; step failures
// are in the records.
func (r *Runner) Run(ctx context.Context) ([]*models.StepExecutionRecord, error) {
	selected, err := r.selectSteps()
	if err != nil {
		return nil, err
	}

	records := make([]*models.StepExecutionRecord, 0, len(selected))
	failed := ""
	for _, i := range selected {
		step := r.ec.Pipeline.Steps[i]

		var record *models.StepExecutionRecord
		switch {
		case failed != "":
			record = r.skipped(i, step, fmt.Sprintf("step %q failed", failed))
		case ctx.Err() != nil:
			record = r.skipped(i, step, ctx.Err().Error())
		default:
			record = r.executeStep(ctx, i, step)
			if record.Status == models.StatusFailed {
				failed = step.Name
			}
		}

		r.ec.Record(record)
		r.save(record)
		records = append(records, record)
	}
	return records, nil
}

// selectSteps returns the indexes of the steps to run, honoring --only.
func (r *Runner) selectSteps() ([]int, error) {
	if r.ec.Pipeline == nil {
		return nil, fmt.Errorf("no pipeline loaded")
	}

	only := make(map[string]bool, len(r.ec.Only))
	for _, name := range r.ec.Only {
		only[strings.ToUpper(name)] = false
	}

	var selected []int
	for i, step := range r.ec.Pipeline.Steps {
		key := strings.ToUpper(step.Name)
		if len(r.ec.Only) > 0 {
			if _, ok := only[key]; !ok {
				continue
			}
			only[key] = true
		}
		selected = append(selected, i)
	}

	var unknown []string
	for _, name := range r.ec.Only {
		if !only[strings.ToUpper(name)] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown step(s) in --only: %s", strings.Join(unknown, ", "))
	}
	return selected, nil
}

func (r *Runner) newRecord(index int, step *types.Step) *models.StepExecutionRecord {
	return &models.StepExecutionRecord{
		Index:    index,
		StepName: step.Name,
		Type:     step.Type,
		RunID:    r.ec.RunID,
		Server:   r.ec.ServerName(),
	}
}

func (r *Runner) executeStep(ctx context.Context, index int, step *types.Step) *models.StepExecutionRecord {
	stepLogger := r.logger.With().Str("step_name", step.Name).Str("step_type", step.Type).Logger()
	record := r.newRecord(index, step)
	startTime := time.Now()
	record.StartTime = startTime.Format(time.RFC3339)

	handler, exists := r.registry.Get(step.Type)
	if !exists {
		stepLogger.Error().Msg("Critical: No handler found for step type during execution")
		return r.finish(record, startTime, fmt.Errorf("no handler registered for type %q", step.Type), stepLogger)
	}

	stepLogger.Info().Msgf("Running step %d/%d", index+1, len(r.ec.Pipeline.Steps))
	err := handler.Execute(ctx, r.ec, step, record, stepLogger)
	return r.finish(record, startTime, err, stepLogger)
}

func (r *Runner) finish(record *models.StepExecutionRecord, startTime time.Time, err error, logger zerolog.Logger) *models.StepExecutionRecord {
	finishTime := time.Now()
	record.FinishTime = finishTime.Format(time.RFC3339)
	record.DurationMs = finishTime.Sub(startTime).Milliseconds()

	if err != nil {
		record.Status = models.StatusFailed
		record.Error = err.Error()
		logger.Error().Err(err).Msg("❌ Step FAILED")
		return record
	}
	record.Status = models.StatusSucceeded
	logger.Info().Msgf("✅ Step SUCCEEDED in %dms", record.DurationMs)
	return record
}

func (r *Runner) skipped(index int, step *types.Step, reason string) *models.StepExecutionRecord {
	record := r.newRecord(index, step)
	record.Status = models.StatusSkipped
	record.Error = reason
	r.logger.Info().Str("step_name", step.Name).Msgf("Marking step as %s: %s", models.StatusSkipped, reason)
	return record
}

func (r *Runner) save(record *models.StepExecutionRecord) {
	if r.ec.LogDir == "" {
		return
	}
	if _, err := logging.SaveStepRecord(r.ec.LogDir, record); err != nil {
		r.logger.Error().Err(err).Str("log_dir", r.ec.LogDir).Msg("Failed to save step record")
	}
}
