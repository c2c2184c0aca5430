package steps

import (
	"context"

	execctx "github.com/graceinfra/ibmisteps/internal/context"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/graceinfra/ibmisteps/internal/spool"
	"github.com/graceinfra/ibmisteps/types"
	"github.com/rs/zerolog"
)

// SpooledFilesHandler saves a job's spooled files into a local folder, one
// text file per entry.
type SpooledFilesHandler struct{}

func (h *SpooledFilesHandler) Type() string {
	return "splf"
}

func (h *SpooledFilesHandler) Validate(step *types.Step) []string {
	errs := validateJobTarget(step)
	errs = append(errs, required(step, "to")...)
	return append(errs, checkBool(step, "clearTo")...)
}

func (h *SpooledFilesHandler) Execute(ctx context.Context, ec *execctx.ExecutionContext, step *types.Step, record *models.StepExecutionRecord, logger zerolog.Logger) error {
	job, err := jobTarget(ec, step)
	if err != nil {
		return err
	}
	clearTo, _ := step.Bool("clearTo", false)
	toFolder := localPath(ec, step.String("to"))

	s, err := ec.Session(ctx)
	if err != nil {
		return err
	}

	logger.Info().Msgf("Getting spooled files of job %s", job)
	svc := s.SpooledFiles(ctx)
	files, err := svc.List(ctx, job)
	if err != nil {
		return err
	}
	record.SpooledFiles = files

	written, err := spool.WriteAll(ctx, svc, files, toFolder, clearTo)
	if err != nil {
		return err
	}
	logger.Info().Msgf("Saved %d spooled file(s) into %s", written, toFolder)
	return nil
}
