package steps

import (
	"context"
	"errors"
	"fmt"

	execctx "github.com/graceinfra/ibmisteps/internal/context"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/graceinfra/ibmisteps/types"
	"github.com/rs/zerolog"
)

// ShellHandler runs a PASE shell command on the host.
type ShellHandler struct{}

func (h *ShellHandler) Type() string {
	return "shell"
}

func (h *ShellHandler) Validate(step *types.Step) []string {
	errs := required(step, "command")
	return append(errs, checkBool(step, "failOnError")...)
}

func (h *ShellHandler) Execute(ctx context.Context, ec *execctx.ExecutionContext, step *types.Step, record *models.StepExecutionRecord, logger zerolog.Logger) error {
	command := step.String("command")

	s, err := ec.Session(ctx)
	if err != nil {
		return err
	}

	logger.Info().Msgf("Running shell command %s", command)
	result, err := s.ExecuteShell(ctx, command)
	if err != nil {
		return fmt.Errorf("shell command %q: %w", command, err)
	}
	record.Shell = &result

	if result.Code == 0 {
		logger.Info().Msgf("✓ %s succeeded", command)
		logger.Debug().Msg(result.Output)
		return nil
	}

	failure := fmt.Sprintf("shell command %s ended with code %d: %s", command, result.Code, result.Output)
	if failOnError(step) {
		return errors.New(failure)
	}
	logger.Error().Msg(failure)
	return nil
}
