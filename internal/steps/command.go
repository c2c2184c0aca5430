package steps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	execctx "github.com/graceinfra/ibmisteps/internal/context"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/graceinfra/ibmisteps/types"
	"github.com/rs/zerolog"
)

// CommandHandler runs a CL command in the session's command job.
type CommandHandler struct{}

func (h *CommandHandler) Type() string {
	return "command"
}

func (h *CommandHandler) Validate(step *types.Step) []string {
	errs := required(step, "command")
	return append(errs, checkBool(step, "failOnError")...)
}

func (h *CommandHandler) Execute(ctx context.Context, ec *execctx.ExecutionContext, step *types.Step, record *models.StepExecutionRecord, logger zerolog.Logger) error {
	command := strings.TrimSpace(step.String("command"))

	s, err := ec.Session(ctx)
	if err != nil {
		return err
	}

	logger.Info().Msgf("Running %s", command)
	result, err := s.ExecuteCommand(ctx, command)
	if err != nil {
		return err
	}
	record.CommandResult = result

	if result.Successful {
		logger.Info().Msgf("✓ %s succeeded", command)
		for _, job := range result.SubmittedJobs() {
			logger.Info().Str("job", job.String()).Msg("Job submitted")
		}
		return nil
	}

	failure := fmt.Sprintf("command %s failed", command)
	if last, ok := result.LastMessage(); ok {
		failure = fmt.Sprintf("command %s failed: %s %s", command, last.ID, last.Text)
	}

	if !failOnError(step) {
		logger.Error().Msg(failure)
		logger.Debug().Msg(result.PrettyMessages(""))
		return nil
	}
	logger.Error().Msgf("%s\n%s", failure, result.PrettyMessages("\t"))
	return errors.New(failure)
}
