package steps

import (
	"context"
	"fmt"
	"time"

	execctx "github.com/graceinfra/ibmisteps/internal/context"
	"github.com/graceinfra/ibmisteps/internal/jobwait"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/graceinfra/ibmisteps/types"
	"github.com/rs/zerolog"
)

// WaitJobHandler blocks until a job ends. 'timeout' is in seconds, 0 waits
// forever; 'onMSGW' picks what to do when the job waits on a message.
type WaitJobHandler struct {
	// Interval overrides the polling delay; zero uses jobwait.DefaultInterval.
	Interval time.Duration
}

func (h *WaitJobHandler) Type() string {
	return "waitjob"
}

func (h *WaitJobHandler) Validate(step *types.Step) []string {
	errs := validateJobTarget(step)

	if timeout, err := step.Int("timeout", 0); err != nil {
		errs = append(errs, err.Error())
	} else if timeout < 0 {
		errs = append(errs, fmt.Sprintf("parameter 'timeout' must not be negative, got %d", timeout))
	}
	if _, err := jobwait.ParsePolicy(step.String("onMSGW")); err != nil {
		errs = append(errs, err.Error())
	}
	return append(errs, checkBool(step, "failOnTimeout")...)
}

func (h *WaitJobHandler) Execute(ctx context.Context, ec *execctx.ExecutionContext, step *types.Step, record *models.StepExecutionRecord, logger zerolog.Logger) error {
	job, err := jobTarget(ec, step)
	if err != nil {
		return err
	}
	timeout, _ := step.Int("timeout", 0)
	policy, _ := jobwait.ParsePolicy(step.String("onMSGW"))
	failOnTimeout, _ := step.Bool("failOnTimeout", false)

	s, err := ec.Session(ctx)
	if err != nil {
		return err
	}

	monitor := jobwait.NewMonitor(s.Jobs(), logger)
	if h.Interval > 0 {
		monitor.Interval = h.Interval
	}

	logger.Info().Msgf("Waiting for job %s", job)
	if ec.Console != nil {
		ec.Console.StartSpinner(fmt.Sprintf("Waiting for job %s...", job))
	}
	outcome, err := monitor.Wait(ctx, job, timeout, policy)
	if ec.Console != nil {
		ec.Console.StopSpinner()
	}
	if err != nil {
		return err
	}
	record.JobWait = outcome.String()

	switch outcome {
	case jobwait.TimedOut:
		if failOnTimeout {
			return fmt.Errorf("job %s did not end within %d seconds", job, timeout)
		}
		logger.Warn().Msgf("Timeout of %d seconds reached, job %s is still running", timeout, job)
	case jobwait.Resumed:
		logger.Info().Msgf("Job %s waits on a message; resuming the pipeline", job)
	case jobwait.Killed:
		logger.Info().Msgf("Job %s was ended", job)
	default:
		logger.Info().Msgf("✓ Job %s ended", job)
	}
	return nil
}
