// Package jobwait follows a submitted job until it ends, times out or stops on
// an inquiry message.
package jobwait

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/graceinfra/ibmisteps/internal/host"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/rs/zerolog"
)

// DefaultInterval is the delay between two status queries.
const DefaultInterval = 500 * time.Millisecond

// Policy decides what happens when the job waits on an inquiry message.
type Policy string

const (
	Fail   Policy = "FAIL"
	Kill   Policy = "KILL"
	Resume Policy = "RESUME"
	Wait   Policy = "WAIT"
)

var policies = []Policy{Fail, Kill, Resume, Wait}

// ParsePolicy accepts any case. An empty value means Wait.
func ParsePolicy(s string) (Policy, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Wait, nil
	}
	for _, p := range policies {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown message wait policy %q (expected one of FAIL, KILL, RESUME, WAIT)", s)
}

type Outcome int

const (
	Completed Outcome = iota
	TimedOut
	Resumed
	Killed
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "COMPLETED"
	case TimedOut:
		return "TIMED_OUT"
	case Resumed:
		return "RESUMED"
	case Killed:
		return "KILLED"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Monitor polls job status through Jobs.
type Monitor struct {
	Jobs     host.JobService
	Interval time.Duration
	Now      func() time.Time
	Logger   zerolog.Logger
}

func NewMonitor(jobs host.JobService, logger zerolog.Logger) *Monitor {
	return &Monitor{
		Jobs:     jobs,
		Interval: DefaultInterval,
		Now:      time.Now,
		Logger:   logger.With().Str("component", "jobwait").Logger(),
	}
}

// Wait blocks until job is no longer active. timeout is in seconds; zero or
// less waits forever. Only the Fail policy, an unexpected host error or ctx
// ending produce an error.
func (m *Monitor) Wait(ctx context.Context, job models.JobIdentifier, timeout int, policy Policy) (Outcome, error) {
	logger := m.Logger.With().Str("job", job.String()).Logger()
	now := m.Now
	if now == nil {
		now = time.Now
	}
	start := now()
	limit := time.Duration(timeout) * time.Second

	logger.Info().Msgf("Waiting for job %s", job)
	for {
		if timeout > 0 && now().Sub(start) > limit {
			logger.Warn().Msgf("Timeout of %d seconds reached while waiting for job %s", timeout, job)
			return TimedOut, nil
		}

		status, done, err := m.status(ctx, job)
		if err != nil {
			return Completed, err
		}
		if done {
			logger.Info().Msgf("Job %s ended", job)
			return Completed, nil
		}

		if status.WaitingOnMessage() {
			outcome, finished, err := m.resolveAttention(ctx, job, policy, logger)
			if err != nil || finished {
				return outcome, err
			}
		}

		if err := m.sleep(ctx, job); err != nil {
			return Completed, err
		}
	}
}

// resolveAttention applies policy to a job stuck on an inquiry message and
// reports whether waiting is over.
func (m *Monitor) resolveAttention(ctx context.Context, job models.JobIdentifier, policy Policy, logger zerolog.Logger) (Outcome, bool, error) {
	switch policy {
	case Fail:
		return Completed, true, &models.JobWaitError{Job: job, Reason: models.ErrInquiryMessage}

	case Kill:
		logger.Warn().Msgf("Job %s is waiting on a message, ending it", job)
		if err := m.Jobs.End(ctx, job); err != nil {
			return Completed, true, &models.JobWaitError{Job: job, Reason: errors.New("ending job"), Err: err}
		}
		return Killed, true, nil

	case Resume:
		logger.Warn().Msgf("Job %s is waiting on a message, continuing without it", job)
		return Resumed, true, nil
	}

	logger.Warn().Msgf("Job %s is waiting on a message, waiting for a reply", job)
	for {
		if err := m.sleep(ctx, job); err != nil {
			return Completed, true, err
		}
		status, done, err := m.status(ctx, job)
		if err != nil {
			return Completed, true, err
		}
		if done {
			return Completed, true, nil
		}
		if !status.WaitingOnMessage() {
			logger.Info().Msgf("Job %s received a reply", job)
			return Completed, false, nil
		}
	}
}

// status reports done once the job is inactive or the host no longer knows it.
func (m *Monitor) status(ctx context.Context, job models.JobIdentifier) (host.JobStatus, bool, error) {
	status, err := m.Jobs.Status(ctx, job)
	if err != nil {
		if id, ok := models.HostMessageID(err); ok && id == models.StaleJobMessageID {
			return host.JobStatus{}, true, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return host.JobStatus{}, false, &models.JobWaitError{Job: job, Err: ctxErr}
		}
		return host.JobStatus{}, false, &models.JobWaitError{Job: job, Err: err}
	}
	return status, !status.Active(), nil
}

func (m *Monitor) sleep(ctx context.Context, job models.JobIdentifier) error {
	interval := m.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return &models.JobWaitError{Job: job, Err: ctx.Err()}
	case <-timer.C:
		return nil
	}
}
