package jobwait

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/graceinfra/ibmisteps/internal/host/hosttest"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var job = models.JobIdentifier{Number: "123456", User: "BUILDER", Name: "COMPILE"}

func newMonitor(jobs *hosttest.Jobs) *Monitor {
	m := NewMonitor(jobs, zerolog.Nop())
	m.Interval = time.Millisecond
	return m
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		input    string
		expected Policy
		wantErr  bool
	}{
		{input: "", expected: Wait},
		{input: "fail", expected: Fail},
		{input: " Kill ", expected: Kill},
		{input: "RESUME", expected: Resume},
		{input: "wait", expected: Wait},
		{input: "retry", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := ParsePolicy(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p)
		})
	}
}

func TestWaitOutcomes(t *testing.T) {
	attentionThenEnd := []hosttest.StatusStep{hosttest.Running, hosttest.Attention, hosttest.Attention, hosttest.Running, hosttest.Ended}

	tests := []struct {
		name      string
		policy    Policy
		steps     []hosttest.StatusStep
		expected  Outcome
		wantPolls int
		killed    bool
	}{
		{name: "Ends normally", policy: Wait, steps: []hosttest.StatusStep{hosttest.Running, hosttest.Running, hosttest.Ended}, expected: Completed, wantPolls: 3},
		{name: "Stale identifier means completed", policy: Wait, steps: []hosttest.StatusStep{hosttest.Running, hosttest.Stale}, expected: Completed, wantPolls: 2},
		{name: "Wait until reply", policy: Wait, steps: attentionThenEnd, expected: Completed, wantPolls: 5},
		{name: "Resume leaves job running", policy: Resume, steps: attentionThenEnd, expected: Resumed, wantPolls: 2},
		{name: "Kill ends job", policy: Kill, steps: attentionThenEnd, expected: Killed, wantPolls: 2, killed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := hosttest.NewJobs()
			jobs.Script(job, tt.steps...)

			outcome, err := newMonitor(jobs).Wait(context.Background(), job, 0, tt.policy)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, outcome)
			assert.Equal(t, tt.wantPolls, jobs.PollCount(job))
			if tt.killed {
				assert.Equal(t, []models.JobIdentifier{job}, jobs.Killed)
			} else {
				assert.Empty(t, jobs.Killed)
			}
		})
	}
}

func TestWaitFailPolicyStopsAtFirstAttention(t *testing.T) {
	jobs := hosttest.NewJobs()
	jobs.Script(job, hosttest.Running, hosttest.Attention)

	_, err := newMonitor(jobs).Wait(context.Background(), job, 0, Fail)
	require.ErrorIs(t, err, models.ErrInquiryMessage)

	var waitErr *models.JobWaitError
	require.ErrorAs(t, err, &waitErr)
	assert.Equal(t, job, waitErr.Job)
	assert.Equal(t, 2, jobs.PollCount(job), "attention is not polled again")
	assert.Empty(t, jobs.Killed)
}

func TestWaitHostErrorIsFatal(t *testing.T) {
	hostErr := &models.HostError{MessageID: "CPF1069", Text: "End of requested job not allowed."}
	jobs := hosttest.NewJobs()
	jobs.Script(job, hosttest.Running, hosttest.StatusStep{Err: hostErr}, hosttest.Ended)

	_, err := newMonitor(jobs).Wait(context.Background(), job, 0, Wait)
	var waitErr *models.JobWaitError
	require.ErrorAs(t, err, &waitErr)
	assert.ErrorIs(t, err, hostErr)
	assert.Equal(t, 2, jobs.PollCount(job), "not retried")
}

func TestWaitTimeout(t *testing.T) {
	jobs := hosttest.NewJobs()
	jobs.Script(job, hosttest.Running)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := start
	m := newMonitor(jobs)
	m.Now = func() time.Time {
		current := clock
		clock = clock.Add(DefaultInterval)
		return current
	}

	outcome, err := m.Wait(context.Background(), job, 1, Wait)
	require.NoError(t, err)
	assert.Equal(t, TimedOut, outcome)
	assert.LessOrEqual(t, clock.Sub(start), time.Second+2*DefaultInterval)
	assert.Positive(t, jobs.PollCount(job))
}

func TestWaitCancelled(t *testing.T) {
	jobs := hosttest.NewJobs()
	jobs.Script(job, hosttest.Running)

	m := newMonitor(jobs)
	m.Interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := m.Wait(ctx, job, 0, Wait)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
		var waitErr *models.JobWaitError
		assert.ErrorAs(t, err, &waitErr)
	case <-time.After(5 * time.Second):
		t.Fatal("wait did not stop after cancellation")
	}
}

func TestWaitCancelledDuringAttention(t *testing.T) {
	jobs := hosttest.NewJobs()
	jobs.Script(job, hosttest.Attention)

	m := newMonitor(jobs)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := m.Wait(ctx, job, 0, Wait)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
