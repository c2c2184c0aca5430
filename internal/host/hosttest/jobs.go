package hosttest

import (
	"context"
	"sync"

	"github.com/graceinfra/ibmisteps/internal/host"
	"github.com/graceinfra/ibmisteps/internal/models"
)

// StatusStep is one scripted answer to a status query.
type StatusStep struct {
	Status host.JobStatus
	Err    error
}

var (
	Running   = StatusStep{Status: host.JobStatus{Status: host.JobStatusActive, ActiveStatus: "RUN"}}
	Attention = StatusStep{Status: host.JobStatus{Status: host.JobStatusActive, ActiveStatus: host.ActiveStatusMessageWait}}
	Ended     = StatusStep{Status: host.JobStatus{Status: "*OUTQ"}}
	Stale     = StatusStep{Err: &models.HostError{MessageID: models.StaleJobMessageID, Text: "Job not found."}}
)

// Jobs answers status queries from a per-job script. The last step repeats.
type Jobs struct {
	mu      sync.Mutex
	scripts map[string][]StatusStep
	Polls   map[string]int
	Killed  []models.JobIdentifier
}

func NewJobs() *Jobs {
	return &Jobs{scripts: map[string][]StatusStep{}, Polls: map[string]int{}}
}

func (j *Jobs) Script(job models.JobIdentifier, steps ...StatusStep) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.scripts[job.String()] = steps
}

func (j *Jobs) PollCount(job models.JobIdentifier) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Polls[job.String()]
}

func (j *Jobs) Status(ctx context.Context, job models.JobIdentifier) (host.JobStatus, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	key := job.String()
	n := j.Polls[key]
	j.Polls[key] = n + 1

	steps := j.scripts[key]
	if len(steps) == 0 {
		return Stale.Status, Stale.Err
	}
	if n >= len(steps) {
		n = len(steps) - 1
	}
	return steps[n].Status, steps[n].Err
}

func (j *Jobs) End(ctx context.Context, job models.JobIdentifier) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Killed = append(j.Killed, job)
	return nil
}
