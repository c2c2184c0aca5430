package steps

import (
	"fmt"
	"regexp"
	"strings"

	execctx "github.com/graceinfra/ibmisteps/internal/context"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/graceinfra/ibmisteps/types"
)

var jobNumberRegex = regexp.MustCompile(`^\d{1,6}$`)

// Steps that act on a job name it one of three ways: 'job' as
// number/user/name, separate 'number', 'user' and 'name' parameters, or
// 'from', an earlier command step whose submitted job is used.

func validateJobTarget(step *types.Step) []string {
	switch {
	case step.Has("from"):
		return required(step, "from")
	case step.Has("job"):
		job, err := models.ParseJobIdentifier(step.String("job"))
		if err != nil {
			return []string{err.Error()}
		}
		return checkJobNumber(job.Number)
	}

	errs := required(step, "number", "user", "name")
	if n := step.String("number"); n != "" {
		errs = append(errs, checkJobNumber(n)...)
	}
	return errs
}

func checkJobNumber(n string) []string {
	if !jobNumberRegex.MatchString(strings.TrimSpace(n)) {
		return []string{fmt.Sprintf("job number %q must be 1 to 6 digits", n)}
	}
	return nil
}

func jobTarget(ec *execctx.ExecutionContext, step *types.Step) (models.JobIdentifier, error) {
	if from := step.String("from"); from != "" {
		record, ok := ec.StepRecord(from)
		if !ok || record.CommandResult == nil {
			return models.JobIdentifier{}, fmt.Errorf("step %q has no command result to take a job from", from)
		}
		jobs := record.CommandResult.SubmittedJobs()
		if len(jobs) == 0 {
			return models.JobIdentifier{}, fmt.Errorf("step %q did not submit a job", from)
		}
		return jobs[len(jobs)-1], nil
	}

	if job := step.String("job"); job != "" {
		parsed, err := models.ParseJobIdentifier(job)
		if err != nil {
			return models.JobIdentifier{}, err
		}
		return normalizeJob(parsed), nil
	}

	return normalizeJob(models.JobIdentifier{
		Number: step.String("number"),
		User:   step.String("user"),
		Name:   step.String("name"),
	}), nil
}

func normalizeJob(job models.JobIdentifier) models.JobIdentifier {
	return models.JobIdentifier{
		Number: strings.ToUpper(strings.TrimSpace(job.Number)),
		User:   strings.ToUpper(strings.TrimSpace(job.User)),
		Name:   strings.ToUpper(strings.TrimSpace(job.Name)),
	}
}
