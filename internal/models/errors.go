package models

import (
	"errors"
	"fmt"
)

// StaleJobMessageID is raised when a job identifier no longer resolves,
// which for batch jobs means the job has ended and been cleaned up.
const StaleJobMessageID = "CPF3C52"

var (
	ErrInvalidCharset   = errors.New("invalid CCSID")
	ErrPoolSwitchFailed = errors.New("storage pool switch failed")
	ErrAuthentication   = errors.New("authentication failed")
	ErrNotExist         = errors.New("does not exist")
	ErrNotDirectory     = errors.New("not a directory")
	ErrInquiryMessage   = errors.New("job is waiting for an inquiry message reply")
)

// HostError is a failure reported by the host with a message identifier.
type HostError struct {
	MessageID string
	Text      string
}

func (e *HostError) Error() string {
	if e.Text == "" {
		return e.MessageID
	}
	return fmt.Sprintf("%s: %s", e.MessageID, e.Text)
}

// HostMessageID returns the message id of the first HostError in err's chain.
func HostMessageID(err error) (string, bool) {
	var hostErr *HostError
	if errors.As(err, &hostErr) {
		return hostErr.MessageID, true
	}
	return "", false
}

// --- Error kinds ---

type ConnectionError struct {
	Host   string
	Reason error
	Err    error
}

func (e *ConnectionError) Error() string {
	host := e.Host
	if host == "" {
		host = "localhost"
	}
	msg := fmt.Sprintf("connection to %s failed", host)
	if e.Reason != nil {
		msg += ": " + e.Reason.Error()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConnectionError) Unwrap() []error { return nonNil(e.Reason, e.Err) }

// CommandError reports a command that could not run or did not succeed.
type CommandError struct {
	Command string
	Result  *CommandResult
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("command %q failed: %v", e.Command, e.Err)
	}
	if e.Result != nil && len(e.Result.Messages) > 0 {
		return fmt.Sprintf("command %q failed:\n%s", e.Command, e.Result.PrettyMessages(""))
	}
	return fmt.Sprintf("command %q failed", e.Command)
}

func (e *CommandError) Unwrap() error { return e.Err }

type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %q failed: %v", e.Query, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

type TransferError struct {
	Op     string // "download" or "upload"
	Path   string
	Reason error
	Err    error
}

func (e *TransferError) Error() string {
	msg := fmt.Sprintf("%s of %s failed", e.Op, e.Path)
	if e.Reason != nil {
		msg += ": " + e.Reason.Error()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransferError) Unwrap() []error { return nonNil(e.Reason, e.Err) }

type JobWaitError struct {
	Job    JobIdentifier
	Reason error
	Err    error
}

func (e *JobWaitError) Error() string {
	msg := fmt.Sprintf("waiting for job %s failed", e.Job)
	if e.Reason != nil {
		msg += ": " + e.Reason.Error()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *JobWaitError) Unwrap() []error { return nonNil(e.Reason, e.Err) }

type SpooledFileError struct {
	Job  JobIdentifier
	File string // empty when listing failed
	Err  error
}

func (e *SpooledFileError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("listing spooled files of job %s failed: %v", e.Job, e.Err)
	}
	return fmt.Sprintf("writing spooled file %s of job %s failed: %v", e.File, e.Job, e.Err)
}

func (e *SpooledFileError) Unwrap() error { return e.Err }

func nonNil(errs ...error) []error {
	out := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}
