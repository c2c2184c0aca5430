package models

import (
	"fmt"
	"regexp"
	"strings"
)

// JobSubmittedMessageID is sent by SBMJOB once the job is on the queue.
const JobSubmittedMessageID = "CPC1221"

// Segments may not contain '/', so names that embed one are never split wrongly.
var submittedJobPattern = regexp.MustCompile(` (\d{1,6})/([^/ ]{1,10})/([^/ ]{1,10}) `)

// CommandResult holds the outcome of one command invocation. Messages keep
// the order the host emitted them in.
type CommandResult struct {
	Command    string    `json:"command"`
	Successful bool      `json:"successful"`
	Messages   []Message `json:"messages"`
}

func NewCommandResult(command string, successful bool, messages []Message) *CommandResult {
	if messages == nil {
		messages = []Message{}
	}
	return &CommandResult{Command: command, Successful: successful, Messages: messages}
}

// LastMessage returns the final message emitted, if any.
func (r *CommandResult) LastMessage() (Message, bool) {
	if len(r.Messages) == 0 {
		return Message{}, false
	}
	return r.Messages[len(r.Messages)-1], true
}

// Message returns the first message with the given id (case-insensitive).
func (r *CommandResult) Message(id string) (Message, bool) {
	for _, m := range r.Messages {
		if strings.EqualFold(m.ID, id) {
			return m, true
		}
	}
	return Message{}, false
}

// MessagesWithID returns every message with the given id, in emission order.
func (r *CommandResult) MessagesWithID(id string) []Message {
	var found []Message
	for _, m := range r.Messages {
		if strings.EqualFold(m.ID, id) {
			found = append(found, m)
		}
	}
	return found
}

// PrettyMessages renders one "prefix[ID][severity] text" line per message.
func (r *CommandResult) PrettyMessages(prefix string) string {
	lines := make([]string, 0, len(r.Messages))
	for _, m := range r.Messages {
		lines = append(lines, fmt.Sprintf("%s[%s][%d] %s", prefix, m.ID, m.Severity, m.Text))
	}
	return strings.Join(lines, "\n")
}

// SubmittedJobs extracts the jobs announced by job-submitted messages.
func (r *CommandResult) SubmittedJobs() []JobIdentifier {
	jobs := []JobIdentifier{}
	for _, m := range r.Messages {
		if m.ID != JobSubmittedMessageID {
			continue
		}
		match := submittedJobPattern.FindStringSubmatch(m.Text)
		if match == nil {
			continue
		}
		jobs = append(jobs, JobIdentifier{Number: match[1], User: match[2], Name: match[3]})
	}
	return jobs
}

func (r *CommandResult) String() string {
	return fmt.Sprintf("Command %q successful: %t\n%s", r.Command, r.Successful, r.PrettyMessages(""))
}
