package pase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/graceinfra/ibmisteps/internal/models"
)

var messageLine = regexp.MustCompile(`^([A-Z0-9]{3}[0-9A-F]{4}): (.*)`)

// systemScript runs command in the current job through the PASE system utility.
func systemScript(command string) string {
	return "/QOpenSys/usr/bin/system -i " + quote(command)
}

// commandService runs CL commands through one persistent shell, so all of them
// share a host job.
type commandService struct {
	shell *persistentShell
	job   models.JobIdentifier
}

func (c *commandService) Job(ctx context.Context) (models.JobIdentifier, error) {
	if !c.job.IsZero() {
		return c.job, nil
	}
	t, err := query(ctx, c.shell.Run, "VALUES QSYS2.JOB_NAME")
	if err != nil {
		return models.JobIdentifier{}, fmt.Errorf("failed to identify command job: %w", err)
	}
	if len(t.Rows) == 0 || len(t.Rows[0]) == 0 {
		return models.JobIdentifier{}, fmt.Errorf("failed to identify command job: no result")
	}
	job, err := models.ParseJobIdentifier(t.Rows[0][0])
	if err != nil {
		return models.JobIdentifier{}, fmt.Errorf("failed to identify command job: %w", err)
	}
	c.job = job
	return job, nil
}

func (c *commandService) Run(ctx context.Context, command string) (bool, []models.Message, error) {
	lines, code, err := c.shell.Run(ctx, systemScript(command))
	if err != nil {
		return false, nil, err
	}
	return code == 0, parseMessages(lines, code != 0, time.Now()), nil
}

func (c *commandService) Close() error {
	return c.shell.Close()
}

// parseMessages turns system utility output into messages. Lines that do not
// start with a message id continue the previous message.
func parseMessages(lines []string, failed bool, created time.Time) []models.Message {
	var messages []models.Message
	for _, line := range lines {
		m := messageLine.FindStringSubmatch(line)
		if m == nil {
			if n := len(messages); n > 0 && strings.TrimSpace(line) != "" {
				messages[n-1].Text += " " + strings.TrimSpace(line)
			}
			continue
		}
		msgType, severity := classify(m[1], failed)
		messages = append(messages, models.Message{
			ID:       m[1],
			Text:     strings.TrimSpace(m[2]),
			Severity: severity,
			Type:     msgType,
			Created:  created,
		})
	}
	if messages == nil {
		return []models.Message{}
	}
	return messages
}

// classify guesses type and severity from the message id prefix, since the
// system utility prints neither.
func classify(id string, failed bool) (models.MessageType, int) {
	switch {
	case strings.HasPrefix(id, "CPC"):
		return models.TypeCompletion, 0
	case strings.HasPrefix(id, "CPD"):
		return models.TypeDiagnostic, 30
	case strings.HasPrefix(id, "CPI"):
		return models.TypeInformational, 0
	case failed:
		return models.TypeEscape, 40
	}
	return models.TypeInformational, 0
}
