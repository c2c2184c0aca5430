package runner

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	execctx "github.com/graceinfra/ibmisteps/internal/context"
	"github.com/graceinfra/ibmisteps/internal/host/hosttest"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/graceinfra/ibmisteps/internal/session"
	"github.com/graceinfra/ibmisteps/internal/steps"
	"github.com/graceinfra/ibmisteps/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(t *testing.T, h *hosttest.Host, only ...string) *execctx.ExecutionContext {
	t.Helper()
	ec := &execctx.ExecutionContext{
		RunID:   uuid.New(),
		Server:  &types.Server{Name: "dev"},
		Dialer:  &hosttest.Dialer{Host: h},
		Options: session.Options{Host: "dev.example.com", User: "builder", CCSID: 37},
		LogDir:  t.TempDir(),
		WorkDir: t.TempDir(),
		Only:    only,
		Pipeline: &types.Pipeline{
			Server: "dev",
			Steps: []*types.Step{
				{Name: "create", Type: "command", With: map[string]any{"command": "CRTLIB BUILD"}},
				{Name: "compile", Type: "command", With: map[string]any{"command": "CRTBNDRPG PGM(BUILD/HELLO)"}},
				{Name: "cleanup", Type: "command", With: map[string]any{"command": "DLTLIB BUILD"}},
			},
		},
	}
	t.Cleanup(ec.Close)
	return ec
}

func failOn(bad string) hosttest.CommandFunc {
	return func(command string) (bool, []models.Message, error) {
		if command == bad {
			return false, []models.Message{{ID: "CPF0001", Text: "Error found on command."}}, nil
		}
		return true, nil, nil
	}
}

func statuses(records []*models.StepExecutionRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.StepName+"="+r.Status)
	}
	return out
}

func TestRun(t *testing.T) {
	tests := []struct {
		name     string
		fail     string
		only     []string
		expected []string
	}{
		{
			name:     "All steps succeed",
			expected: []string{"create=SUCCEEDED", "compile=SUCCEEDED", "cleanup=SUCCEEDED"},
		},
		{
			name:     "Failure skips the rest",
			fail:     "CRTBNDRPG PGM(BUILD/HELLO)",
			expected: []string{"create=SUCCEEDED", "compile=FAILED", "cleanup=SKIPPED"},
		},
		{
			name:     "Only selected steps run",
			only:     []string{"CLEANUP", "create"},
			expected: []string{"create=SUCCEEDED", "cleanup=SUCCEEDED"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := hosttest.New()
			h.OnCommand = failOn(tt.fail)
			ec := newContext(t, h, tt.only...)

			records, err := New(ec, steps.NewDefaultRegistry()).Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, statuses(records))

			for _, record := range records {
				assert.Equal(t, ec.RunID, record.RunID)
				assert.Equal(t, "dev", record.Server)
				_, ok := ec.StepRecord(record.StepName)
				assert.True(t, ok)
			}
		})
	}
}

func TestRunWritesStepRecords(t *testing.T) {
	h := hosttest.New()
	h.OnCommand = failOn("CRTBNDRPG PGM(BUILD/HELLO)")
	ec := newContext(t, h)

	_, err := New(ec, steps.NewDefaultRegistry()).Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(ec.LogDir, "02_COMPILE.json"))
	require.NoError(t, err)
	var record models.StepExecutionRecord
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, models.StatusFailed, record.Status)
	assert.Contains(t, record.Error, "CPF0001")
	assert.NotEmpty(t, record.StartTime)

	assert.FileExists(t, filepath.Join(ec.LogDir, "01_CREATE.json"))
	assert.FileExists(t, filepath.Join(ec.LogDir, "03_CLEANUP.json"))
}

func TestRunUnknownOnly(t *testing.T) {
	ec := newContext(t, hosttest.New(), "create", "deploy")
	_, err := New(ec, steps.NewDefaultRegistry()).Run(context.Background())
	assert.EqualError(t, err, "unknown step(s) in --only: deploy")
}

func TestRunCancelled(t *testing.T) {
	h := hosttest.New()
	ec := newContext(t, h)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records, err := New(ec, steps.NewDefaultRegistry()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"create=SKIPPED", "compile=SKIPPED", "cleanup=SKIPPED"}, statuses(records))
	assert.Empty(t, h.RecordedCommands(), "no session was opened")
}

func TestRunUnknownType(t *testing.T) {
	ec := newContext(t, hosttest.New())
	ec.Pipeline.Steps[0].Type = "ftp"

	records, err := New(ec, steps.NewDefaultRegistry()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, records[0].Status)
	assert.Equal(t, `no handler registered for type "ftp"`, records[0].Error)
}
