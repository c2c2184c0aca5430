package steps

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	execctx "github.com/graceinfra/ibmisteps/internal/context"
	"github.com/graceinfra/ibmisteps/internal/host/hosttest"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/graceinfra/ibmisteps/internal/session"
	"github.com/graceinfra/ibmisteps/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var submitted = models.JobIdentifier{Number: "123456", User: "BUILDER", Name: "COMPILE"}

func newContext(t *testing.T, h *hosttest.Host) *execctx.ExecutionContext {
	t.Helper()
	ec := &execctx.ExecutionContext{
		Dialer:   &hosttest.Dialer{Host: h},
		Options:  session.Options{Host: "dev.example.com", User: "builder", CCSID: 37},
		Pipeline: &types.Pipeline{Server: "dev"},
		WorkDir:  t.TempDir(),
	}
	t.Cleanup(ec.Close)
	return ec
}

func execute(t *testing.T, handler StepHandler, ec *execctx.ExecutionContext, with map[string]any) (*models.StepExecutionRecord, error) {
	t.Helper()
	step := &types.Step{Name: handler.Type(), Type: handler.Type(), With: with}
	require.Empty(t, handler.Validate(step))
	record := &models.StepExecutionRecord{StepName: step.Name, Type: step.Type}
	err := handler.Execute(context.Background(), ec, step, record, zerolog.Nop())
	return record, err
}

func TestRegistry(t *testing.T) {
	r := NewDefaultRegistry()
	assert.Equal(t,
		[]string{"command", "getifs", "getsavf", "putifs", "putsavf", "shell", "splf", "sql", "waitjob"},
		r.GetRegisteredTypes())
	assert.True(t, r.IsKnownType("waitjob"))
	assert.False(t, r.IsKnownType("ftp"))
	assert.Equal(t, "sql", r.MustGet("sql").Type())

	assert.Panics(t, func() { r.Register(&CommandHandler{}) })
	assert.Panics(t, func() { r.MustGet("ftp") })
	assert.Nil(t, r.Validate(&types.Step{Type: "ftp"}))
}

func TestValidate(t *testing.T) {
	r := NewDefaultRegistry()

	tests := []struct {
		name        string
		step        types.Step
		errContains []string
	}{
		{
			name: "Valid command",
			step: types.Step{Type: "command", With: map[string]any{"command": "CRTLIB BUILD", "failOnError": false}},
		},
		{
			name:        "Command without command",
			step:        types.Step{Type: "command"},
			errContains: []string{"parameter 'command' is required"},
		},
		{
			name:        "Command with bad failOnError",
			step:        types.Step{Type: "command", With: map[string]any{"command": "X", "failOnError": "maybe"}},
			errContains: []string{`"maybe" is not a boolean`},
		},
		{
			name: "Wait job by parts",
			step: types.Step{Type: "waitjob", With: map[string]any{"number": "123456", "user": "builder", "name": "compile", "timeout": 30, "onMSGW": "kill"}},
		},
		{
			name: "Wait job by identifier",
			step: types.Step{Type: "waitjob", With: map[string]any{"job": "123456/BUILDER/COMPILE"}},
		},
		{
			name: "Wait job from a step",
			step: types.Step{Type: "waitjob", With: map[string]any{"from": "submit"}},
		},
		{
			name: "Wait job problems",
			step: types.Step{Type: "waitjob", With: map[string]any{"number": "12345678", "timeout": -1, "onMSGW": "ignore"}},
			errContains: []string{
				"parameter 'user' is required",
				"parameter 'name' is required",
				`job number "12345678" must be 1 to 6 digits`,
				"parameter 'timeout' must not be negative",
				`unknown message wait policy "IGNORE"`,
			},
		},
		{
			name:        "Spooled files bad identifier",
			step:        types.Step{Type: "splf", With: map[string]any{"job": "123456/BUILDER", "to": "out"}},
			errContains: []string{"expected number/user/name"},
		},
		{
			name:        "Spooled files without target",
			step:        types.Step{Type: "splf", With: map[string]any{"job": "123456/BUILDER/COMPILE"}},
			errContains: []string{"parameter 'to' is required"},
		},
		{
			name: "Put IFS with CCSID",
			step: types.Step{Type: "putifs", With: map[string]any{"from": "src", "to": "/home/build", "ccsid": 37}},
		},
		{
			name:        "Put IFS with unsupported CCSID",
			step:        types.Step{Type: "putifs", With: map[string]any{"from": "src", "to": "/home/build", "ccsid": 5026}},
			errContains: []string{"CCSID 5026 is not supported"},
		},
		{
			name:        "Put IFS with CCSID out of range",
			step:        types.Step{Type: "putifs", With: map[string]any{"from": "src", "to": "/home/build", "ccsid": 70000}},
			errContains: []string{"70000 is outside 1-65535"},
		},
		{
			name:        "Get save file with bad library",
			step:        types.Step{Type: "getsavf", With: map[string]any{"library": "NOT A LIB", "name": "ARTIFACTS"}},
			errContains: []string{`parameter 'library': "NOT A LIB" is not a valid object name`, "parameter 'toFile' is required"},
		},
		{
			name:        "SQL without statement",
			step:        types.Step{Type: "sql"},
			errContains: []string{"parameter 'sql' is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := r.Validate(&tt.step)
			if len(tt.errContains) == 0 {
				assert.Empty(t, errs)
				return
			}
			joined := strings.Join(errs, "\n")
			for _, want := range tt.errContains {
				assert.Contains(t, joined, want)
			}
		})
	}
}

func TestCommandHandler(t *testing.T) {
	failing := func(command string) (bool, []models.Message, error) {
		if command == "DLTLIB NOPE" {
			return false, []models.Message{{ID: "CPF2110", Text: "Library NOPE not found.", Severity: 40}}, nil
		}
		return true, nil, nil
	}

	tests := []struct {
		name        string
		with        map[string]any
		shouldError bool
		successful  bool
	}{
		{name: "Success", with: map[string]any{"command": "  CRTLIB BUILD "}, successful: true},
		{name: "Failure", with: map[string]any{"command": "DLTLIB NOPE"}, shouldError: true},
		{name: "Failure tolerated", with: map[string]any{"command": "DLTLIB NOPE", "failOnError": false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := hosttest.New()
			h.OnCommand = failing
			record, err := execute(t, &CommandHandler{}, newContext(t, h), tt.with)

			if tt.shouldError {
				assert.ErrorContains(t, err, "CPF2110 Library NOPE not found.")
			} else {
				assert.NoError(t, err)
			}
			require.NotNil(t, record.CommandResult)
			assert.Equal(t, tt.successful, record.CommandResult.Successful)
		})
	}
}

func TestShellHandler(t *testing.T) {
	h := hosttest.New()
	h.ShellFunc = func(command string) (models.ShellExec, error) {
		if command == "false" {
			return models.ShellExec{Code: 1, Output: "nope"}, nil
		}
		return models.ShellExec{Output: "ok"}, nil
	}
	ec := newContext(t, h)

	record, err := execute(t, &ShellHandler{}, ec, map[string]any{"command": "true"})
	require.NoError(t, err)
	assert.Equal(t, "ok", record.Shell.Output)

	record, err = execute(t, &ShellHandler{}, ec, map[string]any{"command": "false"})
	assert.ErrorContains(t, err, "ended with code 1: nope")
	assert.Equal(t, 1, record.Shell.Code)

	_, err = execute(t, &ShellHandler{}, ec, map[string]any{"command": "false", "failOnError": "false"})
	assert.NoError(t, err)
}

func TestWaitJobHandler(t *testing.T) {
	handler := &WaitJobHandler{Interval: time.Millisecond}

	t.Run("Job from an earlier step", func(t *testing.T) {
		h := hosttest.New()
		h.JobsFS.Script(submitted, hosttest.Running, hosttest.Running, hosttest.Ended)
		ec := newContext(t, h)
		ec.Record(&models.StepExecutionRecord{
			StepName: "submit",
			CommandResult: models.NewCommandResult("SBMJOB CMD(CALL COMPILE)", true, []models.Message{
				{ID: models.JobSubmittedMessageID, Text: "Job 123456/BUILDER/COMPILE submitted to job queue QBATCH in library QGPL."},
			}),
		})

		record, err := execute(t, handler, ec, map[string]any{"from": "submit"})
		require.NoError(t, err)
		assert.Equal(t, "COMPLETED", record.JobWait)
		assert.Equal(t, 3, h.JobsFS.PollCount(submitted))
	})

	t.Run("Earlier step without a submitted job", func(t *testing.T) {
		ec := newContext(t, hosttest.New())
		ec.Record(&models.StepExecutionRecord{StepName: "build", CommandResult: models.NewCommandResult("CRTLIB X", true, nil)})

		_, err := execute(t, handler, ec, map[string]any{"from": "build"})
		assert.ErrorContains(t, err, `step "build" did not submit a job`)
	})

	t.Run("Inquiry message fails the step", func(t *testing.T) {
		h := hosttest.New()
		h.JobsFS.Script(submitted, hosttest.Running, hosttest.Attention)

		_, err := execute(t, handler, newContext(t, h), map[string]any{"job": "123456/builder/compile", "onMSGW": "fail"})
		assert.ErrorIs(t, err, models.ErrInquiryMessage)
	})

	t.Run("Kill on inquiry message", func(t *testing.T) {
		h := hosttest.New()
		h.JobsFS.Script(submitted, hosttest.Attention)

		record, err := execute(t, handler, newContext(t, h), map[string]any{"number": "123456", "user": "builder", "name": "compile", "onMSGW": "KILL"})
		require.NoError(t, err)
		assert.Equal(t, "KILLED", record.JobWait)
		assert.Equal(t, []models.JobIdentifier{submitted}, h.JobsFS.Killed)
	})
}

var toObj = regexp.MustCompile(`TOOBJ\('([^']+)'\)`)

func TestSpooledFilesHandler(t *testing.T) {
	h := hosttest.New()
	h.Spool[submitted.String()] = []models.SpooledFile{
		{Name: "QPJOBLOG", Number: 1, Size: 100, Job: submitted},
		{Name: "QSYSPRT", Number: 2, Size: 0, Job: submitted},
	}
	h.OnCommand = func(command string) (bool, []models.Message, error) {
		if m := toObj.FindStringSubmatch(command); m != nil {
			h.FS.WriteFile(m[1], []byte("job log"), 1208)
		}
		return true, nil, nil
	}
	ec := newContext(t, h)

	stale := filepath.Join(ec.WorkDir, "spool", "old.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0755))
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0644))

	record, err := execute(t, &SpooledFilesHandler{}, ec, map[string]any{"job": submitted.String(), "to": "spool", "clearTo": true})
	require.NoError(t, err)

	require.Len(t, record.SpooledFiles, 1)
	data, err := os.ReadFile(filepath.Join(ec.WorkDir, "spool", "QPJOBLOG_1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "job log", string(data))
	assert.NoFileExists(t, stale)
}

func TestIFSHandlers(t *testing.T) {
	h := hosttest.New()
	ec := newContext(t, h)

	src := filepath.Join(ec.WorkDir, "src")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "qrpglesrc"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "qrpglesrc", "hello.rpgle"), []byte("dcl-s x;"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "Rules.mk"), []byte("all:"), 0644))

	record, err := execute(t, &PutIFSHandler{}, ec, map[string]any{"from": "src", "to": "/home/build", "ccsid": 37})
	require.NoError(t, err)
	assert.Equal(t, int64(12), record.BytesMoved)

	data, ccsid, ok := h.FS.ReadFile("/home/build/qrpglesrc/hello.rpgle")
	require.True(t, ok)
	assert.Equal(t, "dcl-s x;", string(data))
	assert.Equal(t, 37, ccsid)

	record, err = execute(t, &GetIFSHandler{}, ec, map[string]any{"from": "/home/build", "to": "back"})
	require.NoError(t, err)
	assert.Equal(t, int64(12), record.BytesMoved)
	data, err = os.ReadFile(filepath.Join(ec.WorkDir, "back", "qrpglesrc", "hello.rpgle"))
	require.NoError(t, err)
	assert.Equal(t, "dcl-s x;", string(data))

	_, err = execute(t, &GetIFSHandler{}, ec, map[string]any{"from": "/home/missing", "to": "back"})
	assert.ErrorIs(t, err, models.ErrNotExist)
}

func TestSaveFileHandlers(t *testing.T) {
	toStmf := regexp.MustCompile(`TOSTMF\('([^']+)'\)`)
	h := hosttest.New()
	h.Savf["BUILD/ARTIFACTS"] = hosttest.SaveFile{
		Description: models.SaveFileDescription{Name: "ARTIFACTS", Library: "BUILD", Size: 5, TargetRelease: "*CURRENT"},
		Entries: []models.SaveFileEntry{
			{Name: "APPLIB", Library: "APPLIB", Type: "*LIB"},
			{Name: "PGM1", Library: "APPLIB", Type: "*PGM", Size: 4096},
		},
	}
	h.OnCommand = func(command string) (bool, []models.Message, error) {
		if m := toStmf.FindStringSubmatch(command); m != nil {
			h.FS.WriteFile(m[1], []byte("SAVED"), 65535)
		}
		return true, nil, nil
	}
	ec := newContext(t, h)

	record, err := execute(t, &GetSAVFHandler{}, ec, map[string]any{"library": "build", "name": "artifacts", "toFile": "artifacts.savf"})
	require.NoError(t, err)
	require.NotNil(t, record.SaveFile)
	assert.Equal(t, "APPLIB", record.SaveFile.SavedLibrary())
	assert.FileExists(t, filepath.Join(ec.WorkDir, "artifacts.savf"))

	record, err = execute(t, &PutSAVFHandler{}, ec, map[string]any{"library": "BUILD", "name": "ARTIFACTS", "fromFile": "artifacts.savf"})
	require.NoError(t, err)
	assert.Equal(t, "ARTIFACTS", record.SaveFile.Name())
	assert.Contains(t, h.RecordedCommands()[len(h.RecordedCommands())-1], "TOMBR('/QSYS.LIB/BUILD.LIB/ARTIFACTS.FILE') MBROPT(*REPLACE)")

	_, err = execute(t, &PutSAVFHandler{}, ec, map[string]any{"library": "BUILD", "name": "ARTIFACTS", "fromFile": "missing.savf"})
	assert.ErrorIs(t, err, models.ErrNotExist)
}

func TestSQLHandler(t *testing.T) {
	catalog := hosttest.NewCatalog(t,
		"CREATE TABLE QSYS2.SYSROUTINES (ROUTINE_NAME TEXT)",
		"CREATE TABLE ITEMS (ID INTEGER, NAME TEXT)",
		"INSERT INTO ITEMS VALUES (1, 'BOLT'), (2, 'NUT')",
	)
	h := hosttest.New()
	h.SQLOpener = catalog.Open
	ec := newContext(t, h)

	record, err := execute(t, &SQLHandler{}, ec, map[string]any{"sql": "SELECT ID, NAME FROM ITEMS ORDER BY ID", "to": "out/items.csv"})
	require.NoError(t, err)
	assert.Equal(t, 2, record.SQLResult.RowCount())
	data, err := os.ReadFile(filepath.Join(ec.WorkDir, "out", "items.csv"))
	require.NoError(t, err)
	assert.Equal(t, "ID,NAME\n1,BOLT\n2,NUT\n", string(data))

	record, err = execute(t, &SQLHandler{}, ec, map[string]any{"sql": "UPDATE ITEMS SET NAME = 'X'"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), record.SQLResult.UpdateCount)

	_, err = execute(t, &SQLHandler{}, ec, map[string]any{"sql": "SELECT * FROM NOPE"})
	var queryErr *models.QueryError
	assert.ErrorAs(t, err, &queryErr)
}
