package pase

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/graceinfra/ibmisteps/internal/host"
	"github.com/graceinfra/ibmisteps/internal/models"
)

// --- Jobs ---

type jobService struct {
	run runner
}

func (j jobService) Status(ctx context.Context, job models.JobIdentifier) (host.JobStatus, error) {
	t, err := query(ctx, j.run, fmt.Sprintf(
		"SELECT V_JOB_STATUS AS STATUS, V_ACTIVE_JOB_STATUS AS ACTIVE_STATUS FROM TABLE(QSYS2.GET_JOB_INFO(%s)) X",
		literal(job.String())))
	if err != nil {
		return host.JobStatus{}, err
	}
	status := host.JobStatus{Status: t.Get(0, "STATUS"), ActiveStatus: t.Get(0, "ACTIVE_STATUS")}
	if status.Status == "" {
		return host.JobStatus{}, &models.HostError{MessageID: models.StaleJobMessageID, Text: fmt.Sprintf("Internal job identifier for %s no longer valid.", job)}
	}
	return status, nil
}

func (j jobService) End(ctx context.Context, job models.JobIdentifier) error {
	command := fmt.Sprintf("ENDJOB JOB(%s) OPTION(*IMMED)", job)
	lines, code, err := j.run(ctx, systemScript(command))
	if err != nil {
		return err
	}
	if code != 0 {
		return hostError(command, lines)
	}
	return nil
}

// hostError reports the first message of a failed command.
func hostError(command string, lines []string) error {
	for _, m := range parseMessages(lines, true, time.Time{}) {
		return &models.HostError{MessageID: m.ID, Text: m.Text}
	}
	return fmt.Errorf("%s failed: %s", command, strings.Join(lines, " "))
}

// --- Spooled files ---

type spoolLister struct {
	run runner
}

func (l spoolLister) Open(ctx context.Context, job models.JobIdentifier) (host.SpooledFileList, error) {
	t, err := query(ctx, l.run, fmt.Sprintf(
		"SELECT SPOOLED_FILE_NAME, FILE_NUMBER, SIZE * 1024 AS BYTES, COALESCE(USER_DATA, '') AS USER_DATA "+
			"FROM QSYS2.OUTPUT_QUEUE_ENTRIES_BASIC WHERE JOB_NAME = %s AND STATUS = 'READY' ORDER BY FILE_NUMBER",
		literal(job.String())))
	if err != nil {
		return nil, err
	}

	files := make([]models.SpooledFile, 0, len(t.Rows))
	for i := range t.Rows {
		number, _ := strconv.Atoi(t.Get(i, "FILE_NUMBER"))
		size, _ := strconv.ParseInt(t.Get(i, "BYTES"), 10, 64)
		files = append(files, models.SpooledFile{
			Name:     t.Get(i, "SPOOLED_FILE_NAME"),
			Number:   number,
			Size:     size,
			UserData: t.Get(i, "USER_DATA"),
			Job:      job,
		})
	}
	return &spoolList{files: files}, nil
}

type spoolList struct {
	files []models.SpooledFile
}

func (l *spoolList) Next(ctx context.Context) (models.SpooledFile, error) {
	if len(l.files) == 0 {
		return models.SpooledFile{}, io.EOF
	}
	f := l.files[0]
	l.files = l.files[1:]
	return f, nil
}

func (l *spoolList) Close() error { return nil }

// --- Save files ---

type saveFiles struct {
	run runner
}

func (s saveFiles) Describe(ctx context.Context, library, name string) (models.SaveFileDescription, error) {
	library, name = strings.ToUpper(library), strings.ToUpper(name)
	t, err := query(ctx, s.run, fmt.Sprintf(
		"SELECT O.OBJNAME, O.OBJLONGSCHEMA, COALESCE(O.OBJTEXT, '') AS OBJTEXT, O.OBJSIZE, COALESCE(I.TARGET_RELEASE, '') AS TARGET_RELEASE "+
			"FROM TABLE(QSYS2.OBJECT_STATISTICS(%[1]s, '*FILE', %[2]s)) O "+
			"LEFT JOIN QSYS2.SAVE_FILE_INFO I ON I.SAVE_FILE_LIBRARY = %[1]s AND I.SAVE_FILE = %[2]s "+
			"WHERE O.OBJATTRIBUTE = 'SAVF'",
		literal(library), literal(name)))
	if err != nil {
		return models.SaveFileDescription{}, err
	}
	if len(t.Rows) == 0 {
		return models.SaveFileDescription{}, fmt.Errorf("save file %s/%s: %w", library, name, models.ErrNotExist)
	}
	size, _ := strconv.ParseInt(t.Get(0, "OBJSIZE"), 10, 64)
	return models.SaveFileDescription{
		Name:          t.Get(0, "OBJNAME"),
		Library:       t.Get(0, "OBJLONGSCHEMA"),
		Description:   t.Get(0, "OBJTEXT"),
		Size:          size,
		TargetRelease: t.Get(0, "TARGET_RELEASE"),
	}, nil
}

func (s saveFiles) Entries(ctx context.Context, library, name string) ([]models.SaveFileEntry, error) {
	t, err := query(ctx, s.run, fmt.Sprintf(
		"SELECT OBJECT_NAME, COALESCE(TEXT_DESCRIPTION, '') AS TEXT_DESCRIPTION, LIBRARY_NAME, "+
			"COALESCE(EXTENDED_OBJECT_ATTRIBUTE, '') AS EXTENDED_OBJECT_ATTRIBUTE, DATA_SAVED, OBJECT_OWNER, OBJECT_SIZE, OBJECT_TYPE "+
			"FROM TABLE(QSYS2.SAVE_FILE_OBJECTS(SAVE_FILE => %s, SAVE_FILE_LIBRARY => %s))",
		literal(strings.ToUpper(name)), literal(strings.ToUpper(library))))
	if err != nil {
		return nil, err
	}

	entries := make([]models.SaveFileEntry, 0, len(t.Rows))
	for i := range t.Rows {
		size, _ := strconv.ParseInt(t.Get(i, "OBJECT_SIZE"), 10, 64)
		entries = append(entries, models.SaveFileEntry{
			Name:                    t.Get(i, "OBJECT_NAME"),
			Description:             t.Get(i, "TEXT_DESCRIPTION"),
			Library:                 t.Get(i, "LIBRARY_NAME"),
			ExtendedObjectAttribute: t.Get(i, "EXTENDED_OBJECT_ATTRIBUTE"),
			DataSaved:               strings.EqualFold(t.Get(i, "DATA_SAVED"), "YES"),
			Owner:                   t.Get(i, "OBJECT_OWNER"),
			Size:                    size,
			Type:                    t.Get(i, "OBJECT_TYPE"),
		})
	}
	return entries, nil
}

// --- Shell ---

type shellService struct {
	run runner
}

func (s shellService) Exec(ctx context.Context, command string) (models.ShellExec, error) {
	lines, code, err := s.run(ctx, command)
	if err != nil {
		return models.ShellExec{}, err
	}
	return models.ShellExec{Code: code, Output: strings.Join(lines, "\n")}, nil
}
