package pase

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/graceinfra/ibmisteps/internal/host"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuote(t *testing.T) {
	assert.Equal(t, `'plain'`, quote("plain"))
	assert.Equal(t, `'it'\''s'`, quote("it's"))
	assert.Equal(t, `'CHGJOB CCSID(37)'`, quote("CHGJOB CCSID(37)"))
}

func TestParseDB2(t *testing.T) {
	output := strings.Split(`
STATUS     ACTIVE_STATUS
---------- -------------
*ACTIVE    MSGW
*OUTQ      -

  2 RECORD(S) SELECTED.
`, "\n")

	tbl, err := parseDB2(output)
	require.NoError(t, err)
	assert.Equal(t, []string{"STATUS", "ACTIVE_STATUS"}, tbl.Columns)
	assert.Equal(t, [][]string{{"*ACTIVE", "MSGW"}, {"*OUTQ", ""}}, tbl.Rows)
	assert.Equal(t, "MSGW", tbl.Get(0, "active_status"))
	assert.Equal(t, "", tbl.Get(5, "STATUS"))
	assert.Equal(t, "", tbl.Get(0, "MISSING"))
}

func TestParseDB2LongLastColumn(t *testing.T) {
	output := []string{
		"00001",
		"-----",
		"123456/BUILDER/COMPILE",
		"",
		"  1 RECORD(S) SELECTED.",
	}
	tbl, err := parseDB2(output)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"123456/BUILDER/COMPILE"}}, tbl.Rows)
}

func TestParseDB2Empty(t *testing.T) {
	tbl, err := parseDB2([]string{"", "CCSID", "-----", "", "  0 RECORD(S) SELECTED."})
	require.NoError(t, err)
	assert.Empty(t, tbl.Rows)
}

func TestParseDB2Error(t *testing.T) {
	output := strings.Split(` **** CLI ERROR *****
         SQLSTATE: 42704
NATIVE ERROR CODE: -204
ITEMS in QGPL type *FILE not found.`, "\n")

	_, err := parseDB2(output)
	var hostErr *models.HostError
	require.ErrorAs(t, err, &hostErr)
	assert.Equal(t, "SQL0204", hostErr.MessageID)
	assert.Equal(t, "ITEMS in QGPL type *FILE not found.", hostErr.Text)
}

func TestParseMessages(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	lines := []string{
		"CPD0043: Keyword FOO not valid for this command.",
		"CPF0001: Error found on CRTLIB command.",
		"  Continued text.",
		"not a message",
	}

	messages := parseMessages(lines, true, created)
	require.Len(t, messages, 2)
	assert.Equal(t, models.Message{ID: "CPD0043", Text: "Keyword FOO not valid for this command.", Severity: 30, Type: models.TypeDiagnostic, Created: created}, messages[0])
	assert.Equal(t, "CPF0001", messages[1].ID)
	assert.Equal(t, "Error found on CRTLIB command. Continued text. not a message", messages[1].Text)
	assert.Equal(t, models.TypeEscape, messages[1].Type)
	assert.Equal(t, 40, messages[1].Severity)

	completion := parseMessages([]string{"CPC2102: Library BUILD created."}, false, created)
	require.Len(t, completion, 1)
	assert.Equal(t, models.TypeCompletion, completion[0].Type)

	assert.Equal(t, []models.Message{}, parseMessages(nil, false, created))
}

func TestConnectionString(t *testing.T) {
	target := host.Target{Host: "pub400.com", User: "BUILDER", Password: "p;w"}
	props := host.DefaultSQLProperties(true, 37)
	props.DatabaseName = "IASP1DB"

	dsn := ConnectionString(target, props)
	assert.True(t, strings.HasPrefix(dsn, "DRIVER={IBM i Access ODBC Driver};"))
	for _, part := range []string{"SYSTEM=pub400.com", "UID=BUILDER", "PWD={p;w}", "NAM=1", "CMT=0", "BLOCKSIZE=512", "SSL=1", "TRANSLATE=1", "DATABASE=IASP1DB"} {
		assert.Contains(t, dsn, part)
	}
	assert.NotContains(t, dsn, "UNICODESQL")

	local := ConnectionString(host.Target{}, host.DefaultSQLProperties(false, 1200))
	assert.Contains(t, local, "SYSTEM=localhost")
	assert.Contains(t, local, "UNICODESQL=1")
	assert.Contains(t, local, "SSL=0")
}

func TestPersistentShell(t *testing.T) {
	ctx := context.Background()
	sh, err := startShell(newLocal("sh"))
	require.NoError(t, err)
	defer sh.Close()

	_, _, err = sh.Run(ctx, "X=kept")
	require.NoError(t, err)

	lines, code, err := sh.Run(ctx, `echo "$X"; echo oops >&2; exit_code() { return 3; }; exit_code`)
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Equal(t, []string{"kept", "oops"}, lines, "state survives between commands")

	require.NoError(t, sh.Close())
	_, _, err = sh.Run(ctx, "true")
	assert.Error(t, err)
}

func TestPersistentShellCancel(t *testing.T) {
	sh, err := startShell(newLocal("sh"))
	require.NoError(t, err)
	defer sh.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err = sh.Run(ctx, "sleep 5")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, _, err = sh.Run(context.Background(), "true")
	assert.Error(t, err, "an interrupted shell is not reused")
}

func TestLocalFileSystem(t *testing.T) {
	ctx := context.Background()
	tr := newLocal("sh")
	fs := &fileSystem{t: tr, run: oneShot(tr)}
	root := t.TempDir()

	_, err := fs.Stat(ctx, filepath.Join(root, "missing"))
	assert.ErrorIs(t, err, models.ErrNotExist)

	dir := filepath.Join(root, "a", "b")
	require.NoError(t, fs.MkdirAll(ctx, dir))

	w, err := fs.Create(ctx, filepath.Join(dir, "it's.txt"), 1208)
	require.NoError(t, err)
	_, err = io.WriteString(w, "hello\nworld\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	info, err := fs.Stat(ctx, filepath.Join(dir, "it's.txt"))
	require.NoError(t, err)
	assert.False(t, info.IsDir)
	assert.Equal(t, int64(12), info.Size)

	r, err := fs.Open(ctx, filepath.Join(dir, "it's.txt"))
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "hello\nworld\n", string(data))

	entries, err := fs.ReadDir(ctx, filepath.Join(root, "a"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, host.FileInfo{Name: "b", Path: dir, IsDir: true}, entries[0])

	_, err = fs.ReadDir(ctx, filepath.Join(dir, "it's.txt"))
	assert.ErrorIs(t, err, models.ErrNotDirectory)

	require.NoError(t, os.WriteFile(filepath.Join(root, "file"), []byte("x"), 0644))
	assert.ErrorIs(t, fs.MkdirAll(ctx, filepath.Join(root, "file", "sub")), models.ErrNotDirectory)

	require.NoError(t, fs.RemoveAll(ctx, filepath.Join(root, "a")))
	_, err = fs.Stat(ctx, dir)
	assert.ErrorIs(t, err, models.ErrNotExist)
}
