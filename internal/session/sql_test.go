package session

import (
	"context"
	"testing"

	"github.com/graceinfra/ibmisteps/internal/host/hosttest"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var catalogSetup = []string{
	"CREATE TABLE QSYS2.ASP_INFO (DEVICE_DESCRIPTION_NAME TEXT, RDB_NAME TEXT)",
	"INSERT INTO QSYS2.ASP_INFO VALUES ('IASP1', 'IASP1DB')",
	"CREATE TABLE QSYS2.SYSROUTINES (ROUTINE_NAME TEXT)",
	"CREATE TABLE ITEMS (ID INTEGER, NAME TEXT)",
}

func newSQLSession(t *testing.T, setup ...string) (*Session, *hosttest.Host, *hosttest.Catalog) {
	t.Helper()
	catalog := hosttest.NewCatalog(t, append(append([]string{}, catalogSetup...), setup...)...)
	h := hosttest.New()
	h.SQLOpener = catalog.Open
	s := connect(t, h, Options{CCSID: 37, Secure: true})
	t.Cleanup(s.Disconnect)
	return s, h, catalog
}

func TestSQLConnectionIsLazyAndReused(t *testing.T) {
	ctx := context.Background()
	s, h, catalog := newSQLSession(t)
	assert.Equal(t, 0, catalog.Opens)

	first, err := s.SQL(ctx)
	require.NoError(t, err)
	second, err := s.SQL(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, catalog.Opens)

	require.Len(t, h.SQLProps, 1)
	props := h.SQLProps[0]
	assert.Equal(t, "system", props.Naming)
	assert.False(t, props.Prompt)
	assert.False(t, props.BigDecimal)
	assert.True(t, props.TranslateBinary)
	assert.True(t, props.KeepAlive)
	assert.Equal(t, 512, props.BlockSize)
	assert.True(t, props.Secure)
	assert.Equal(t, "none", props.Isolation)
	assert.Zero(t, props.PackageCCSID)
	assert.Empty(t, props.DatabaseName)

	s.CloseSQL()
	s.CloseSQL()
	_, err = s.SQL(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, catalog.Opens, "reopened after close")

	cmdCount := len(h.RecordedCommands())
	_, err = s.ExecuteCommand(ctx, "DSPLIBL")
	require.NoError(t, err, "command service unaffected by SQL close")
	assert.Len(t, h.RecordedCommands(), cmdCount+1)
}

func TestSQLResolvesPoolDatabase(t *testing.T) {
	ctx := context.Background()

	t.Run("Known pool", func(t *testing.T) {
		s, h, _ := newSQLSession(t)
		require.NoError(t, s.ChangeStoragePool(ctx, "iasp1"))
		_, err := s.SQL(ctx)
		require.NoError(t, err)
		assert.Equal(t, "IASP1DB", h.SQLProps[len(h.SQLProps)-1].DatabaseName)
	})

	t.Run("Unknown pool is tolerated", func(t *testing.T) {
		s, h, _ := newSQLSession(t)
		require.NoError(t, s.ChangeStoragePool(ctx, "IASP9"))
		_, err := s.SQL(ctx)
		require.NoError(t, err)
		assert.Empty(t, h.SQLProps[len(h.SQLProps)-1].DatabaseName)
	})

	t.Run("Pool switch drops the open connection", func(t *testing.T) {
		s, _, catalog := newSQLSession(t)
		_, err := s.SQL(ctx)
		require.NoError(t, err)
		require.NoError(t, s.ChangeStoragePool(ctx, "IASP1"))
		_, err = s.SQL(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, catalog.Opens, "initial, lookup, reopen")
	})
}

func TestRunQuery(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newSQLSession(t, "INSERT INTO ITEMS VALUES (1, 'one'), (2, 'two')")

	var names []string
	found, err := s.RunQuery(ctx, "SELECT ID, NAME FROM ITEMS ORDER BY ID", func(row models.SQLRow) error {
		names = append(names, row.String("NAME"))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"one", "two"}, names)

	found, err = s.RunQuery(ctx, "SELECT ID FROM ITEMS WHERE ID > 10", func(models.SQLRow) error { return nil })
	require.NoError(t, err)
	assert.False(t, found)

	_, err = s.RunQuery(ctx, "SELECT * FROM MISSING", func(models.SQLRow) error { return nil })
	var queryErr *models.QueryError
	require.ErrorAs(t, err, &queryErr)
	assert.Equal(t, "SELECT * FROM MISSING", queryErr.Query)
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newSQLSession(t)

	result, err := s.Execute(ctx, "INSERT INTO ITEMS VALUES (1, 'one'), (2, 'two')")
	require.NoError(t, err)
	assert.False(t, result.IsQuery())
	assert.Equal(t, int64(2), result.UpdateCount)

	result, err = s.Execute(ctx, "SELECT ID AS A FROM ITEMS ORDER BY ID")
	require.NoError(t, err)
	assert.Equal(t, 2, result.RowCount())
	assert.Equal(t, 1, result.ColumnCount())
	assert.Equal(t, "A", result.Columns[0].Name)

	csv, err := result.CSV()
	require.NoError(t, err)
	assert.Equal(t, "A\n1\n2\n", csv)

	json, err := result.JSON()
	require.NoError(t, err)
	assert.Equal(t, `[{"A":1},{"A":2}]`, json)
}

func TestSpooledFilesStrategyIsCached(t *testing.T) {
	ctx := context.Background()

	t.Run("SQL services available", func(t *testing.T) {
		s, _, _ := newSQLSession(t, "INSERT INTO QSYS2.SYSROUTINES VALUES ('SPOOLED_FILE_DATA'), ('SPOOLED_FILE_INFO')")
		svc := s.SpooledFiles(ctx)
		assert.Equal(t, "sql", svc.Name())
		assert.Same(t, svc, s.SpooledFiles(ctx))
	})

	t.Run("SQL services missing", func(t *testing.T) {
		s, _, _ := newSQLSession(t, "INSERT INTO QSYS2.SYSROUTINES VALUES ('SPOOLED_FILE_DATA')")
		assert.Equal(t, "command", s.SpooledFiles(ctx).Name())
	})
}
