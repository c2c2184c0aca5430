package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/graceinfra/ibmisteps/internal/host"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/jmoiron/sqlx"
)

const (
	aspDatabaseQuery = "SELECT RDB_NAME FROM QSYS2.ASP_INFO WHERE DEVICE_DESCRIPTION_NAME = ? LIMIT 1"
	sqlJobQuery      = "VALUES QSYS2.JOB_NAME"
)

type sqlSession struct {
	db   *sqlx.DB
	conn *sqlx.Conn
	job  models.JobIdentifier
}

// SQL returns the session's database connection, opening it on first use.
func (s *Session) SQL(ctx context.Context) (*sqlx.Conn, error) {
	s.sqlMu.Lock()
	defer s.sqlMu.Unlock()

	if s.isClosed() {
		return nil, &models.QueryError{Err: fmt.Errorf("session is disconnected")}
	}
	if s.sql != nil {
		return s.sql.conn, nil
	}

	opened, err := s.openSQL(ctx)
	if err != nil {
		return nil, err
	}
	s.sql = opened
	return opened.conn, nil
}

func (s *Session) openSQL(ctx context.Context) (*sqlSession, error) {
	s.logger.Debug().Msg("Opening SQL connection")
	props := host.DefaultSQLProperties(s.secure, s.ccsid)

	if pool := s.StoragePool(); !isSystemPool(pool) {
		name, err := s.lookupDatabaseName(ctx, pool)
		if err != nil {
			return nil, &models.QueryError{Query: aspDatabaseQuery, Err: err}
		}
		if name == "" {
			s.logger.Info().Msgf("No RDB_NAME found for DEVICE_DESCRIPTION_NAME '%s'", pool)
		} else {
			s.logger.Debug().Msgf("Database name for storage pool %s is %s", pool, name)
			props.DatabaseName = name
		}
	}

	db, err := s.conn.SQL().OpenSQL(ctx, props)
	if err != nil {
		return nil, &models.QueryError{Err: fmt.Errorf("failed to open SQL connection: %w", err)}
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Connx(ctx)
	if err != nil {
		_ = db.Close()
		return nil, &models.QueryError{Err: fmt.Errorf("failed to open SQL connection: %w", err)}
	}

	opened := &sqlSession{db: db, conn: conn}
	opened.job = s.captureSQLJob(ctx, conn)
	return opened, nil
}

func (s *Session) lookupDatabaseName(ctx context.Context, pool string) (string, error) {
	db, err := s.conn.SQL().OpenSQL(ctx, host.DefaultSQLProperties(s.secure, s.ccsid))
	if err != nil {
		return "", err
	}
	defer db.Close()

	var name string
	err = db.QueryRowxContext(ctx, aspDatabaseQuery, strings.ToUpper(pool)).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return strings.TrimSpace(name), err
}

// captureSQLJob records the database server job and aligns its CCSID with the
// session. Failures only cost diagnostics.
func (s *Session) captureSQLJob(ctx context.Context, conn *sqlx.Conn) models.JobIdentifier {
	var name string
	if err := conn.QueryRowxContext(ctx, sqlJobQuery).Scan(&name); err != nil {
		s.logger.Debug().Err(err).Msg("Could not identify SQL job")
		return models.JobIdentifier{}
	}
	job, err := models.ParseJobIdentifier(name)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Could not identify SQL job")
		return models.JobIdentifier{}
	}
	s.logger.Debug().Msgf("SQL job is %s", job)

	command := fmt.Sprintf("CHGJOB JOB(%s) CCSID(%d)", job, s.ccsid)
	result, err := s.ExecuteCommand(ctx, command)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to set SQL job CCSID")
	} else if !result.Successful {
		s.logger.Warn().Msgf("Failed to set SQL job CCSID:\n%s", result.PrettyMessages(""))
	}
	return job
}

// DatabaseJob is the SQL server job, zero until the SQL connection is open.
func (s *Session) DatabaseJob() models.JobIdentifier {
	s.sqlMu.Lock()
	defer s.sqlMu.Unlock()
	if s.sql == nil {
		return models.JobIdentifier{}
	}
	return s.sql.job
}

// CloseSQL closes the SQL connection if one is open. Close failures are logged.
func (s *Session) CloseSQL() {
	s.sqlMu.Lock()
	defer s.sqlMu.Unlock()
	if s.sql == nil {
		return
	}

	s.logger.Debug().Msg("Closing SQL connection")
	if err := s.sql.conn.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to close SQL connection")
	}
	if err := s.sql.db.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to close SQL connection pool")
	}
	s.sql = nil
}

// RunQuery calls fn for each row in order and reports whether any row was produced.
func (s *Session) RunQuery(ctx context.Context, query string, fn func(models.SQLRow) error) (bool, error) {
	conn, err := s.SQL(ctx)
	if err != nil {
		return false, withQuery(err, query)
	}

	s.logger.Debug().Str("query", query).Msg("Running query")
	rows, err := conn.QueryxContext(ctx, query)
	if err != nil {
		return false, &models.QueryError{Query: query, Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return false, &models.QueryError{Query: query, Err: err}
	}

	found := false
	for rows.Next() {
		found = true
		values, err := rows.SliceScan()
		if err != nil {
			return found, &models.QueryError{Query: query, Err: err}
		}
		if err := fn(models.NewSQLRow(columns, normalize(values))); err != nil {
			return found, &models.QueryError{Query: query, Err: err}
		}
	}
	if err := rows.Err(); err != nil {
		return found, &models.QueryError{Query: query, Err: err}
	}
	return found, nil
}

// Execute runs any statement. Queries return their rows, everything else the
// number of rows affected.
func (s *Session) Execute(ctx context.Context, statement string) (*models.SQLResult, error) {
	statement = strings.TrimSpace(statement)
	conn, err := s.SQL(ctx)
	if err != nil {
		return nil, withQuery(err, statement)
	}

	if !isQuery(statement) {
		res, err := conn.ExecContext(ctx, statement)
		if err != nil {
			return nil, &models.QueryError{Query: statement, Err: err}
		}
		count, err := res.RowsAffected()
		if err != nil {
			count = 0
		}
		return models.NewUpdateResult(count), nil
	}

	rows, err := conn.QueryxContext(ctx, statement)
	if err != nil {
		return nil, &models.QueryError{Query: statement, Err: err}
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, &models.QueryError{Query: statement, Err: err}
	}
	columns := make([]models.SQLColumn, 0, len(types))
	names := make([]string, 0, len(types))
	for _, t := range types {
		col := models.SQLColumn{Name: t.Name(), TypeName: t.DatabaseTypeName()}
		if precision, scale, ok := t.DecimalSize(); ok {
			col.Precision, col.Scale = precision, scale
		} else if length, ok := t.Length(); ok {
			col.Precision = length
		}
		columns = append(columns, col)
		names = append(names, t.Name())
	}

	var result []models.SQLRow
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, &models.QueryError{Query: statement, Err: err}
		}
		result = append(result, models.NewSQLRow(names, normalize(values)))
	}
	if err := rows.Err(); err != nil {
		return nil, &models.QueryError{Query: statement, Err: err}
	}
	return models.NewQueryResult(columns, result), nil
}

func isQuery(statement string) bool {
	fields := strings.Fields(strings.TrimLeft(statement, "( \t\r\n"))
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "VALUES", "WITH":
		return true
	}
	return false
}

// normalize turns driver byte slices into strings so rows print and encode as text.
func normalize(values []any) []any {
	for i, v := range values {
		if b, ok := v.([]byte); ok {
			values[i] = string(b)
		}
	}
	return values
}

func withQuery(err error, query string) error {
	var queryErr *models.QueryError
	if errors.As(err, &queryErr) && queryErr.Query == "" {
		return &models.QueryError{Query: query, Err: queryErr.Err}
	}
	return err
}
