package spool

import (
	"context"
	"fmt"
	"strings"

	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/rs/zerolog"
)

const (
	spooledFileDataQuery = "SELECT RTRIM(SPOOLED_DATA) AS SPOOLED_DATA" +
		" FROM TABLE(SYSTOOLS.SPOOLED_FILE_DATA(JOB_NAME => %s, SPOOLED_FILE_NAME => %s, SPOOLED_FILE_NUMBER => %d))" +
		" ORDER BY ORDINAL_POSITION"

	spooledFileInfoQuery = "SELECT SPOOLED_FILE_NAME, SPOOLED_FILE_NUMBER, SIZE, USER_DATA, JOB_NAME, JOB_USER, JOB_NUMBER" +
		" FROM TABLE(QSYS2.SPOOLED_FILE_INFO(JOB_NAME => %s, STATUS => '*READY'))"
)

// SQLService reads spooled files straight from the catalog table functions.
type SQLService struct {
	host   Host
	logger zerolog.Logger
}

func (s *SQLService) Name() string { return "sql" }

func (s *SQLService) List(ctx context.Context, job models.JobIdentifier) (models.SpooledFiles, error) {
	var files models.SpooledFiles
	query := fmt.Sprintf(spooledFileInfoQuery, quote(job.String()))
	_, err := s.host.RunQuery(ctx, query, func(row models.SQLRow) error {
		number, _ := row.Int64("SPOOLED_FILE_NUMBER")
		size, _ := row.Int64("SIZE")
		files = append(files, models.SpooledFile{
			Name:     strings.TrimSpace(row.String("SPOOLED_FILE_NAME")),
			Number:   int(number),
			Size:     size,
			UserData: text(row, "USER_DATA"),
			Job: models.JobIdentifier{
				Number: strings.TrimSpace(row.String("JOB_NUMBER")),
				User:   strings.TrimSpace(row.String("JOB_USER")),
				Name:   strings.TrimSpace(row.String("JOB_NAME")),
			},
		})
		return nil
	})
	if err != nil {
		return nil, &models.SpooledFileError{Job: job, Err: err}
	}
	return existing(files), nil
}

func (s *SQLService) Write(ctx context.Context, file models.SpooledFile, destination string) error {
	query := fmt.Sprintf(spooledFileDataQuery, quote(file.Job.String()), quote(file.Name), file.Number)

	var lines []string
	_, err := s.host.RunQuery(ctx, query, func(row models.SQLRow) error {
		values := row.Values()
		line := ""
		if len(values) > 0 && values[0] != nil {
			line = fmt.Sprint(values[0])
		}
		lines = append(lines, line)
		return nil
	})
	if err != nil {
		return &models.SpooledFileError{Job: file.Job, File: file.FileName(), Err: err}
	}

	s.logger.Debug().Msgf("Writing %s (%d lines) into %s", file.FileName(), len(lines), destination)
	if err := writeUTF8(destination, strings.Join(lines, "\n")); err != nil {
		return &models.SpooledFileError{Job: file.Job, File: file.FileName(), Err: err}
	}
	return nil
}

func text(row models.SQLRow, column string) string {
	v, _ := row.Get(column)
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
