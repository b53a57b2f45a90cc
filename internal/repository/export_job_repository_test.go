package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/al-maktaba/catalog-api/internal/models"
)

func newExportJobRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestExportJobRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newExportJobRepoMock(t)
	defer cleanup()
	repo := NewExportJobRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO export_jobs")).
		WithArgs(sqlmock.AnyArg(), "pdf", sqlmock.AnyArg(), "QUEUED", nil, "user-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.ExportJob{
		Format:    models.ExportFormatPDF,
		Params:    models.ExportJobParams{Category: "Fiqh"},
		CreatedBy: "user-1",
	}
	require.NoError(t, repo.Create(context.Background(), job))
	require.NotEmpty(t, job.ID)
	require.Equal(t, models.ExportStatusQueued, job.Status)

	rows := sqlmock.NewRows([]string{"id", "format", "params", "status", "result_url", "created_by", "created_at", "finished_at", "error_message"}).
		AddRow(job.ID, "pdf", `{"category":"Fiqh"}`, "QUEUED", nil, "user-1", time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, format, params, status, result_url, created_by, created_at, finished_at, error_message FROM export_jobs WHERE id = $1")).
		WithArgs(job.ID).
		WillReturnRows(rows)

	fetched, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, "Fiqh", fetched.Params.Category)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExportJobRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newExportJobRepoMock(t)
	defer cleanup()
	repo := NewExportJobRepository(db)

	now := time.Now()
	status := models.ExportStatusFinished
	result := "/api/v1/export/token"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE export_jobs SET status = $1, result_url = $2, finished_at = $3 WHERE id = $4")).
		WithArgs(status, result, now, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "job-1", UpdateExportJobParams{
		Status:     &status,
		ResultURL:  &result,
		FinishedAt: &now,
	})
	require.NoError(t, err)

	// No fields set is a no-op without touching the database.
	require.NoError(t, repo.Update(context.Background(), "job-1", UpdateExportJobParams{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExportJobRepositoryListQueued(t *testing.T) {
	db, mock, cleanup := newExportJobRepoMock(t)
	defer cleanup()
	repo := NewExportJobRepository(db)

	rows := sqlmock.NewRows([]string{"id", "format", "params", "status", "result_url", "created_by", "created_at", "finished_at", "error_message"}).
		AddRow("job-1", "csv", `{}`, "QUEUED", nil, "user-1", time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM export_jobs WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1")).
		WithArgs(20).
		WillReturnRows(rows)

	jobs, err := repo.ListQueued(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, models.ExportFormatCSV, jobs[0].Format)
	require.NoError(t, mock.ExpectationsWereMet())
}
