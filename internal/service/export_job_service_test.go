package service

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/al-maktaba/catalog-api/internal/models"
	"github.com/al-maktaba/catalog-api/internal/repository"
	appErrors "github.com/al-maktaba/catalog-api/pkg/errors"
	"github.com/al-maktaba/catalog-api/pkg/jobs"
)

type exportJobRepoStub struct {
	jobs      map[string]*models.ExportJob
	listCalls int
	updateErr error
}

func newExportJobRepoStub() *exportJobRepoStub {
	return &exportJobRepoStub{jobs: map[string]*models.ExportJob{}}
}

func (r *exportJobRepoStub) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *exportJobRepoStub) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return job, nil
}

func (r *exportJobRepoStub) Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	job, ok := r.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (r *exportJobRepoStub) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	var queued []models.ExportJob
	for _, job := range r.jobs {
		if job.Status == models.ExportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (r *exportJobRepoStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	r.listCalls++
	var finished []models.ExportJob
	for _, job := range r.jobs {
		if job.Status != models.ExportStatusFinished {
			continue
		}
		if job.FinishedAt == nil || !job.FinishedAt.Before(cutoff) {
			continue
		}
		finished = append(finished, *job)
		if len(finished) == limit {
			break
		}
	}
	return finished, nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func newExportJobServiceForTest(t *testing.T) (*ExportJobService, *exportJobRepoStub, *queueStub, *ExportService) {
	t.Helper()
	repo := newExportJobRepoStub()
	queue := &queueStub{}
	exportSvc, _ := newExportServiceForTest(t, seedBooks())
	svc := NewExportJobService(repo, queue, exportSvc, zap.NewNop(), ExportJobServiceConfig{
		ResultTTL:       time.Hour,
		CleanupInterval: time.Hour,
		MaxRetries:      3,
	})
	return svc, repo, queue, exportSvc
}

func TestExportJobServiceCreateJob(t *testing.T) {
	svc, repo, queue, _ := newExportJobServiceForTest(t)

	resp, err := svc.CreateJob(context.Background(), CreateExportRequest{Category: "History"}, "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, models.ExportStatusQueued, resp.Status)
	assert.Equal(t, models.ExportFormatPDF, resp.Format)
	assert.Contains(t, repo.jobs, resp.ID)
}

func TestExportJobServiceCreateJobInvalidFormat(t *testing.T) {
	svc, _, _, _ := newExportJobServiceForTest(t)

	_, err := svc.CreateJob(context.Background(), CreateExportRequest{Format: "xlsx"}, "user-1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestExportJobServiceCreateJobEnqueueFailureMarksFailed(t *testing.T) {
	repo := newExportJobRepoStub()
	queue := &queueStub{err: errors.New("queue stopped")}
	exportSvc, _ := newExportServiceForTest(t, nil)
	svc := NewExportJobService(repo, queue, exportSvc, zap.NewNop(), ExportJobServiceConfig{})

	_, err := svc.CreateJob(context.Background(), CreateExportRequest{}, "user-1")
	require.Error(t, err)
	require.Len(t, repo.jobs, 1)
	for _, job := range repo.jobs {
		assert.Equal(t, models.ExportStatusFailed, job.Status)
	}
}

func TestExportJobServiceGetStatusOwnership(t *testing.T) {
	svc, repo, _, _ := newExportJobServiceForTest(t)
	repo.jobs["job-1"] = &models.ExportJob{ID: "job-1", Format: models.ExportFormatPDF, Status: models.ExportStatusProcessing, CreatedBy: "user-1"}

	resp, err := svc.GetStatus(context.Background(), "job-1", "user-1", models.RoleViewer)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusProcessing, resp.Status)

	// Another viewer cannot read the job; an admin can.
	_, err = svc.GetStatus(context.Background(), "job-1", "user-2", models.RoleViewer)
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.GetStatus(context.Background(), "job-1", "user-2", models.RoleAdmin)
	require.NoError(t, err)

	_, err = svc.GetStatus(context.Background(), "missing", "user-1", models.RoleViewer)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestExportJobServiceResolveDownload(t *testing.T) {
	svc, repo, _, exportSvc := newExportJobServiceForTest(t)
	job := &models.ExportJob{ID: "job-download", Format: models.ExportFormatPDF, Status: models.ExportStatusFinished, CreatedBy: "user-1"}
	repo.jobs[job.ID] = job

	result, err := exportSvc.Generate(context.Background(), job)
	require.NoError(t, err)
	job.ResultURL = &result.URL
	now := time.Now()
	job.FinishedAt = &now

	download, err := svc.ResolveDownload(context.Background(), result.Token)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(result.RelativePath), download.Filename)
	download.File.Close()

	_, err = svc.ResolveDownload(context.Background(), "not-a-token")
	require.Error(t, err)
}

func TestExportJobServiceRecoverPendingJobs(t *testing.T) {
	svc, repo, queue, _ := newExportJobServiceForTest(t)
	repo.jobs["job-1"] = &models.ExportJob{ID: "job-1", Format: models.ExportFormatPDF, Status: models.ExportStatusQueued, CreatedBy: "user-1"}
	repo.jobs["job-2"] = &models.ExportJob{ID: "job-2", Format: models.ExportFormatCSV, Status: models.ExportStatusFinished, CreatedBy: "user-1"}

	svc.RecoverPendingJobs(context.Background())
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "job-1", queue.jobs[0].ID)
}

func TestExportJobServiceCleanupExpiresFinishedJobs(t *testing.T) {
	svc, repo, _, exportSvc := newExportJobServiceForTest(t)

	old := time.Now().Add(-2 * time.Hour)
	job := &models.ExportJob{ID: "job-old", Format: models.ExportFormatPDF, Status: models.ExportStatusFinished, CreatedBy: "user-1"}
	repo.jobs[job.ID] = job
	result, err := exportSvc.Generate(context.Background(), job)
	require.NoError(t, err)
	job.ResultURL = &result.URL
	job.FinishedAt = &old

	// More than two full pages so cleanup has to paginate.
	for i := 0; i < 2*cleanupPageSize+4; i++ {
		id := uuid.NewString()
		repo.jobs[id] = &models.ExportJob{ID: id, Format: models.ExportFormatCSV, Status: models.ExportStatusFinished, CreatedBy: "user-1", FinishedAt: &old}
	}

	done := make(chan struct{})
	go func() {
		svc.cleanupExpired(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup did not terminate")
	}

	for id, j := range repo.jobs {
		assert.Equal(t, models.ExportStatusExpired, j.Status, "job %s", id)
	}
	assert.Equal(t, 3, repo.listCalls)
	_, err = exportSvc.Open(result.RelativePath)
	require.Error(t, err)
}

func TestExportJobServiceCleanupHaltsWhenMarkingFails(t *testing.T) {
	svc, repo, _, _ := newExportJobServiceForTest(t)
	repo.updateErr = errors.New("update failed")

	old := time.Now().Add(-2 * time.Hour)
	for i := 0; i < cleanupPageSize; i++ {
		id := uuid.NewString()
		repo.jobs[id] = &models.ExportJob{ID: id, Format: models.ExportFormatPDF, Status: models.ExportStatusFinished, CreatedBy: "user-1", FinishedAt: &old}
	}

	done := make(chan struct{})
	go func() {
		svc.cleanupExpired(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup did not terminate")
	}

	assert.Equal(t, 1, repo.listCalls)
	for _, j := range repo.jobs {
		assert.Equal(t, models.ExportStatusFinished, j.Status)
	}
}

type generatorStub struct {
	result *ExportResult
	err    error
}

func (g generatorStub) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

func TestExportWorkerHandleSuccess(t *testing.T) {
	repo := newExportJobRepoStub()
	repo.jobs["job-1"] = &models.ExportJob{ID: "job-1", Format: models.ExportFormatPDF, Status: models.ExportStatusQueued, CreatedBy: "user-1"}
	worker := NewExportWorker(repo, generatorStub{result: &ExportResult{URL: "/api/v1/export/token"}}, 3, zap.NewNop())

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1"}))
	assert.Equal(t, models.ExportStatusFinished, repo.jobs["job-1"].Status)
	require.NotNil(t, repo.jobs["job-1"].ResultURL)
	assert.Equal(t, "/api/v1/export/token", *repo.jobs["job-1"].ResultURL)
}

func TestExportWorkerHandleFailureRequeuesThenFails(t *testing.T) {
	repo := newExportJobRepoStub()
	repo.jobs["job-1"] = &models.ExportJob{ID: "job-1", Format: models.ExportFormatPDF, Status: models.ExportStatusQueued, CreatedBy: "user-1"}
	worker := NewExportWorker(repo, generatorStub{err: errors.New("boom")}, 2, zap.NewNop())

	require.Error(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 0}))
	assert.Equal(t, models.ExportStatusQueued, repo.jobs["job-1"].Status)

	require.Error(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 2}))
	assert.Equal(t, models.ExportStatusFailed, repo.jobs["job-1"].Status)
}
