package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/al-maktaba/catalog-api/internal/models"
	"github.com/al-maktaba/catalog-api/pkg/export"
	"github.com/al-maktaba/catalog-api/pkg/storage"
)

type catalogStub struct {
	books []models.Book
	err   error
}

func (c catalogStub) List(ctx context.Context, filter models.BookFilter) (*models.BookList, error) {
	if c.err != nil {
		return nil, c.err
	}
	filtered := make([]models.Book, 0, len(c.books))
	for _, b := range c.books {
		if filter.Matches(b) {
			filtered = append(filtered, b)
		}
	}
	return &models.BookList{Books: filtered, Shown: len(filtered), Total: len(c.books)}, nil
}

func newExportServiceForTest(t *testing.T, books []models.Book) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}
	svc := NewExportService(catalogStub{books: books}, store, signer, nil, cfg, zap.NewNop(), export.NewCatalogCSV(), export.NewCatalogPDF(DefaultExportTitle))
	return svc, store
}

func TestExportServiceRenderDownloadPDF(t *testing.T) {
	svc, _ := newExportServiceForTest(t, seedBooks())

	download, err := svc.RenderDownload(context.Background(), models.BookFilter{}, models.ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, DownloadFilenamePDF, download.Filename)
	assert.Equal(t, "application/pdf", download.ContentType)
	require.NotEmpty(t, download.Payload)
	assert.Equal(t, "%PDF", string(download.Payload[:4]))
}

func TestExportServiceRenderDownloadCSV(t *testing.T) {
	svc, _ := newExportServiceForTest(t, seedBooks())

	download, err := svc.RenderDownload(context.Background(), models.BookFilter{Category: "History"}, models.ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, DownloadFilenameCSV, download.Filename)
	assert.Contains(t, string(download.Payload), "Muqaddimah")
	assert.NotContains(t, string(download.Payload), "Diwan al-Mutanabbi")
}

func TestExportServiceGeneratePDF(t *testing.T) {
	svc, store := newExportServiceForTest(t, seedBooks())

	job := &models.ExportJob{
		ID:        "job-1",
		Format:    models.ExportFormatPDF,
		Params:    models.ExportJobParams{Category: "Poetry"},
		CreatedBy: "user-1",
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.NotEmpty(t, result.RelativePath)
	assert.Contains(t, result.URL, "/api/v1/export/")
	assert.Contains(t, result.RelativePath, "books_poetry_")

	info, err := os.Stat(store.Path(result.RelativePath))
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestExportServiceGenerateCSV(t *testing.T) {
	svc, store := newExportServiceForTest(t, seedBooks())

	job := &models.ExportJob{
		ID:        "job-2",
		Format:    models.ExportFormatCSV,
		CreatedBy: "user-1",
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Contains(t, result.RelativePath, "books_all_")

	file, err := store.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()

	jobID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-2", jobID)
	assert.Equal(t, result.RelativePath, relPath)
}

func TestExportServiceGenerateUnsupportedFormat(t *testing.T) {
	svc, _ := newExportServiceForTest(t, nil)

	_, err := svc.Generate(context.Background(), &models.ExportJob{ID: "job-3", Format: "xlsx"})
	require.Error(t, err)
}
