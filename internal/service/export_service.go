package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/al-maktaba/catalog-api/internal/models"
	"github.com/al-maktaba/catalog-api/pkg/export"
	"github.com/al-maktaba/catalog-api/pkg/storage"
)

// DefaultExportTitle is the document header for catalog exports.
const DefaultExportTitle = "Al-Maktaba Books Catalog"

// DownloadFilenamePDF is the attachment name for synchronous PDF downloads.
const DownloadFilenamePDF = "al-maktaba-books.pdf"

// DownloadFilenameCSV is the attachment name for synchronous CSV downloads.
const DownloadFilenameCSV = "al-maktaba-books.csv"

type catalogLister interface {
	List(ctx context.Context, filter models.BookFilter) (*models.BookList, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(books []export.CatalogBook) ([]byte, error)
}

type pdfRenderer interface {
	Render(books []export.CatalogBook) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// Download is a synchronously rendered export ready for streaming.
type Download struct {
	Payload     []byte
	Filename    string
	ContentType string
}

// ExportService renders filtered catalog snapshots and persists files for
// the background pipeline.
type ExportService struct {
	catalog catalogLister
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	metrics *MetricsService
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(catalog catalogLister, store fileStorage, signer *storage.SignedURLSigner, metrics *MetricsService, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCatalogCSV()
	}
	if pdf == nil {
		pdf = export.NewCatalogPDF(DefaultExportTitle)
	}
	return &ExportService{
		catalog: catalog,
		storage: store,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
	}
}

// RenderDownload renders the filtered catalog in the requested format for
// immediate streaming to the client.
func (s *ExportService) RenderDownload(ctx context.Context, filter models.BookFilter, format models.ExportFormat) (*Download, error) {
	payload, err := s.render(ctx, filter, format)
	if err != nil {
		return nil, err
	}
	switch format {
	case models.ExportFormatCSV:
		return &Download{Payload: payload, Filename: DownloadFilenameCSV, ContentType: "text/csv"}, nil
	default:
		return &Download{Payload: payload, Filename: DownloadFilenamePDF, ContentType: "application/pdf"}, nil
	}
}

// Generate renders the export described by the job and stores the file,
// returning a signed download URL.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	payload, err := s.render(ctx, job.Params.Filter(), job.Format)
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	signedURL := fmt.Sprintf("%s/export/%s", prefix, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) render(ctx context.Context, filter models.BookFilter, format models.ExportFormat) ([]byte, error) {
	list, err := s.catalog.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	rows := exportRows(list.Books)

	start := time.Now()
	var payload []byte
	switch format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(rows)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(rows)
	default:
		err = fmt.Errorf("unsupported format %s", format)
	}
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveExport(string(format), time.Since(start))
	}
	return payload, nil
}

func (s *ExportService) buildFilename(job *models.ExportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scope := sanitizeFilename(job.Params.Category)
	return fmt.Sprintf("books_%s_%s.%s", scope, timestamp, job.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" || raw == models.FilterAll {
		return "all"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(strings.ToLower(raw))
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func exportRows(books []models.Book) []export.CatalogBook {
	rows := make([]export.CatalogBook, 0, len(books))
	for _, b := range books {
		rows = append(rows, export.CatalogBook{
			Title:     b.Title,
			Author:    models.Deref(b.Author),
			Category:  models.Deref(b.Category),
			Condition: models.Deref(b.Condition),
			AddedAt:   b.CreatedAt,
		})
	}
	return rows
}
