package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/al-maktaba/catalog-api/internal/models"
	"github.com/al-maktaba/catalog-api/internal/service"
	appErrors "github.com/al-maktaba/catalog-api/pkg/errors"
	"github.com/al-maktaba/catalog-api/pkg/response"
)

// ExportHandler exposes synchronous downloads and the background export pipeline.
type ExportHandler struct {
	exporter *service.ExportService
	jobs     *service.ExportJobService
}

// NewExportHandler constructs handler.
func NewExportHandler(exporter *service.ExportService, jobs *service.ExportJobService) *ExportHandler {
	return &ExportHandler{exporter: exporter, jobs: jobs}
}

// Download godoc
// @Summary Download filtered catalog
// @Description Render the filtered catalog as PDF or CSV and stream it back
// @Tags Exports
// @Produce octet-stream
// @Param search query string false "Substring matched against title and author"
// @Param category query string false "Category filter, or all"
// @Param condition query string false "Condition filter, or all"
// @Param format query string false "pdf or csv, defaults to pdf"
// @Success 200 {file} binary
// @Router /books/export [get]
func (h *ExportHandler) Download(c *gin.Context) {
	filter := models.BookFilter{
		Query:     c.Query("search"),
		Category:  c.Query("category"),
		Condition: c.Query("condition"),
	}
	format := models.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(models.ExportFormatPDF))))
	if format != models.ExportFormatPDF && format != models.ExportFormatCSV {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unsupported export format"))
		return
	}

	download, err := h.exporter.RenderDownload(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", download.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, download.ContentType, download.Payload)
}

// CreateJob godoc
// @Summary Queue a background export
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body service.CreateExportRequest true "Export parameters"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /exports [post]
func (h *ExportHandler) CreateJob(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}

	status, err := h.jobs.CreateJob(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, status, nil)
}

// JobStatus godoc
// @Summary Export job status
// @Tags Exports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/{id} [get]
func (h *ExportHandler) JobStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	status, err := h.jobs.GetStatus(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// DownloadByToken godoc
// @Summary Download a finished export via signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /export/{token} [get]
func (h *ExportHandler) DownloadByToken(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	result, err := h.jobs.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck

	stat, err := result.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export file"))
		return
	}

	contentType := "application/pdf"
	if result.Format == models.ExportFormatCSV {
		contentType = "text/csv"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, stat.Size(), contentType, result.File, nil)
}
