package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/al-maktaba/catalog-api/internal/models"
	"github.com/al-maktaba/catalog-api/internal/service"
	appErrors "github.com/al-maktaba/catalog-api/pkg/errors"
	"github.com/al-maktaba/catalog-api/pkg/response"
)

// BookHandler exposes catalog endpoints.
type BookHandler struct {
	catalog *service.CatalogService
}

// NewBookHandler constructs handler.
func NewBookHandler(catalog *service.CatalogService) *BookHandler {
	return &BookHandler{catalog: catalog}
}

// List godoc
// @Summary List catalog books
// @Description Filtered catalog view with the category facet and shown/total counts
// @Tags Books
// @Produce json
// @Param search query string false "Substring matched against title and author"
// @Param category query string false "Category filter, or all"
// @Param condition query string false "Condition filter, or all"
// @Success 200 {object} response.Envelope
// @Router /books [get]
func (h *BookHandler) List(c *gin.Context) {
	filter := models.BookFilter{
		Query:     c.Query("search"),
		Category:  c.Query("category"),
		Condition: c.Query("condition"),
	}
	list, err := h.catalog.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, map[string]interface{}{
		"shown": list.Shown,
		"total": list.Total,
	})
}

// Create godoc
// @Summary Add a book
// @Description Add a book to the catalog (admin only)
// @Tags Books
// @Accept json
// @Produce json
// @Param payload body models.CreateBookRequest true "Book payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /books [post]
func (h *BookHandler) Create(c *gin.Context) {
	var req models.CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid book payload"))
		return
	}
	book, err := h.catalog.Add(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, book)
}

// Delete godoc
// @Summary Delete a book
// @Description Remove a book from the catalog (admin only)
// @Tags Books
// @Produce json
// @Param id path int true "Book ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /books/{id} [delete]
func (h *BookHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid book id"))
		return
	}
	if err := h.catalog.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
