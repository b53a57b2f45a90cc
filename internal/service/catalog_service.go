package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/al-maktaba/catalog-api/internal/models"
	appErrors "github.com/al-maktaba/catalog-api/pkg/errors"
)

const booksCacheKey = "catalog:books"

// BookRepository describes the persistence layer required by CatalogService.
type BookRepository interface {
	ListAll(ctx context.Context) ([]models.Book, error)
	Create(ctx context.Context, book *models.Book) error
	Delete(ctx context.Context, id int64) error
}

// CatalogService provides book listing, creation and deletion. Listing loads
// the full catalog (optionally through cache) and applies filters in memory;
// the collection is small enough that a round trip per filter change would
// cost more than it saves.
type CatalogService struct {
	repo       BookRepository
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	conditions map[string]struct{}
}

// NewCatalogService constructs a catalog service. conditions is the allowed
// condition vocabulary for new books.
func NewCatalogService(repo BookRepository, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, conditions []string) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	allowed := make(map[string]struct{}, len(conditions))
	for _, c := range conditions {
		allowed[strings.ToLower(strings.TrimSpace(c))] = struct{}{}
	}
	return &CatalogService{repo: repo, cache: cache, metrics: metrics, validator: validate, logger: logger, conditions: allowed}
}

// List returns the catalog filtered by the provided criteria, together with
// the category facet and shown/total counts.
func (s *CatalogService) List(ctx context.Context, filter models.BookFilter) (*models.BookList, error) {
	books, err := s.loadBooks(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load catalog")
	}

	filtered := make([]models.Book, 0, len(books))
	for _, b := range books {
		if filter.Matches(b) {
			filtered = append(filtered, b)
		}
	}

	return &models.BookList{
		Books:      filtered,
		Categories: categoryFacet(books),
		Shown:      len(filtered),
		Total:      len(books),
	}, nil
}

// Add validates and persists a new book. Blank optional fields become NULL
// and the condition must belong to the configured vocabulary.
func (s *CatalogService) Add(ctx context.Context, req models.CreateBookRequest) (*models.Book, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid book payload")
	}

	condition := strings.ToLower(strings.TrimSpace(req.Condition))
	if condition != "" {
		if _, ok := s.conditions[condition]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown book condition")
		}
	}

	book := &models.Book{
		Title:     req.Title,
		Author:    optional(req.Author),
		Category:  optional(req.Category),
		Condition: optional(condition),
	}

	start := time.Now()
	if err := s.repo.Create(ctx, book); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create book")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("books_create", time.Since(start))
	}

	s.invalidate(ctx)
	return book, nil
}

// Delete removes a book by id.
func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	start := time.Now()
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "book not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete book")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("books_delete", time.Since(start))
	}

	s.invalidate(ctx)
	return nil
}

// loadBooks fetches the full catalog, newest first, preferring cache.
func (s *CatalogService) loadBooks(ctx context.Context) ([]models.Book, error) {
	var cached []models.Book
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, booksCacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	start := time.Now()
	books, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("books_list", time.Since(start))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, booksCacheKey, books, 0); err != nil {
			s.logger.Warn("cache catalog", zap.Error(err))
		}
	}
	return books, nil
}

func (s *CatalogService) invalidate(ctx context.Context) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, booksCacheKey+"*"); err != nil {
			s.logger.Warn("invalidate catalog cache", zap.Error(err))
		}
	}
}

// categoryFacet collects distinct non-blank categories across the whole
// catalog, sorted lexicographically and led by the "all" sentinel.
func categoryFacet(books []models.Book) []string {
	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, b := range books {
		cat := strings.TrimSpace(models.Deref(b.Category))
		if cat == "" {
			continue
		}
		if _, ok := seen[cat]; ok {
			continue
		}
		seen[cat] = struct{}{}
		names = append(names, cat)
	}
	sort.Strings(names)
	return append([]string{models.FilterAll}, names...)
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
