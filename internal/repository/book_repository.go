package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/al-maktaba/catalog-api/internal/models"
)

// BookRepository manages persistence for catalog book records.
type BookRepository struct {
	db *sqlx.DB
}

// NewBookRepository constructs a BookRepository.
func NewBookRepository(db *sqlx.DB) *BookRepository {
	return &BookRepository{db: db}
}

// ListAll returns the full catalog ordered newest-first.
func (r *BookRepository) ListAll(ctx context.Context) ([]models.Book, error) {
	const query = `SELECT id, title, author, category, condition, created_at FROM books ORDER BY created_at DESC`
	books := []models.Book{}
	if err := r.db.SelectContext(ctx, &books, query); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// Create inserts a new book; id and created_at are assigned by the store and
// written back into the record.
func (r *BookRepository) Create(ctx context.Context, book *models.Book) error {
	const query = `INSERT INTO books (title, author, category, condition) VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	row := r.db.QueryRowxContext(ctx, query, book.Title, book.Author, book.Category, book.Condition)
	if err := row.Scan(&book.ID, &book.CreatedAt); err != nil {
		return fmt.Errorf("create book: %w", err)
	}
	return nil
}

// Delete removes a book by id. A missing id surfaces sql.ErrNoRows.
func (r *BookRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM books WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete book result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
