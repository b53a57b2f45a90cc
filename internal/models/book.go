package models

import (
	"strings"
	"time"
)

// FilterAll is the sentinel selector matching every category or condition.
const FilterAll = "all"

// Book represents a catalog entry stored in the books table.
// The id and creation timestamp are assigned by the store; author, category
// and condition are nullable and never stored as empty strings.
type Book struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Author    *string   `db:"author" json:"author"`
	Category  *string   `db:"category" json:"category"`
	Condition *string   `db:"condition" json:"condition"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// BookFilter captures the catalog filter state. Query matches a
// case-insensitive substring of "title author"; Category and Condition are
// exact matches unless set to the "all" sentinel (or left empty).
type BookFilter struct {
	Query     string
	Category  string
	Condition string
}

// Matches reports whether the book passes every active filter. The check is
// conjunctive, deterministic and side-effect free.
func (f BookFilter) Matches(b Book) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		text := strings.ToLower(b.Title + " " + Deref(b.Author))
		if !strings.Contains(text, q) {
			return false
		}
	}
	if f.Category != "" && f.Category != FilterAll && Deref(b.Category) != f.Category {
		return false
	}
	if f.Condition != "" && f.Condition != FilterAll && Deref(b.Condition) != f.Condition {
		return false
	}
	return true
}

// CreateBookRequest is the payload for adding a catalog entry. Optional
// fields left blank are stored as NULL.
type CreateBookRequest struct {
	Title     string `json:"title" validate:"required"`
	Author    string `json:"author"`
	Category  string `json:"category"`
	Condition string `json:"condition"`
}

// BookList is the filtered catalog view returned to clients. Categories is
// the facet derived from the whole catalog, not just the filtered subset, so
// pickers stay stable while a filter is active. Shown and Total ride in the
// response meta block rather than the body.
type BookList struct {
	Books      []Book   `json:"books"`
	Categories []string `json:"categories"`
	Shown      int      `json:"-"`
	Total      int      `json:"-"`
}

// Deref returns the string value or "" for nil.
func Deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
