package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/al-maktaba/catalog-api/internal/models"
)

// ProfileRepository reads role assignments from the profiles table.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository constructs a ProfileRepository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetRole returns the role assigned to the given user id. Callers decide how
// to handle sql.ErrNoRows; a missing profile is not an error at this layer.
func (r *ProfileRepository) GetRole(ctx context.Context, userID string) (models.Role, error) {
	const query = `SELECT role FROM profiles WHERE id = $1`
	var role models.Role
	if err := r.db.GetContext(ctx, &role, query, userID); err != nil {
		return "", fmt.Errorf("get profile role: %w", err)
	}
	return role, nil
}
