package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-focus-api/internal/models"
)

const classColumns = `id, class_name, section, nfc_tag_id, teacher_id, created_at, updated_at`

// ClassRepository manages persistence for classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// ByID returns a class or nil when it does not exist.
func (r *ClassRepository) ByID(ctx context.Context, id string) (*models.Class, error) {
	query := `SELECT ` + classColumns + ` FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find class: %w", err)
	}
	return &class, nil
}

// ListAccessible returns all classes, or only those taught by teacherID when it is set.
func (r *ClassRepository) ListAccessible(ctx context.Context, teacherID string) ([]models.Class, error) {
	query := `SELECT ` + classColumns + ` FROM classes`
	var args []interface{}
	if teacherID != "" {
		query += ` WHERE teacher_id = $1`
		args = append(args, teacherID)
	}
	query += ` ORDER BY class_name, section`

	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}
