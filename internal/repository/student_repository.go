package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-focus-api/internal/models"
)

// StudentRepository handles roster lookups.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository returns a new student repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a student or nil when missing.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, user_id, class_id, first_name, last_name, student_number, created_at FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// StudentIDForUser resolves the student record owned by a user account. It returns an empty string when none is linked.
func (r *StudentRepository) StudentIDForUser(ctx context.Context, userID string) (string, error) {
	const query = `SELECT id FROM students WHERE user_id = $1 LIMIT 1`
	var id string
	if err := r.db.GetContext(ctx, &id, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("resolve student for user: %w", err)
	}
	return id, nil
}

// Count returns the number of enrolled students, optionally restricted to a class.
func (r *StudentRepository) Count(ctx context.Context, classID string) (int, error) {
	query := `SELECT COUNT(*) FROM students`
	var args []interface{}
	if classID != "" {
		query += ` WHERE class_id = $1`
		args = append(args, classID)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return total, nil
}
