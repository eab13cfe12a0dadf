package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// ClassRepository reads class sections.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns every class ordered by name.
func (r *ClassRepository) List(ctx context.Context) ([]models.ClassSection, error) {
	const query = `SELECT id, name, level, created_at, updated_at FROM classes ORDER BY name ASC`
	var classes []models.ClassSection
	if err := r.db.SelectContext(ctx, &classes, query); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// ListByIDs returns the classes whose ids are given. Missing ids are silently skipped.
func (r *ClassRepository) ListByIDs(ctx context.Context, ids []string) ([]models.ClassSection, error) {
	if len(ids) == 0 {
		return []models.ClassSection{}, nil
	}
	const query = `SELECT id, name, level, created_at, updated_at FROM classes WHERE id = ANY($1) ORDER BY name ASC`
	var classes []models.ClassSection
	if err := r.db.SelectContext(ctx, &classes, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list classes by ids: %w", err)
	}
	return classes, nil
}

// FindByID returns a class record by ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.ClassSection, error) {
	const query = `SELECT id, name, level, created_at, updated_at FROM classes WHERE id = $1`
	var class models.ClassSection
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}
