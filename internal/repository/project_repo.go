package repository

import (
	"context"

	"metersquare/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProjectRepository is a read-only view over the project directory.
type ProjectRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Project, error)
	// AssignedUserIDs lists users assigned to a project under a role.
	AssignedUserIDs(ctx context.Context, projectID uuid.UUID, role model.Role) ([]uuid.UUID, error)
}

type projectRepo struct{ db *gorm.DB }

func NewProjectRepository(db *gorm.DB) ProjectRepository { return &projectRepo{db: db} }

func (r *projectRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	var p model.Project
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	return &p, err
}

func (r *projectRepo) AssignedUserIDs(ctx context.Context, projectID uuid.UUID, role model.Role) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.ProjectAssignment{}).
		Where("project_id = ? AND role = ?", projectID, role).
		Pluck("user_id", &ids).Error
	return ids, err
}
