package model

import (
	"time"

	"github.com/google/uuid"
)

// Project is read-only here; the project directory is owned elsewhere.
type Project struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Code      string    `gorm:"uniqueIndex;not null"`
	Name      string    `gorm:"not null"`
	IsActive  bool      `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Project) TableName() string { return "projects" }

// ProjectAssignment scopes a user to a project under a given role.
type ProjectAssignment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Role      Role      `gorm:"type:varchar(30);not null"`
	CreatedAt time.Time
}

func (ProjectAssignment) TableName() string { return "project_assignments" }
