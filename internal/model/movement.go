package model

import (
	"time"

	"github.com/google/uuid"
)

type MovementType string

const (
	MovementDispatch MovementType = "DISPATCH"
	MovementReturn   MovementType = "RETURN"
)

// AssetMovement is an immutable ledger row. For a category+project pair,
// SUM(DISPATCH) - SUM(RETURN) is the outstanding balance at that project.
type AssetMovement struct {
	ID              uuid.UUID    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CategoryID      uuid.UUID    `gorm:"type:uuid;not null;index:idx_movements_category_project"`
	ItemID          *uuid.UUID   `gorm:"type:uuid;index"`
	Type            MovementType `gorm:"type:varchar(10);not null"`
	Quantity        int          `gorm:"not null"` // always 1 for item-mode rows
	ProjectID       uuid.UUID    `gorm:"type:uuid;not null;index:idx_movements_category_project"`
	ConditionBefore *Condition   `gorm:"type:varchar(20)"`
	ConditionAfter  *Condition   `gorm:"type:varchar(20)"`
	ActorID         uuid.UUID    `gorm:"type:uuid;not null"`
	ActorRole       Role         `gorm:"type:varchar(30);not null"`
	ReferenceNumber *string
	RequisitionID   *uuid.UUID `gorm:"type:uuid;index"`
	Notes           *string
	CreatedAt       time.Time

	Category *AssetCategory `gorm:"foreignKey:CategoryID"`
	Item     *AssetItem     `gorm:"foreignKey:ItemID"`
}

func (AssetMovement) TableName() string { return "asset_movements" }
