package model

import (
	"time"

	"github.com/google/uuid"
)

// ItemStatus is the lifecycle of one serialized unit.
type ItemStatus string

const (
	ItemAvailable   ItemStatus = "available"
	ItemDispatched  ItemStatus = "dispatched"
	ItemMaintenance ItemStatus = "maintenance"
	ItemRetired     ItemStatus = "retired"
)

// Condition is the physical state reported for an asset.
type Condition string

const (
	ConditionNew     Condition = "new"
	ConditionGood    Condition = "good"
	ConditionFair    Condition = "fair"
	ConditionPoor    Condition = "poor"
	ConditionDamaged Condition = "damaged"
)

// ParseCondition accepts the declared conditions only.
func ParseCondition(s string) (Condition, bool) {
	switch c := Condition(s); c {
	case ConditionNew, ConditionGood, ConditionFair, ConditionPoor, ConditionDamaged:
		return c, true
	}
	return "", false
}

// Degraded conditions route a returned asset into maintenance.
func (c Condition) Degraded() bool {
	return c == ConditionPoor || c == ConditionDamaged
}

// AssetItem is one physical unit of an individual-mode category. Items are
// retired, never deleted.
type AssetItem struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CategoryID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	Code             string     `gorm:"uniqueIndex;not null"`
	SerialNumber     *string
	Description      *string
	Notes            *string
	CurrentStatus    ItemStatus `gorm:"type:varchar(20);not null;default:'available'"`
	CurrentCondition Condition  `gorm:"type:varchar(20);not null;default:'good'"`
	CurrentProjectID *uuid.UUID `gorm:"type:uuid;index"`
	IsActive         bool       `gorm:"not null;default:true"`
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Category *AssetCategory `gorm:"foreignKey:CategoryID"`
}

func (AssetItem) TableName() string { return "asset_items" }
