package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MaintenanceStatus string

const (
	MaintenancePending    MaintenanceStatus = "pending"
	MaintenanceInProgress MaintenanceStatus = "in_progress"
	MaintenanceCompleted  MaintenanceStatus = "completed"
	MaintenanceWrittenOff MaintenanceStatus = "written_off"
)

// Terminal reports whether no further transition is allowed.
func (s MaintenanceStatus) Terminal() bool {
	return s == MaintenanceCompleted || s == MaintenanceWrittenOff
}

// AssetMaintenance holds units pulled out of circulation by a degraded return.
// Units under maintenance count toward TotalQuantity but not AvailableQuantity.
type AssetMaintenance struct {
	ID               uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CategoryID       uuid.UUID         `gorm:"type:uuid;not null;index"`
	ItemID           *uuid.UUID        `gorm:"type:uuid;index"`
	ReturnMovementID *uuid.UUID        `gorm:"type:uuid"`
	ProjectID        *uuid.UUID        `gorm:"type:uuid"`
	Quantity         int               `gorm:"not null"`
	Status           MaintenanceStatus `gorm:"type:varchar(20);not null;default:'pending'"`
	IssueDescription *string
	ReportedBy       uuid.UUID       `gorm:"type:uuid;not null"`
	RepairNotes      *string
	RepairCost       decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	ResultCondition  *Condition      `gorm:"type:varchar(20)"`
	ResolvedBy       *uuid.UUID      `gorm:"type:uuid"`
	StartedAt        *time.Time
	ResolvedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Category *AssetCategory `gorm:"foreignKey:CategoryID"`
	Item     *AssetItem     `gorm:"foreignKey:ItemID"`
}

func (AssetMaintenance) TableName() string { return "asset_maintenance" }
