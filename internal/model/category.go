package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TrackingMode decides whether a category is counted in bulk or per unit.
type TrackingMode string

const (
	TrackingQuantity   TrackingMode = "quantity"
	TrackingIndividual TrackingMode = "individual"
)

func (m TrackingMode) Valid() bool {
	return m == TrackingQuantity || m == TrackingIndividual
}

// AssetCategory is a class of reusable asset and the single writer of the
// aggregate stock counters. 0 <= AvailableQuantity <= TotalQuantity always.
type AssetCategory struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Code              string          `gorm:"uniqueIndex;not null"`
	Name              string          `gorm:"index;not null"`
	Description       *string
	TrackingMode      TrackingMode    `gorm:"type:varchar(20);not null"`
	TotalQuantity     int             `gorm:"not null;default:0"`
	AvailableQuantity int             `gorm:"not null;default:0"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	Unit              string          `gorm:"not null;default:'pcs'"`
	IsActive          bool            `gorm:"not null;default:true"`
	CreatedBy         *uuid.UUID      `gorm:"type:uuid"`
	CreatedAt         time.Time
	UpdatedAt         time.Time

	Items []AssetItem `gorm:"foreignKey:CategoryID"`
}

func (AssetCategory) TableName() string { return "asset_categories" }

// Valuation is TotalQuantity * UnitPrice.
func (c *AssetCategory) Valuation() decimal.Decimal {
	return c.UnitPrice.Mul(decimal.NewFromInt(int64(c.TotalQuantity)))
}
