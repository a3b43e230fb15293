package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

// DispatchRequest takes item_ids for individual-mode categories and quantity
// for quantity-mode ones.
type DispatchRequest struct {
	CategoryID      string   `json:"category_id"      validate:"required,uuid"`
	ProjectID       string   `json:"project_id"       validate:"required,uuid"`
	ItemIDs         []string `json:"item_ids"         validate:"omitempty,dive,uuid"`
	Quantity        int      `json:"quantity"         validate:"min=0"`
	ReferenceNumber *string  `json:"reference_number" validate:"omitempty,max=60"`
	Notes           *string  `json:"notes"`
}

// ReturnRequest: for quantity mode, quantity is the total returned and
// damaged_quantity the part of it that goes to maintenance.
type ReturnRequest struct {
	CategoryID        string   `json:"category_id"        validate:"required,uuid"`
	ProjectID         string   `json:"project_id"         validate:"required,uuid"`
	ItemIDs           []string `json:"item_ids"           validate:"omitempty,dive,uuid"`
	Quantity          int      `json:"quantity"           validate:"min=0"`
	DamagedQuantity   int      `json:"damaged_quantity"   validate:"min=0"`
	Condition         string   `json:"condition"          validate:"omitempty,oneof=new good fair poor damaged"`
	DamageDescription *string  `json:"damage_description"`
	ReferenceNumber   *string  `json:"reference_number"   validate:"omitempty,max=60"`
	Notes             *string  `json:"notes"`
}

type MovementFilter struct {
	CategoryID string `form:"category_id" validate:"omitempty,uuid"`
	ProjectID  string `form:"project_id"  validate:"omitempty,uuid"`
	Type       string `form:"type"        validate:"omitempty,oneof=DISPATCH RETURN"`
	From       string `form:"from"        validate:"omitempty,datetime=2006-01-02"`
	To         string `form:"to"          validate:"omitempty,datetime=2006-01-02"`
	Page       int    `form:"page,default=1"    validate:"min=1"`
	Limit      int    `form:"limit,default=100" validate:"min=1,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type MovementResponse struct {
	ID              string    `json:"id"`
	CategoryID      string    `json:"category_id"`
	CategoryCode    string    `json:"category_code,omitempty"`
	CategoryName    string    `json:"category_name,omitempty"`
	ItemID          *string   `json:"item_id"`
	ItemCode        *string   `json:"item_code"`
	Type            string    `json:"type"`
	Quantity        int       `json:"quantity"`
	ProjectID       string    `json:"project_id"`
	ConditionBefore *string   `json:"condition_before"`
	ConditionAfter  *string   `json:"condition_after"`
	ActorID         string    `json:"actor_id"`
	ActorRole       string    `json:"actor_role"`
	ReferenceNumber *string   `json:"reference_number"`
	RequisitionID   *string   `json:"requisition_id"`
	Notes           *string   `json:"notes"`
	CreatedAt       time.Time `json:"created_at"`
}

type MovementListResponse struct {
	Data       []MovementResponse `json:"data"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	TotalPages int                `json:"total_pages"`
}

// MovementResultResponse is returned by dispatch and return: the category
// after the operation plus everything the operation wrote.
type MovementResultResponse struct {
	Category     CategoryResponse      `json:"category"`
	Movements    []MovementResponse    `json:"movements"`
	Items        []ItemResponse        `json:"items,omitempty"`
	Maintenance  []MaintenanceResponse `json:"maintenance,omitempty"`
	SkippedItems []string              `json:"skipped_items,omitempty"`
}

// ProjectAssetLine is what a project currently holds of one category.
type ProjectAssetLine struct {
	CategoryID   string         `json:"category_id"`
	CategoryCode string         `json:"category_code"`
	CategoryName string         `json:"category_name"`
	TrackingMode string         `json:"tracking_mode"`
	Quantity     int64          `json:"quantity"`
	Items        []ItemResponse `json:"items,omitempty"`
}

type ProjectAssetsResponse struct {
	ProjectID  string             `json:"project_id"`
	TotalUnits int64              `json:"total_units"`
	Assets     []ProjectAssetLine `json:"assets"`
}

type DashboardResponse struct {
	CategoryCount      int64              `json:"category_count"`
	TotalValuation     decimal.Decimal    `json:"total_valuation"`
	TotalQuantity      int64              `json:"total_quantity"`
	TotalAvailable     int64              `json:"total_available"`
	TotalDispatched    int64              `json:"total_dispatched"`
	PendingMaintenance int64              `json:"pending_maintenance"`
	RecentMovements    []MovementResponse `json:"recent_movements"`
}

// LedgerViolation is one failed consistency check.
type LedgerViolation struct {
	CategoryID   string  `json:"category_id"`
	CategoryCode string  `json:"category_code"`
	ProjectID    *string `json:"project_id,omitempty"`
	Check        string  `json:"check"`
	Detail       string  `json:"detail"`
}

type LedgerReport struct {
	CheckedCategories int               `json:"checked_categories"`
	Violations        []LedgerViolation `json:"violations"`
}
