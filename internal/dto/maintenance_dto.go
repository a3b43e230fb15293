package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type MaintenanceActionRequest struct {
	RepairNotes     *string          `json:"repair_notes"`
	RepairCost      *decimal.Decimal `json:"repair_cost"`
	ResultCondition string           `json:"result_condition" validate:"omitempty,oneof=new good fair poor damaged"`
}

type MaintenanceFilter struct {
	Status     string `form:"status"      validate:"omitempty,oneof=pending in_progress completed written_off"`
	CategoryID string `form:"category_id" validate:"omitempty,uuid"`
	Page       int    `form:"page,default=1"   validate:"min=1"`
	Limit      int    `form:"limit,default=50" validate:"min=1,max=500"`
}

type MaintenanceResponse struct {
	ID               string            `json:"id"`
	CategoryID       string            `json:"category_id"`
	CategoryCode     string            `json:"category_code,omitempty"`
	ItemID           *string           `json:"item_id"`
	ItemCode         *string           `json:"item_code,omitempty"`
	ReturnMovementID *string           `json:"return_movement_id"`
	ProjectID        *string           `json:"project_id"`
	Quantity         int               `json:"quantity"`
	Status           string            `json:"status"`
	IssueDescription *string           `json:"issue_description"`
	ReportedBy       string            `json:"reported_by"`
	RepairNotes      *string           `json:"repair_notes"`
	RepairCost       decimal.Decimal   `json:"repair_cost"`
	ResultCondition  *string           `json:"result_condition"`
	ResolvedBy       *string           `json:"resolved_by"`
	StartedAt        *time.Time        `json:"started_at"`
	ResolvedAt       *time.Time        `json:"resolved_at"`
	CreatedAt        time.Time         `json:"created_at"`
	Category         *CategoryResponse `json:"category,omitempty"`
	Item             *ItemResponse     `json:"item,omitempty"`
}

type MaintenanceListResponse struct {
	Data       []MaintenanceResponse `json:"data"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	Limit      int                   `json:"limit"`
	TotalPages int                   `json:"total_pages"`
}
