package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateCategoryRequest struct {
	Code          *string         `json:"code"           validate:"omitempty,min=2,max=20,alphanum"`
	Name          string          `json:"name"           validate:"required,min=2,max=120"`
	Description   *string         `json:"description"`
	TrackingMode  string          `json:"tracking_mode"  validate:"required,oneof=quantity individual"`
	TotalQuantity int             `json:"total_quantity" validate:"min=0"`
	UnitPrice     decimal.Decimal `json:"unit_price"     validate:"min=0"`
	Unit          string          `json:"unit"           validate:"omitempty,max=20"`
}

type UpdateCategoryRequest struct {
	Name          *string          `json:"name"           validate:"omitempty,min=2,max=120"`
	Description   *string          `json:"description"`
	TrackingMode  *string          `json:"tracking_mode"  validate:"omitempty,oneof=quantity individual"`
	TotalQuantity *int             `json:"total_quantity" validate:"omitempty,min=0"`
	UnitPrice     *decimal.Decimal `json:"unit_price"`
	Unit          *string          `json:"unit"           validate:"omitempty,max=20"`
}

type CreateItemRequest struct {
	Code         *string `json:"code"          validate:"omitempty,min=2,max=40"`
	SerialNumber *string `json:"serial_number" validate:"omitempty,max=120"`
	Description  *string `json:"description"`
	Condition    string  `json:"condition"     validate:"omitempty,oneof=new good fair poor damaged"`
	Notes        *string `json:"notes"`
}

// UpdateItemRequest carries descriptive fields only; status, condition and
// project are owned by ledger and maintenance operations.
type UpdateItemRequest struct {
	SerialNumber *string `json:"serial_number" validate:"omitempty,max=120"`
	Description  *string `json:"description"`
	Notes        *string `json:"notes"`
}

// ─── Filter / Pagination ─────────────────────────────────────────────────────

type CategoryFilter struct {
	ActiveOnly   bool   `form:"active_only"`
	TrackingMode string `form:"tracking_mode" validate:"omitempty,oneof=quantity individual"`
	Search       string `form:"search"`
	Page         int    `form:"page,default=1"   validate:"min=1"`
	Limit        int    `form:"limit,default=50" validate:"min=1,max=500"`
}

type ItemFilter struct {
	CategoryID string `form:"category_id" validate:"omitempty,uuid"`
	ProjectID  string `form:"project_id"  validate:"omitempty,uuid"`
	Status     string `form:"status"      validate:"omitempty,oneof=available dispatched maintenance retired"`
	ActiveOnly bool   `form:"active_only"`
	Search     string `form:"search"`
	Page       int    `form:"page,default=1"   validate:"min=1"`
	Limit      int    `form:"limit,default=50" validate:"min=1,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type CategoryResponse struct {
	ID                string          `json:"id"`
	Code              string          `json:"code"`
	Name              string          `json:"name"`
	Description       *string         `json:"description"`
	TrackingMode      string          `json:"tracking_mode"`
	TotalQuantity     int             `json:"total_quantity"`
	AvailableQuantity int             `json:"available_quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	Unit              string          `json:"unit"`
	IsActive          bool            `json:"is_active"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type CategoryDetailResponse struct {
	CategoryResponse
	Items           []ItemResponse     `json:"items"`
	RecentMovements []MovementResponse `json:"recent_movements"`
}

type CategoryListResponse struct {
	Data       []CategoryResponse `json:"data"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	TotalPages int                `json:"total_pages"`
}

type ItemResponse struct {
	ID               string            `json:"id"`
	CategoryID       string            `json:"category_id"`
	Code             string            `json:"code"`
	SerialNumber     *string           `json:"serial_number"`
	Description      *string           `json:"description"`
	Notes            *string           `json:"notes"`
	CurrentStatus    string            `json:"current_status"`
	CurrentCondition string            `json:"current_condition"`
	CurrentProjectID *string           `json:"current_project_id"`
	IsActive         bool              `json:"is_active"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	Category         *CategoryResponse `json:"category,omitempty"`
}

type ItemListResponse struct {
	Data       []ItemResponse `json:"data"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
}
