package dto

import (
	"encoding/json"
	"time"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type RequisitionLineRequest struct {
	CategoryID string  `json:"category_id" validate:"required,uuid"`
	Quantity   int     `json:"quantity"    validate:"required,min=1"`
	Notes      *string `json:"notes"`
}

// CreateRequisitionRequest accepts either lines or the single-line
// category_id/quantity pair.
type CreateRequisitionRequest struct {
	ProjectID    string                   `json:"project_id"    validate:"required,uuid"`
	Purpose      string                   `json:"purpose"       validate:"required,min=3"`
	Urgency      string                   `json:"urgency"       validate:"omitempty,oneof=low normal high urgent"`
	RequiredDate string                   `json:"required_date" validate:"required,datetime=2006-01-02"`
	Notes        *string                  `json:"notes"`
	Lines        []RequisitionLineRequest `json:"lines"         validate:"omitempty,dive"`
	CategoryID   *string                  `json:"category_id"   validate:"omitempty,uuid"`
	Quantity     *int                     `json:"quantity"      validate:"omitempty,min=1"`
}

// UpdateRequisitionRequest: nil fields are left unchanged; a non-nil lines
// slice replaces every line.
type UpdateRequisitionRequest struct {
	ProjectID    *string                  `json:"project_id"    validate:"omitempty,uuid"`
	Purpose      *string                  `json:"purpose"       validate:"omitempty,min=3"`
	Urgency      *string                  `json:"urgency"       validate:"omitempty,oneof=low normal high urgent"`
	RequiredDate *string                  `json:"required_date" validate:"omitempty,datetime=2006-01-02"`
	Notes        *string                  `json:"notes"`
	Lines        []RequisitionLineRequest `json:"lines"         validate:"omitempty,dive"`
	CategoryID   *string                  `json:"category_id"   validate:"omitempty,uuid"`
	Quantity     *int                     `json:"quantity"      validate:"omitempty,min=1"`
}

type ReviewRequest struct {
	Notes *string `json:"notes"`
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"required,min=1"`
}

type CancelRequisitionRequest struct {
	Reason *string `json:"reason"`
}

type RequisitionFilter struct {
	Status         string `form:"status"          validate:"omitempty,oneof=draft pending_first_approval first_rejected pending_second_approval second_rejected second_approved dispatched completed cancelled"`
	ProjectID      string `form:"project_id"      validate:"omitempty,uuid"`
	RequesterID    string `form:"requester_id"    validate:"omitempty,uuid"`
	IncludeDeleted bool   `form:"include_deleted"`
	Page           int    `form:"page,default=1"   validate:"min=1"`
	Limit          int    `form:"limit,default=50" validate:"min=1,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type RequisitionLineResponse struct {
	ID           string  `json:"id"`
	CategoryID   string  `json:"category_id"`
	CategoryCode string  `json:"category_code,omitempty"`
	CategoryName string  `json:"category_name,omitempty"`
	Quantity     int     `json:"quantity"`
	Notes        *string `json:"notes"`
}

type RequisitionEventResponse struct {
	ID         string          `json:"id"`
	Action     string          `json:"action"`
	FromStatus *string         `json:"from_status"`
	ToStatus   string          `json:"to_status"`
	ActorID    string          `json:"actor_id"`
	ActorRole  string          `json:"actor_role"`
	Notes      *string         `json:"notes"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

type RequisitionResponse struct {
	ID           string  `json:"id"`
	Code         string  `json:"code"`
	RequesterID  string  `json:"requester_id"`
	ProjectID    string  `json:"project_id"`
	Purpose      string  `json:"purpose"`
	Urgency      string  `json:"urgency"`
	RequiredDate string  `json:"required_date"`
	Notes        *string `json:"notes"`
	Status       string  `json:"status"`

	CategoryID *string `json:"category_id"`
	Quantity   int     `json:"quantity"`

	FirstReviewerID  *string    `json:"first_reviewer_id"`
	FirstReviewedAt  *time.Time `json:"first_reviewed_at"`
	FirstReviewNotes *string    `json:"first_review_notes"`
	FirstDecision    *string    `json:"first_decision"`

	SecondReviewerID  *string    `json:"second_reviewer_id"`
	SecondReviewedAt  *time.Time `json:"second_reviewed_at"`
	SecondReviewNotes *string    `json:"second_review_notes"`
	SecondDecision    *string    `json:"second_decision"`

	RejectionReason *string `json:"rejection_reason"`

	DispatchedBy  *string    `json:"dispatched_by"`
	DispatchedAt  *time.Time `json:"dispatched_at"`
	DispatchNotes *string    `json:"dispatch_notes"`

	ReceivedAt   *time.Time `json:"received_at"`
	ReceiptNotes *string    `json:"receipt_notes"`

	CancelledAt        *time.Time `json:"cancelled_at"`
	CancellationReason *string    `json:"cancellation_reason"`

	IsDeleted bool       `json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Lines     []RequisitionLineResponse  `json:"lines"`
	Events    []RequisitionEventResponse `json:"events,omitempty"`
	Movements []MovementResponse         `json:"movements,omitempty"`
}

type RequisitionListResponse struct {
	Data       []RequisitionResponse `json:"data"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	Limit      int                   `json:"limit"`
	TotalPages int                   `json:"total_pages"`
}
