package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type RequisitionStatus string

const (
	RequisitionDraft                 RequisitionStatus = "draft"
	RequisitionPendingFirstApproval  RequisitionStatus = "pending_first_approval"
	RequisitionFirstRejected         RequisitionStatus = "first_rejected"
	RequisitionPendingSecondApproval RequisitionStatus = "pending_second_approval"
	RequisitionSecondRejected        RequisitionStatus = "second_rejected"
	RequisitionSecondApproved        RequisitionStatus = "second_approved"
	RequisitionDispatched            RequisitionStatus = "dispatched"
	RequisitionCompleted             RequisitionStatus = "completed"
	RequisitionCancelled             RequisitionStatus = "cancelled"
)

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

// Review decisions stored per approval stage.
const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// Requisition is a request to draw stock for a project. CategoryID and
// Quantity mirror the first line for single-line clients.
type Requisition struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Code         string            `gorm:"uniqueIndex;not null"`
	RequesterID  uuid.UUID         `gorm:"type:uuid;not null;index"`
	ProjectID    uuid.UUID         `gorm:"type:uuid;not null;index"`
	Purpose      string            `gorm:"not null"`
	Urgency      Urgency           `gorm:"type:varchar(10);not null;default:'normal'"`
	RequiredDate time.Time         `gorm:"type:date;not null"`
	Notes        *string
	Status       RequisitionStatus `gorm:"type:varchar(30);not null;index"`

	CategoryID *uuid.UUID `gorm:"type:uuid"`
	Quantity   int        `gorm:"not null;default:0"`

	FirstReviewerID  *uuid.UUID `gorm:"type:uuid"`
	FirstReviewedAt  *time.Time
	FirstReviewNotes *string
	FirstDecision    *string

	SecondReviewerID  *uuid.UUID `gorm:"type:uuid"`
	SecondReviewedAt  *time.Time
	SecondReviewNotes *string
	SecondDecision    *string

	RejectionReason *string

	DispatchedBy  *uuid.UUID `gorm:"type:uuid"`
	DispatchedAt  *time.Time
	DispatchNotes *string

	ReceivedAt   *time.Time
	ReceiptNotes *string

	CancelledAt        *time.Time
	CancellationReason *string

	IsDeleted bool       `gorm:"not null;default:false"`
	DeletedAt *time.Time `gorm:"column:deleted_at"`
	DeletedBy *uuid.UUID `gorm:"type:uuid"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Lines  []RequisitionLine  `gorm:"foreignKey:RequisitionID"`
	Events []RequisitionEvent `gorm:"foreignKey:RequisitionID"`
}

func (Requisition) TableName() string { return "requisitions" }

// ClearReviews drops every approval annotation; used when a revised
// requisition re-enters the approval chain.
func (r *Requisition) ClearReviews() {
	r.FirstReviewerID = nil
	r.FirstReviewedAt = nil
	r.FirstReviewNotes = nil
	r.FirstDecision = nil
	r.SecondReviewerID = nil
	r.SecondReviewedAt = nil
	r.SecondReviewNotes = nil
	r.SecondDecision = nil
	r.RejectionReason = nil
}

type RequisitionLine struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RequisitionID uuid.UUID `gorm:"type:uuid;not null;index"`
	CategoryID    uuid.UUID `gorm:"type:uuid;not null"`
	Quantity      int       `gorm:"not null"`
	Notes         *string
	CreatedAt     time.Time

	Category *AssetCategory `gorm:"foreignKey:CategoryID"`
}

func (RequisitionLine) TableName() string { return "requisition_lines" }

// RequisitionEvent is one row per workflow transition.
type RequisitionEvent struct {
	ID            uuid.UUID          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RequisitionID uuid.UUID          `gorm:"type:uuid;not null;index"`
	Action        string             `gorm:"type:varchar(40);not null"`
	FromStatus    *RequisitionStatus `gorm:"type:varchar(30)"`
	ToStatus      RequisitionStatus  `gorm:"type:varchar(30);not null"`
	ActorID       uuid.UUID          `gorm:"type:uuid;not null"`
	ActorRole     Role               `gorm:"type:varchar(30);not null"`
	Notes         *string
	Metadata      datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time
}

func (RequisitionEvent) TableName() string { return "requisition_events" }
