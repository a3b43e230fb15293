package service

import (
	"context"

	"metersquare/internal/dto"
)

// Workflow notification events.
const (
	EventRequisitionSent           = "requisition.sent"
	EventRequisitionFirstApproved  = "requisition.first_approved"
	EventRequisitionFirstRejected  = "requisition.first_rejected"
	EventRequisitionSecondApproved = "requisition.second_approved"
	EventRequisitionSecondRejected = "requisition.second_rejected"
	EventRequisitionDispatched     = "requisition.dispatched"
)

// Notifier delivers workflow notifications. It is called after the
// transition has committed; an error is logged and never fails the
// transition.
type Notifier interface {
	Notify(ctx context.Context, n dto.Notification) error
}
