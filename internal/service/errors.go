package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Error kinds are stable, machine-readable identifiers carried to clients.
const (
	KindValidation        = "validation"
	KindNotFound          = "not_found"
	KindConflict          = "conflict"
	KindItemUnavailable   = "item_unavailable"
	KindInsufficientStock = "insufficient_stock"
	KindNotAuthenticated  = "not_authenticated"
	KindNotAuthorized     = "not_authorized"
	KindContention        = "contention"
)

// Conflict reasons.
const (
	ReasonDuplicateCode        = "duplicate_code"
	ReasonWrongTrackingMode    = "wrong_tracking_mode"
	ReasonWrongStatus          = "wrong_status"
	ReasonActiveDispatchExists = "active_dispatch_exists"
	ReasonInvalidAction        = "invalid_action"
	ReasonInactive             = "inactive"
	ReasonExceedsOutstanding   = "exceeds_outstanding"
)

// KindError is implemented by every error this package returns on purpose.
type KindError interface {
	error
	Kind() string
}

// ValidationError reports client-fixable input problems, keyed by field.
type ValidationError struct {
	Fields map[string]string
}

func newValidation(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Kind() string { return KindValidation }

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type NotFoundError struct {
	Entity string
	ID     uuid.UUID
}

func (e *NotFoundError) Kind() string { return KindNotFound }

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

type ConflictError struct {
	Reason string
	Msg    string
}

func (e *ConflictError) Kind() string  { return KindConflict }
func (e *ConflictError) Error() string { return e.Msg }

func newConflict(reason, format string, args ...any) *ConflictError {
	return &ConflictError{Reason: reason, Msg: fmt.Sprintf(format, args...)}
}

// UnavailableItem names one item that could not take part in an operation.
type UnavailableItem struct {
	ItemID uuid.UUID `json:"item_id"`
	Code   string    `json:"code"`
	Status string    `json:"status"`
	Reason string    `json:"reason,omitempty"`
}

// ItemUnavailableError lists every offending item, not just the first.
type ItemUnavailableError struct {
	Items []UnavailableItem
}

func (e *ItemUnavailableError) Kind() string { return KindItemUnavailable }

func (e *ItemUnavailableError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, it := range e.Items {
		parts = append(parts, fmt.Sprintf("%s (%s)", it.Code, it.Status))
	}
	return "items not available: " + strings.Join(parts, ", ")
}

// Shortage is one under-stocked line.
type Shortage struct {
	CategoryID   uuid.UUID `json:"category_id"`
	CategoryCode string    `json:"category_code"`
	Requested    int       `json:"requested"`
	Available    int       `json:"available"`
}

// InsufficientStockError lists every under-stocked line.
type InsufficientStockError struct {
	Shortages []Shortage
}

func (e *InsufficientStockError) Kind() string { return KindInsufficientStock }

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("%s requested %d, available %d", s.CategoryCode, s.Requested, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

// AuthorizationError covers both a missing identity and a role or
// project-scope mismatch.
type AuthorizationError struct {
	Unauthenticated bool
	Msg             string
}

func (e *AuthorizationError) Kind() string {
	if e.Unauthenticated {
		return KindNotAuthenticated
	}
	return KindNotAuthorized
}

func (e *AuthorizationError) Error() string { return e.Msg }

func notAuthorized(format string, args ...any) *AuthorizationError {
	return &AuthorizationError{Msg: fmt.Sprintf(format, args...)}
}

// ContentionError wraps lock timeouts, deadlocks and serialization failures.
// The operation was rolled back and may be retried.
type ContentionError struct {
	Err error
}

func (e *ContentionError) Kind() string  { return KindContention }
func (e *ContentionError) Error() string { return "concurrent update, retry: " + e.Err.Error() }
func (e *ContentionError) Unwrap() error { return e.Err }
