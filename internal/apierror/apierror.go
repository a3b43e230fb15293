// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
// Kind is stable and machine-readable; Detail is for humans.
type APIError struct {
	Kind   string            `json:"kind"`
	Reason string            `json:"reason,omitempty"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields,omitempty"`
	// Shortages and Items enumerate the offending lines of stock errors.
	Shortages any `json:"shortages,omitempty"`
	Items     any `json:"items,omitempty"`
}

// Kinds that do not come from the service layer.
const (
	KindBadRequest   = "bad_request"
	KindInternal     = "internal"
	KindRateLimited  = "rate_limited"
	KindUnavailable  = "unavailable"
	KindUnauthorized = "not_authenticated"
	KindForbidden    = "not_authorized"
	KindValidation   = "validation"
)

func New(kind, msg string) *APIError {
	return &APIError{Kind: kind, Detail: msg}
}

// NewValidation wraps multiple field errors.
func NewValidation(fields map[string]string) *APIError {
	return &APIError{Kind: KindValidation, Detail: "validation failed", Fields: fields}
}
