package dto

// Recipient is a user resolved to receive a workflow notification.
type Recipient struct {
	UserID string  `json:"user_id"`
	Name   string  `json:"name"`
	Email  *string `json:"email"`
}

// Notification is the payload of one workflow-transition notification.
type Notification struct {
	Event           string      `json:"event"`
	RequisitionID   string      `json:"requisition_id"`
	RequisitionCode string      `json:"requisition_code"`
	ProjectID       string      `json:"project_id"`
	Status          string      `json:"status"`
	ActorID         string      `json:"actor_id"`
	ActorName       string      `json:"actor_name"`
	ActorRole       string      `json:"actor_role"`
	Reason          *string     `json:"reason,omitempty"`
	Recipients      []Recipient `json:"recipients"`
}
