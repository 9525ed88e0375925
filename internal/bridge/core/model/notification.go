package model

// Severity of a user notification.
type Severity string

// SeverityWarning marks a state field the bridge refused to store.
const SeverityWarning Severity = "warning"

// Notification is published on message/{user}/{endpointId}.
type Notification struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}
