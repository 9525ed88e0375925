package model

import (
	"encoding/json"
)

// Source identifies the voice protocol a command originated from.
type Source string

const (
	// SourceSingular is one command to one device with one acknowledgement.
	SourceSingular Source = "singular"
	// SourceBatched is one logical command fanned out to several devices.
	SourceBatched Source = "batched"
)

// SingularCommand is a directive for exactly one endpoint.
type SingularCommand struct {
	User       string `json:"-"`
	UserID     string `json:"-"`
	EndpointID string `json:"-"`

	// MessageID is the provider's message identifier, used as the correlation key.
	MessageID string          `json:"messageId"`
	Directive json.RawMessage `json:"directive"`

	// Response is returned to the caller when the device acknowledges success.
	Response json.RawMessage `json:"response,omitempty"`
	// ErrorResponse, when set, is returned with the failure status.
	ErrorResponse json.RawMessage `json:"errorResponse,omitempty"`
}

// BatchedDevice is one target of a batched command.
type BatchedDevice struct {
	ID        string          `json:"id"`
	Directive json.RawMessage `json:"directive"`
}

// BatchedCommand is one logical command addressed to several devices.
type BatchedCommand struct {
	User   string `json:"-"`
	UserID string `json:"-"`

	RequestID string          `json:"requestId"`
	Devices   []BatchedDevice `json:"devices"`
	// States is echoed in the success response.
	States map[string]any `json:"states,omitempty"`
}

// DeviceIDs returns the target ids in request order.
func (c *BatchedCommand) DeviceIDs() []string {
	ids := make([]string, 0, len(c.Devices))
	for _, d := range c.Devices {
		ids = append(ids, d.ID)
	}
	return ids
}

// CommandMessage is published on command/{user}/{endpointId}.
type CommandMessage struct {
	MessageID string          `json:"messageId"`
	Source    Source          `json:"source"`
	Directive json.RawMessage `json:"directive"`
}

// Ack is received on response/{user}/{endpointId}.
type Ack struct {
	MessageID string `json:"messageId"`
	Source    Source `json:"source,omitempty"`
	Success   bool   `json:"success"`
}
