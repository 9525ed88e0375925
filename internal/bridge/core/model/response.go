package model

import (
	"slices"
)

// Batched command result status values.
const (
	StatusSuccess = "SUCCESS"
	StatusError   = "ERROR"

	// ErrorCodeHardError marks a device-reported failure.
	ErrorCodeHardError = "hardError"
)

// BatchedResponse is the aggregated reply to a batched command.
type BatchedResponse struct {
	RequestID string         `json:"requestId"`
	Payload   BatchedPayload `json:"payload"`
}

type BatchedPayload struct {
	Commands []BatchedCommandResult `json:"commands"`
}

type BatchedCommandResult struct {
	IDs       []string       `json:"ids"`
	Status    string         `json:"status"`
	States    map[string]any `json:"states,omitempty"`
	ErrorCode string         `json:"errorCode,omitempty"`
}

// NewBatchedResponse builds the success template with an empty id list.
func NewBatchedResponse(requestID string, states map[string]any) *BatchedResponse {
	return &BatchedResponse{
		RequestID: requestID,
		Payload: BatchedPayload{
			Commands: []BatchedCommandResult{{
				IDs:    []string{},
				Status: StatusSuccess,
				States: states,
			}},
		},
	}
}

func (r *BatchedResponse) first() *BatchedCommandResult {
	if len(r.Payload.Commands) == 0 {
		r.Payload.Commands = []BatchedCommandResult{{IDs: []string{}, Status: StatusSuccess}}
	}
	return &r.Payload.Commands[0]
}

// AddID appends id to the first command's id list unless already present.
func (r *BatchedResponse) AddID(id string) bool {
	c := r.first()
	if slices.Contains(c.IDs, id) {
		return false
	}
	c.IDs = append(c.IDs, id)
	return true
}

// IDs returns the acknowledged ids collected so far.
func (r *BatchedResponse) IDs() []string {
	if len(r.Payload.Commands) == 0 {
		return nil
	}
	return r.Payload.Commands[0].IDs
}

// Downgrade turns the response into a failure.
func (r *BatchedResponse) Downgrade() {
	c := r.first()
	c.States = nil
	c.Status = StatusError
	c.ErrorCode = ErrorCodeHardError
}

// Clone returns a copy safe to hand out while the original keeps changing.
func (r *BatchedResponse) Clone() *BatchedResponse {
	out := &BatchedResponse{RequestID: r.RequestID}
	for _, c := range r.Payload.Commands {
		c.IDs = slices.Clone(c.IDs)
		out.Payload.Commands = append(out.Payload.Commands, c)
	}
	return out
}
