package paths

// Topic segments shared by the bridge and home-automation controllers.
// Every topic has the form {root}/{segment}/{username}/{endpointId}.

// Downstream: bridge -> controller
const (
	// Command carries a directive for one endpoint.
	// Payload: { "messageId": "...", "source": "singular|batched", "directive": {...} }
	Command = "command"

	// Message carries a user-facing warning, e.g. a rejected state field.
	// Payload: { "severity": "warning", "message": "..." }
	Message = "message"
)

// Upstream: controller -> bridge
const (
	// Response acknowledges a command.
	// Payload: { "messageId": "...", "source": "singular|batched", "success": true }
	Response = "response"

	// State reports a partial device state.
	// Payload: { "state": { "brightness": 50, ... } }
	State = "state"
)

// GroupBridge is the shared subscription group used for state telemetry.
const GroupBridge = "voicelink"
