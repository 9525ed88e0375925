package topic

// Standard MQTT wildcard definitions.
const (
	// Wildcard is the single-level wildcard "+".
	// Example: "state/+/+" matches "state/alice/lamp-1".
	Wildcard = "+"

	// MultiWildcard is the multi-level wildcard "#".
	// It must be the last level of a filter.
	MultiWildcard = "#"

	// Separator is the topic level separator.
	Separator = "/"
)
