package topic

import (
	"fmt"
	"strings"
)

// Address identifies a device-scoped topic: {root}/{segment}/{username}/{endpointId}.
type Address struct {
	Segment    string
	Username   string
	EndpointID string
}

// Builder constructs and parses device-scoped topic strings.
// The zero root yields the bare convention, e.g. "command/alice/lamp-1".
type Builder struct {
	root  string
	share string
}

// NewBuilder creates a Builder with the given root namespace (may be empty).
func NewBuilder(root string) *Builder {
	return &Builder{root: strings.Trim(root, Separator)}
}

// Shared returns a copy of the builder whose wildcard filters are wrapped in
// an MQTT v5 shared subscription for group.
func (b *Builder) Shared(group string) *Builder {
	return &Builder{root: b.root, share: group}
}

// Build returns the topic for segment addressed to one endpoint of one user.
func (b *Builder) Build(segment, username, endpointID string) string {
	return b.join(segment, username, endpointID)
}

// BuildWildcard returns the filter matching segment for every user and endpoint.
func (b *Builder) BuildWildcard(segment string) string {
	filter := b.join(segment, Wildcard, Wildcard)
	if b.share != "" {
		return "$share/" + b.share + Separator + filter
	}
	return filter
}

// Parse splits a concrete topic into its address. The segment may span
// several levels; the last two levels are always username and endpoint.
func (b *Builder) Parse(topic string) (Address, error) {
	rest := topic
	if b.root != "" {
		prefix := b.root + Separator
		if !strings.HasPrefix(topic, prefix) {
			return Address{}, fmt.Errorf("topic %q outside root %q", topic, b.root)
		}
		rest = strings.TrimPrefix(topic, prefix)
	}

	parts := strings.Split(rest, Separator)
	if len(parts) < 3 {
		return Address{}, fmt.Errorf("topic %q is not device scoped", topic)
	}

	n := len(parts)
	addr := Address{
		Segment:    strings.Join(parts[:n-2], Separator),
		Username:   parts[n-2],
		EndpointID: parts[n-1],
	}
	if addr.Segment == "" || addr.Username == "" || addr.EndpointID == "" {
		return Address{}, fmt.Errorf("topic %q has empty levels", topic)
	}
	return addr, nil
}

func (b *Builder) join(levels ...string) string {
	if b.root != "" {
		levels = append([]string{b.root}, levels...)
	}
	return strings.Join(levels, Separator)
}
