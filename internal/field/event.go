// Package field implements the semantic event field: an append-only,
// bounded-history publish/subscribe bus with colon-segment pattern matching.
// Delivery is synchronous and ordered; the channel-based Stream bridge exists
// for consumers that want an asynchronous feed.
package field

import (
	"strings"
	"time"
)

// Event is a semantic event. Events are immutable once published: the field
// never mutates payload or metadata, and handlers must not either.
type Event struct {
	// Type is the colon-segmented event type, e.g. "module:breath:activated".
	Type string

	// SourceID names the publisher, usually a module id or subsystem name.
	SourceID string

	// Timestamp is set by the field at publish time when zero.
	Timestamp time.Time

	// Payload carries the event body. The field is payload-agnostic; schema
	// validation belongs to the application layer.
	Payload map[string]any

	// Metadata carries transport concerns (version, isRequest, requestId).
	Metadata map[string]any

	// EssenceLabels tags the event semantically. Well-formed events carry at
	// least one label; that rule is enforced by validation, not by Publish.
	EssenceLabels []string
}

// Domain returns the first colon segment of the event type, used for
// per-domain statistics.
func (e Event) Domain() string {
	if i := strings.IndexByte(e.Type, ':'); i >= 0 {
		return e.Type[:i]
	}
	return e.Type
}

// MetaString returns a string metadata value, or empty when absent or not a
// string.
func (e Event) MetaString(key string) string {
	if e.Metadata == nil {
		return ""
	}
	s, _ := e.Metadata[key].(string)
	return s
}

// MetaBool returns a bool metadata value, defaulting to false.
func (e Event) MetaBool(key string) bool {
	if e.Metadata == nil {
		return false
	}
	b, _ := e.Metadata[key].(bool)
	return b
}

// MatchPattern reports whether a colon-segmented event type matches a
// subscription pattern. A "*" segment matches exactly one type segment; a
// trailing "*" matches one or more remaining segments. Anything else
// requires an exact segment match.
func MatchPattern(pattern, eventType string) bool {
	if pattern == eventType {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return false
	}

	ps := strings.Split(pattern, ":")
	ts := strings.Split(eventType, ":")

	for i, p := range ps {
		last := i == len(ps)-1
		if p == "*" && last {
			// Trailing wildcard swallows the rest, needs at least one segment.
			return len(ts) > i
		}
		if i >= len(ts) {
			return false
		}
		if p != "*" && p != ts[i] {
			return false
		}
	}
	return len(ts) == len(ps)
}
