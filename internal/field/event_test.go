package field

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern   string
		eventType string
		want      bool
	}{
		{"module:breath:activated", "module:breath:activated", true},
		{"module:breath:activated", "module:breath:deactivated", false},
		{"module:*:activated", "module:breath:activated", true},
		{"module:*:activated", "module:timeline:activated", true},
		{"module:*:activated", "module:breath:deactivated", false},
		{"module:*:activated", "telos:breath:activated", false},
		// A mid-pattern "*" matches exactly one segment.
		{"module:*:activated", "module:a:b:activated", false},
		// A trailing "*" matches one or more remaining segments.
		{"module:*", "module:breath", true},
		{"module:*", "module:breath:activated", true},
		{"module:*", "module", false},
		{"*", "anything", true},
		{"*", "any:thing", true},
		// No wildcard means exact match only.
		{"module", "module:breath", false},
		{"module:breath", "module", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"~"+tt.eventType, func(t *testing.T) {
			require.Equal(t, tt.want, MatchPattern(tt.pattern, tt.eventType))
		})
	}
}

func TestEventDomain(t *testing.T) {
	require.Equal(t, "module", Event{Type: "module:breath:activated"}.Domain())
	require.Equal(t, "tick", Event{Type: "tick"}.Domain())
}

func TestEventMetaAccessors(t *testing.T) {
	e := Event{Metadata: map[string]any{
		"version":   "1.2.0",
		"isRequest": true,
		"count":     3,
	}}
	require.Equal(t, "1.2.0", e.MetaString("version"))
	require.Equal(t, "", e.MetaString("missing"))
	require.Equal(t, "", e.MetaString("count"))
	require.True(t, e.MetaBool("isRequest"))
	require.False(t, e.MetaBool("missing"))
	require.False(t, Event{}.MetaBool("isRequest"))
	require.Equal(t, "", Event{}.MetaString("version"))
}

// matchReference is a straightforward recursive matcher the optimized
// implementation is checked against.
func matchReference(ps, ts []string) bool {
	switch {
	case len(ps) == 0:
		return len(ts) == 0
	case ps[0] == "*" && len(ps) == 1:
		return len(ts) >= 1
	case len(ts) == 0:
		return false
	case ps[0] == "*" || ps[0] == ts[0]:
		return matchReference(ps[1:], ts[1:])
	default:
		return false
	}
}

func TestMatchPattern_AgainstReference(t *testing.T) {
	seg := rapid.SampledFrom([]string{"module", "breath", "activated", "*", "telos"})
	rapid.Check(t, func(t *rapid.T) {
		ps := rapid.SliceOfN(seg, 1, 4).Draw(t, "pattern")
		ts := rapid.SliceOfN(rapid.SampledFrom([]string{"module", "breath", "activated", "telos"}), 1, 4).Draw(t, "eventType")

		pattern := strings.Join(ps, ":")
		eventType := strings.Join(ts, ":")
		require.Equal(t, matchReference(ps, ts), MatchPattern(pattern, eventType),
			"pattern=%q type=%q", pattern, eventType)
	})
}
