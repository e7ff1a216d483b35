package toggle

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akasha-systems/akasha/internal/field"
)

func newTestStore(t *testing.T) (*Store, *field.Field) {
	t.Helper()
	f := field.New(100)
	t.Cleanup(f.Close)
	s, err := NewStore(nil, f)
	require.NoError(t, err)
	return s, f
}

func TestStore_DefaultDerivation(t *testing.T) {
	s, _ := newTestStore(t)

	require.True(t, s.IsEnabled("field.breath"))
	require.False(t, s.IsEnabled("field.example-breath"))
	require.False(t, s.IsEnabled("demo.timeline"))

	// EnsureDefault records the state; a later explicit set overrides it.
	require.False(t, s.EnsureDefault("demo.timeline"))
	require.NoError(t, s.SetEnabled("demo.timeline", true))
	require.True(t, s.IsEnabled("demo.timeline"))
	// Ensuring again keeps the stored value.
	require.True(t, s.EnsureDefault("demo.timeline"))
}

func TestStore_SetEnabledPublishesChange(t *testing.T) {
	s, f := newTestStore(t)

	var events []field.Event
	f.Subscribe(EventToggleChanged, func(e field.Event) { events = append(events, e) })

	require.NoError(t, s.SetEnabled("field.breath", false))
	require.Len(t, events, 1)
	require.Equal(t, "field.breath", events[0].Payload["moduleId"])
	require.Equal(t, false, events[0].Payload["enabled"])
	require.Equal(t, SourceLocal, events[0].Payload["source"])

	// Setting the same value again is a no-op.
	require.NoError(t, s.SetEnabled("field.breath", false))
	require.Len(t, events, 1)
}

func TestStore_ApplyMirrorRemoteWins(t *testing.T) {
	s, f := newTestStore(t)

	var changed []string
	f.Subscribe(EventToggleChanged, func(e field.Event) {
		changed = append(changed, e.Payload["moduleId"].(string))
	})

	require.NoError(t, s.SetEnabled("field.breath", true))
	require.NoError(t, s.SetEnabled("field.timeline", false))
	changed = nil

	s.ApplyMirror(map[string]bool{
		"field.breath":   false, // conflict: remote wins
		"field.timeline": false, // same value: no event
		"field.sigil":    true,  // new entry
	})

	require.False(t, s.IsEnabled("field.breath"))
	require.True(t, s.IsEnabled("field.sigil"))
	require.ElementsMatch(t, []string{"field.breath", "field.sigil"}, changed)
}

func TestSQLiteRepository_RoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "toggles.db")

	db, err := NewDB(dbPath)
	require.NoError(t, err)
	repo := NewSQLiteRepository(db)

	require.NoError(t, repo.Save("field.breath", false))
	require.NoError(t, repo.Save("field.sigil", true))
	require.NoError(t, repo.Save("field.breath", true)) // upsert

	state, err := repo.LoadAll()
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"field.breath": true, "field.sigil": true}, state)
	require.NoError(t, repo.Close())

	// Reopening sees the persisted state through a Store.
	db, err = NewDB(dbPath)
	require.NoError(t, err)
	s, err := NewStore(NewSQLiteRepository(db), nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	require.True(t, s.IsEnabled("field.breath"))
	require.Len(t, s.All(), 2)
}

func TestMirror_MergesOnChange(t *testing.T) {
	s, _ := newTestStore(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "toggles.yaml")

	m, err := NewMirror(s, MirrorConfig{Path: path, DebounceDur: 20 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, m.Start()) // file absent at startup is fine
	defer func() { require.NoError(t, m.Stop()) }()

	require.NoError(t, os.WriteFile(path, []byte("toggles:\n  field.breath: false\n"), 0644))

	require.Eventually(t, func() bool {
		return !s.IsEnabled("field.breath")
	}, time.Second, 10*time.Millisecond)
}

func TestMirror_RequiresPath(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := NewMirror(s, MirrorConfig{})
	require.Error(t, err)
}
