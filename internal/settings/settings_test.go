package settings

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMissingFile(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, err)

	assert.Equal(t, "", s.String(KeyUsername, ""))
	assert.Equal(t, "fallback", s.String(KeyPassword, "fallback"))
	assert.False(t, s.Bool(KeyRemember, false))
}

func TestSetPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.SetMany(map[string]any{
		KeyUsername: "alice_1",
		KeyPassword: "s3cret",
	}))
	require.NoError(t, s.Set(KeyRemember, true))

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "alice_1", reopened.String(KeyUsername, ""))
	assert.Equal(t, "s3cret", reopened.String(KeyPassword, ""))
	assert.True(t, reopened.Bool(KeyRemember, false))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestBoolParsesStrings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"rememberLoginCheck":"true","other":"nope"}`), 0o600))

	s, err := Open(path)
	require.NoError(t, err)
	assert.True(t, s.Bool(KeyRemember, false))
	assert.True(t, s.Bool("other", true))
}

func TestOpenMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"cloudUsername":`), 0o600))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestWatchReloadsExternalWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s, err := Open(path)
	require.NoError(t, err)

	var calls atomic.Int32
	w, err := s.Watch(context.Background(), func() { calls.Add(1) })
	require.NoError(t, err)
	t.Cleanup(w.Stop)

	other, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, other.Set(KeyUsername, "bob"))

	require.Eventually(t, func() bool {
		return s.String(KeyUsername, "") == "bob"
	}, 5*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, err)

	w, err := s.Watch(context.Background(), nil)
	require.NoError(t, err)
	w.Stop()
	w.Stop()
}
