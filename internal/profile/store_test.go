package profile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewStore_DefaultWithoutPath(t *testing.T) {
	s, err := NewStore("", zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	p := s.Current()
	assert.Equal(t, "builtin-1", p.Version)
	assert.Contains(t, p.System, "cheat-sheet")
	assert.NotEmpty(t, p.Greeting)
	assert.NotEmpty(t, p.Fallback)
}

func TestNewStore_OverrideMergesOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	writeProfile(t, path, `{"version":"custom-1","greeting":"Hey!"}`)

	s, err := NewStore(path, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	p := s.Current()
	assert.Equal(t, "custom-1", p.Version)
	assert.Equal(t, "Hey!", p.Greeting)
	// Unnamed fields keep the built-in texts
	assert.Contains(t, p.System, "cheat-sheet")
	assert.NotEmpty(t, p.Fallback)
}

func TestNewStore_InvalidFileFailsStartup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")

	writeProfile(t, path, `{"system":"no version field"}`)
	_, err := NewStore(path, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")

	writeProfile(t, path, `{"version":"x","bogus":true}`)
	_, err = NewStore(path, zerolog.Nop())
	require.Error(t, err)

	writeProfile(t, path, `not json at all`)
	_, err = NewStore(path, zerolog.Nop())
	require.Error(t, err)
}

func TestStore_WatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	writeProfile(t, path, `{"version":"v1"}`)

	s, err := NewStore(path, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Watch())

	writeProfile(t, path, `{"version":"v2","steps":"numbered steps only"}`)

	assert.Eventually(t, func() bool {
		return s.Current().Version == "v2"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "numbered steps only", s.Current().Steps)
}

func TestStore_WatchKeepsLastGoodOnInvalidRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	writeProfile(t, path, `{"version":"good","code":"code only"}`)

	s, err := NewStore(path, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Watch())

	writeProfile(t, path, `{"broken`)

	// The invalid rewrite must not displace the loaded profile. Give the
	// watcher a moment to observe the event before asserting.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, "good", s.Current().Version)
	assert.Equal(t, "code only", s.Current().Code)
}
