package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const aliceBundle = `[
	{"name": "sid", "value": "abc123", "domain": ".pwonline.ru", "path": "/", "expires": 1893456000.5, "secure": true, "httpOnly": true},
	{"name": "lang", "value": "ru", "domain": ".pwonline.ru", "path": "/", "secure": false, "httpOnly": false}
]`

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "sessions"))
	require.NoError(t, err)
	return s
}

func writeBundle(t *testing.T, s *Store, username, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(s.path(username), []byte(content), 0o644))
}

func TestListSorted(t *testing.T) {
	s := newTestStore(t)

	usernames, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, usernames)

	writeBundle(t, s, "zeta", "[]")
	writeBundle(t, s, "alpha", "[]")
	require.NoError(t, os.WriteFile(filepath.Join(s.dir, "notes.txt"), []byte("x"), 0o644))

	usernames, err = s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, usernames)
}

func TestLoad(t *testing.T) {
	s := newTestStore(t)
	writeBundle(t, s, "alice", aliceBundle)

	cookies, err := s.Load("alice")
	require.NoError(t, err)
	require.Len(t, cookies, 2)
	assert.Equal(t, "sid", cookies[0].Name)
	assert.Equal(t, ".pwonline.ru", cookies[0].Domain)
	assert.True(t, cookies[0].Secure)
	assert.InDelta(t, 1893456000.5, cookies[0].Expires, 0.001)
	assert.Zero(t, cookies[1].Expires)
}

func TestLoadMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Load("ghost")
	assert.ErrorIs(t, err, ErrNoBundle)
}

func TestLoadCorrupt(t *testing.T) {
	s := newTestStore(t)
	writeBundle(t, s, "alice", "{not json")

	_, err := s.Load("alice")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoBundle)
}

func TestExistsAndDelete(t *testing.T) {
	s := newTestStore(t)
	writeBundle(t, s, "alice", "[]")

	assert.True(t, s.Exists("alice"))
	require.NoError(t, s.Delete("alice"))
	assert.False(t, s.Exists("alice"))
	assert.ErrorIs(t, s.Delete("alice"), ErrNoBundle)
}
