package msgcat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedDefaults(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)

	for key, want := range map[string]string{
		GameCreated:   "Game created successfully",
		GameUpdated:   "Game updated successfully",
		GameDeleted:   "Game deleted successfully",
		MoveAdded:     "Move added successfully",
		RouteNotFound: "Route not found",
	} {
		got, err := c.Render(key, nil)
		require.NoError(t, err, key)
		assert.Equal(t, want, got)
	}

	got, err := c.Render(InvalidBody, map[string]string{"Detail": "unexpected EOF"})
	require.NoError(t, err)
	assert.Equal(t, "Invalid request body: unexpected EOF", got)
}

func TestMissingKeyAndField(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)

	_, err = c.Render("nope.nothing", nil)
	assert.Error(t, err)
	_, err = c.Render(InvalidBody, map[string]string{})
	assert.Error(t, err)
	assert.Equal(t, "fallback", c.Text("nope.nothing", nil, "fallback"))

	var nilCat *Catalog
	assert.Equal(t, "x", nilCat.Text(GameCreated, nil, "x"))
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("game:\n  created: \"New game ready\"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("game: {created: nope}"), 0o644))

	c, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, "New game ready", c.Text(GameCreated, nil, ""))
	assert.Equal(t, "Move added successfully", c.Text(MoveAdded, nil, ""))
}

func TestOverrideDuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("game:\n  created: one\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), []byte("game:\n  created: two\n"), 0o644))

	_, err := New(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate override key")
}

func TestNonStringLeafRejected(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("game:\n  created: 5\n"), 0o644))
	_, err := New(dir)
	assert.Error(t, err)
}
