package moduleload

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSearchPath_SplitsAndDropsEmpty(t *testing.T) {
	sp := ParseSearchPath("/a/b::/c/d:")
	assert.Equal(t, SearchPath{"/a/b", "/c/d"}, sp)
}

func TestResolve_FindsBareNameThenSuffixed(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "base"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "extra.scpim"), []byte("y"), 0o644))

	sp := SearchPath{root}

	got, err := sp.Resolve("base")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "base"), got)

	got, err = sp.Resolve("extra")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "extra.scpim"), got)
}

func TestResolve_SearchesRootsInOrder(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(second, "mod.scpim"), []byte("y"), 0o644))

	sp := SearchPath{first, second}
	got, err := sp.Resolve("mod")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(second, "mod.scpim"), got)
}

func TestResolve_NotFoundErrors(t *testing.T) {
	sp := SearchPath{t.TempDir()}
	_, err := sp.Resolve("missing")
	assert.Error(t, err)
}

func TestLoader_LoadByName_CallsLoadFunc(t *testing.T) {
	root := t.TempDir()
	full := filepath.Join(root, "base.scpim")
	require.NoError(t, os.WriteFile(full, []byte("x"), 0o644))

	var loaded string
	l := NewLoader(SearchPath{root}, func(path string) error {
		loaded = path
		return nil
	})

	require.NoError(t, l.LoadByName("base"))
	assert.Equal(t, full, loaded)
}

func TestLoader_Watch_ReloadsOnWrite(t *testing.T) {
	root := t.TempDir()
	full := filepath.Join(root, "base.scpim")
	require.NoError(t, os.WriteFile(full, []byte("x"), 0o644))

	reloaded := make(chan string, 4)
	l := NewLoader(SearchPath{root}, func(path string) error {
		reloaded <- path
		return nil
	})

	require.NoError(t, l.Watch())
	defer l.Close()

	require.NoError(t, os.WriteFile(full, []byte("y"), 0o644))

	select {
	case path := <-reloaded:
		assert.Equal(t, full, path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestLoader_Close_WithoutWatchIsNoop(t *testing.T) {
	l := NewLoader(SearchPath{t.TempDir()}, func(string) error { return nil })
	assert.NoError(t, l.Close())
}
