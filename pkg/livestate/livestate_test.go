package livestate

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/function61/gokit/assert"
	"github.com/function61/liveedit/pkg/livetypes"
)

func TestBackends(t *testing.T) {
	dir, err := ioutil.TempDir("", "livestate")
	assert.Ok(t, err)
	defer os.RemoveAll(dir)

	bolt, err := OpenBolt(filepath.Join(dir, "state.db"))
	assert.Ok(t, err)
	defer bolt.Close()

	backends := []struct {
		name  string
		store Store
	}{
		{"memory", NewMemory()},
		{"file", NewFile(dir)},
		{"bolt", bolt},
	}

	for _, backend := range backends {
		backend := backend
		t.Run(backend.name, func(t *testing.T) {
			testAccessors(t, backend.store)
		})
	}
}

func testAccessors(t *testing.T, store Store) {
	token, err := VersionToken(store)
	assert.Ok(t, err)
	assert.Assert(t, token == livetypes.NoVersionToken)

	paths, err := ModifiedPaths(store)
	assert.Ok(t, err)
	assert.Assert(t, paths != nil && len(paths) == 0)

	assert.Ok(t, SetVersionToken(`"abc123"`, store))
	assert.Ok(t, SetModifiedPaths([]string{"src/b.php", "a.txt"}, store))

	token, err = VersionToken(store)
	assert.Ok(t, err)
	assert.EqualString(t, string(token), `"abc123"`)

	paths, err = ModifiedPaths(store)
	assert.Ok(t, err)
	assert.EqualString(t, strings.Join(paths, ","), "a.txt,src/b.php")

	assert.Ok(t, SetModifiedPaths([]string{}, store))

	paths, err = ModifiedPaths(store)
	assert.Ok(t, err)
	assert.Assert(t, len(paths) == 0)
}

func TestFileFormat(t *testing.T) {
	dir, err := ioutil.TempDir("", "livestate")
	assert.Ok(t, err)
	defer os.RemoveAll(dir)

	store := NewFile(dir)

	assert.Ok(t, SetModifiedPaths([]string{"z.txt", "a.txt"}, store))
	assert.Ok(t, SetVersionToken(`"etag"`, store))

	content, err := ioutil.ReadFile(filepath.Join(dir, ".liveedit-modified-paths"))
	assert.Ok(t, err)
	assert.EqualString(t, string(content), "a.txt\nz.txt\n")

	content, err = ioutil.ReadFile(filepath.Join(dir, ".liveedit-version-token"))
	assert.Ok(t, err)
	assert.EqualString(t, string(content), `"etag"`)
}
