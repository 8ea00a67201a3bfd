package livepublish

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/function61/gokit/assert"
)

func tempDir(t *testing.T) string {
	t.Helper()

	dir, err := ioutil.TempDir("", "livepublish")
	assert.Ok(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	// go-git reports paths relative to the symlink-resolved root
	resolved, err := filepath.EvalSymlinks(dir)
	assert.Ok(t, err)

	return resolved
}

func writeFile(t *testing.T, path string, content string) {
	t.Helper()

	assert.Ok(t, os.MkdirAll(filepath.Dir(path), 0755))
	assert.Ok(t, ioutil.WriteFile(path, []byte(content), 0644))
}

func changesToString(changes []Change) string {
	lines := []string{}
	for _, change := range changes {
		lines = append(lines, changeKindShort(change.Kind)+" "+change.Path)
	}

	return strings.Join(lines, ", ")
}

func joinPaths(paths []string) string {
	return strings.Join(paths, ",")
}
