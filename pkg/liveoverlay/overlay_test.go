package liveoverlay

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/function61/gokit/assert"
	"github.com/function61/liveedit/pkg/livetypes"
)

func TestMaterialize(t *testing.T) {
	baseline, overlay, cleanup := setupBaseline(t)
	defer cleanup()

	created, err := Materialize(baseline, overlay)
	assert.Ok(t, err)
	assert.Assert(t, created)

	assert.EqualString(t, dumpTree(t, overlay), dumpTree(t, baseline))
	assert.EqualString(t, dumpTree(t, overlay), `bin/ dir
bin/console file 0755 "#!/usr/bin/env php"
index.php file 0644 "<?php require 'src/app.php';"
public/ dir
public/app.php symlink -> ../index.php
src/ dir
src/app.php file 0644 "<?php echo 'base';"
storage/ dir
var/ dir
var/dangling symlink -> /does/not/exist
vendor symlink -> /opt/vendor
`)

	// staging dir was renamed away
	_, err = os.Stat(overlay + ".tmp")
	assert.Assert(t, os.IsNotExist(err))
}

func TestMaterializeIsIdempotent(t *testing.T) {
	baseline, overlay, cleanup := setupBaseline(t)
	defer cleanup()

	created, err := Materialize(baseline, overlay)
	assert.Ok(t, err)
	assert.Assert(t, created)

	firstDump := dumpTree(t, overlay)

	created, err = Materialize(baseline, overlay)
	assert.Ok(t, err)
	assert.Assert(t, !created)
	assert.EqualString(t, dumpTree(t, overlay), firstDump)

	// 2nd call must not write anything: an overlay-only edit survives it
	assert.Ok(t, ioutil.WriteFile(filepath.Join(overlay, "src/app.php"), []byte("edited"), 0644))

	created, err = Materialize(baseline, overlay)
	assert.Ok(t, err)
	assert.Assert(t, !created)
	assert.EqualString(t, readFile(t, filepath.Join(overlay, "src/app.php")), "edited")
}

func TestMaterializeCleansStaleStaging(t *testing.T) {
	baseline, overlay, cleanup := setupBaseline(t)
	defer cleanup()

	// simulate crash in middle of a previous copy
	assert.Ok(t, os.MkdirAll(filepath.Join(overlay+".tmp", "half"), 0755))

	_, err := Materialize(baseline, overlay)
	assert.Ok(t, err)

	_, err = os.Stat(filepath.Join(overlay, "half"))
	assert.Assert(t, os.IsNotExist(err))
}

func TestMaterializeFailureLeavesNoOverlay(t *testing.T) {
	_, overlay, cleanup := setupBaseline(t)
	defer cleanup()

	_, err := Materialize("/does/not/exist", overlay)

	var fsErr *livetypes.FilesystemError
	assert.Assert(t, errors.As(err, &fsErr))

	_, err = os.Stat(overlay)
	assert.Assert(t, os.IsNotExist(err))
}

func TestRestorePath(t *testing.T) {
	baseline, overlay, cleanup := setupBaseline(t)
	defer cleanup()

	_, err := Materialize(baseline, overlay)
	assert.Ok(t, err)

	// simulate applied diffs
	assert.Ok(t, ioutil.WriteFile(filepath.Join(overlay, "src/app.php"), []byte("<?php echo 'v1';"), 0644))
	assert.Ok(t, os.Remove(filepath.Join(overlay, "public/app.php")))
	assert.Ok(t, ioutil.WriteFile(filepath.Join(overlay, "public/app.php"), []byte("no longer a symlink"), 0644))
	assert.Ok(t, os.MkdirAll(filepath.Join(overlay, "src/NewFeature/Deep"), 0755))
	assert.Ok(t, ioutil.WriteFile(filepath.Join(overlay, "src/NewFeature/Deep/Thing.php"), []byte("new"), 0644))

	assert.Ok(t, RestorePath(baseline, overlay, "src/app.php"))
	assert.Ok(t, RestorePath(baseline, overlay, "public/app.php"))
	assert.Ok(t, RestorePath(baseline, overlay, "src/NewFeature/Deep/Thing.php"))

	// everything back to baseline, including removal of the dirs that only the diff created
	assert.EqualString(t, dumpTree(t, overlay), dumpTree(t, baseline))
}

func TestRestorePathKeepsBaselineDirs(t *testing.T) {
	baseline, overlay, cleanup := setupBaseline(t)
	defer cleanup()

	_, err := Materialize(baseline, overlay)
	assert.Ok(t, err)

	assert.Ok(t, ioutil.WriteFile(filepath.Join(overlay, "storage/cache.txt"), []byte("new"), 0644))

	assert.Ok(t, RestorePath(baseline, overlay, "storage/cache.txt"))

	// empty in baseline too, so must remain
	info, err := os.Stat(filepath.Join(overlay, "storage"))
	assert.Ok(t, err)
	assert.Assert(t, info.IsDir())
}

func TestRestorePathOfFileThatBecameDirectory(t *testing.T) {
	baseline, overlay, cleanup := setupBaseline(t)
	defer cleanup()

	_, err := Materialize(baseline, overlay)
	assert.Ok(t, err)

	// a diff carried "index.php/x.php"
	assert.Ok(t, os.Remove(filepath.Join(overlay, "index.php")))
	writeFile(t, filepath.Join(overlay, "index.php/x.php"), "nested", 0644)

	assert.Ok(t, RestorePath(baseline, overlay, "index.php/x.php"))
	assert.EqualString(t, dumpTree(t, overlay), dumpTree(t, baseline))

	// already restored (e.g. re-run after a crash) => no-op
	assert.Ok(t, RestorePath(baseline, overlay, "index.php/x.php"))
	assert.EqualString(t, dumpTree(t, overlay), dumpTree(t, baseline))
}

func TestRestorePathRejectsEscapes(t *testing.T) {
	for _, relativePath := range []string{"../etc/passwd", "/etc/passwd", ".", ""} {
		err := RestorePath("/var/task", "/tmp/.liveedit", relativePath)
		assert.Assert(t, errors.Is(err, livetypes.ErrPathEscapesRoot))
	}
}

func setupBaseline(t *testing.T) (string, string, func()) {
	t.Helper()

	root, err := ioutil.TempDir("", "liveoverlay")
	assert.Ok(t, err)

	baseline := filepath.Join(root, "task")

	writeFile(t, filepath.Join(baseline, "index.php"), "<?php require 'src/app.php';", 0644)
	writeFile(t, filepath.Join(baseline, "src/app.php"), "<?php echo 'base';", 0644)
	writeFile(t, filepath.Join(baseline, "bin/console"), "#!/usr/bin/env php", 0755)
	assert.Ok(t, os.MkdirAll(filepath.Join(baseline, "storage"), 0755))
	assert.Ok(t, os.MkdirAll(filepath.Join(baseline, "public"), 0755))
	assert.Ok(t, os.MkdirAll(filepath.Join(baseline, "var"), 0755))
	assert.Ok(t, os.Symlink("../index.php", filepath.Join(baseline, "public/app.php")))
	assert.Ok(t, os.Symlink("/opt/vendor", filepath.Join(baseline, "vendor")))
	assert.Ok(t, os.Symlink("/does/not/exist", filepath.Join(baseline, "var/dangling")))

	return baseline, filepath.Join(root, "overlay"), func() {
		os.RemoveAll(root)
	}
}

// one line per entry, so trees can be compared as strings
func dumpTree(t *testing.T, root string) string {
	t.Helper()

	lines := []string{}

	assert.Ok(t, filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			lines = append(lines, fmt.Sprintf("%s symlink -> %s", rel, target))
		case info.IsDir():
			lines = append(lines, rel+"/ dir")
		default:
			content, err := ioutil.ReadFile(path)
			if err != nil {
				return err
			}
			lines = append(lines, fmt.Sprintf("%s file %04o %q", rel, info.Mode().Perm(), content))
		}

		return nil
	}))

	sort.Strings(lines)

	return strings.Join(lines, "\n") + "\n"
}

func writeFile(t *testing.T, path string, content string, perm os.FileMode) {
	t.Helper()

	assert.Ok(t, os.MkdirAll(filepath.Dir(path), 0755))
	assert.Ok(t, ioutil.WriteFile(path, []byte(content), perm))
	assert.Ok(t, os.Chmod(path, perm))
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	content, err := ioutil.ReadFile(path)
	assert.Ok(t, err)
	return string(content)
}
