// Materializes a writable mirror (the overlay) of the read-only deployed package
// (the baseline), and restores single paths of the overlay back to baseline.
package liveoverlay

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/function61/gokit/fileexists"
	"github.com/function61/liveedit/pkg/livetypes"
)

const (
	stagingSuffix = ".tmp"
)

// clones baselineRoot into overlayRoot, unless overlayRoot already exists (=> no-op,
// created=false). at most once per sandbox lifetime thus comes for free, since the
// overlay lives as long as the sandbox does.
//
// the clone is built in a staging dir and renamed into place, so a crash mid-copy
// never leaves behind a partial tree that would look materialized.
func Materialize(baselineRoot string, overlayRoot string) (bool, error) {
	exists, err := fileexists.Exists(overlayRoot)
	if err != nil {
		return false, livetypes.NewFilesystemError("stat", overlayRoot, err)
	}

	if exists {
		return false, nil
	}

	staging := overlayRoot + stagingSuffix

	// leftover from a previous crash
	if err := os.RemoveAll(staging); err != nil {
		return false, livetypes.NewFilesystemError("remove stale staging", staging, err)
	}

	if err := os.MkdirAll(filepath.Dir(overlayRoot), 0755); err != nil {
		return false, livetypes.NewFilesystemError("mkdir", filepath.Dir(overlayRoot), err)
	}

	if err := copyTree(baselineRoot, staging); err != nil {
		ignoreError(os.RemoveAll(staging))
		return false, err
	}

	if err := os.Rename(staging, overlayRoot); err != nil {
		ignoreError(os.RemoveAll(staging))
		return false, livetypes.NewFilesystemError("rename staging", overlayRoot, err)
	}

	return true, nil
}

// makes relativePath in the overlay equal to what it is in the baseline. if the
// path doesn't exist in the baseline (a file that only ever existed in a diff),
// it is removed from the overlay along with parent dirs that thereby became empty
// and are not part of the baseline.
func RestorePath(baselineRoot string, overlayRoot string, relativePath string) error {
	cleaned, err := CleanRelativePath(relativePath)
	if err != nil {
		return err
	}

	source := filepath.Join(baselineRoot, filepath.FromSlash(cleaned))
	destination := filepath.Join(overlayRoot, filepath.FromSlash(cleaned))

	if err := os.RemoveAll(destination); err != nil && !isNotExist(err) {
		return livetypes.NewFilesystemError("remove", destination, err)
	}

	if _, err := os.Lstat(source); err != nil {
		if isNotExist(err) {
			return pruneEmptyParents(baselineRoot, overlayRoot, cleaned)
		}

		return livetypes.NewFilesystemError("stat", source, err)
	}

	if err := os.MkdirAll(filepath.Dir(destination), 0755); err != nil {
		return livetypes.NewFilesystemError("mkdir", filepath.Dir(destination), err)
	}

	return copyTree(source, destination)
}

// slash-separated, relative and not escaping the root
func CleanRelativePath(relativePath string) (string, error) {
	cleaned := path.Clean(strings.Replace(relativePath, `\`, "/", -1))

	if cleaned == "." || path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", livetypes.ErrPathEscapesRoot, relativePath)
	}

	return cleaned, nil
}

func pruneEmptyParents(baselineRoot string, overlayRoot string, cleaned string) error {
	for dir := path.Dir(cleaned); dir != "."; dir = path.Dir(dir) {
		baselineDir := filepath.Join(baselineRoot, filepath.FromSlash(dir))
		overlayDir := filepath.Join(overlayRoot, filepath.FromSlash(dir))

		if baselineInfo, err := os.Lstat(baselineDir); err == nil {
			if baselineInfo.IsDir() {
				return nil // part of the baseline => must stay
			}

			// a diff turned a baseline file into a directory. once emptied, the file comes back.
			return restoreShadowedFile(baselineDir, overlayDir)
		}

		entries, err := os.ReadDir(overlayDir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return livetypes.NewFilesystemError("readdir", overlayDir, err)
		}

		if len(entries) > 0 {
			return nil
		}

		if err := os.Remove(overlayDir); err != nil {
			return livetypes.NewFilesystemError("remove", overlayDir, err)
		}
	}

	return nil
}

func restoreShadowedFile(baselinePath string, overlayDir string) error {
	existing, err := os.Lstat(overlayDir)
	switch {
	case err != nil && os.IsNotExist(err):
		return copyTree(baselinePath, overlayDir)
	case err != nil:
		return livetypes.NewFilesystemError("stat", overlayDir, err)
	case !existing.IsDir():
		return nil // already the file
	}

	entries, err := os.ReadDir(overlayDir)
	if err != nil {
		return livetypes.NewFilesystemError("readdir", overlayDir, err)
	}

	if len(entries) > 0 {
		return nil
	}

	if err := os.Remove(overlayDir); err != nil {
		return livetypes.NewFilesystemError("remove", overlayDir, err)
	}

	return copyTree(baselinePath, overlayDir)
}

// "a/b.txt" when "a" is a file is ENOTDIR, which means the same as not existing
func isNotExist(err error) bool {
	return os.IsNotExist(err) || errors.Is(err, syscall.ENOTDIR)
}

func ignoreError(err error) {
	// no-op
}
