package liveoverlay

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/function61/liveedit/pkg/livetypes"
)

// recursive copy that never dereferences symlinks: a symlink is recreated with the
// same target (even if dangling), regular files are copied byte-for-byte with their
// permission bits and directories (empty ones too) are recreated.
func copyTree(source string, destination string) error {
	fileInfo, err := os.Lstat(source)
	if err != nil {
		return livetypes.NewFilesystemError("stat", source, err)
	}

	mode := fileInfo.Mode()

	switch {
	case mode&os.ModeSymlink != 0:
		target, err := os.Readlink(source)
		if err != nil {
			return livetypes.NewFilesystemError("readlink", source, err)
		}

		return livetypes.NewFilesystemError("symlink", destination, os.Symlink(target, destination))
	case mode.IsRegular():
		return copyFile(source, destination, mode.Perm())
	case mode.IsDir():
		// owner needs write access even if the baseline dir is read-only
		if err := os.Mkdir(destination, mode.Perm()|0700); err != nil && !os.IsExist(err) {
			return livetypes.NewFilesystemError("mkdir", destination, err)
		}

		entries, err := os.ReadDir(source)
		if err != nil {
			return livetypes.NewFilesystemError("readdir", source, err)
		}

		for _, entry := range entries {
			if err := copyTree(
				filepath.Join(source, entry.Name()),
				filepath.Join(destination, entry.Name()),
			); err != nil {
				return err
			}
		}

		return nil
	default:
		return livetypes.NewFilesystemError("copy", source, fmt.Errorf("unsupported file type %s", mode.Type()))
	}
}

func copyFile(source string, destination string, perm os.FileMode) error {
	sourceFile, err := os.Open(source)
	if err != nil {
		return livetypes.NewFilesystemError("open", source, err)
	}
	defer sourceFile.Close()

	destinationFile, err := os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return livetypes.NewFilesystemError("create", destination, err)
	}
	defer destinationFile.Close() // double close intentional

	if _, err := io.Copy(destinationFile, sourceFile); err != nil {
		return livetypes.NewFilesystemError("copy", destination, err)
	}

	return livetypes.NewFilesystemError("close", destination, destinationFile.Close())
}
