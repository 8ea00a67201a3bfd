// The DiffArchive transport format: a zip whose entry names are paths relative to
// the package root. It can express "this path has this content", never "deleted".
package livearchive

import (
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/function61/gokit/atomicfilewrite"
	"github.com/function61/liveedit/pkg/livetypes"
	"github.com/klauspost/compress/zip"
)

const (
	defaultFileMode = 0644
)

type Archive struct {
	zr      *zip.ReadCloser
	entries []entry
}

type entry struct {
	file *zip.File
	path string // cleaned, slash-separated, relative
	dir  bool
}

// validates every entry name up front, so extraction never starts on an archive
// that would fail halfway for a naming reason
func Open(filename string) (*Archive, error) {
	zr, err := zip.OpenReader(filename)
	if err != nil {
		return nil, &livetypes.ArchiveError{Err: err}
	}

	entries := []entry{}
	for _, file := range zr.File {
		cleaned, isDir, err := cleanEntryName(file.Name)
		if err != nil {
			ignoreError(zr.Close())
			return nil, &livetypes.ArchiveError{Entry: file.Name, Err: err}
		}

		entries = append(entries, entry{
			file: file,
			path: cleaned,
			dir:  isDir || file.FileInfo().IsDir(),
		})
	}

	return &Archive{zr: zr, entries: entries}, nil
}

func (a *Archive) Close() error {
	return a.zr.Close()
}

// paths of non-directory entries, sorted. this is what gets recorded as the
// modified path set.
func (a *Archive) Paths() []string {
	paths := []string{}
	for _, e := range a.entries {
		if !e.dir {
			paths = append(paths, e.path)
		}
	}

	sort.Strings(paths)

	return paths
}

// writes every entry into root, overwriting whatever is at those paths.
// returns the paths of the non-directory entries written.
func (a *Archive) ExtractTo(root string) ([]string, error) {
	written := []string{}

	for _, e := range a.entries {
		destination := filepath.Join(root, filepath.FromSlash(e.path))

		if err := clearParents(root, e.path); err != nil {
			return written, err
		}

		if e.dir {
			if err := ensureDirectory(destination); err != nil {
				return written, err
			}
			continue
		}

		if err := extractOne(e, destination); err != nil {
			return written, err
		}

		written = append(written, e.path)
	}

	return written, nil
}

func extractOne(e entry, destination string) error {
	if err := os.MkdirAll(filepath.Dir(destination), 0755); err != nil {
		return livetypes.NewFilesystemError("mkdir", filepath.Dir(destination), err)
	}

	mode := e.file.Mode()
	isSymlink := mode&os.ModeSymlink != 0

	// whatever is in the way gets replaced. the atomic rename can only replace a
	// regular file with a regular file, and os.Symlink can't replace anything.
	if existing, err := os.Lstat(destination); err == nil && (isSymlink || !existing.Mode().IsRegular()) {
		if err := os.RemoveAll(destination); err != nil {
			return livetypes.NewFilesystemError("remove", destination, err)
		}
	}

	content, err := e.file.Open()
	if err != nil {
		return &livetypes.ArchiveError{Entry: e.path, Err: err}
	}
	defer content.Close()

	if isSymlink {
		target, err := ioutil.ReadAll(content)
		if err != nil {
			return &livetypes.ArchiveError{Entry: e.path, Err: err}
		}

		if err := os.Symlink(string(target), destination); err != nil {
			return livetypes.NewFilesystemError("symlink", destination, err)
		}

		return nil
	}

	recorder := livetypes.NewReadErrorRecorder(content)

	if err := atomicfilewrite.Write(destination, func(writer io.Writer) error {
		_, err := io.Copy(writer, recorder)
		return err
	}); err != nil {
		// zip checksum failures surface as read errors
		if recorder.Err != nil {
			return &livetypes.ArchiveError{Entry: e.path, Err: recorder.Err}
		}

		return livetypes.NewFilesystemError("write", destination, err)
	}

	perm := mode.Perm()
	if perm == 0 { // archivers that don't record unix modes
		perm = defaultFileMode
	}

	return livetypes.NewFilesystemError("chmod", destination, os.Chmod(destination, perm))
}

func ensureDirectory(destination string) error {
	if existing, err := os.Lstat(destination); err == nil && !existing.IsDir() {
		if err := os.Remove(destination); err != nil {
			return livetypes.NewFilesystemError("remove", destination, err)
		}
	}

	return livetypes.NewFilesystemError("mkdir", destination, os.MkdirAll(destination, 0755))
}

// "a" being a file (or a symlink) while the archive has "a/b.txt" means the
// developer turned the file into a directory. walks "a", "a/b" ... but never the
// entry itself.
func clearParents(root string, entryPath string) error {
	components := strings.Split(entryPath, "/")

	current := root
	for _, component := range components[:len(components)-1] {
		current = filepath.Join(current, component)

		existing, err := os.Lstat(current)
		if err != nil {
			if os.IsNotExist(err) {
				return nil // nothing deeper can exist either
			}

			return livetypes.NewFilesystemError("stat", current, err)
		}

		if !existing.IsDir() {
			if err := os.Remove(current); err != nil {
				return livetypes.NewFilesystemError("remove", current, err)
			}

			return nil
		}
	}

	return nil
}

// "src/./a.php" => "src/a.php". rejects absolute paths and "../" escapes.
func cleanEntryName(name string) (string, bool, error) {
	normalized := strings.Replace(name, `\`, "/", -1)
	isDir := strings.HasSuffix(normalized, "/")

	if strings.HasPrefix(normalized, "/") || filepath.IsAbs(name) {
		return "", false, fmt.Errorf("%w: absolute path", livetypes.ErrPathEscapesRoot)
	}

	cleaned := path.Clean(normalized)

	if cleaned == "." || cleaned == "" {
		return "", false, errors.New("empty entry name")
	}

	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false, livetypes.ErrPathEscapesRoot
	}

	return cleaned, isDir, nil
}

func ignoreError(err error) {
	// no-op
}
