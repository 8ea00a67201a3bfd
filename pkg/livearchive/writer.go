package livearchive

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
)

// packs exactly the given paths (relative to root, slash-separated) into w.
// zero paths is valid and yields an empty archive, which means "everything reverted".
func Build(root string, paths []string, w io.Writer) error {
	sorted := append([]string{}, paths...)
	sort.Strings(sorted)

	zw := zip.NewWriter(w)

	for _, relativePath := range sorted {
		if err := addOne(zw, root, relativePath); err != nil {
			return err
		}
	}

	return zw.Close()
}

func addOne(zw *zip.Writer, root string, relativePath string) error {
	absolutePath := filepath.Join(root, filepath.FromSlash(relativePath))

	fileInfo, err := os.Lstat(absolutePath)
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(fileInfo)
	if err != nil {
		return err
	}
	header.Name = relativePath

	switch {
	case fileInfo.IsDir():
		header.Name = strings.TrimSuffix(relativePath, "/") + "/"
		header.Method = zip.Store

		_, err := zw.CreateHeader(header)
		return err
	case fileInfo.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(absolutePath)
		if err != nil {
			return err
		}

		header.Method = zip.Store

		entryWriter, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}

		_, err = io.WriteString(entryWriter, target)
		return err
	default:
		header.Method = zip.Deflate

		entryWriter, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}

		file, err := os.Open(absolutePath)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(entryWriter, file)
		return err
	}
}
