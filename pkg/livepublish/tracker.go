package livepublish

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

type Change struct {
	Path string // relative to project root, slash-separated
	Kind ChangeKind
}

// computes, from scratch each time, how the project differs from the reference
// point (= what is deployed)
type ChangeTracker interface {
	Changes(ctx context.Context) ([]Change, error)
}

// the diff transport can express "has this content" but not "deleted", so deleted
// paths cannot be published
func PublishablePaths(changes []Change) []string {
	paths := []string{}
	for _, change := range changes {
		if change.Kind != ChangeDeleted {
			paths = append(paths, change.Path)
		}
	}

	sort.Strings(paths)

	return paths
}

func sortChanges(changes []Change) {
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
}

// calls fn for each non-directory path under root that is not ignored
func walkProject(ctx context.Context, root string, ignore *IgnoreSet, fn func(relativePath string, fileInfo os.FileInfo) error) error {
	return filepath.Walk(root, func(path string, fileInfo os.FileInfo, err error) error {
		if err != nil {
			return err // stop if encountering Walk() errors
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if path == root {
			return nil
		}

		relativePath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relativePath = backslashesToForwardSlashes(relativePath)

		if fileInfo.IsDir() {
			if ignore.IgnoredDir(relativePath) {
				return filepath.SkipDir
			}

			return nil
		}

		if ignore.Ignored(relativePath) {
			return nil
		}

		return fn(relativePath, fileInfo)
	})
}

func backslashesToForwardSlashes(in string) string {
	return strings.ReplaceAll(in, `\`, "/")
}
