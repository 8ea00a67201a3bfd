package livepublish

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/function61/gokit/fileexists"
	"github.com/function61/gokit/jsonfile"
	"github.com/minio/sha256-simd"
)

const (
	ReferenceFilename = ".liveedit-reference.json"
)

var errReferenceMissing = errors.New("no reference snapshot. run \"liveedit snapshot\" right after deploying")

// state of the project at deploy time. written by "liveedit snapshot" right after
// deploying, and compared against to find changes.
type Reference struct {
	Created time.Time                 `json:"created"`
	Files   map[string]ReferenceEntry `json:"files"`
}

type ReferenceEntry struct {
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Sha256   string    `json:"sha256"`
}

type SnapshotTracker struct {
	root   string
	ignore *IgnoreSet
}

var _ ChangeTracker = (*SnapshotTracker)(nil)

func NewSnapshotTracker(root string, ignore *IgnoreSet) *SnapshotTracker {
	return &SnapshotTracker{root, ignore}
}

func (s *SnapshotTracker) referencePath() string {
	return filepath.Join(s.root, ReferenceFilename)
}

func (s *SnapshotTracker) TakeReference(ctx context.Context) (*Reference, error) {
	ref := &Reference{
		Created: time.Now().UTC(),
		Files:   map[string]ReferenceEntry{},
	}

	if err := walkProject(ctx, s.root, s.ignore, func(relativePath string, fileInfo os.FileInfo) error {
		entry, err := s.scan(relativePath, fileInfo)
		if err != nil {
			return err
		}

		ref.Files[relativePath] = *entry

		return nil
	}); err != nil {
		return nil, err
	}

	return ref, jsonfile.Write(s.referencePath(), ref)
}

func (s *SnapshotTracker) Changes(ctx context.Context) ([]Change, error) {
	refExists, err := fileexists.Exists(s.referencePath())
	if err != nil {
		return nil, err
	}

	if !refExists {
		return nil, errReferenceMissing
	}

	ref := &Reference{}
	if err := jsonfile.Read(s.referencePath(), ref, true); err != nil {
		return nil, err
	}

	// deleted during directory scan. what's left over is what are missing w.r.t. reference
	filesMissing := map[string]bool{}
	for path := range ref.Files {
		filesMissing[path] = true
	}

	changes := []Change{}

	if err := walkProject(ctx, s.root, s.ignore, func(relativePath string, fileInfo os.FileInfo) error {
		delete(filesMissing, relativePath)

		before, existedBefore := ref.Files[relativePath]
		if !existedBefore {
			changes = append(changes, Change{Path: relativePath, Kind: ChangeCreated})
			return nil
		}

		definitelyChanged := before.Size != fileInfo.Size()
		maybeChanged := !before.Modified.Equal(fileInfo.ModTime())

		if !definitelyChanged && !maybeChanged {
			return nil
		}

		now, err := s.scan(relativePath, fileInfo)
		if err != nil {
			return err
		}

		// touched but same content is not a change
		if now.Sha256 != before.Sha256 {
			changes = append(changes, Change{Path: relativePath, Kind: ChangeUpdated})
		}

		return nil
	}); err != nil {
		return nil, err
	}

	for missing := range filesMissing {
		changes = append(changes, Change{Path: missing, Kind: ChangeDeleted})
	}

	sortChanges(changes)

	return changes, nil
}

// symlinks are hashed by their target, since that's what gets published
func (s *SnapshotTracker) scan(relativePath string, fileInfo os.FileInfo) (*ReferenceEntry, error) {
	absolutePath := filepath.Join(s.root, filepath.FromSlash(relativePath))

	hash := sha256.New()

	if fileInfo.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(absolutePath)
		if err != nil {
			return nil, err
		}

		if _, err := io.Copy(hash, strings.NewReader(target)); err != nil {
			return nil, err
		}
	} else {
		file, err := os.Open(absolutePath)
		if err != nil {
			return nil, err
		}
		defer file.Close()

		if _, err := io.Copy(hash, file); err != nil {
			return nil, err
		}
	}

	return &ReferenceEntry{
		Size:     fileInfo.Size(),
		Modified: fileInfo.ModTime().UTC(),
		Sha256:   hex.EncodeToString(hash.Sum(nil)),
	}, nil
}
