package livepublish

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// reference point is git HEAD: useful when deploys are always made from a clean
// worktree
type GitTracker struct {
	root   string
	ignore *IgnoreSet
}

var _ ChangeTracker = (*GitTracker)(nil)

func NewGitTracker(root string, ignore *IgnoreSet) *GitTracker {
	return &GitTracker{root, ignore}
}

func (g *GitTracker) Changes(ctx context.Context) ([]Change, error) {
	repo, err := git.PlainOpenWithOptions(g.root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("git: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("git: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("git status: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// project root can be a subdirectory of the repo
	projectPrefix, err := filepath.Rel(worktree.Filesystem.Root(), g.root)
	if err != nil {
		return nil, err
	}
	projectPrefix = backslashesToForwardSlashes(projectPrefix)

	changes := []Change{}

	for repoPath, fileStatus := range status {
		relativePath, inProject := relativeToProject(repoPath, projectPrefix)
		if !inProject || g.ignore.Ignored(relativePath) {
			continue
		}

		kind, changed := changeKindFromGit(fileStatus)
		if !changed {
			continue
		}

		changes = append(changes, Change{Path: relativePath, Kind: kind})
	}

	sortChanges(changes)

	return changes, nil
}

func relativeToProject(repoPath string, projectPrefix string) (string, bool) {
	if projectPrefix == "." {
		return repoPath, true
	}

	if !strings.HasPrefix(repoPath, projectPrefix+"/") {
		return "", false
	}

	return strings.TrimPrefix(repoPath, projectPrefix+"/"), true
}

// worktree status wins over staging status: an unstaged edit on top of a staged
// add still is content that differs from HEAD
func changeKindFromGit(fileStatus *git.FileStatus) (ChangeKind, bool) {
	code := fileStatus.Worktree
	if code == git.Unmodified {
		code = fileStatus.Staging
	}

	switch code {
	case git.Untracked, git.Added, git.Copied, git.Renamed:
		return ChangeCreated, true
	case git.Modified, git.UpdatedButUnmerged:
		return ChangeUpdated, true
	case git.Deleted:
		return ChangeDeleted, true
	default:
		return "", false
	}
}
