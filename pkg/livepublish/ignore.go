package livepublish

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// never part of a diff: version control, deployment metadata and our own files
var defaultIgnores = []string{
	".git",
	".git/**",
	".serverless",
	".serverless/**",
	"serverless.yml",
	".liveedit*",
}

// matches slash-separated paths relative to project root. "*" does not cross
// directories, "**" does.
type IgnoreSet struct {
	patterns []string
	globs    []glob.Glob
}

func NewIgnoreSet(extra []string) (*IgnoreSet, error) {
	patterns := append(append([]string{}, defaultIgnores...), extra...)

	globs := []glob.Glob{}
	for _, pattern := range patterns {
		g, err := glob.Compile(strings.TrimPrefix(pattern, "/"), '/')
		if err != nil {
			return nil, fmt.Errorf("ignore pattern %s: %w", pattern, err)
		}

		globs = append(globs, g)
	}

	return &IgnoreSet{patterns, globs}, nil
}

func (i *IgnoreSet) Ignored(relativePath string) bool {
	for _, g := range i.globs {
		if g.Match(relativePath) {
			return true
		}
	}

	return false
}

// a directory is skipped wholesale if it or everything inside it is ignored
func (i *IgnoreSet) IgnoredDir(relativePath string) bool {
	return i.Ignored(relativePath) || i.Ignored(relativePath+"/")
}

func (i *IgnoreSet) Patterns() []string {
	return i.patterns
}
