// Local sentinel state of one sandbox: the version token of the last applied diff
// and the set of paths it overlaid. Backends are swappable so tests can use memory.
package livestate

import (
	"sort"
	"strings"

	"github.com/function61/liveedit/pkg/livetypes"
)

type Store interface {
	// found=false (without error) if key was never written
	Get(key string) (value []byte, found bool, err error)
	Put(key string, value []byte) error
}

var (
	cfgVersionToken  = accessor("version-token")
	cfgModifiedPaths = accessor("modified-paths")
)

type accessor string

func (a accessor) get(store Store) (string, error) {
	value, _, err := store.Get(string(a))
	return string(value), err
}

func (a accessor) set(value string, store Store) error {
	return store.Put(string(a), []byte(value))
}

// NoVersionToken if nothing has been applied yet
func VersionToken(store Store) (livetypes.VersionToken, error) {
	token, err := cfgVersionToken.get(store)
	return livetypes.VersionToken(strings.TrimSpace(token)), err
}

func SetVersionToken(token livetypes.VersionToken, store Store) error {
	return cfgVersionToken.set(string(token), store)
}

// sorted. empty (not nil) if nothing is overlaid.
func ModifiedPaths(store Store) ([]string, error) {
	serialized, err := cfgModifiedPaths.get(store)
	if err != nil {
		return nil, err
	}

	paths := []string{}
	for _, line := range strings.Split(serialized, "\n") {
		if line != "" {
			paths = append(paths, line)
		}
	}

	sort.Strings(paths)

	return paths, nil
}

// stored newline-delimited
func SetModifiedPaths(paths []string, store Store) error {
	sorted := append([]string{}, paths...)
	sort.Strings(sorted)

	serialized := strings.Join(sorted, "\n")
	if len(sorted) > 0 {
		serialized += "\n"
	}

	return cfgModifiedPaths.set(serialized, store)
}
