// Decides whether an invocation runs the baseline entry point or its overlay
// counterpart. Exactly one of them may run, and the overlay wins when active.
package liveredirect

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/function61/liveedit/pkg/livetypes"
)

const (
	reasonDisabled    = "disabled"
	reasonNotPlatform = "not on Lambda"
	reasonReentry     = "already in overlay"
)

var ErrOutsideBaseline = errors.New("entry point is not inside baseline root")

type Config struct {
	Enabled      bool
	BaselineRoot string // empty when not running on the platform
	OverlayRoot  string
}

type Redirector struct {
	conf Config
}

func New(conf Config) *Redirector {
	return &Redirector{conf}
}

// guards that must hold before any materialization or synchronization work is done.
// when not active, the subsystem behaves as if it did not exist.
func (r *Redirector) PreCheck(entryPoint string) (livetypes.Decision, bool) {
	switch {
	case !r.conf.Enabled:
		return livetypes.DecideBaseline(reasonDisabled), false
	case r.conf.BaselineRoot == "":
		return livetypes.DecideBaseline(reasonNotPlatform), false
	case isWithin(r.conf.OverlayRoot, absolute(entryPoint)):
		// we were exec'd into the overlay by ourselves. recursing would never end.
		return livetypes.DecideBaseline(reasonReentry), false
	default:
		return livetypes.Decision{}, true
	}
}

// maps baseline entry point to its overlay equivalent. call after a successful sync.
func (r *Redirector) Resolve(entryPoint string) (livetypes.Decision, error) {
	if decision, active := r.PreCheck(entryPoint); !active {
		return decision, nil
	}

	cleaned := absolute(entryPoint)

	if !isWithin(r.conf.BaselineRoot, cleaned) {
		return livetypes.Decision{}, fmt.Errorf("%w: %s", ErrOutsideBaseline, entryPoint)
	}

	relative, err := filepath.Rel(filepath.Clean(r.conf.BaselineRoot), cleaned)
	if err != nil {
		return livetypes.Decision{}, err
	}

	return livetypes.DecideOverlay(filepath.Join(r.conf.OverlayRoot, relative)), nil
}

// relative entry points are relative to the working directory, which on Lambda
// is the task root
func absolute(entryPoint string) string {
	abs, err := filepath.Abs(entryPoint)
	if err != nil { // only if cwd is gone
		return filepath.Clean(entryPoint)
	}

	return abs
}

// isWithin("/tmp/.liveedit", "/tmp/.liveedit-diff.zip") is false, unlike with a
// plain prefix check
func isWithin(root string, path string) bool {
	root = filepath.Clean(root)

	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}
