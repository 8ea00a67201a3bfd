// Types shared between the runtime side and the publishing side of liveedit
package livetypes

import (
	"fmt"
	"time"
)

const (
	NoVersionToken VersionToken = ""

	diffKeySuffix = ".diff"
)

// opaque content version identifier issued by the remote store (S3 ETag etc.)
type VersionToken string

// one mutable object per deployed function: "{region}/{function}.diff"
func RemoteKey(region string, functionName string) string {
	return fmt.Sprintf("%s/%s%s", region, functionName, diffKeySuffix)
}

type FetchOutcome int

const (
	FetchNotFound FetchOutcome = iota // nothing published yet
	FetchNotModified
	FetchApplied
)

func (f FetchOutcome) String() string {
	switch f {
	case FetchNotFound:
		return "not-found"
	case FetchNotModified:
		return "not-modified"
	case FetchApplied:
		return "applied"
	default:
		return fmt.Sprintf("FetchOutcome(%d)", int(f))
	}
}

type SyncResult struct {
	Outcome   FetchOutcome
	Token     VersionToken // token in effect after the sync
	Restored  []string     // reverted to baseline, only when Applied
	Extracted []string     // written from the archive, only when Applied
	Duration  time.Duration
}

type DecisionKind int

const (
	RunBaseline DecisionKind = iota
	RunOverlay
)

// which code path the invocation driver must run. exactly one, never both.
type Decision struct {
	Kind DecisionKind
	Path string // set for RunOverlay
	// for diagnostics when Kind == RunBaseline
	Reason string
}

func DecideBaseline(reason string) Decision {
	return Decision{Kind: RunBaseline, Reason: reason}
}

func DecideOverlay(path string) Decision {
	return Decision{Kind: RunOverlay, Path: path}
}

func (d Decision) String() string {
	if d.Kind == RunOverlay {
		return "overlay:" + d.Path
	}

	return "baseline (" + d.Reason + ")"
}
