// Interface for writing remote store adapters for liveedit diff archives
package livestore

import (
	"context"
	"io"

	"github.com/function61/liveedit/pkg/livetypes"
)

type Store interface {
	// overwrites the object at key. returns the version token of what was written.
	Put(ctx context.Context, key string, content io.Reader) (livetypes.VersionToken, error)

	// conditional get. the mapping must be exact:
	// - object missing                        => FetchNotFound (regardless of ifNoneMatch)
	// - ifNoneMatch matches current version   => FetchNotModified, no body transferred
	// - otherwise                             => FetchApplied with body and current token
	// ifNoneMatch == NoVersionToken means unconditional.
	// anything else going wrong must be a *livetypes.TransportError.
	Get(ctx context.Context, key string, ifNoneMatch livetypes.VersionToken) (*FetchResult, error)
}

type FetchResult struct {
	Outcome livetypes.FetchOutcome
	Body    io.ReadCloser // only for FetchApplied, caller closes
	Token   livetypes.VersionToken
}

func NotFound() *FetchResult {
	return &FetchResult{Outcome: livetypes.FetchNotFound}
}

func NotModified(token livetypes.VersionToken) *FetchResult {
	return &FetchResult{Outcome: livetypes.FetchNotModified, Token: token}
}

func Applied(body io.ReadCloser, token livetypes.VersionToken) *FetchResult {
	return &FetchResult{Outcome: livetypes.FetchApplied, Body: body, Token: token}
}
