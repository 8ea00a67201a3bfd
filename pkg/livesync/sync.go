// Per-invocation synchronization of the overlay with the remotely published diff:
// conditional fetch, reconciliation of reverted paths, then extraction.
package livesync

import (
	"context"
	"io"
	"log"
	"os"
	"time"

	"github.com/function61/gokit/atomicfilewrite"
	"github.com/function61/gokit/logex"
	"github.com/function61/liveedit/pkg/livearchive"
	"github.com/function61/liveedit/pkg/liveoverlay"
	"github.com/function61/liveedit/pkg/livestate"
	"github.com/function61/liveedit/pkg/livestore"
	"github.com/function61/liveedit/pkg/livetypes"
	"github.com/samber/lo"
)

const (
	DefaultFetchTimeout = 10 * time.Second
)

type Config struct {
	BaselineRoot string
	OverlayRoot  string
	Key          string // see livetypes.RemoteKey()
	StagingFile  string // where a fetched archive is written before it's opened
	FetchTimeout time.Duration
}

type Synchronizer struct {
	conf    Config
	store   livestore.Store
	state   livestate.Store
	metrics *Metrics
	logl    *logex.Leveled
}

func New(
	conf Config,
	store livestore.Store,
	state livestate.Store,
	metrics *Metrics,
	logger *log.Logger,
) *Synchronizer {
	if conf.FetchTimeout == 0 {
		conf.FetchTimeout = DefaultFetchTimeout
	}

	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Synchronizer{
		conf:    conf,
		store:   store,
		state:   state,
		metrics: metrics,
		logl:    logex.Levels(logex.NonNil(logger)),
	}
}

// runs on every invocation (not just cold start), since a reused sandbox must see
// edits made between invocations. any error is fatal: we'd rather fail the
// invocation than run on an overlay whose consistency we can't vouch for.
func (s *Synchronizer) Sync(ctx context.Context) (*livetypes.SyncResult, error) {
	started := time.Now()

	result, err := s.sync(ctx)

	duration := time.Since(started)
	s.metrics.duration.Observe(duration.Seconds())

	if err != nil {
		s.metrics.syncs.WithLabelValues(outcomeError).Inc()
		return nil, err
	}

	result.Duration = duration

	s.metrics.syncs.WithLabelValues(result.Outcome.String()).Inc()
	s.metrics.restored.Add(float64(len(result.Restored)))
	s.metrics.extracted.Add(float64(len(result.Extracted)))

	switch result.Outcome {
	case livetypes.FetchNotFound:
		s.logl.Info.Println("No changes to apply")
	case livetypes.FetchNotModified:
		s.logl.Info.Println("Up to date")
	case livetypes.FetchApplied:
		s.logl.Info.Printf(
			"Synchronized live code in %d ms (%d written, %d reverted)",
			duration.Milliseconds(),
			len(result.Extracted),
			len(result.Restored))
	}

	return result, nil
}

func (s *Synchronizer) sync(ctx context.Context) (*livetypes.SyncResult, error) {
	previousToken, err := livestate.VersionToken(s.state)
	if err != nil {
		return nil, livetypes.NewFilesystemError("read state", "version-token", err)
	}

	// a hung fetch would block every invocation routed to this sandbox
	fetchCtx, cancel := context.WithTimeout(ctx, s.conf.FetchTimeout)
	defer cancel()

	res, err := s.store.Get(fetchCtx, s.conf.Key, previousToken)
	if err != nil {
		return nil, err
	}

	switch res.Outcome {
	case livetypes.FetchNotFound:
		return &livetypes.SyncResult{Outcome: livetypes.FetchNotFound, Token: previousToken}, nil
	case livetypes.FetchNotModified:
		return &livetypes.SyncResult{Outcome: livetypes.FetchNotModified, Token: previousToken}, nil
	}

	// body is streamed within fetchCtx, so staging also is bounded by the timeout
	err = s.stage(res.Body)
	ignoreError(res.Body.Close())
	if err != nil {
		return nil, err
	}

	restored, extracted, err := s.apply(res.Token)
	if err != nil {
		return nil, err
	}

	return &livetypes.SyncResult{
		Outcome:   livetypes.FetchApplied,
		Token:     res.Token,
		Restored:  restored,
		Extracted: extracted,
	}, nil
}

// reconciliation strictly precedes extraction, so a path that is both in the old
// and the new set is never restored after having been overwritten.
func (s *Synchronizer) apply(token livetypes.VersionToken) ([]string, []string, error) {
	archive, err := livearchive.Open(s.conf.StagingFile)
	if err != nil {
		return nil, nil, err
	}
	defer archive.Close()

	newPaths := archive.Paths()

	oldPaths, err := livestate.ModifiedPaths(s.state)
	if err != nil {
		return nil, nil, livetypes.NewFilesystemError("read state", "modified-paths", err)
	}

	// if we crash midway, the next attempt (token is not yet updated => refetch)
	// still knows about every path this apply might have touched
	if err := livestate.SetModifiedPaths(lo.Uniq(append(append([]string{}, oldPaths...), newPaths...)), s.state); err != nil {
		return nil, nil, livetypes.NewFilesystemError("write state", "modified-paths", err)
	}

	toRestore, _ := lo.Difference(oldPaths, newPaths)

	for _, path := range toRestore {
		s.logl.Debug.Printf("reverting %s", path)

		if err := liveoverlay.RestorePath(s.conf.BaselineRoot, s.conf.OverlayRoot, path); err != nil {
			return nil, nil, err
		}
	}

	extracted, err := archive.ExtractTo(s.conf.OverlayRoot)
	if err != nil {
		return nil, nil, err
	}

	if err := livestate.SetModifiedPaths(newPaths, s.state); err != nil {
		return nil, nil, livetypes.NewFilesystemError("write state", "modified-paths", err)
	}

	// last, so that a failed apply gets retried by the next invocation
	if err := livestate.SetVersionToken(token, s.state); err != nil {
		return nil, nil, livetypes.NewFilesystemError("write state", "version-token", err)
	}

	ignoreError(os.Remove(s.conf.StagingFile))

	return toRestore, extracted, nil
}

func (s *Synchronizer) stage(body io.Reader) error {
	recorder := livetypes.NewReadErrorRecorder(body)

	if err := atomicfilewrite.Write(s.conf.StagingFile, func(writer io.Writer) error {
		_, err := io.Copy(writer, recorder)
		return err
	}); err != nil {
		if recorder.Err != nil {
			return &livetypes.TransportError{Op: "download", Key: s.conf.Key, Err: recorder.Err}
		}

		return livetypes.NewFilesystemError("stage", s.conf.StagingFile, err)
	}

	return nil
}

func ignoreError(err error) {
	// no-op
}
