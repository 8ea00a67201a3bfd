// Drives a single invocation: activation check, overlay materialization, diff
// synchronization and the decision of which entry point to run.
package liveruntime

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/function61/gokit/logex"
	"github.com/function61/liveedit/pkg/liveoverlay"
	"github.com/function61/liveedit/pkg/liveredirect"
	"github.com/function61/liveedit/pkg/livestate"
	"github.com/function61/liveedit/pkg/livestore"
	"github.com/function61/liveedit/pkg/livestore/storedriver"
	"github.com/function61/liveedit/pkg/livesync"
	"github.com/function61/liveedit/pkg/livetypes"
)

const (
	stagingFilename = ".liveedit-diff.zip"
	boltFilename    = ".liveedit-state.db"
)

// created at invocation start and discarded at its end. holds everything that
// would otherwise be process-wide state.
type Invocation struct {
	conf         Config
	redirector   *liveredirect.Redirector
	synchronizer *livesync.Synchronizer // nil when inactive
	closeState   func() error
	logl         *logex.Leveled
}

// store and state are injectable so tests can substitute fakes
func NewInvocation(
	conf Config,
	store livestore.Store,
	state livestate.Store,
	metrics *livesync.Metrics,
	logger *log.Logger,
) *Invocation {
	logger = logex.NonNil(logger)

	inv := &Invocation{
		conf: conf,
		redirector: liveredirect.New(liveredirect.Config{
			Enabled:      conf.Enabled,
			BaselineRoot: conf.TaskRoot,
			OverlayRoot:  conf.OverlayRoot,
		}),
		closeState: func() error { return nil },
		logl:       logex.Levels(logger),
	}

	if conf.Active() {
		inv.synchronizer = livesync.New(livesync.Config{
			BaselineRoot: conf.TaskRoot,
			OverlayRoot:  conf.OverlayRoot,
			Key:          livetypes.RemoteKey(conf.Region, conf.FunctionName),
			StagingFile:  filepath.Join(conf.StateDir, stagingFilename),
			FetchTimeout: conf.FetchTimeout,
		}, store, state, metrics, logex.Prefix("sync", logger))
	}

	return inv
}

// builds the real store and state backend from config. an inactive config opens
// nothing, so that an inactive runtime adds no overhead.
func Open(conf Config, logger *log.Logger) (*Invocation, error) {
	if !conf.Active() {
		return NewInvocation(conf, nil, nil, nil, logger), nil
	}

	store, err := storedriver.Open(conf.Bucket, conf.BucketRegion, nil, logger)
	if err != nil {
		return nil, err
	}

	state, closeState, err := openState(conf)
	if err != nil {
		return nil, err
	}

	inv := NewInvocation(conf, store, state, nil, logger)
	inv.closeState = closeState

	return inv, nil
}

func (i *Invocation) Close() error {
	return i.closeState()
}

// must run inline before the handler. the returned decision tells the driver which
// single entry point to run.
func (i *Invocation) Prepare(ctx context.Context, entryPoint string) (livetypes.Decision, error) {
	if decision, active := i.redirector.PreCheck(entryPoint); !active {
		i.logl.Debug.Printf("inactive: %s", decision.Reason)
		return decision, nil
	}

	materializeStarted := time.Now()

	created, err := liveoverlay.Materialize(i.conf.TaskRoot, i.conf.OverlayRoot)
	if err != nil {
		return livetypes.Decision{}, err
	}

	if created {
		i.logl.Info.Printf("Initialized in %d ms", time.Since(materializeStarted).Milliseconds())
	}

	if _, err := i.synchronizer.Sync(ctx); err != nil {
		return livetypes.Decision{}, err
	}

	return i.redirector.Resolve(entryPoint)
}

func openState(conf Config) (livestate.Store, func() error, error) {
	switch conf.StateBackend {
	case StateBackendBolt:
		db, err := livestate.OpenBolt(filepath.Join(conf.StateDir, boltFilename))
		if err != nil {
			return nil, nil, err
		}

		return db, db.Close, nil
	default:
		return livestate.NewFile(conf.StateDir), func() error { return nil }, nil
	}
}
