package livepublish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/retry"
	"github.com/function61/liveedit/pkg/livearchive"
	"github.com/function61/liveedit/pkg/livestore"
	"github.com/function61/liveedit/pkg/livetypes"
)

const (
	uploadTimeout = 60 * time.Second
)

type Publication struct {
	Function string
	Key      string
	Token    livetypes.VersionToken
}

type Publisher struct {
	root      string
	region    string
	functions []string
	tracker   ChangeTracker
	store     livestore.Store
	metrics   *Metrics
	logl      *logex.Leveled
}

func NewPublisher(
	project *Project,
	tracker ChangeTracker,
	store livestore.Store,
	metrics *Metrics,
	logger *log.Logger,
) *Publisher {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Publisher{
		root:      project.Root,
		region:    project.Conf.Region,
		functions: project.Conf.Functions,
		tracker:   tracker,
		store:     store,
		metrics:   metrics,
		logl:      logex.Levels(logex.NonNil(logger)),
	}
}

// always publishes the complete set of changes, never just what changed since the
// last publish. this makes publishing idempotent and reverts come out right.
func (p *Publisher) Publish(ctx context.Context) ([]Publication, error) {
	started := time.Now()

	changes, err := p.tracker.Changes(ctx)
	if err != nil {
		return nil, err
	}

	for _, change := range changes {
		if change.Kind == ChangeDeleted {
			p.logl.Info.Printf("%s deleted locally: cannot be live-edited, deployed version stays", change.Path)
		}
	}

	paths := PublishablePaths(changes)

	archive := &bytes.Buffer{}
	if err := livearchive.Build(p.root, paths, archive); err != nil {
		return nil, err
	}

	publications := make([]Publication, len(p.functions))
	errs := make([]error, len(p.functions))

	// one archive, uploaded to each function's key
	var wg sync.WaitGroup
	for idx, function := range p.functions {
		wg.Add(1)

		go func(idx int, function string) {
			defer wg.Done()

			key := livetypes.RemoteKey(p.region, function)

			token, err := p.upload(ctx, key, archive.Bytes())
			if err != nil {
				p.metrics.publishes.WithLabelValues(function, "error").Inc()
				errs[idx] = fmt.Errorf("%s: %w", function, err)
				return
			}

			p.metrics.publishes.WithLabelValues(function, "ok").Inc()
			publications[idx] = Publication{Function: function, Key: key, Token: token}
		}(idx, function)
	}

	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	p.metrics.publishedPaths.Set(float64(len(paths)))
	p.metrics.duration.Observe(time.Since(started).Seconds())

	p.logl.Info.Printf(
		"Published %d path(s) (%s) to %d function(s) in %.1fs",
		len(paths),
		humanizeBytes(uint64(archive.Len())),
		len(p.functions),
		time.Since(started).Seconds())

	return publications, nil
}

func (p *Publisher) upload(ctx context.Context, key string, content []byte) (livetypes.VersionToken, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	token := livetypes.NoVersionToken

	tryUpload := func(ctx context.Context) error {
		var err error
		token, err = p.store.Put(ctx, key, bytes.NewReader(content))
		return err
	}

	// retrying because of flaky dev machine connections
	if err := retry.Retry(ctx, tryUpload, retry.DefaultBackoff(), func(err error) {
		p.logl.Error.Printf("upload %s: %v", key, err)
	}); err != nil {
		return livetypes.NoVersionToken, err
	}

	return token, nil
}

const (
	kiB = 1024
	MiB = 1024 * kiB
)

// diffs are source code, so they never reach gigabytes
func humanizeBytes(num uint64) string {
	switch {
	case num >= MiB:
		return fmt.Sprintf("%.02f MiB", float64(num)/MiB)
	case num >= kiB:
		return fmt.Sprintf("%.02f kiB", float64(num)/kiB)
	default:
		return fmt.Sprintf("%d B", num)
	}
}
