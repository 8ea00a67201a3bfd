package livepublish

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/function61/gokit/logex"
	"github.com/robfig/cron/v3"
)

const (
	defaultQuietPeriod = 200 * time.Millisecond
)

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type WatchOptions struct {
	// editors tend to save in bursts (temp file + rename + chmod). we publish once
	// the burst is over.
	QuietPeriod time.Duration
	// optional periodic republish, e.g. "@every 1m". covers changes fsnotify can't
	// see (network filesystems, some container bind mounts)
	Schedule cron.Schedule
}

func ParseSchedule(spec string) (cron.Schedule, error) {
	return cronParser.Parse(spec)
}

// publishes once at start and then after each change. publish errors are logged,
// not returned: the developer fixes whatever is wrong and saves again.
func Watch(
	ctx context.Context,
	root string,
	ignore *IgnoreSet,
	opts WatchOptions,
	publish func(context.Context) error,
	logger *log.Logger,
) error {
	logl := logex.Levels(logex.NonNil(logger))

	if opts.QuietPeriod == 0 {
		opts.QuietPeriod = defaultQuietPeriod
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addRecursive(watcher, root, root, ignore); err != nil {
		return err
	}

	publishAndLog := func(reason string) {
		logl.Debug.Printf("publishing (%s)", reason)

		if err := publish(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logl.Error.Printf("publish: %v", err)
		}
	}

	publishAndLog("start")

	logl.Info.Printf("Watching %s for changes", root)

	var debounce <-chan time.Time

	var scheduled <-chan time.Time
	nextScheduled := func() {
		if opts.Schedule != nil {
			now := time.Now()
			scheduled = time.After(opts.Schedule.Next(now).Sub(now))
		}
	}
	nextScheduled()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher closed unexpectedly")
			}

			relevant, err := handleEvent(watcher, root, ignore, event)
			if err != nil {
				logl.Error.Printf("watch %s: %v", event.Name, err)
			}

			if relevant {
				debounce = time.After(opts.QuietPeriod)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher closed unexpectedly")
			}

			logl.Error.Printf("watcher: %v", err)
		case <-debounce:
			debounce = nil
			publishAndLog("change")
		case <-scheduled:
			publishAndLog("schedule")
			nextScheduled()
		}
	}
}

func handleEvent(watcher *fsnotify.Watcher, root string, ignore *IgnoreSet, event fsnotify.Event) (bool, error) {
	relativePath, err := filepath.Rel(root, event.Name)
	if err != nil {
		return false, err
	}
	relativePath = backslashesToForwardSlashes(relativePath)

	if ignore.Ignored(relativePath) {
		return false, nil
	}

	// fsnotify doesn't watch recursively, so new dirs need to be added as they appear
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			if ignore.IgnoredDir(relativePath) {
				return false, nil
			}

			if err := addRecursive(watcher, root, event.Name, ignore); err != nil {
				return true, err
			}
		}
	}

	// chmod-only events: editors touch metadata all the time
	return event.Op != fsnotify.Chmod, nil
}

func addRecursive(watcher *fsnotify.Watcher, root string, dir string, ignore *IgnoreSet) error {
	return filepath.Walk(dir, func(path string, fileInfo os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !fileInfo.IsDir() {
			return nil
		}

		if relativePath, err := filepath.Rel(root, path); err == nil && relativePath != "." {
			if ignore.IgnoredDir(backslashesToForwardSlashes(relativePath)) {
				return filepath.SkipDir
			}
		}

		return watcher.Add(path)
	})
}
