package livepublish

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/function61/gokit/assert"
)

func TestWatch(t *testing.T) {
	root := tempDir(t)
	writeFile(t, filepath.Join(root, "index.php"), "v1")

	ignore, err := NewIgnoreSet(nil)
	assert.Ok(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	published := make(chan struct{}, 16)

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- Watch(ctx, root, ignore, WatchOptions{QuietPeriod: 20 * time.Millisecond}, func(context.Context) error {
			published <- struct{}{}
			return nil
		}, nil)
	}()

	expectPublish := func(why string) {
		t.Helper()

		select {
		case <-published:
		case <-time.After(5 * time.Second):
			t.Fatalf("no publish after %s", why)
		}
	}

	expectPublish("start")

	writeFile(t, filepath.Join(root, "index.php"), "v2")
	expectPublish("edit")

	// new directories get watched as well
	assert.Ok(t, os.Mkdir(filepath.Join(root, "src"), 0755))
	expectPublish("mkdir")
	writeFile(t, filepath.Join(root, "src/new.php"), "new")
	expectPublish("edit in new dir")

	// ignored paths don't trigger
	writeFile(t, filepath.Join(root, ".liveedit-reference.json"), "{}")
	select {
	case <-published:
		t.Fatal("ignored path triggered publish")
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	assert.Ok(t, <-watchErr)
}

func TestWatchSchedule(t *testing.T) {
	schedule, err := ParseSchedule("@every 1s")
	assert.Ok(t, err)

	ignore, err := NewIgnoreSet(nil)
	assert.Ok(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3500*time.Millisecond)
	defer cancel()

	publishes := 0
	assert.Ok(t, Watch(ctx, tempDir(t), ignore, WatchOptions{Schedule: schedule}, func(context.Context) error {
		publishes++
		return nil
	}, nil))

	// start + at least two scheduled
	assert.Assert(t, publishes >= 3)
}

func TestParseScheduleInvalid(t *testing.T) {
	_, err := ParseSchedule("every now and then")
	assert.Assert(t, err != nil)
}
