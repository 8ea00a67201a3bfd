package livepublish

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/function61/gokit/assert"
	"github.com/function61/liveedit/pkg/livearchive"
	"github.com/function61/liveedit/pkg/livestore"
	"github.com/function61/liveedit/pkg/livestore/localfslivestore"
	"github.com/function61/liveedit/pkg/livetypes"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type staticTracker []Change

func (s staticTracker) Changes(context.Context) ([]Change, error) {
	return s, nil
}

func testProject(root string) *Project {
	return &Project{
		Root: root,
		Conf: Config{
			Bucket:    "file://" + filepath.Join(root, "bucket"),
			Region:    "eu-west-3",
			Functions: []string{"app-dev-api", "app-dev-worker"},
		},
	}
}

func TestPublish(t *testing.T) {
	root := tempDir(t)
	writeFile(t, filepath.Join(root, "index.php"), "edited")
	writeFile(t, filepath.Join(root, "src/new.php"), "new")

	store := localfslivestore.New(filepath.Join(root, "bucket"), nil)
	metrics := NewMetrics(nil)

	publisher := NewPublisher(testProject(root), staticTracker{
		{Path: "index.php", Kind: ChangeUpdated},
		{Path: "src/new.php", Kind: ChangeCreated},
		{Path: "src/removed.php", Kind: ChangeDeleted},
	}, store, metrics, nil)

	publications, err := publisher.Publish(context.Background())
	assert.Ok(t, err)
	assert.Assert(t, len(publications) == 2)
	assert.EqualString(t, publications[0].Key, "eu-west-3/app-dev-api.diff")
	assert.EqualString(t, publications[1].Key, "eu-west-3/app-dev-worker.diff")
	// same archive for every function
	assert.EqualString(t, string(publications[0].Token), string(publications[1].Token))

	res, err := store.Get(context.Background(), "eu-west-3/app-dev-worker.diff", livetypes.NoVersionToken)
	assert.Ok(t, err)
	assert.EqualString(t, res.Outcome.String(), "applied")

	assert.EqualString(t, archivePaths(t, root, res.Body), "index.php,src/new.php")

	assert.Assert(t, testutil.ToFloat64(metrics.publishes.WithLabelValues("app-dev-api", "ok")) == 1)
	assert.Assert(t, testutil.ToFloat64(metrics.publishedPaths) == 2)
}

func TestPublishNothingChangedIsEmptyArchive(t *testing.T) {
	root := tempDir(t)

	store := localfslivestore.New(filepath.Join(root, "bucket"), nil)

	_, err := NewPublisher(testProject(root), staticTracker{}, store, nil, nil).Publish(context.Background())
	assert.Ok(t, err)

	// published object exists (=> "everything reverted"), as opposed to not found
	res, err := store.Get(context.Background(), "eu-west-3/app-dev-api.diff", livetypes.NoVersionToken)
	assert.Ok(t, err)
	assert.EqualString(t, res.Outcome.String(), "applied")
	assert.EqualString(t, archivePaths(t, root, res.Body), "")
}

type brokenStore struct {
	livestore.Store
}

func (brokenStore) Put(context.Context, string, io.Reader) (livetypes.VersionToken, error) {
	return livetypes.NoVersionToken, errors.New("access denied")
}

func TestPublishUploadFails(t *testing.T) {
	root := tempDir(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // so that retries give up right away

	metrics := NewMetrics(nil)

	_, err := NewPublisher(testProject(root), staticTracker{}, brokenStore{}, metrics, nil).Publish(ctx)
	assert.Assert(t, err != nil)
	assert.Assert(t, strings.Contains(err.Error(), "app-dev-api: "))
	assert.Assert(t, strings.Contains(err.Error(), "app-dev-worker: "))

	assert.Assert(t, testutil.ToFloat64(metrics.publishes.WithLabelValues("app-dev-worker", "error")) == 1)
}

func archivePaths(t *testing.T, root string, body io.ReadCloser) string {
	t.Helper()
	defer body.Close()

	downloaded := filepath.Join(root, "downloaded.zip")

	content, err := io.ReadAll(body)
	assert.Ok(t, err)
	writeFile(t, downloaded, string(content))

	archive, err := livearchive.Open(downloaded)
	assert.Ok(t, err)
	defer archive.Close()

	return joinPaths(archive.Paths())
}

func TestHumanizeBytes(t *testing.T) {
	for _, tc := range []struct {
		input  uint64
		output string
	}{
		{0, "0 B"},
		{22, "22 B"},
		{1536, "1.50 kiB"},
		{1572864, "1.50 MiB"},
		{5 * 1024 * 1024 * 1024, "5120.00 MiB"},
	} {
		assert.EqualString(t, humanizeBytes(tc.input), tc.output)
	}
}
