package localfslivestore

import (
	"bytes"
	"context"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/function61/gokit/assert"
	"github.com/function61/liveedit/pkg/livetypes"
)

func TestPath(t *testing.T) {
	store := New("/tmp/liveedit-store", nil)

	path, err := store.getPath("eu-west-3/api.diff")
	assert.Ok(t, err)
	assert.EqualString(t, path, filepath.FromSlash("/tmp/liveedit-store/eu-west-3/api.diff"))

	_, err = store.getPath("../../etc/passwd")
	assert.Assert(t, errors.Is(err, livetypes.ErrPathEscapesRoot))
}

func TestConditionalGet(t *testing.T) {
	ctx := context.Background()
	dir, err := ioutil.TempDir("", "localfslivestore")
	assert.Ok(t, err)
	defer os.RemoveAll(dir)

	store := New(dir, nil)

	res, err := store.Get(ctx, "eu-west-3/api.diff", `"stale"`)
	assert.Ok(t, err)
	assert.Assert(t, res.Outcome == livetypes.FetchNotFound)

	token1, err := store.Put(ctx, "eu-west-3/api.diff", bytes.NewBufferString("v1"))
	assert.Ok(t, err)

	res, err = store.Get(ctx, "eu-west-3/api.diff", livetypes.NoVersionToken)
	assert.Ok(t, err)
	assert.Assert(t, res.Outcome == livetypes.FetchApplied)
	assert.EqualString(t, string(res.Token), string(token1))
	body, err := ioutil.ReadAll(res.Body)
	assert.Ok(t, err)
	assert.EqualString(t, string(body), "v1")

	res, err = store.Get(ctx, "eu-west-3/api.diff", token1)
	assert.Ok(t, err)
	assert.Assert(t, res.Outcome == livetypes.FetchNotModified)
	assert.Assert(t, res.Body == nil)

	// same content => same token (ETag-like)
	token1again, err := store.Put(ctx, "eu-west-3/api.diff", bytes.NewBufferString("v1"))
	assert.Ok(t, err)
	assert.EqualString(t, string(token1again), string(token1))

	token2, err := store.Put(ctx, "eu-west-3/api.diff", bytes.NewBufferString("v2"))
	assert.Ok(t, err)
	assert.Assert(t, token2 != token1)

	res, err = store.Get(ctx, "eu-west-3/api.diff", token1)
	assert.Ok(t, err)
	assert.Assert(t, res.Outcome == livetypes.FetchApplied)
	assert.EqualString(t, string(res.Token), string(token2))
}
