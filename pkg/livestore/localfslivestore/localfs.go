// Stores diff archives in a local directory. Useful for development and for tests,
// since version tokens are derived from content just like S3 ETags are.
package localfslivestore

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/function61/gokit/atomicfilewrite"
	"github.com/function61/gokit/logex"
	"github.com/function61/liveedit/pkg/livestore"
	"github.com/function61/liveedit/pkg/livetypes"
	"github.com/minio/sha256-simd"
)

func New(path string, logger *log.Logger) *localFs {
	return &localFs{
		path: path,
		log:  logex.Levels(logex.NonNil(logger)),
	}
}

type localFs struct {
	path string
	log  *logex.Leveled
}

var _ livestore.Store = (*localFs)(nil)

func (l *localFs) Put(_ context.Context, key string, content io.Reader) (livetypes.VersionToken, error) {
	filename, err := l.getPath(key)
	if err != nil {
		return livetypes.NoVersionToken, err
	}

	// does not error if already exists
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return livetypes.NoVersionToken, &livetypes.TransportError{Op: "put", Key: key, Err: err}
	}

	hash := sha256.New()

	if err := atomicfilewrite.Write(filename, func(writer io.Writer) error {
		_, err := io.Copy(io.MultiWriter(writer, hash), content)
		return err
	}); err != nil {
		return livetypes.NoVersionToken, &livetypes.TransportError{Op: "put", Key: key, Err: err}
	}

	return tokenFromHash(hash.Sum(nil)), nil
}

func (l *localFs) Get(_ context.Context, key string, ifNoneMatch livetypes.VersionToken) (*livestore.FetchResult, error) {
	filename, err := l.getPath(key)
	if err != nil {
		return nil, err
	}

	// read fully so that the token we hand out matches the body we hand out,
	// even if a Put() lands in between
	content, err := ioutil.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return livestore.NotFound(), nil
		}

		return nil, &livetypes.TransportError{Op: "get", Key: key, Err: err}
	}

	hash := sha256.Sum256(content)
	token := tokenFromHash(hash[:])

	if ifNoneMatch != livetypes.NoVersionToken && ifNoneMatch == token {
		l.log.Debug.Printf("%s not modified", key)
		return livestore.NotModified(token), nil
	}

	return livestore.Applied(ioutil.NopCloser(bytes.NewReader(content)), token), nil
}

func (l *localFs) getPath(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", &livetypes.TransportError{
			Op:  "resolve",
			Key: key,
			Err: fmt.Errorf("%w: %s", livetypes.ErrPathEscapesRoot, key),
		}
	}

	return filepath.Join(l.path, cleaned), nil
}

// quoted like S3 ETags are
func tokenFromHash(sum []byte) livetypes.VersionToken {
	return livetypes.VersionToken(`"` + hex.EncodeToString(sum) + `"`)
}
