// Picks the remote store implementation from a bucket location
package storedriver

import (
	"fmt"
	"log"
	"strings"

	"github.com/function61/gokit/logex"
	"github.com/function61/liveedit/pkg/livestore"
	"github.com/function61/liveedit/pkg/livestore/localfslivestore"
	"github.com/function61/liveedit/pkg/livestore/s3livestore"
)

const (
	localDirScheme = "file://"
)

type StaticCredentials struct {
	AccessKeyId     string
	AccessKeySecret string
}

// bucket is either an S3 bucket name or "file:///some/dir" for a directory-backed
// store (local development and emulated runtimes). nil credentials => default AWS
// credential chain (the function's execution role when running on Lambda).
func Open(bucket string, regionId string, credentials *StaticCredentials, logger *log.Logger) (livestore.Store, error) {
	logger = logex.NonNil(logger)

	switch {
	case bucket == "":
		return nil, fmt.Errorf("storedriver: bucket not set")
	case strings.HasPrefix(bucket, localDirScheme):
		dir := strings.TrimPrefix(bucket, localDirScheme)
		if dir == "" {
			return nil, fmt.Errorf("storedriver: empty directory in %s", bucket)
		}

		return localfslivestore.New(dir, logex.Prefix("store/localfs", logger)), nil
	case credentials != nil:
		return s3livestore.NewWithStaticCredentials(
			bucket,
			regionId,
			credentials.AccessKeyId,
			credentials.AccessKeySecret,
			logex.Prefix("store/s3", logger))
	default:
		return s3livestore.New(bucket, regionId, logex.Prefix("store/s3", logger))
	}
}
