// Stores diff archives in AWS S3
package s3livestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/function61/gokit/aws/s3facade"
	"github.com/function61/gokit/logex"
	"github.com/function61/liveedit/pkg/livestore"
	"github.com/function61/liveedit/pkg/livetypes"
)

type s3livestore struct {
	bucket string
	client s3iface.S3API
	logl   *logex.Leveled
}

var _ livestore.Store = (*s3livestore)(nil)

// uses the default credential chain (inside Lambda: the execution role)
func New(bucket string, regionId string, logger *log.Logger) (*s3livestore, error) {
	return newWithCredentials(bucket, nil, regionId, logger)
}

func NewWithStaticCredentials(
	bucket string,
	regionId string,
	accessKeyId string,
	secret string,
	logger *log.Logger,
) (*s3livestore, error) {
	return newWithCredentials(
		bucket,
		s3facade.Credentials(credentials.NewStaticCredentials(accessKeyId, secret, "")),
		regionId,
		logger)
}

// nil credentials means the default credential chain
func newWithCredentials(
	bucket string,
	obtainCredentials s3facade.CredentialsObtainer,
	regionId string,
	logger *log.Logger,
) (*s3livestore, error) {
	bucketCtx, err := s3facade.Bucket(bucket, obtainCredentials, regionId)
	if err != nil {
		return nil, fmt.Errorf("s3livestore: %w", err)
	}

	return NewWithClient(*bucketCtx.Name, bucketCtx.S3, logger), nil
}

func NewWithClient(bucket string, client s3iface.S3API, logger *log.Logger) *s3livestore {
	return &s3livestore{
		bucket: bucket,
		client: client,
		logl:   logex.Levels(logex.NonNil(logger)),
	}
}

func (s *s3livestore) Get(
	ctx context.Context,
	key string,
	ifNoneMatch livetypes.VersionToken,
) (*livestore.FetchResult, error) {
	input := &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    aws.String(key),
	}

	if ifNoneMatch != livetypes.NoVersionToken {
		input.IfNoneMatch = aws.String(string(ifNoneMatch))
	}

	res, err := s.client.GetObjectWithContext(ctx, input)
	if err != nil {
		switch {
		case isNotModified(err):
			s.logl.Debug.Printf("%s not modified since %s", key, ifNoneMatch)
			return livestore.NotModified(ifNoneMatch), nil
		case isNoSuchKey(err):
			return livestore.NotFound(), nil
		default:
			return nil, &livetypes.TransportError{Op: "s3 GetObject", Key: key, Err: err}
		}
	}

	return livestore.Applied(res.Body, livetypes.VersionToken(aws.StringValue(res.ETag))), nil
}

func (s *s3livestore) Put(ctx context.Context, key string, content io.Reader) (livetypes.VersionToken, error) {
	// since S3 internally requires retry support, it requires a io.ReadSeeker and thus
	// we're forced to buffer
	buf, err := ioutil.ReadAll(content)
	if err != nil {
		return livetypes.NoVersionToken, err
	}

	res, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf),
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return livetypes.NoVersionToken, &livetypes.TransportError{Op: "s3 PutObject", Key: key, Err: err}
	}

	s.logl.Debug.Printf("stored %s (%d bytes)", key, len(buf))

	return livetypes.VersionToken(aws.StringValue(res.ETag)), nil
}

func isNotModified(err error) bool {
	var reqErr awserr.RequestFailure
	return errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotModified
}

// NoSuchBucket also comes as a 404, but that's a misconfiguration, not "nothing published"
func isNoSuchKey(err error) bool {
	var awsErr awserr.Error
	if errors.As(err, &awsErr) {
		switch awsErr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		case s3.ErrCodeNoSuchBucket:
			return false
		}
	}

	var reqErr awserr.RequestFailure
	return errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound && reqErr.Code() != s3.ErrCodeNoSuchBucket
}
