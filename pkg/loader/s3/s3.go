package s3

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/singleflight"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/loader"
)

// S3FileLoader loads uploaded documents from an S3 bucket. It uses the AWS
// SDK v2 for Go and caches object contents by key.
type S3FileLoader struct {
	bucket string
	client *s3.Client

	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewS3FileLoaderWithClient creates a loader that reuses a preconfigured client.
func NewS3FileLoaderWithClient(bucket string, client *s3.Client) *S3FileLoader {
	return &S3FileLoader{
		bucket: bucket,
		client: client,
		cache:  make(map[string][]byte),
	}
}

// NewS3FileLoaderParams defines the configuration parameters for
// creating a new S3FileLoader.
//
// Endpoint allows overriding the S3 endpoint (useful for S3-compatible
// storage like MinIO).
type NewS3FileLoaderParams struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3FileLoader creates a new S3FileLoader with static credentials and
// the given endpoint/region.
func NewS3FileLoader(ctx context.Context, params NewS3FileLoaderParams) (*S3FileLoader, error) {
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(params.Region),
		config.WithBaseEndpoint(params.Endpoint),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			params.AccessKey,
			params.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return NewS3FileLoaderWithClient(params.Bucket, client), nil
}

// GetFile retrieves the object stored under path. It implements the
// loader.FileLoader interface.
func (l *S3FileLoader) GetFile(ctx context.Context, path string) ([]byte, error) {
	cacheKey := loader.CacheKey(l.bucket, path)

	l.cacheMu.RLock()
	if cached, ok := l.cache[cacheKey]; ok {
		l.cacheMu.RUnlock()
		return cached, nil
	}
	l.cacheMu.RUnlock()

	result, err, _ := l.group.Do(cacheKey, func() (any, error) {
		out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(l.bucket),
			Key:    aws.String(path),
		})
		if err != nil {
			return nil, err
		}
		defer out.Body.Close()

		buf := new(bytes.Buffer)
		if _, err := io.Copy(buf, out.Body); err != nil {
			return nil, err
		}

		byts := buf.Bytes()

		l.cacheMu.Lock()
		l.cache[cacheKey] = byts
		l.cacheMu.Unlock()

		return byts, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}

var _ loader.FileLoader = (*S3FileLoader)(nil)
