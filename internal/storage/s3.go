package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/util"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const documentPrefix = "documents"

func NewS3Client(ctx context.Context) (*s3.Client, error) {
	region := util.GetEnv("AWS_REGION")
	endpoint := util.GetEnv("AWS_ENDPOINT")
	accessKey := util.GetEnv("AWS_ACCESS_KEY")
	secretKey := util.GetEnv("AWS_SECRET_KEY")
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(region),
		config.WithBaseEndpoint(endpoint),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return client, nil
}

// Bucket is the bucket uploaded documents live in.
func Bucket() string {
	return util.GetEnv("AWS_BUCKET")
}

// DocumentKey is the object key of a document's uploaded PDF.
func DocumentKey(documentID string) string {
	return path.Join(documentPrefix, documentID+".pdf")
}

// ContentType guesses the MIME type of name from its extension.
func ContentType(name string) string {
	ext := path.Ext(strings.ToLower(name))
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

func PutFile(ctx context.Context, client *s3.Client, key string, contentType string, file io.Reader) error {
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(Bucket()),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload file to S3: %w", err)
	}
	return nil
}

func DeleteFile(ctx context.Context, client *s3.Client, key string) error {
	_, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(Bucket()),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}

// S3Files stores uploads in the configured bucket.
type S3Files struct {
	Client *s3.Client
}

func (f S3Files) PutFile(ctx context.Context, key string, contentType string, body io.Reader) error {
	return PutFile(ctx, f.Client, key, contentType, body)
}

func (f S3Files) DeleteFile(ctx context.Context, key string) error {
	return DeleteFile(ctx, f.Client, key)
}
