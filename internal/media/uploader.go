// Package media proxies user file uploads to an S3-compatible media host.
package media

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Uploader stores a media object and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, key string, contentType string, body io.Reader) (string, error)
}

// Config selects the media host bucket and credentials.
type Config struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

// S3Uploader implements Uploader against any S3-compatible endpoint.
type S3Uploader struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
}

// NewS3Uploader builds the S3 client from static credentials and a custom
// base endpoint (MinIO-style hosts included).
func NewS3Uploader(ctx context.Context, configuration Config) (*S3Uploader, error) {
	if strings.TrimSpace(configuration.Bucket) == "" {
		return nil, fmt.Errorf("media.uploader: bucket must be provided")
	}
	awsCfg, loadErr := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(configuration.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			configuration.AccessKey,
			configuration.SecretKey,
			"",
		)))
	if loadErr != nil {
		return nil, fmt.Errorf("media.uploader: %w", loadErr)
	}
	client := s3.NewFromConfig(awsCfg, func(options *s3.Options) {
		if strings.TrimSpace(configuration.Endpoint) != "" {
			options.BaseEndpoint = aws.String(configuration.Endpoint)
		}
		options.UsePathStyle = true
	})
	publicBaseURL := strings.TrimRight(configuration.PublicBaseURL, "/")
	if publicBaseURL == "" {
		publicBaseURL = strings.TrimRight(configuration.Endpoint, "/") + "/" + configuration.Bucket
	}
	return &S3Uploader{
		client:        client,
		bucket:        configuration.Bucket,
		publicBaseURL: publicBaseURL,
	}, nil
}

// StorageKey derives a date-partitioned object key for a new upload.
func StorageKey(kind string) string {
	now := time.Now().UTC()
	return fmt.Sprintf("%s/%d/%02d/%02d/%v", kind, now.Year(), int(now.Month()), now.Day(), uuid.New())
}

// Upload puts one object and returns the public URL it is served from.
func (uploader *S3Uploader) Upload(ctx context.Context, key string, contentType string, body io.Reader) (string, error) {
	_, putErr := uploader.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(uploader.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if putErr != nil {
		return "", fmt.Errorf("media.upload: %w", putErr)
	}
	return uploader.publicBaseURL + "/" + key, nil
}
