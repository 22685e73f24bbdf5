package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/ruteri/content-attestation-engine/interfaces"
)

// S3Source serves s3://bucket/key locators through Amazon S3 or a compatible
// object store. One source instance covers every bucket reachable with its
// region, endpoint, and credentials.
type S3Source struct {
	client      *s3.S3
	region      string
	log         *slog.Logger
	locationURI string
}

// NewS3Source creates an S3 source. Without credentials it can still read
// from publicly accessible buckets.
func NewS3Source(region, endpoint, accessKey, secretKey string, log *slog.Logger) (*S3Source, error) {
	uri := fmt.Sprintf("s3://?region=%s", region)
	if endpoint != "" {
		uri += fmt.Sprintf("&endpoint=%s", endpoint)
	}
	if accessKey != "" {
		uri += fmt.Sprintf("&access_key=%s", accessKey)
	}

	cfg := aws.Config{
		Region: aws.String(region),
	}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
	}
	if accessKey != "" && secretKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, "")
	} else {
		log.Debug("No S3 credentials provided, only public buckets will be readable")
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Source{
		client:      s3.New(sess),
		region:      region,
		log:         log,
		locationURI: uri,
	}, nil
}

// Fetch retrieves the object an s3:// locator points at. Returns
// ErrContentNotFound if the object doesn't exist.
func (s *S3Source) Fetch(ctx context.Context, locator interfaces.ContentLocator) ([]byte, error) {
	if !s.CanServe(locator) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrCannotServe, locator.URI)
	}

	start := time.Now()
	bucket, key, err := s3Object(locator)
	if err != nil {
		return nil, err
	}

	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "404") {
			s.log.Debug("Content not found in S3",
				slog.String("bucket", bucket),
				slog.String("key", key),
				slog.Duration("duration", time.Since(start)))
			return nil, interfaces.ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	s.log.Debug("Fetched content from S3",
		slog.String("bucket", bucket),
		slog.String("key", key),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// CanServe reports whether the locator names an S3 object.
func (s *S3Source) CanServe(locator interfaces.ContentLocator) bool {
	return locator.Scheme() == "s3"
}

// Available reports whether the source can issue requests. Reachability of a
// particular bucket only surfaces at fetch time.
func (s *S3Source) Available(ctx context.Context) bool {
	return true
}

// Name returns a unique identifier for this source.
func (s *S3Source) Name() string {
	return fmt.Sprintf("s3-%s", s.region)
}

// LocationURI returns the URI that identifies this source.
func (s *S3Source) LocationURI() string {
	return s.locationURI
}

// s3Object splits an s3://bucket/path/key locator into bucket and key.
func s3Object(locator interfaces.ContentLocator) (string, string, error) {
	u, err := url.Parse(locator.URI)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", interfaces.ErrInvalidLocator, err)
	}

	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: expected s3://bucket/key, got %s", interfaces.ErrInvalidLocator, locator.URI)
	}
	return bucket, key, nil
}
