package s3infra

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/fern-folio/bookstore-api/internal/config"
	"github.com/fern-folio/bookstore-api/internal/infrastructure/awsconf"
	"github.com/fern-folio/bookstore-api/internal/pkg/id"
)

// objectPutter is the subset of *s3.Client the archive needs.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store archives uploaded catalog imports.
type Store struct {
	client objectPutter
	bucket string
	now    func() time.Time
}

// NewClient creates an S3 client. When cfg.AWSEndpointURL is set (LocalStack),
// it overrides the endpoint and enables path-style addressing.
func NewClient(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	awsCfg, err := awsconf.Load(ctx, cfg, "")
	if err != nil {
		return nil, err
	}

	clientOpts := []func(*s3.Options){}
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, clientOpts...), nil
}

// NewStore creates a Store with the given S3 client and bucket name.
func NewStore(client objectPutter, bucket string) *Store {
	return &Store{client: client, bucket: bucket, now: time.Now}
}

// ArchiveImport stores the raw bytes of an imported CSV under
// imports/YYYY/MM/DD/<ulid>-<name> and returns the object URI.
func (s *Store) ArchiveImport(ctx context.Context, filename string, body []byte) (string, error) {
	key := path.Join("imports", s.now().UTC().Format("2006/01/02"), id.New()+"-"+sanitize(filename))
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// sanitize keeps the base name and replaces characters that are awkward in
// object keys.
func sanitize(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, base)
}
