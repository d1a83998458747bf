// Package s3blob stores config payloads in an S3-compatible bucket.
package s3blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/alfredjeanlab/rednight/internal/store"
)

// ContentType is set on every stored payload.
const ContentType = "application/rednight.config"

// objectAPI is the subset of *s3.Client the adapter uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Blobs implements store.ConfigBlobs, store.EnvironmentBlobs and
// store.ObjectLister on one bucket.
type Blobs struct {
	client objectAPI
	bucket string
}

var (
	_ store.ConfigBlobs      = (*Blobs)(nil)
	_ store.EnvironmentBlobs = (*Blobs)(nil)
	_ store.ObjectLister     = (*Blobs)(nil)
	_ store.Pinger           = (*Blobs)(nil)
)

// Options configures the bucket connection.
type Options struct {
	Bucket string
	Region string
	// Endpoint enables path-style addressing against a custom endpoint
	// (MinIO and similar).
	Endpoint string
	// Static keys; when empty the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
}

// New creates a bucket adapter.
func New(ctx context.Context, o Options) (*Blobs, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(o.Region),
	}
	if creds := staticCredentials(o); creds != nil {
		opts = append(opts, awsconfig.WithCredentialsProvider(creds))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if o.Endpoint != "" {
		s3opts = append(s3opts, func(so *s3.Options) {
			so.BaseEndpoint = aws.String(o.Endpoint)
			so.UsePathStyle = true
		})
	}

	return newWithClient(s3.NewFromConfig(cfg, s3opts...), o.Bucket), nil
}

func staticCredentials(o Options) aws.CredentialsProvider {
	if o.AccessKeyID == "" {
		return nil
	}
	return credentials.NewStaticCredentialsProvider(o.AccessKeyID, o.SecretAccessKey, "")
}

func newWithClient(client objectAPI, bucket string) *Blobs {
	return &Blobs{client: client, bucket: bucket}
}

// Put uploads the payload for one config.
func (b *Blobs) Put(ctx context.Context, envID, id int64, payload string) error {
	key := store.ConfigKey(envID, id)
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(payload),
		ContentType: aws.String(ContentType),
	})
	if err != nil {
		return translateError(err, "put object", key)
	}
	return nil
}

// Get downloads the payload for one config. A missing object yields
// store.ErrNotFound.
func (b *Blobs) Get(ctx context.Context, envID, id int64) (string, error) {
	key := store.ConfigKey(envID, id)
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", translateError(err, "get object", key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("read object %s: %w", key, err)
	}
	return string(data), nil
}

// Delete removes the payload for one config.
func (b *Blobs) Delete(ctx context.Context, envID, id int64) error {
	return b.deleteKey(ctx, store.ConfigKey(envID, id))
}

func (b *Blobs) deleteKey(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return translateError(err, "delete object", key)
	}
	return nil
}

// DeleteAll lists every object under the environment's prefix and deletes
// them one at a time. It stops at the first failure.
func (b *Blobs) DeleteAll(ctx context.Context, envID int64) error {
	objs, err := b.List(ctx, store.EnvironmentPrefix(envID))
	if err != nil {
		return err
	}
	for _, obj := range objs {
		if err := b.deleteKey(ctx, obj.Key); err != nil {
			return err
		}
	}
	return nil
}

// List returns every object whose key starts with prefix.
func (b *Blobs) List(ctx context.Context, prefix string) ([]store.ObjectInfo, error) {
	p := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})
	var out []store.ObjectInfo
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, translateError(err, "list objects", prefix)
		}
		for _, obj := range page.Contents {
			info := store.ObjectInfo{Key: aws.ToString(obj.Key)}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			out = append(out, info)
		}
	}
	return out, nil
}

// Ping checks that the bucket is reachable.
func (b *Blobs) Ping(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)})
	if err != nil {
		return fmt.Errorf("head bucket %s: %w", b.bucket, err)
	}
	return nil
}

func translateError(err error, operation, key string) error {
	switch {
	case isErrorType[*s3types.NoSuchKey](err), isAPIErrorCode(err, "NotFound"):
		return fmt.Errorf("%s %s: %w", operation, key, store.ErrNotFound)
	default:
		return fmt.Errorf("%s %s: %w", operation, key, err)
	}
}

// isErrorType checks if an error is of a specific type.
func isErrorType[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

// isAPIErrorCode matches generic service errors such as the bodiless 404
// returned by HEAD requests.
func isAPIErrorCode(err error, code string) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == code
}
