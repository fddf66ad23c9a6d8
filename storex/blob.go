package storex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"go.eggybyte.com/orchid/faultx"
	"go.eggybyte.com/orchid/healthx"
)

// Profile selects how BlobSettings are interpreted.
type Profile string

const (
	// ProfileMinIO requires an endpoint and always uses path-style addressing.
	ProfileMinIO Profile = "minio"
	// ProfileR2 derives the endpoint from the Cloudflare account id and uses region "auto".
	ProfileR2 Profile = "r2"
	// ProfileS3 uses AWS endpoints unless one is given, and the default
	// credential chain when no static keys are set.
	ProfileS3 Profile = "s3"
)

// BlobObject is a downloaded object.
type BlobObject struct {
	Key         string
	Data        []byte
	ContentType string
	ETag        string
}

// BlobStore is an S3-compatible object store bound to one bucket.
type BlobStore struct {
	client  *s3.Client
	bucket  string
	profile Profile
	table   faultx.Table
	inst    instrument
}

// NewBlobStore builds the client for profile, then checks the bucket under
// the retry policy, creating it when s.CreateBucket is set.
func NewBlobStore(ctx context.Context, profile Profile, s BlobSettings, opts ...Option) (*BlobStore, error) {
	o := newOptions(string(profile), opts)

	resolved, err := resolveBlobSettings(profile, s)
	if err != nil {
		return nil, err
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(resolved.Region)}
	if resolved.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(resolved.AccessKey, resolved.SecretKey, resolved.SessionToken),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, faultx.Validation(faultx.DomainBlob, "connect", fmt.Sprintf("load aws config: %v", err))
	}

	client := s3.NewFromConfig(awsCfg, func(so *s3.Options) {
		if resolved.Endpoint != "" {
			so.BaseEndpoint = aws.String(resolved.Endpoint)
		}
		so.UsePathStyle = resolved.UsePathStyle
		so.RetryMaxAttempts = 1
	})

	store := NewBlobStoreFromClient(client, profile, resolved.Bucket, opts...)
	err = connect(ctx, o, s.Retry, func(ctx context.Context) error {
		return store.ensureBucket(ctx, resolved.CreateBucket)
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewBlobStoreFromClient wraps an existing client without checking the bucket.
func NewBlobStoreFromClient(client *s3.Client, profile Profile, bucket string, opts ...Option) *BlobStore {
	o := newOptions(string(profile), opts)
	return &BlobStore{
		client:  client,
		bucket:  bucket,
		profile: profile,
		table:   BlobStoreTable(),
		inst:    instrument{resource: o.name, recorder: o.recorder},
	}
}

func resolveBlobSettings(profile Profile, s BlobSettings) (BlobSettings, error) {
	invalid := func(msg string) error {
		return faultx.Validation(faultx.DomainBlob, "connect", msg)
	}
	if s.Bucket == "" {
		return s, invalid("bucket is required")
	}

	switch profile {
	case ProfileMinIO:
		if s.Endpoint == "" {
			return s, invalid("minio endpoint is required")
		}
		if !strings.Contains(s.Endpoint, "://") {
			s.Endpoint = "http://" + s.Endpoint
		}
		s.UsePathStyle = true
		if s.Region == "" {
			s.Region = "us-east-1"
		}
	case ProfileR2:
		if s.Endpoint == "" {
			if s.AccountID == "" {
				return s, invalid("r2 requires an account id or an endpoint")
			}
			s.Endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", s.AccountID)
		}
		if s.Region == "" {
			s.Region = "auto"
		}
	case ProfileS3:
		if s.Region == "" {
			s.Region = "us-east-1"
		}
	default:
		return s, invalid(fmt.Sprintf("unknown blob profile %q", profile))
	}

	if (s.AccessKey == "") != (s.SecretKey == "") {
		return s, invalid("access key and secret key must be set together")
	}
	if profile != ProfileS3 && s.AccessKey == "" {
		return s, invalid(fmt.Sprintf("%s requires static credentials", profile))
	}
	return s, nil
}

// Bucket returns the bound bucket name.
func (b *BlobStore) Bucket() string {
	return b.bucket
}

// Client exposes the underlying S3 client. Errors from it are not translated.
func (b *BlobStore) Client() *s3.Client {
	return b.client
}

func (b *BlobStore) ensureBucket(ctx context.Context, create bool) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)})
	err = b.table.Translate("head_bucket", b.bucket, err)
	if err == nil || !create || faultx.KindOf(err) != faultx.KindNotFound {
		return err
	}

	_, err = b.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(b.bucket)})
	var owned *types.BucketAlreadyOwnedByYou
	if errors.As(err, &owned) {
		return nil
	}
	return b.table.Translate("create_bucket", b.bucket, err)
}

// Upload stores data at key.
func (b *BlobStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return faultx.Validation(faultx.DomainBlob, "upload", "key is required")
	}
	start := time.Now()
	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	_, err := b.client.PutObject(ctx, input)
	err = b.table.Translate("upload", b.target(key), err)
	b.inst.observe("upload", start, err)
	return err
}

// Download reads the object at key. A missing object is faultx.ErrNotFound.
func (b *BlobStore) Download(ctx context.Context, key string) (*BlobObject, error) {
	start := time.Now()
	obj, err := b.download(ctx, key)
	err = b.table.Translate("download", b.target(key), err)
	b.inst.observe("download", start, err)
	return obj, err
}

func (b *BlobStore) download(ctx context.Context, key string) (*BlobObject, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, err
	}
	return &BlobObject{
		Key:         key,
		Data:        data,
		ContentType: aws.ToString(out.ContentType),
		ETag:        aws.ToString(out.ETag),
	}, nil
}

// Exists reports whether an object is stored at key.
func (b *BlobStore) Exists(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	err = b.table.Translate("exists", b.target(key), err)
	if faultx.KindOf(err) == faultx.KindNotFound {
		b.inst.observe("exists", start, nil)
		return false, nil
	}
	b.inst.observe("exists", start, err)
	return err == nil, err
}

// Delete removes the object at key. Deleting a missing object succeeds.
func (b *BlobStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	err = b.table.Translate("delete", b.target(key), err)
	b.inst.observe("delete", start, err)
	return err
}

// HealthCheck issues HeadBucket.
func (b *BlobStore) HealthCheck(ctx context.Context) (healthx.Status, error) {
	status := healthx.Measure(ctx, func(ctx context.Context) error {
		start := time.Now()
		_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)})
		err = b.table.Translate("health_check", b.bucket, err)
		b.inst.observe("health_check", start, err)
		return err
	})
	if status.Details == nil {
		status.Details = map[string]string{}
	}
	status.Details["bucket"] = b.bucket
	status.Details["profile"] = string(b.profile)
	return status, nil
}

func (b *BlobStore) target(key string) string {
	return b.bucket + "/" + key
}

// BlobStoreTable extends the blob table with smithy fault attribution: a
// server fault with an unlisted code is transient.
func BlobStoreTable() faultx.Table {
	t := faultx.BlobTable()
	t.Classifiers = []faultx.Classifier{classifySmithy}
	return t
}

func classifySmithy(err error) (faultx.Kind, bool) {
	var canceled *smithy.CanceledError
	if errors.As(err, &canceled) {
		return faultx.KindTransient, true
	}
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return "", false
	}
	t := faultx.BlobTable()
	switch code := apiErr.ErrorCode(); {
	case slices.Contains(t.NotFoundCodes, code):
		return faultx.KindNotFound, true
	case slices.Contains(t.AuthCodes, code):
		return faultx.KindAuth, true
	case slices.Contains(t.TransientCodes, code):
		return faultx.KindTransient, true
	}
	if apiErr.ErrorFault() == smithy.FaultServer {
		return faultx.KindTransient, true
	}
	return "", false
}
