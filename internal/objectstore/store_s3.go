package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	awssdk "github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/sethvargo/go-retry"

	"github.com/chrlesur/live-memory/pkg/config"
	"github.com/chrlesur/live-memory/pkg/logger"
)

// Config is the subset of S3 connection settings the adapter needs, kept
// separate from pkg/config.S3 so this package does not import the rest of
// the config tree.
type Config struct {
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	RegionName      string
}

// ConfigFromSpec adapts a pkg/config.S3 block to objectstore.Config.
func ConfigFromSpec(c config.S3) Config {
	return Config{
		EndpointURL:     c.EndpointURL,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		BucketName:      c.BucketName,
		RegionName:      c.RegionName,
	}
}

// s3Store is the S3-backed Store. Data operations (Put/Get/Delete/Copy) go
// through v2Client, whose signing handler has been replaced with the legacy
// SigV2 scheme Dell ECS expects; metadata operations (HEAD, LIST) go
// through v4Client, left on the SDK's default SigV4 signer. Both clients
// point at the same endpoint and bucket; only the signing handler differs.
// This split is spec.md §4.1's hard contract, not an optimization.
type s3Store struct {
	v2Client *s3.S3
	v4Client *s3.S3
	bucket   string
}

const (
	retryAttempts = 3
	retryBaseWait = 100 * time.Millisecond
)

// New builds a Store from cfg. Both underlying clients use path-style
// addressing (S3ForcePathStyle) since Dell ECS endpoints are not set up for
// virtual-hosted-style buckets.
func New(cfg Config) (Store, error) {
	creds := credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	awsCfg := awssdk.NewConfig().
		WithEndpoint(cfg.EndpointURL).
		WithRegion(cfg.RegionName).
		WithCredentials(creds).
		WithS3ForcePathStyle(true)

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("objectstore: creating session: %w", err)
	}

	v4Client := s3.New(sess)

	v2Client := s3.New(sess)
	v2Client.Handlers.Sign.Clear()
	v2Client.Handlers.Sign.PushBackNamed(request.NamedHandler{
		Name: "live-memory.v2sig",
		Fn:   newSignV2Handler(cfg.AccessKeyID, cfg.SecretAccessKey).sign,
	})

	return &s3Store{v2Client: v2Client, v4Client: v4Client, bucket: cfg.BucketName}, nil
}

// withRetry runs op up to retryAttempts times with exponential backoff,
// logging once on final failure. Transport errors and 5xx responses are
// retried; 4xx (NoSuchKey etc.) return immediately.
func withRetry(ctx context.Context, log logger.Logger, op string, key string, fn func(context.Context) error) error {
	backoff := retry.NewExponential(retryBaseWait)
	backoff = retry.WithMaxRetries(retryAttempts-1, backoff)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if awsErr, ok := err.(awserr.Error); ok {
			switch awsErr.Code() {
			case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
				return err
			}
		}
		if reqErr, ok := err.(awserr.RequestFailure); ok && reqErr.StatusCode() >= 400 && reqErr.StatusCode() < 500 {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		log.Error("objectstore operation failed", "op", op, "key", key, "error", err)
	}
	return err
}

func (s *s3Store) Put(ctx context.Context, key string, body []byte, contentType string) error {
	log := logger.FromContext(ctx)
	err := withRetry(ctx, log, "put", key, func(ctx context.Context) error {
		_, err := s.v2Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
			Bucket:      awssdk.String(s.bucket),
			Key:         awssdk.String(key),
			Body:        bytes.NewReader(body),
			ContentType: awssdk.String(contentType),
		})
		return err
	})
	if err == nil {
		log.Info("object put", "key", key, "size", len(body))
	}
	return err
}

func (s *s3Store) PutJSON(ctx context.Context, key string, v any) error {
	body, err := marshalJSON(v)
	if err != nil {
		return fmt.Errorf("objectstore: marshal %s: %w", key, err)
	}
	return s.Put(ctx, key, body, "application/json")
}

func (s *s3Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	log := logger.FromContext(ctx)
	var body []byte
	missing := false
	err := withRetry(ctx, log, "get", key, func(ctx context.Context) error {
		out, err := s.v2Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
			Bucket: awssdk.String(s.bucket),
			Key:    awssdk.String(key),
		})
		if isNotFound(err) {
			missing = true
			return nil
		}
		if err != nil {
			return err
		}
		defer out.Body.Close()
		body, err = io.ReadAll(out.Body)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if missing {
		return nil, false, nil
	}
	log.Info("object get", "key", key, "size", len(body))
	return body, true, nil
}

func (s *s3Store) GetJSON(ctx context.Context, key string, v any) (bool, error) {
	body, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return ok, err
	}
	if err := jsonUnmarshal(body, v); err != nil {
		return false, fmt.Errorf("objectstore: unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (s *s3Store) Exists(ctx context.Context, key string) (bool, error) {
	log := logger.FromContext(ctx)
	found := false
	err := withRetry(ctx, log, "head", key, func(ctx context.Context) error {
		_, err := s.v4Client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
			Bucket: awssdk.String(s.bucket),
			Key:    awssdk.String(key),
		})
		if isNotFound(err) {
			return nil
		}
		if err == nil {
			found = true
		}
		return err
	})
	return found, err
}

func (s *s3Store) Delete(ctx context.Context, key string) error {
	log := logger.FromContext(ctx)
	err := withRetry(ctx, log, "delete", key, func(ctx context.Context) error {
		_, err := s.v2Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
			Bucket: awssdk.String(s.bucket),
			Key:    awssdk.String(key),
		})
		return err
	})
	if err == nil {
		log.Info("object deleted", "key", key)
	}
	return err
}

func (s *s3Store) DeleteMany(ctx context.Context, keys []string) (int, error) {
	deleted := 0
	for _, key := range keys {
		if err := s.Delete(ctx, key); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func (s *s3Store) ListObjects(ctx context.Context, prefix string, max int) ([]ObjectInfo, error) {
	log := logger.FromContext(ctx)
	var out []ObjectInfo
	err := withRetry(ctx, log, "list", prefix, func(ctx context.Context) error {
		out = nil
		return s.v4Client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
			Bucket: awssdk.String(s.bucket),
			Prefix: awssdk.String(prefix),
		}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, obj := range page.Contents {
				out = append(out, ObjectInfo{
					Key:      awssdk.StringValue(obj.Key),
					Size:     awssdk.Int64Value(obj.Size),
					Modified: awssdk.TimeValue(obj.LastModified),
				})
				if max > 0 && len(out) >= max {
					return false
				}
			}
			return true
		})
	})
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out, err
}

func (s *s3Store) ListPrefixes(ctx context.Context, prefix, delimiter string) ([]string, error) {
	log := logger.FromContext(ctx)
	var out []string
	err := withRetry(ctx, log, "list-prefixes", prefix, func(ctx context.Context) error {
		out = nil
		return s.v4Client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
			Bucket:    awssdk.String(s.bucket),
			Prefix:    awssdk.String(prefix),
			Delimiter: awssdk.String(delimiter),
		}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, cp := range page.CommonPrefixes {
				out = append(out, awssdk.StringValue(cp.Prefix))
			}
			return true
		})
	})
	return out, err
}

func (s *s3Store) ListAndGet(ctx context.Context, prefix string, excludeKeep bool) ([]Fetched, error) {
	objs, err := s.ListObjects(ctx, prefix, 0)
	if err != nil {
		return nil, err
	}
	out := make([]Fetched, 0, len(objs))
	for _, o := range objs {
		if excludeKeep && isKeepKey(o.Key) {
			continue
		}
		body, ok, err := s.Get(ctx, o.Key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, Fetched{Key: o.Key, Content: body, Size: o.Size, Modified: o.Modified})
	}
	return out, nil
}

func (s *s3Store) Copy(ctx context.Context, src, dst string) error {
	log := logger.FromContext(ctx)
	err := withRetry(ctx, log, "copy", dst, func(ctx context.Context) error {
		_, err := s.v2Client.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
			Bucket:     awssdk.String(s.bucket),
			CopySource: awssdk.String(s.bucket + "/" + src),
			Key:        awssdk.String(dst),
		})
		return err
	})
	if err == nil {
		log.Info("object copied", "src", src, "dst", dst)
	}
	return err
}

func (s *s3Store) Health(ctx context.Context) error {
	log := logger.FromContext(ctx)
	return withRetry(ctx, log, "health", s.bucket, func(ctx context.Context) error {
		_, err := s.v4Client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
			Bucket: awssdk.String(s.bucket),
		})
		return err
	})
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	if awsErr, ok := err.(awserr.Error); ok {
		switch awsErr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound", "404":
			return true
		}
	}
	return false
}
