package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/gophmaps/internal/common"
	"github.com/dmitrijs2005/gophmaps/internal/metrics"
	gobreaker "github.com/sony/gobreaker/v2"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type s3API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type presignAPI interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Config holds the connection settings of an S3-compatible store.
type S3Config struct {
	Region       string
	User         string
	Password     string
	BaseEndpoint string
	Bucket       string

	// Breaker settings; zero values use defaults.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// S3Store implements ObjectStore over aws-sdk-go-v2. Every call runs
// through a circuit breaker; an open breaker fails fast with
// common.ErrStorageUnavailable.
type S3Store struct {
	client    s3API
	presigner presignAPI
	bucket    string
	breaker   *gobreaker.CircuitBreaker[any]
	now       func() time.Time
}

func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.User,
			cfg.Password,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(client, s3.NewPresignClient(client), cfg), nil
}

func newS3Store(client s3API, presigner presignAPI, cfg S3Config) *S3Store {
	return &S3Store{
		client:    client,
		presigner: presigner,
		bucket:    cfg.Bucket,
		breaker:   newBreaker(cfg),
		now:       time.Now,
	}
}

func newBreaker(cfg S3Config) *gobreaker.CircuitBreaker[any] {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	timeout := cfg.OpenTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "object-store",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Only transient failures count against the store.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(classify(err), common.ErrStorageUnavailable)
		},
		OnStateChange: func(_ string, _, to gobreaker.State) {
			metrics.StorageBreakerState.Set(float64(to))
		},
	})
}

func (s *S3Store) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	out, err := s.call("head", func() (any, error) {
		return s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key})
	})
	if err != nil {
		return nil, err
	}
	head := out.(*s3.HeadObjectOutput)
	info := &ObjectInfo{
		Key:         key,
		Size:        aws.ToInt64(head.ContentLength),
		ContentType: aws.ToString(head.ContentType),
	}
	if head.LastModified != nil {
		info.LastModified = *head.LastModified
	}
	return info, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.call("delete", func() (any, error) {
		return s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &key})
	})
	if errors.Is(err, ErrObjectNotFound) {
		return nil
	}
	return err
}

func (s *S3Store) List(ctx context.Context, prefix string, fn func(ObjectInfo) error) error {
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{Bucket: &s.bucket, Prefix: &prefix})
	for p.HasMorePages() {
		out, err := s.call("list", func() (any, error) { return p.NextPage(ctx) })
		if err != nil {
			return err
		}
		for _, obj := range out.(*s3.ListObjectsV2Output).Contents {
			info := ObjectInfo{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			if err := fn(info); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *S3Store) PresignPut(ctx context.Context, key, contentType string, size int64, ttl time.Duration) (*PresignedRequest, error) {
	expires := s.now().Add(ttl)
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		ContentType:   &contentType,
		ContentLength: &size,
		IfNoneMatch:   aws.String("*"),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}
	return toPresigned(req, expires), nil
}

func (s *S3Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (*PresignedRequest, error) {
	expires := s.now().Add(ttl)
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key}, s3.WithPresignExpires(ttl))
	if err != nil {
		return nil, fmt.Errorf("presign get: %w", err)
	}
	return toPresigned(req, expires), nil
}

func toPresigned(req *v4.PresignedHTTPRequest, expires time.Time) *PresignedRequest {
	header := http.Header{}
	for k, v := range req.SignedHeader {
		if http.CanonicalHeaderKey(k) == "Host" {
			continue
		}
		header[http.CanonicalHeaderKey(k)] = v
	}
	return &PresignedRequest{Method: req.Method, URL: req.URL, Header: header, ExpiresAt: expires}
}

func (s *S3Store) call(op string, fn func() (any, error)) (any, error) {
	out, err := s.breaker.Execute(fn)
	err = classify(err)
	metrics.RecordStorageRequest(op, outcome(err))
	if err != nil {
		return nil, fmt.Errorf("storage %s: %w", op, err)
	}
	return out, nil
}

// classify maps SDK and breaker errors onto the storage error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrObjectNotFound) || errors.Is(err, common.ErrStorageUnavailable) || errors.Is(err, common.ErrStorageFatal) {
		return err
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return ErrObjectNotFound
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch code := respErr.HTTPStatusCode(); {
		case code == http.StatusNotFound:
			return ErrObjectNotFound
		case code == http.StatusTooManyRequests || code >= 500:
			return fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
		case code >= 400:
			return fmt.Errorf("%w: %v", common.ErrStorageFatal, err)
		}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorFault() == smithy.FaultClient {
		return fmt.Errorf("%w: %v", common.ErrStorageFatal, err)
	}

	// Network failures, timeouts and server faults.
	return fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrObjectNotFound):
		return "not_found"
	case errors.Is(err, common.ErrStorageUnavailable):
		return "unavailable"
	case errors.Is(err, common.ErrStorageFatal):
		return "fatal"
	}
	return "error"
}

var _ ObjectStore = (*S3Store)(nil)
