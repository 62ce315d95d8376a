package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/order"
	"github.com/leorit/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// S3MediaStorage presigns PUT URLs on an S3-compatible bucket (AWS S3, MinIO)
type S3MediaStorage struct {
	client    *s3.Client
	presign   *s3.PresignClient
	bucket    string
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewS3MediaStorage creates the storage from configuration. Without static
// keys the default AWS credential chain is used.
func NewS3MediaStorage(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*S3MediaStorage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			endpoint := cfg.Endpoint
			if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
				endpoint = "https://" + endpoint
			}
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &S3MediaStorage{
		client:    client,
		presign:   s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		ttl:       ttl,
		logger:    logger,
	}, nil
}

// GenerateUploadURL implements order.MediaStorage
func (s *S3MediaStorage) GenerateUploadURL(ctx context.Context, orderID uuid.UUID, stage order.Stage, fileName, contentType string) (*order.UploadURL, error) {
	key, err := MediaKey(s.keyPrefix, orderID, stage, fileName, contentType)
	if err != nil {
		return nil, err
	}

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return nil, fmt.Errorf("failed to presign QC upload: %w", err)
	}

	s.logger.Debug("presigned QC upload",
		zap.String("order_id", orderID.String()),
		zap.String("stage", stage.String()),
		zap.String("key", key),
	)
	return &order.UploadURL{
		URL:       req.URL,
		MediaRef:  key,
		Method:    req.Method,
		ExpiresAt: time.Now().Add(s.ttl),
	}, nil
}

// EnsureBucket creates the bucket when it is missing. Used at startup
// against MinIO in development.
func (s *S3MediaStorage) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}

	s.logger.Info("creating QC media bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	var owned *types.BucketAlreadyOwnedByYou
	if err != nil && !errors.As(err, &owned) {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Bucket returns the bucket name
func (s *S3MediaStorage) Bucket() string {
	return s.bucket
}

var _ order.MediaStorage = (*S3MediaStorage)(nil)

// LocalMediaStorage hands out URLs on a base URL without signing. It backs
// development setups where storage is disabled.
type LocalMediaStorage struct {
	BaseURL string
	TTL     time.Duration
}

// NewLocalMediaStorage creates a LocalMediaStorage
func NewLocalMediaStorage(baseURL string) *LocalMediaStorage {
	if baseURL == "" {
		baseURL = "http://localhost:9000/qc-media"
	}
	return &LocalMediaStorage{BaseURL: strings.TrimRight(baseURL, "/"), TTL: 15 * time.Minute}
}

// GenerateUploadURL implements order.MediaStorage
func (l *LocalMediaStorage) GenerateUploadURL(_ context.Context, orderID uuid.UUID, stage order.Stage, fileName, contentType string) (*order.UploadURL, error) {
	key, err := MediaKey("", orderID, stage, fileName, contentType)
	if err != nil {
		return nil, err
	}
	return &order.UploadURL{
		URL:       l.BaseURL + "/" + key,
		MediaRef:  key,
		Method:    http.MethodPut,
		ExpiresAt: time.Now().Add(l.TTL),
	}, nil
}

var _ order.MediaStorage = (*LocalMediaStorage)(nil)
