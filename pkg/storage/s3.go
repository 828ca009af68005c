package storage

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// FolderRecordings is the object key prefix for recording output.
const FolderRecordings = "recordings"

// Config holds object storage settings. The egress service writes recording
// files here directly; this package only presigns downloads and builds URLs.
type Config struct {
	AccessKey            string
	SecretKey            string
	Bucket               string
	Endpoint             string // empty = AWS S3
	Region               string
	PublicBaseURL        string // optional public URL prefix for objects
	ForcePathStyle       bool
	PresignExpireMinutes int
}

// Configured reports whether recordings can be written to object storage.
func (c Config) Configured() bool {
	return c.AccessKey != "" && c.SecretKey != "" && c.Bucket != ""
}

// RecordingKey returns the object key for a recording started at t:
// recordings/{session_id}/{unix_ts}.ogg.
func RecordingKey(sessionID string, t time.Time) string {
	return path.Join(FolderRecordings, sessionID, fmt.Sprintf("%d.ogg", t.Unix()))
}

// S3 provides presigned download URLs for recording objects.
type S3 struct {
	client *s3.Client
	cfg    Config
	logger *zap.Logger
}

// NewS3 creates an S3 client from static credentials. Endpoint may point at an
// S3-compatible service (MinIO etc.).
func NewS3(ctx context.Context, cfg Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	logger.Info("S3 client ready", zap.String("bucket", cfg.Bucket), zap.String("region", cfg.Region))
	return &S3{client: client, cfg: cfg, logger: logger}, nil
}

// PresignDownloadURL returns a pre-signed GET URL for an object key.
func (s *S3) PresignDownloadURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(s.client)
	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

// PresignExpire returns the configured presign duration.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}

// PublicObjectURL returns the public URL for an object key. Used as the
// best-effort fallback when a completed job carries no file location.
func (c Config) PublicObjectURL(key string) string {
	if c.PublicBaseURL != "" {
		return c.PublicBaseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.Bucket, c.Region, key)
}
