package archive

import (
	"context"
	"path"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nsagency/pkg/compression"
	"github.com/ajitpratap0/nsagency/pkg/config"
	"github.com/ajitpratap0/nsagency/pkg/errors"
	"github.com/ajitpratap0/nsagency/pkg/models"
)

const defaultUploadPartSize = 5 * 1024 * 1024 // 5MB

// Uploader is the part of manager.Uploader the sink uses.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Sink writes batches to an S3 bucket.
type S3Sink struct {
	uploader Uploader
	bucket   string
	prefix   string
	runID    string
	algo     compression.Algorithm
	logger   *zap.Logger
}

// NewS3Sink loads the default AWS configuration for cfg.Region and builds
// an uploader. cfg.Endpoint targets S3-compatible stores.
func NewS3Sink(ctx context.Context, cfg config.ArchiveConfig, runID string, algo compression.Algorithm, logger *zap.Logger) (*S3Sink, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS configuration")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = defaultUploadPartSize
	})
	return NewS3SinkWithUploader(uploader, cfg.Bucket, cfg.Prefix, runID, algo, logger), nil
}

// NewS3SinkWithUploader creates a sink over an existing uploader.
func NewS3SinkWithUploader(uploader Uploader, bucket, prefix, runID string, algo compression.Algorithm, logger *zap.Logger) *S3Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Sink{
		uploader: uploader,
		bucket:   bucket,
		prefix:   prefix,
		runID:    runID,
		algo:     algo,
		logger:   logger.With(zap.String("component", "archive_s3")),
	}
}

// Write implements Sink.
func (s *S3Sink) Write(ctx context.Context, kind string, entities []*models.Entity) (string, error) {
	buf, err := encode(entities, s.algo)
	if err != nil {
		return "", err
	}
	size := buf.Len()

	key := path.Join(s.prefix, objectName(kind, s.runID, s.algo))
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        buf,
		ContentType: aws.String("application/x-ndjson"),
		Metadata: map[string]string{
			"kind":     kind,
			"entities": strconv.Itoa(len(entities)),
			"created":  time.Now().UTC().Format(time.RFC3339),
		},
	}
	if enc := s.algo.ContentEncoding(); enc != "" {
		input.ContentEncoding = aws.String(enc)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeConnection, "failed to upload to S3").
			WithDetail("bucket", s.bucket).
			WithDetail("key", key)
	}

	location := "s3://" + s.bucket + "/" + key
	s.logger.Info("batch archived",
		zap.String("kind", kind),
		zap.String("location", location),
		zap.Int("entities", len(entities)),
		zap.Int("bytes", size))
	return location, nil
}
