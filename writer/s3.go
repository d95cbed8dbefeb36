package writer

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	appconfig "fundcarry/config"
	"fundcarry/logger"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader stores result artifacts as plain S3 objects.
type S3Uploader struct {
	client  putObjectAPI
	bucket  string
	prefix  string
	version string
	log     *logger.Log
}

// NewS3Uploader configures the AWS SDK from the storage section. Static
// credentials are used when present, otherwise the default chain applies.
func NewS3Uploader(ctx context.Context, cfg appconfig.S3Config, version string) (*S3Uploader, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("s3 storage disabled")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return &S3Uploader{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		version: version,
		log:     logger.GetLogger(),
	}, nil
}

// ResultKey builds the object key for a run artifact:
// [prefix/]results/date=YYYY-MM-DD/<run>_<timestamp><uuid>.<ext>
func (u *S3Uploader) ResultKey(runID, ext string, now time.Time) string {
	now = now.UTC()
	filename := fmt.Sprintf("%s_%s.%s",
		runID,
		now.Format("20060102150405")+uuid.NewString(),
		strings.TrimPrefix(ext, "."),
	)
	parts := []string{"results", "date=" + now.Format("2006-01-02"), filename}
	if u.prefix != "" {
		parts = append([]string{u.prefix}, parts...)
	}
	return path.Join(parts...)
}

// Upload puts data under key.
func (u *S3Uploader) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"fundcarry-version": u.version,
		},
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	start := time.Now()
	if _, err := u.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	logger.LogPerformanceEntry(u.log.WithComponent("s3_writer"), "s3_writer", "put_object", time.Since(start), logger.Fields{
		"bucket": u.bucket,
		"key":    key,
		"bytes":  len(data),
	})
	return nil
}
