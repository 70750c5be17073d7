package storage

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/evarc/evarc/pkg/compression"
	"github.com/evarc/evarc/pkg/config"
	"github.com/evarc/evarc/pkg/errors"
)

const (
	defaultUploadPartSize = 8 * 1024 * 1024
	defaultUploadWorkers  = 4
)

type countingReader struct {
	r io.Reader
	n int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}

func copyToS3(ctx context.Context, src io.Reader, bucket, key string, alg compression.Algorithm, out *config.OutputConfig) (int64, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if out.CopyRegion != "" {
		opts = append(opts, awsconfig.WithRegion(out.CopyRegion))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeConnection, "failed to load AWS configuration")
	}

	partSize := int64(out.CopyPartSizeMB) * 1024 * 1024
	if partSize <= 0 {
		partSize = defaultUploadPartSize
	}
	workers := out.CopyConcurrency
	if workers <= 0 {
		workers = defaultUploadWorkers
	}

	client := s3.NewFromConfig(cfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = partSize
		u.Concurrency = workers
	})

	pr, pw := io.Pipe()
	go func() {
		_, perr := pump(pw, src, alg)
		pw.CloseWithError(perr)
	}()

	cr := &countingReader{r: pr}
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        cr,
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"source":  filepath.Base(key),
			"created": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return cr.n, errors.Wrap(err, errors.ErrorTypeConnection, "failed to upload to S3").
			WithDetail("bucket", bucket).
			WithDetail("key", key)
	}
	return cr.n, nil
}
