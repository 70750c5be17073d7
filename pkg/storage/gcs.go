package storage

import (
	"context"
	"io"
	"path/filepath"
	"time"

	gcs "cloud.google.com/go/storage"

	"github.com/evarc/evarc/pkg/compression"
	"github.com/evarc/evarc/pkg/errors"
)

func copyToGCS(ctx context.Context, src io.Reader, bucket, key string, alg compression.Algorithm) (int64, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create GCS client")
	}
	defer client.Close()

	w := client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	w.Metadata = map[string]string{
		"source":  filepath.Base(key),
		"created": time.Now().UTC().Format(time.RFC3339),
	}

	n, err := pump(w, src, alg)
	if err != nil {
		w.Close()
		return n, err
	}
	if err := w.Close(); err != nil {
		return n, errors.Wrap(err, errors.ErrorTypeConnection, "failed to close GCS writer").
			WithDetail("bucket", bucket).
			WithDetail("key", key)
	}
	return n, nil
}
