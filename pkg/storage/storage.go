// Package storage publishes a finalized archive to a copy destination.
// Destinations are local paths, s3://bucket/prefix or gs://bucket/prefix
// URLs. The copy stream can optionally be compressed; the primary archive
// on disk is never touched.
package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evarc/evarc/pkg/compression"
	"github.com/evarc/evarc/pkg/config"
	"github.com/evarc/evarc/pkg/errors"
)

// Kind identifies a destination backend.
type Kind string

const (
	KindLocal Kind = "local"
	KindS3    Kind = "s3"
	KindGCS   Kind = "gcs"
)

// Destination is a parsed copy target.
type Destination struct {
	Kind   Kind
	Bucket string
	// Key is the object key for bucket destinations or the path for
	// local ones. A trailing slash marks a prefix; the source file name
	// is appended.
	Key string
}

// CopyResult reports a completed copy.
type CopyResult struct {
	// Destination is the fully resolved target, e.g. s3://bucket/key.
	Destination string
	// Bytes is the number of bytes sent, after optional compression.
	Bytes int64
	// Duration is the wall time of the copy.
	Duration time.Duration
}

// ParseDestination parses a raw copy destination.
func ParseDestination(raw string) (*Destination, error) {
	switch {
	case raw == "":
		return nil, errors.New(errors.ErrorTypeConfig, "copy destination is empty")
	case strings.HasPrefix(raw, "s3://"):
		bucket, key, _ := strings.Cut(strings.TrimPrefix(raw, "s3://"), "/")
		if bucket == "" {
			return nil, errors.New(errors.ErrorTypeConfig, "s3 destination requires a bucket").
				WithDetail("destination", raw)
		}
		return &Destination{Kind: KindS3, Bucket: bucket, Key: key}, nil
	case strings.HasPrefix(raw, "gs://"):
		bucket, key, _ := strings.Cut(strings.TrimPrefix(raw, "gs://"), "/")
		if bucket == "" {
			return nil, errors.New(errors.ErrorTypeConfig, "gcs destination requires a bucket").
				WithDetail("destination", raw)
		}
		return &Destination{Kind: KindGCS, Bucket: bucket, Key: key}, nil
	case strings.HasPrefix(raw, "file://"):
		return &Destination{Kind: KindLocal, Key: strings.TrimPrefix(raw, "file://")}, nil
	default:
		return &Destination{Kind: KindLocal, Key: raw}, nil
	}
}

func compressionSuffix(alg compression.Algorithm) string {
	switch alg {
	case compression.Gzip:
		return ".gz"
	case compression.Zstd:
		return ".zst"
	case compression.LZ4:
		return ".lz4"
	case compression.Snappy:
		return ".snappy"
	case compression.S2:
		return ".s2"
	default:
		return ""
	}
}

// objectKey resolves the final key for a source file. Empty keys and
// trailing-slash prefixes take the source base name; local directories
// do the same.
func (d *Destination) objectKey(srcPath, suffix string) string {
	base := filepath.Base(srcPath) + suffix
	key := d.Key

	switch {
	case key == "":
		return base
	case strings.HasSuffix(key, "/"):
		return key + base
	}

	if d.Kind == KindLocal {
		if fi, err := os.Stat(key); err == nil && fi.IsDir() {
			return filepath.Join(key, base)
		}
	}
	if suffix != "" && !strings.HasSuffix(key, suffix) {
		return key + suffix
	}
	return key
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// pump streams src into w, compressing when alg is set, and returns the
// number of bytes written to w.
func pump(w io.Writer, src io.Reader, alg compression.Algorithm) (int64, error) {
	cw := &countingWriter{w: w}
	if alg == compression.None {
		if _, err := io.Copy(cw, src); err != nil {
			return cw.n, errors.Wrap(err, errors.ErrorTypeStorage, "copy stream failed")
		}
		return cw.n, nil
	}

	c, err := compression.NewCompressor(&compression.Config{Algorithm: alg, Level: compression.Default})
	if err != nil {
		return 0, err
	}
	if err := c.CompressStream(cw, src); err != nil {
		return cw.n, errors.Wrap(err, errors.ErrorTypeStorage, "compressed copy stream failed")
	}
	return cw.n, nil
}

// Copy duplicates srcPath to the destination configured in out. The
// destination is not probed beforehand; missing buckets or directories
// surface as copy errors.
func Copy(ctx context.Context, srcPath string, out *config.OutputConfig) (*CopyResult, error) {
	dest, err := ParseDestination(out.CopyTo)
	if err != nil {
		return nil, err
	}

	alg, err := compression.ParseAlgorithm(out.CopyCompression)
	if err != nil {
		return nil, err
	}
	key := dest.objectKey(srcPath, compressionSuffix(alg))

	f, err := os.Open(srcPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to open archive for copy").
			WithDetail("path", srcPath)
	}
	defer f.Close()

	start := time.Now()
	var (
		n      int64
		target string
	)
	switch dest.Kind {
	case KindS3:
		n, err = copyToS3(ctx, f, dest.Bucket, key, alg, out)
		target = "s3://" + dest.Bucket + "/" + key
	case KindGCS:
		n, err = copyToGCS(ctx, f, dest.Bucket, key, alg)
		target = "gs://" + dest.Bucket + "/" + key
	default:
		n, err = copyToLocal(ctx, f, key, alg)
		target = key
	}
	if err != nil {
		return nil, err
	}

	return &CopyResult{Destination: target, Bytes: n, Duration: time.Since(start)}, nil
}

func copyToLocal(ctx context.Context, src io.Reader, path string, alg compression.Algorithm) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeTimeout, "copy cancelled")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, errors.Wrap(err, errors.ErrorTypeStorage, "failed to create copy directory").
				WithDetail("path", dir)
		}
	}

	dst, err := os.Create(path)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeStorage, "failed to create copy file").
			WithDetail("path", path)
	}

	n, err := pump(dst, src, alg)
	if err != nil {
		dst.Close()
		return n, err
	}
	if err := dst.Close(); err != nil {
		return n, errors.Wrap(err, errors.ErrorTypeStorage, "failed to close copy file").
			WithDetail("path", path)
	}
	return n, nil
}
