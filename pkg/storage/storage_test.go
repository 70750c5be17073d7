package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evarc/evarc/pkg/compression"
	"github.com/evarc/evarc/pkg/config"
)

func writeSource(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestParseDestination(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Destination
		wantErr bool
	}{
		{name: "s3 with key", raw: "s3://archive/runs/", want: Destination{Kind: KindS3, Bucket: "archive", Key: "runs/"}},
		{name: "s3 bare bucket", raw: "s3://archive", want: Destination{Kind: KindS3, Bucket: "archive"}},
		{name: "s3 missing bucket", raw: "s3://", wantErr: true},
		{name: "gcs", raw: "gs://archive/runs/out.parquet", want: Destination{Kind: KindGCS, Bucket: "archive", Key: "runs/out.parquet"}},
		{name: "file url", raw: "file:///data/out", want: Destination{Kind: KindLocal, Key: "/data/out"}},
		{name: "plain path", raw: "/data/out", want: Destination{Kind: KindLocal, Key: "/data/out"}},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDestination(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestObjectKey(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name   string
		dest   Destination
		suffix string
		want   string
	}{
		{name: "empty key takes base name", dest: Destination{Kind: KindS3, Key: ""}, want: "run.parquet"},
		{name: "prefix appends base name", dest: Destination{Kind: KindS3, Key: "runs/"}, want: "runs/run.parquet"},
		{name: "explicit key kept", dest: Destination{Kind: KindS3, Key: "runs/other.parquet"}, want: "runs/other.parquet"},
		{name: "suffix added to explicit key", dest: Destination{Kind: KindS3, Key: "runs/other.parquet"}, suffix: ".gz", want: "runs/other.parquet.gz"},
		{name: "local directory joins base", dest: Destination{Kind: KindLocal, Key: dir}, want: filepath.Join(dir, "run.parquet")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.dest.objectKey("/tmp/run.parquet", tt.suffix)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCopyLocal(t *testing.T) {
	data := []byte("event archive payload")
	src := writeSource(t, "run.parquet", data)
	destDir := t.TempDir()

	out := &config.OutputConfig{CopyTo: destDir, CopyCompression: "none"}
	res, err := Copy(context.Background(), src, out)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(destDir, "run.parquet"), res.Destination)
	assert.Equal(t, int64(len(data)), res.Bytes)

	copied, err := os.ReadFile(res.Destination)
	require.NoError(t, err)
	assert.Equal(t, data, copied)
}

func TestCopyLocalCompressed(t *testing.T) {
	data := make([]byte, 0, 4096)
	for i := 0; i < 256; i++ {
		data = append(data, []byte("repetitive archive content ")...)
	}
	src := writeSource(t, "run.parquet", data)
	destDir := t.TempDir()

	out := &config.OutputConfig{CopyTo: destDir + "/", CopyCompression: "gzip"}
	res, err := Copy(context.Background(), src, out)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(destDir, "run.parquet.gz"), res.Destination)
	assert.Less(t, res.Bytes, int64(len(data)))

	compressed, err := os.ReadFile(res.Destination)
	require.NoError(t, err)

	c, err := compression.NewCompressor(&compression.Config{Algorithm: compression.Gzip})
	require.NoError(t, err)
	restored, err := c.Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, data, restored)
}

func TestCopyCreatesMissingDirectory(t *testing.T) {
	data := []byte("payload")
	src := writeSource(t, "run.parquet", data)
	dest := filepath.Join(t.TempDir(), "nested", "deeper") + "/"

	out := &config.OutputConfig{CopyTo: dest}
	res, err := Copy(context.Background(), src, out)
	require.NoError(t, err)

	_, err = os.Stat(res.Destination)
	assert.NoError(t, err)
}

func TestCopyMissingSource(t *testing.T) {
	out := &config.OutputConfig{CopyTo: t.TempDir()}
	_, err := Copy(context.Background(), filepath.Join(t.TempDir(), "absent.parquet"), out)
	assert.Error(t, err)
}
