package rowtable

import (
	"context"
	"io"
	"os"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/parquet/compress"

	"github.com/evarc/evarc/pkg/errors"
)

func parquetCodec(name string) (compress.Compression, error) {
	switch name {
	case "", "none":
		return compress.Codecs.Uncompressed, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "snappy":
		return compress.Codecs.Snappy, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "lz4":
		return compress.Codecs.Lz4Raw, nil
	default:
		return compress.Codecs.Uncompressed, errors.New(errors.ErrorTypeConfig, "unsupported parquet compression").
			WithDetail("compression", name)
	}
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

func (t *table) schema() *arrow.Schema {
	fields := make([]arrow.Field, 0, len(t.order)+1)
	for _, c := range t.order {
		fields = append(fields, arrow.Field{
			Name:     c.name,
			Type:     c.list.Type(),
			Nullable: true,
		})
	}
	fields = append(fields, arrow.Field{
		Name:     MetadataColumn,
		Type:     arrow.BinaryTypes.String,
		Nullable: true,
	})

	keys := make([]string, 0, len(t.metadata))
	for k := range t.metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = t.metadata[k]
	}
	md := arrow.NewMetadata(keys, values)

	return arrow.NewSchema(fields, &md)
}

func (t *table) Finalize(ctx context.Context) (FinalizeStats, error) {
	stats := FinalizeStats{Rows: t.rows, Columns: len(t.order)}

	if t.finalized {
		return stats, errors.New(errors.ErrorTypeState, "table already finalized")
	}
	if err := ctx.Err(); err != nil {
		return stats, errors.Wrap(err, errors.ErrorTypeTimeout, "finalize cancelled")
	}
	t.finalized = true

	schema := t.schema()

	cols := make([]arrow.Array, 0, len(t.order)+1)
	for _, c := range t.order {
		arr := c.list.NewArray()
		defer arr.Release()
		cols = append(cols, arr)
	}
	metaArr := t.metaBuilder.NewArray()
	defer metaArr.Release()
	cols = append(cols, metaArr)

	record := array.NewRecord(schema, cols, t.rows)
	defer record.Release()

	f, err := os.Create(t.opts.Path)
	if err != nil {
		return stats, errors.Wrap(err, errors.ErrorTypeStorage, "failed to create output file").
			WithDetail("path", t.opts.Path)
	}
	cw := &countingWriter{w: f}

	switch t.opts.Format {
	case FormatArrow:
		err = writeArrowFile(cw, schema, record, t.alloc)
	default:
		err = writeParquetFile(cw, schema, record, t.opts, t.alloc)
	}
	if err != nil {
		f.Close()
		return stats, err
	}
	if err := f.Close(); err != nil {
		return stats, errors.Wrap(err, errors.ErrorTypeStorage, "failed to close output file").
			WithDetail("path", t.opts.Path)
	}

	stats.BytesWritten = cw.n
	return stats, nil
}
