package rowtable

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/evarc/evarc/pkg/errors"
)

func writeParquetFile(w io.Writer, schema *arrow.Schema, record arrow.Record, opts Options, alloc memory.Allocator) error {
	codec, err := parquetCodec(opts.Compression)
	if err != nil {
		return err
	}

	propOpts := []parquet.WriterProperty{
		parquet.WithCompression(codec),
		parquet.WithDictionaryDefault(true),
		parquet.WithDataPageSize(1024 * 1024),
	}
	// The writer splits records into row groups of at most this many rows.
	if opts.RowGroupEvents > 0 {
		propOpts = append(propOpts, parquet.WithMaxRowGroupLength(opts.RowGroupEvents))
	}
	props := parquet.NewWriterProperties(propOpts...)
	arrProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(alloc))

	fw, err := pqarrow.NewFileWriter(schema, w, props, arrProps)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeStorage, "failed to create parquet writer")
	}

	if err := fw.Write(record); err != nil {
		fw.Close()
		return errors.Wrap(err, errors.ErrorTypeStorage, "failed to write parquet data")
	}

	if err := fw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeStorage, "failed to close parquet writer")
	}
	return nil
}
