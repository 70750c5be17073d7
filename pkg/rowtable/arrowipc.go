package rowtable

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/evarc/evarc/pkg/errors"
)

func writeArrowFile(w io.Writer, schema *arrow.Schema, record arrow.Record, alloc memory.Allocator) error {
	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(alloc))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeStorage, "failed to create arrow writer")
	}

	if err := fw.Write(record); err != nil {
		fw.Close()
		return errors.Wrap(err, errors.ErrorTypeStorage, "failed to write arrow data")
	}

	if err := fw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeStorage, "failed to close arrow writer")
	}
	return nil
}
