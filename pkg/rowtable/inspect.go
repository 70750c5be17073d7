package rowtable

import (
	"bytes"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/evarc/evarc/pkg/errors"
)

// ColumnSummary describes one column of a finished file.
type ColumnSummary struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Summary describes a finished output file.
type Summary struct {
	Path     string            `json:"path"`
	Format   Format            `json:"format"`
	Rows     int64             `json:"rows"`
	Columns  []ColumnSummary   `json:"columns"`
	Metadata map[string]string `json:"metadata"`
}

// Inspect reads the schema, row count and footer metadata of a finished
// output file. The format is detected from the file magic.
func Inspect(path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to open file").
			WithDetail("path", path)
	}
	defer f.Close()

	magic := make([]byte, 6)
	if _, err := io.ReadFull(f, magic); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to read file header").
			WithDetail("path", path)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to seek file").
			WithDetail("path", path)
	}

	switch {
	case bytes.HasPrefix(magic, []byte("PAR1")):
		return inspectParquet(f, path)
	case bytes.HasPrefix(magic, []byte("ARROW1")):
		return inspectArrow(f, path)
	default:
		return nil, errors.New(errors.ErrorTypeStorage, "unrecognized file format").
			WithDetail("path", path)
	}
}

func inspectParquet(f *os.File, path string) (*Summary, error) {
	fr, err := file.NewParquetReader(f)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to open parquet file").
			WithDetail("path", path)
	}
	defer fr.Close()

	ar, err := pqarrow.NewFileReader(fr, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to create parquet reader")
	}
	schema, err := ar.Schema()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSchema, "failed to read parquet schema")
	}

	s := &Summary{
		Path:     path,
		Format:   FormatParquet,
		Rows:     fr.NumRows(),
		Metadata: make(map[string]string),
	}
	for _, fld := range schema.Fields() {
		s.Columns = append(s.Columns, ColumnSummary{Name: fld.Name, Type: fld.Type.String()})
	}
	// The footer key-value metadata carries what the writer stamped;
	// the arrow schema read back through pqarrow does not.
	if kv := fr.MetaData().KeyValueMetadata(); kv != nil {
		for i, k := range kv.Keys() {
			if k == "ARROW:schema" {
				continue
			}
			s.Metadata[k] = kv.Values()[i]
		}
	}
	return s, nil
}

func inspectArrow(f *os.File, path string) (*Summary, error) {
	rdr, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to open arrow file").
			WithDetail("path", path)
	}
	defer rdr.Close()

	schema := rdr.Schema()
	s := &Summary{
		Path:     path,
		Format:   FormatArrow,
		Metadata: make(map[string]string),
	}
	for _, fld := range schema.Fields() {
		s.Columns = append(s.Columns, ColumnSummary{Name: fld.Name, Type: fld.Type.String()})
	}
	md := schema.Metadata()
	for i, k := range md.Keys() {
		s.Metadata[k] = md.Values()[i]
	}
	for i := 0; i < rdr.NumRecords(); i++ {
		rec, err := rdr.Record(i)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to read arrow record")
		}
		s.Rows += rec.NumRows()
	}
	return s, nil
}
