// Package rowtable implements the per-event columnar table behind the
// writer. Each collection becomes a list-of-struct column holding one
// list cell per event; events where a collection is absent hold an empty
// cell, so every column always has exactly one cell per written row.
//
// Columns are created lazily as collections first appear. Creating a
// column after rows have been written backfills one empty cell per
// existing row, keeping the row-count invariant intact.
package rowtable

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/evarc/evarc/pkg/datamodel"
	"github.com/evarc/evarc/pkg/errors"
)

// Format selects the on-disk encoding of the table.
type Format string

const (
	// FormatParquet writes a Parquet file via the Arrow bridge.
	FormatParquet Format = "parquet"
	// FormatArrow writes an Arrow IPC file.
	FormatArrow Format = "arrow"
)

// MetadataColumn is the name of the built-in per-event metadata column.
// It holds one JSON document per row and is always the last column.
const MetadataColumn = "evt_metadata"

// Options configures a table.
type Options struct {
	// Path is the output file the table encodes into at Finalize.
	Path string

	// Format selects parquet or arrow encoding.
	Format Format

	// Compression names the parquet codec ("none", "gzip", "snappy",
	// "zstd", "lz4"). Ignored for the arrow format.
	Compression string

	// RowGroupEvents caps the number of rows per parquet row group.
	// Zero means a single row group.
	RowGroupEvents int64

	// Allocator overrides the Arrow allocator. Defaults to the Go
	// allocator.
	Allocator memory.Allocator
}

// FinalizeStats reports what Finalize wrote.
type FinalizeStats struct {
	Rows         int64
	Columns      int
	BytesWritten int64
}

// Table is the writer's view of the columnar output. Implementations are
// not safe for concurrent use; the writer serializes access.
type Table interface {
	// HasColumn reports whether a collection column exists.
	HasColumn(name string) bool

	// ColumnType returns the declared family type of a column.
	ColumnType(name string) (string, bool)

	// CreateColumn adds a column for a collection of the given declared
	// family type and backfills one empty cell per already-written row.
	// It returns the number of backfilled cells.
	CreateColumn(name, typeName string) (int64, error)

	// Bind stages the current event's prepared rows for a column. The
	// staged rows are consumed by the next FillRow.
	Bind(name string, rows interface{}) error

	// FillRow appends one cell to every column: staged rows for bound
	// columns, an empty cell everywhere else, and the given JSON
	// document to the metadata column. Bindings are cleared.
	FillRow(metaJSON []byte) error

	// Rows returns the number of rows written so far.
	Rows() int64

	// ColumnNames returns the collection columns in creation order.
	ColumnNames() []string

	// SetMetadata attaches a key/value pair to the table footer.
	SetMetadata(key, value string)

	// Finalize encodes the table to its output path and returns write
	// statistics. The table cannot be written to afterwards.
	Finalize(ctx context.Context) (FinalizeStats, error)

	// Close releases builder memory. Safe to call after Finalize.
	Close() error
}

type column struct {
	name     string
	typeName string
	list     *array.ListBuilder
	strct    *array.StructBuilder
	appender datamodel.AppendFunc
	pending  interface{}
	bound    bool
}

type table struct {
	opts  Options
	alloc memory.Allocator

	order []*column
	index map[string]*column

	metaBuilder *array.StringBuilder
	metadata    map[string]string

	rows      int64
	finalized bool
}

// New creates an empty table.
func New(opts Options) (Table, error) {
	if opts.Path == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "output path is required")
	}
	switch opts.Format {
	case FormatParquet, FormatArrow:
	default:
		return nil, errors.New(errors.ErrorTypeConfig, "unsupported table format").
			WithDetail("format", string(opts.Format))
	}
	if opts.Format == FormatParquet {
		if _, err := parquetCodec(opts.Compression); err != nil {
			return nil, err
		}
	}

	alloc := opts.Allocator
	if alloc == nil {
		alloc = memory.NewGoAllocator()
	}

	return &table{
		opts:        opts,
		alloc:       alloc,
		index:       make(map[string]*column),
		metaBuilder: array.NewStringBuilder(alloc),
		metadata:    make(map[string]string),
	}, nil
}

func (t *table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

func (t *table) ColumnType(name string) (string, bool) {
	c, ok := t.index[name]
	if !ok {
		return "", false
	}
	return c.typeName, true
}

func (t *table) CreateColumn(name, typeName string) (int64, error) {
	if t.finalized {
		return 0, errors.New(errors.ErrorTypeState, "table already finalized")
	}
	if name == MetadataColumn {
		return 0, errors.New(errors.ErrorTypeSchema, "column name is reserved").
			WithDetail("column", name)
	}
	if _, ok := t.index[name]; ok {
		return 0, errors.New(errors.ErrorTypeSchema, "column already exists").
			WithDetail("column", name)
	}

	entry, ok := datamodel.LookupFamily(typeName)
	if !ok {
		return 0, errors.New(errors.ErrorTypeSchema, "unknown declared type").
			WithDetail("column", name).
			WithDetail("declared_type", typeName)
	}

	list := array.NewListBuilder(t.alloc, entry.ArrowType)
	c := &column{
		name:     name,
		typeName: typeName,
		list:     list,
		strct:    list.ValueBuilder().(*array.StructBuilder),
		appender: entry.AppendRows,
	}

	// A column born at row N owes one empty cell for each of the rows
	// written before it existed.
	for i := int64(0); i < t.rows; i++ {
		c.list.Append(true)
	}

	t.index[name] = c
	t.order = append(t.order, c)

	return t.rows, nil
}

func (t *table) Bind(name string, rows interface{}) error {
	c, ok := t.index[name]
	if !ok {
		return errors.New(errors.ErrorTypeSchema, "cannot bind unknown column").
			WithDetail("column", name)
	}
	c.pending = rows
	c.bound = true
	return nil
}

func (t *table) FillRow(metaJSON []byte) error {
	if t.finalized {
		return errors.New(errors.ErrorTypeState, "table already finalized")
	}

	for _, c := range t.order {
		c.list.Append(true)
		if c.bound {
			if err := c.appender(c.strct, c.pending); err != nil {
				return errors.Wrap(err, errors.ErrorTypeSchema, "failed to append rows").
					WithDetail("column", c.name)
			}
			c.pending = nil
			c.bound = false
		}
	}

	if len(metaJSON) == 0 {
		t.metaBuilder.AppendNull()
	} else {
		t.metaBuilder.Append(string(metaJSON))
	}

	t.rows++
	return nil
}

func (t *table) Rows() int64 {
	return t.rows
}

func (t *table) ColumnNames() []string {
	names := make([]string, len(t.order))
	for i, c := range t.order {
		names[i] = c.name
	}
	return names
}

func (t *table) SetMetadata(key, value string) {
	t.metadata[key] = value
}

func (t *table) Close() error {
	for _, c := range t.order {
		c.list.Release()
	}
	t.order = nil
	t.index = map[string]*column{}
	if t.metaBuilder != nil {
		t.metaBuilder.Release()
		t.metaBuilder = nil
	}
	return nil
}
