// Package columnar holds catalog records as Arrow records and persists them as
// Parquet batch files.
package columnar

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// Column names of a batch file.
const (
	ColumnName = "name"
	ColumnURL  = "url"
)

// Schema is the Arrow schema of a batch: one row per catalog record.
var Schema = arrow.NewSchema([]arrow.Field{
	{Name: ColumnName, Type: arrow.BinaryTypes.String},
	{Name: ColumnURL, Type: arrow.BinaryTypes.String},
}, nil)

// Row is one catalog record in a batch.
type Row struct {
	Name string
	URL  string
}

// BuildRecord converts rows into an Arrow record with Schema. The caller owns
// the returned record and must Release it.
func BuildRecord(mem memory.Allocator, rows []Row) arrow.Record {
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	b := array.NewRecordBuilder(mem, Schema)
	defer b.Release()

	names := b.Field(0).(*array.StringBuilder)
	urls := b.Field(1).(*array.StringBuilder)
	names.Reserve(len(rows))
	urls.Reserve(len(rows))

	for _, r := range rows {
		names.Append(r.Name)
		urls.Append(r.URL)
	}

	return b.NewRecord()
}

// WriteParquet writes rec to path as a Snappy-compressed Parquet file. The
// file is written next to path and renamed into place, so a failed write
// never leaves a partial batch behind.
func WriteParquet(path string, rec arrow.Record) (err error) {
	if !rec.Schema().Equal(Schema) {
		return fmt.Errorf("record schema %s does not match batch schema", rec.Schema())
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create batch dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".pokedex-*.parquet.tmp")
	if err != nil {
		return fmt.Errorf("create temp batch file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	tbl := array.NewTableFromRecords(Schema, []arrow.Record{rec})
	defer tbl.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	// The parquet writer closes sinks that implement io.Closer; the buffered
	// writer keeps the file handle ours.
	w := bufio.NewWriter(tmp)
	if err = pqarrow.WriteTable(tbl, w, max(rec.NumRows(), 1), props, arrProps); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("flush parquet: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync parquet: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close parquet: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}

// stringColumn is satisfied by *array.String and *array.LargeString.
type stringColumn interface {
	Len() int
	IsNull(i int) bool
	Value(i int) string
}

// ReadParquet reads a batch file back into rows, in file order.
func ReadParquet(ctx context.Context, path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer f.Close()

	mem := memory.DefaultAllocator
	tbl, err := pqarrow.ReadTable(ctx, f, parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	defer tbl.Release()

	names, err := readStrings(tbl, ColumnName)
	if err != nil {
		return nil, err
	}
	urls, err := readStrings(tbl, ColumnURL)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, len(names))
	for i := range names {
		rows[i] = Row{Name: names[i], URL: urls[i]}
	}
	return rows, nil
}

func readStrings(tbl arrow.Table, column string) ([]string, error) {
	idx := tbl.Schema().FieldIndices(column)
	if len(idx) == 0 {
		return nil, fmt.Errorf("parquet file has no %q column", column)
	}

	col := tbl.Column(idx[0])
	out := make([]string, 0, tbl.NumRows())
	for _, chunk := range col.Data().Chunks() {
		values, ok := chunk.(stringColumn)
		if !ok {
			return nil, fmt.Errorf("column %q has type %s, want string", column, chunk.DataType())
		}
		for i := 0; i < values.Len(); i++ {
			if values.IsNull(i) {
				out = append(out, "")
				continue
			}
			out = append(out, values.Value(i))
		}
	}
	return out, nil
}

// Head returns at most n leading rows.
func Head(rows []Row, n int) []Row {
	if n < 0 {
		n = 0
	}
	return rows[:min(n, len(rows))]
}
