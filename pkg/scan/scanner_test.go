package scan

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydata/quarry/pkg/objectstore"
	"github.com/quarrydata/quarry/pkg/objectstore/local"
)

// writeParquet builds a small three-column Parquet file in memory.
func writeParquet(t *testing.T, ids []int64, names []string, scores []float64) []byte {
	t.Helper()

	pool := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "name", Type: arrow.BinaryTypes.String},
		{Name: "score", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)

	builder := array.NewRecordBuilder(pool, schema)
	defer builder.Release()
	builder.Field(0).(*array.Int64Builder).AppendValues(ids, nil)
	builder.Field(1).(*array.StringBuilder).AppendValues(names, nil)
	builder.Field(2).(*array.Float64Builder).AppendValues(scores, nil)

	record := builder.NewRecord()
	defer record.Release()

	var buf bytes.Buffer
	writer, err := pqarrow.NewFileWriter(schema, &buf,
		parquet.NewWriterProperties(), pqarrow.NewArrowWriterProperties())
	require.NoError(t, err)
	require.NoError(t, writer.Write(record))
	require.NoError(t, writer.Close())

	return buf.Bytes()
}

func seedStore(t *testing.T, files map[string][]byte) objectstore.Store {
	t.Helper()

	root := t.TempDir()
	for name, data := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, data, 0o600))
	}

	store, err := local.New(root)
	require.NoError(t, err)
	return store
}

func TestScannerReadsRows(t *testing.T) {
	data := writeParquet(t,
		[]int64{1, 2, 3},
		[]string{"alpha", "beta", "gamma"},
		[]float64{0.5, 1.5, 2.5})
	store := seedStore(t, map[string][]byte{"bucket1/data/t.parquet": data})

	meta := objectstore.ObjectMeta{Path: "bucket1/data/t.parquet", Size: uint64(len(data))}
	scanner, err := Open(store, meta)
	require.NoError(t, err)
	defer scanner.Close()

	assert.Equal(t, int64(3), scanner.NumRows())

	schema, err := scanner.Schema()
	require.NoError(t, err)
	require.Len(t, schema.Fields(), 3)
	assert.Equal(t, "id", schema.Field(0).Name)

	var rows []Row
	err = scanner.Scan(context.Background(), func(row Row) error {
		rows = append(rows, row)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, int64(1), rows[0]["id"])
	assert.Equal(t, "alpha", rows[0]["name"])
	assert.Equal(t, 0.5, rows[0]["score"])
	assert.Equal(t, int64(3), rows[2]["id"])
	assert.Equal(t, "gamma", rows[2]["name"])
}

func TestScanDeliversEveryRowWithoutError(t *testing.T) {
	const rows = 50
	ids := make([]int64, rows)
	names := make([]string, rows)
	scores := make([]float64, rows)
	for i := range ids {
		ids[i] = int64(i)
		names[i] = "row"
		scores[i] = float64(i)
	}
	data := writeParquet(t, ids, names, scores)
	store := seedStore(t, map[string][]byte{"bucket1/wide.parquet": data})

	scanner, err := Open(store, objectstore.ObjectMeta{Path: "bucket1/wide.parquet", Size: uint64(len(data))})
	require.NoError(t, err)
	defer scanner.Close()

	seen := 0
	err = scanner.Scan(context.Background(), func(Row) error {
		seen++
		return nil
	})
	// Exhausting the stream is a successful scan, not a read failure
	require.NoError(t, err)
	assert.Equal(t, rows, seen)
}

func TestScannerCallbackErrorStopsScan(t *testing.T) {
	data := writeParquet(t, []int64{1, 2}, []string{"a", "b"}, []float64{0, 1})
	store := seedStore(t, map[string][]byte{"bucket1/t.parquet": data})

	scanner, err := Open(store, objectstore.ObjectMeta{Path: "bucket1/t.parquet", Size: uint64(len(data))})
	require.NoError(t, err)
	defer scanner.Close()

	sentinel := assert.AnError
	calls := 0
	err = scanner.Scan(context.Background(), func(Row) error {
		calls++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestOpenRejectsNonParquet(t *testing.T) {
	store := seedStore(t, map[string][]byte{"bucket1/junk.parquet": []byte("not parquet at all")})

	_, err := Open(store, objectstore.ObjectMeta{Path: "bucket1/junk.parquet", Size: 18})
	assert.Error(t, err)
}

func TestScanPrefix(t *testing.T) {
	first := writeParquet(t, []int64{1}, []string{"a"}, []float64{0.1})
	second := writeParquet(t, []int64{2}, []string{"b"}, []float64{0.2})
	store := seedStore(t, map[string][]byte{
		"bucket1/data/a.parquet": first,
		"bucket1/data/b.parquet": second,
		"bucket1/data/skip.txt":  []byte("not columnar"),
	})

	var ids []int64
	var paths []string
	err := ScanPrefix(context.Background(), store, "bucket1/data/", func(meta objectstore.ObjectMeta, row Row) error {
		ids = append(ids, row["id"].(int64))
		paths = append(paths, meta.Path)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2}, ids)
	assert.Equal(t, []string{"bucket1/data/a.parquet", "bucket1/data/b.parquet"}, paths)
}

func TestScanPrefixPropagatesListError(t *testing.T) {
	store := seedStore(t, nil)

	err := ScanPrefix(context.Background(), store, "missing/data/", func(objectstore.ObjectMeta, Row) error {
		t.Fatal("callback must not run when listing fails")
		return nil
	})
	assert.Error(t, err)
}
