// Package scan reads Parquet objects through the objectstore contract,
// fetching footers and row groups with range reads and converting Arrow
// columns to plain Go values for row-oriented consumers.
package scan

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"go.uber.org/zap"

	"github.com/quarrydata/quarry/pkg/errors"
	"github.com/quarrydata/quarry/pkg/logger"
	"github.com/quarrydata/quarry/pkg/objectstore"
)

// DefaultBatchSize is the number of rows read per record batch. A zero
// batch size makes the Arrow record reader yield no records at all.
const DefaultBatchSize = 10000

// Row is a single decoded row, keyed by column name.
type Row map[string]interface{}

// Scanner reads one Parquet object. The footer is fetched at Open time; row
// groups are fetched lazily as rows are consumed.
type Scanner struct {
	meta        objectstore.ObjectMeta
	fileReader  *file.Reader
	arrowReader *pqarrow.FileReader
	logger      *zap.Logger
}

// Open opens the object described by meta through store. Only the Parquet
// footer is read here.
func Open(store objectstore.Store, meta objectstore.ObjectMeta) (*Scanner, error) {
	reader, err := store.Reader(meta)
	if err != nil {
		return nil, err
	}

	fr, err := file.NewParquetReader(newObjectReaderAt(reader))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to open Parquet object").
			WithDetail("object", meta.Path)
	}

	props := pqarrow.ArrowReadProperties{BatchSize: DefaultBatchSize}
	ar, err := pqarrow.NewFileReader(fr, props, memory.NewGoAllocator())
	if err != nil {
		_ = fr.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to create Arrow reader").
			WithDetail("object", meta.Path)
	}

	return &Scanner{
		meta:        meta,
		fileReader:  fr,
		arrowReader: ar,
		logger:      logger.With(zap.String("object", meta.Path)),
	}, nil
}

// Schema returns the Arrow schema of the object.
func (s *Scanner) Schema() (*arrow.Schema, error) {
	schema, err := s.arrowReader.Schema()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read schema")
	}
	return schema, nil
}

// NumRows returns the total row count from the footer.
func (s *Scanner) NumRows() int64 {
	return s.fileReader.NumRows()
}

// Scan streams every row to fn, one record batch at a time. A non-nil error
// from fn stops the scan and is returned as-is.
func (s *Scanner) Scan(ctx context.Context, fn func(Row) error) error {
	schema, err := s.Schema()
	if err != nil {
		return err
	}

	rr, err := s.arrowReader.GetRecordReader(ctx, nil, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to create record reader")
	}
	defer rr.Release()

	batches := 0
	rows := int64(0)
	for rr.Next() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		record := rr.Record()
		batches++
		rows += record.NumRows()

		for rowIdx := 0; rowIdx < int(record.NumRows()); rowIdx++ {
			row := make(Row, len(schema.Fields()))
			for colIdx := 0; colIdx < int(record.NumCols()); colIdx++ {
				field := schema.Field(colIdx)
				row[field.Name] = s.extractValue(record.Column(colIdx), rowIdx)
			}
			if err := fn(row); err != nil {
				return err
			}
		}
	}
	// The record reader reports io.EOF at normal stream exhaustion
	if err := rr.Err(); err != nil && !stderrors.Is(err, io.EOF) {
		return errors.Wrap(err, errors.ErrorTypeData, "record reader failed")
	}

	s.logger.Debug("scan completed",
		zap.Int64("rows", rows),
		zap.Int("batches", batches))

	return nil
}

// Close releases the underlying Parquet reader.
func (s *Scanner) Close() error {
	return s.fileReader.Close()
}

// ScanPrefix lists the .parquet objects under prefix and scans each in
// listing order. The listing is a snapshot; objects changed between listing
// and read surface as read errors.
func ScanPrefix(ctx context.Context, store objectstore.Store, prefix string, fn func(objectstore.ObjectMeta, Row) error) error {
	entries, err := store.List(ctx, prefix)
	if err != nil {
		return err
	}

	for _, meta := range entries {
		if !strings.HasSuffix(meta.Path, ".parquet") {
			continue
		}

		scanner, err := Open(store, meta)
		if err != nil {
			return err
		}

		err = scanner.Scan(ctx, func(row Row) error {
			return fn(meta, row)
		})
		closeErr := scanner.Close()
		if err != nil {
			return err
		}
		if closeErr != nil {
			return errors.Wrap(closeErr, errors.ErrorTypeData, "failed to close scanner").
				WithDetail("object", meta.Path)
		}
	}

	return nil
}

// extractValue converts an Arrow array element to a plain Go value.
func (s *Scanner) extractValue(arr arrow.Array, index int) interface{} {
	if arr.IsNull(index) {
		return nil
	}

	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(index)
	case *array.Int32:
		return a.Value(index)
	case *array.Int64:
		return a.Value(index)
	case *array.Float32:
		return a.Value(index)
	case *array.Float64:
		return a.Value(index)
	case *array.String:
		return a.Value(index)
	case *array.Binary:
		return a.Value(index)
	case *array.Date32:
		days := a.Value(index)
		return time.Unix(int64(days)*86400, 0).UTC()
	case *array.Timestamp:
		ts := a.Value(index)
		tsType := a.DataType().(*arrow.TimestampType)
		switch tsType.Unit {
		case arrow.Second:
			return time.Unix(int64(ts), 0).UTC()
		case arrow.Millisecond:
			return time.Unix(0, int64(ts)*1e6).UTC()
		case arrow.Microsecond:
			return time.Unix(0, int64(ts)*1e3).UTC()
		case arrow.Nanosecond:
			return time.Unix(0, int64(ts)).UTC()
		}
	case *array.List:
		start, end := a.ValueOffsets(index)
		valueArr := a.ListValues()
		values := make([]interface{}, end-start)
		for i := start; i < end; i++ {
			values[i-start] = s.extractValue(valueArr, int(i))
		}
		return values
	case *array.Struct:
		structType := a.DataType().(*arrow.StructType)
		result := make(map[string]interface{})
		for i, field := range structType.Fields() {
			result[field.Name] = s.extractValue(a.Field(i), index)
		}
		return result
	default:
		s.logger.Warn("unsupported Arrow type",
			zap.String("type", fmt.Sprintf("%T", arr)))
		return nil
	}

	return nil
}
