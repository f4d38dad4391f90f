// Package csvfile reads the collision CSV and writes the weather-patched CSV.
package csvfile

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/collision-weather-etl/internal/domain"
	"github.com/couchcryptid/collision-weather-etl/internal/pipeline"
)

var utf8BOM = []byte("\ufeff")

// Reader implements pipeline.BatchExtractor over a collision CSV.
type Reader struct {
	path    string
	closer  io.Closer
	csv     *csv.Reader
	columns []string
	line    int64
	done    bool
}

// Open opens path and reads its header row.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open collisions: %w", err)
	}
	r, err := NewReader(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader reads the header row from src. name labels records in logs.
func NewReader(src io.Reader, name string) (*Reader, error) {
	br := bufio.NewReader(src)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: empty collisions file", name)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", name, err)
	}

	return &Reader{path: name, csv: cr, columns: header, line: 1}, nil
}

// Columns returns the header row.
func (r *Reader) Columns() []string {
	return r.columns
}

// ExtractBatch returns up to n rows. After the last row it returns
// pipeline.ErrSourceDrained. A malformed row fails the whole batch.
func (r *Reader) ExtractBatch(ctx context.Context, n int) ([]domain.RawEvent, error) {
	if r.done {
		return nil, pipeline.ErrSourceDrained
	}

	batch := make([]domain.RawEvent, 0, n)
	for len(batch) < n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := r.csv.Read()
		if errors.Is(err, io.EOF) {
			r.done = true
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.path, err)
		}
		r.line++

		row := domain.ParseCollision(r.columns, rec)
		batch = append(batch, domain.RawEvent{
			Key:    []byte(row.Get(domain.ColumnEventID)),
			Row:    &row,
			Topic:  r.path,
			Offset: r.line,
		})
	}

	if len(batch) == 0 {
		return nil, pipeline.ErrSourceDrained
	}
	return batch, nil
}

// Close closes the underlying file, if Open created it.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// CountRows counts data rows in path without keeping them.
func CountRows(path string) (int, error) {
	r, err := Open(path)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	var n int
	for {
		_, err := r.csv.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("%s: line %d: %w", path, n+2, err)
		}
		n++
	}
}
