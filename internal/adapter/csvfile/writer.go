package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/collision-weather-etl/internal/domain"
)

// Writer implements pipeline.BatchLoader, writing enriched rows as CSV.
type Writer struct {
	csv          *csv.Writer
	closer       io.Closer
	inputColumns []string
}

// Create creates (truncating) path and writes the output header.
func Create(path string, inputColumns []string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	w, err := NewWriter(f, inputColumns)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// NewWriter writes the output header for inputColumns to dst.
func NewWriter(dst io.Writer, inputColumns []string) (*Writer, error) {
	w := &Writer{csv: csv.NewWriter(dst), inputColumns: inputColumns}
	if err := w.csv.Write(domain.OutputColumns(inputColumns)); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return w, nil
}

// LoadBatch appends rows in order.
func (w *Writer) LoadBatch(_ context.Context, rows []domain.EnrichedCollision) error {
	for _, row := range rows {
		if err := w.csv.Write(row.Record(w.inputColumns)); err != nil {
			return fmt.Errorf("write %s: %w", row.EventID(), err)
		}
	}
	w.csv.Flush()
	return w.csv.Error()
}

// Close flushes buffered rows and closes the file, if Create opened it.
func (w *Writer) Close() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		if w.closer != nil {
			w.closer.Close()
		}
		return fmt.Errorf("flush output: %w", err)
	}
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}
