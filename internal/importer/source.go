package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
)

// RowSource yields raw rows in source order. Implementations are
// forward-only, finite, and single-pass. Next returns io.EOF once the
// source is exhausted; any other error aborts the import as a
// SourceReadError.
type RowSource interface {
	Next(ctx context.Context) (Row, error)
}

// SliceSource serves rows from memory, assigning positions 1..n. Used for
// pre-parsed input and in tests.
type SliceSource struct {
	rows [][]string
	pos  int
}

// NewSliceSource creates a source over the given rows.
func NewSliceSource(rows [][]string) *SliceSource {
	return &SliceSource{rows: rows}
}

// Next implements RowSource.
func (s *SliceSource) Next(ctx context.Context) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}
	if s.pos >= len(s.rows) {
		return Row{}, io.EOF
	}
	s.pos++
	return Row{Position: s.pos, Cells: s.rows[s.pos-1]}, nil
}

// CSVSource streams rows from CSV input. The reader is wrapped with BOM
// skipping, UTF-8 sanitization, and byte counting, so malformed uploads do
// not require buffering the whole file. Fully empty records are skipped but
// still consume a source position, keeping positions stable against the
// original file.
type CSVSource struct {
	reader   *csv.Reader
	counting *CountingReader
	pos      int
}

// NewCSVSource creates a streaming CSV source. size is the total input size
// in bytes for progress reporting, 0 if unknown.
func NewCSVSource(r io.Reader, size int64) *CSVSource {
	counting := WrapForStreaming(r, size)
	cr := csv.NewReader(counting)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return &CSVSource{reader: cr, counting: counting}
}

// Next implements RowSource.
func (s *CSVSource) Next(ctx context.Context) (Row, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Row{}, err
		}

		record, err := s.reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Row{}, io.EOF
			}
			return Row{}, &SourceReadError{Position: s.pos + 1, Err: err}
		}
		s.pos++

		row := Row{Position: s.pos, Cells: record}
		if row.IsEmpty() {
			continue
		}
		return row, nil
	}
}

// BytesRead returns how many input bytes have been consumed.
func (s *CSVSource) BytesRead() int64 { return s.counting.BytesRead }

// Progress returns byte-based progress (0-100), or 0 when the total size is
// unknown.
func (s *CSVSource) Progress() int { return s.counting.Progress() }
