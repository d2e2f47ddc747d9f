package etl

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BartekS5/donorsync/pkg/models"
)

// CSVRowSource reads delimited files one after another, yielding one raw
// record per data row. The first row of each file is its header.
type CSVRowSource struct {
	files []string
	comma rune

	idx    int
	file   *os.File
	reader *csv.Reader
	header []string
}

func NewCSVRowSource(comma rune, files ...string) *CSVRowSource {
	if comma == 0 {
		comma = ','
	}
	return &CSVRowSource{files: files, comma: comma}
}

// Next returns the next row, or io.EOF after the last file is exhausted.
func (s *CSVRowSource) Next() (models.RawRecord, error) {
	for {
		if s.reader == nil {
			if s.idx >= len(s.files) {
				return models.RawRecord{}, io.EOF
			}
			if err := s.open(s.files[s.idx]); err != nil {
				return models.RawRecord{}, err
			}
		}

		values, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			s.closeCurrent()
			s.idx++
			continue
		}
		if err != nil {
			return models.RawRecord{}, fmt.Errorf("%s: %w", s.current(), err)
		}
		if isBlank(values) {
			continue
		}
		line, _ := s.reader.FieldPos(0)
		return models.RawRecord{
			Header: s.header,
			Values: values,
			Source: s.current(),
			Line:   line,
		}, nil
	}
}

// Reset rewinds to the first row of the first file.
func (s *CSVRowSource) Reset() error {
	s.closeCurrent()
	s.idx = 0
	return nil
}

func (s *CSVRowSource) Close() error {
	return s.closeCurrent()
}

func (s *CSVRowSource) current() string {
	if s.idx < len(s.files) {
		return s.files[s.idx]
	}
	return ""
}

func (s *CSVRowSource) open(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	r := csv.NewReader(f)
	r.Comma = s.comma
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		f.Close()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s is empty", path)
		}
		return fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	s.file, s.reader, s.header = f, r, header
	return nil
}

func (s *CSVRowSource) closeCurrent() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file, s.reader, s.header = nil, nil, nil
	return err
}

func isBlank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// CSVSink writes each bucket to rejected_<owner>.csv under Dir, one raw
// record per line in original field order.
type CSVSink struct {
	Dir    string
	Comma  rune
	Header bool
}

func (s *CSVSink) WriteBucket(_ context.Context, owner string, records []models.RawRecord) (err error) {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create rejection directory %s: %w", s.Dir, err)
	}
	path := filepath.Join(s.Dir, RejectionFileName(owner))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(f)
	if s.Comma != 0 {
		w.Comma = s.Comma
	}
	if s.Header && len(records) > 0 {
		if err := w.Write(records[0].Header); err != nil {
			return err
		}
	}
	for _, r := range records {
		if err := w.Write(r.Values); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	w.Flush()
	return w.Error()
}

// RejectionFileName is the artifact name for one owner's bucket.
func RejectionFileName(owner string) string {
	return fmt.Sprintf("rejected_%s.csv", filepath.Base(owner))
}
