// Package writer appends rows to a CSV file under an advisory file lock,
// validating the header line so concurrent writers from different
// processes can't interleave or diverge on column order.
package writer

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
)

// WriterConfig holds configuration for the writer.
type WriterConfig struct {
	CsvPath   string
	Separator string
}

// CsvWriter appends rows to one CSV file.
type CsvWriter struct {
	config WriterConfig
}

// NewCsvWriter creates a writer; an empty separator defaults to a comma.
func NewCsvWriter(config WriterConfig) *CsvWriter {
	if config.Separator == "" {
		config.Separator = ","
	}
	return &CsvWriter{config: config}
}

// Write appends rows to the CSV file, holding an exclusive advisory lock
// across the whole validate-then-append sequence. A new (empty) file is
// created with headers; an existing file's first line must match headers
// exactly when headers are provided.
func (w *CsvWriter) Write(headers []string, rows [][]string) error {
	dir := filepath.Dir(w.config.CsvPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	// O_APPEND pins every write to the end of the file regardless of any
	// seeking done for header validation below.
	file, err := os.OpenFile(w.config.CsvPath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	if err := lockFile(file); err != nil {
		return fmt.Errorf("locking file: %w", err)
	}
	defer unlockFile(file)

	stat, err := file.Stat()
	if err != nil {
		return err
	}

	csvW := csv.NewWriter(file)
	csvW.Comma = rune(w.config.Separator[0])

	if stat.Size() == 0 {
		if len(headers) == 0 {
			return fmt.Errorf("cannot create new file without headers")
		}
		if err := csvW.Write(headers); err != nil {
			return err
		}
	} else if len(headers) > 0 {
		// Seek only moves the read position; O_APPEND keeps writes at EOF.
		if _, err := file.Seek(0, 0); err != nil {
			return fmt.Errorf("seeking for header validation: %w", err)
		}

		reader := csv.NewReader(file)
		reader.Comma = rune(w.config.Separator[0])
		existingHeaders, err := reader.Read()
		if err != nil {
			return fmt.Errorf("reading existing headers: %w", err)
		}

		if !reflect.DeepEqual(existingHeaders, headers) {
			return fmt.Errorf("header mismatch. File: %v, New: %v", existingHeaders, headers)
		}
	}

	if err := csvW.WriteAll(rows); err != nil {
		return err
	}

	csvW.Flush()
	return csvW.Error()
}
