// Copyright 2021 The ledger-signer Authors
// This file is part of the ledger-signer library.
//
// The ledger-signer library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ledger-signer library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the ledger-signer library. If not, see <http://www.gnu.org/licenses/>.

// Package metrics records signing activity in CSV form for later audit.
package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// A CSVRecorder writes rows of CSV data to a writer. Every row is flushed
// as soon as it is written. Writing is thread safe.
type CSVRecorder struct {
	writer    *csv.Writer
	backingWC io.WriteCloser
	writeMu   sync.Mutex
}

// NewCSVRecorder creates a CSV recorder that writes to the supplied writer.
// The writer is retained and can be closed by calling CSVRecorder.Close().
// The header is written immediately if fields are given.
func NewCSVRecorder(wc io.WriteCloser, fields ...string) (*CSVRecorder, error) {
	c := &CSVRecorder{
		writer:    csv.NewWriter(wc),
		backingWC: wc,
	}
	if len(fields) > 0 {
		if err := c.writeRow(fields); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Write writes out a csv row, converting the values to strings with "%v".
// It is a no-op for a nil receiver.
func (c *CSVRecorder) Write(values ...interface{}) error {
	if c == nil {
		return nil
	}
	strs := make([]string, 0, len(values))
	for _, v := range values {
		strs = append(strs, fmt.Sprintf("%v", v))
	}
	return c.writeRow(strs)
}

func (c *CSVRecorder) writeRow(row []string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.writer.Write(row); err != nil {
		return err
	}
	c.writer.Flush()
	return c.writer.Error()
}

// Close closes the writer. This is a no-op for a nil receiver.
func (c *CSVRecorder) Close() error {
	if c == nil {
		return nil
	}
	c.writer.Flush()
	return c.backingWC.Close()
}

// AuditFields is the header of a signing audit log.
var AuditFields = []string{"time", "operation", "kind", "path", "digest", "result"}

// OpenAuditLog opens the audit log at path for appending. The header is only
// written to a new or empty file.
func OpenAuditLog(path string) (*CSVRecorder, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	var fields []string
	if stat.Size() == 0 {
		fields = AuditFields
	}
	c, err := NewCSVRecorder(f, fields...)
	if err != nil {
		f.Close()
		return nil, err
	}
	return c, nil
}

// RecordSigning appends one signing attempt. A nil err is recorded as
// "signed".
func (c *CSVRecorder) RecordSigning(operation string, kind, path, digest fmt.Stringer, err error) error {
	result := "signed"
	if err != nil {
		result = err.Error()
	}
	return c.Write(time.Now().UTC().Format(time.RFC3339), operation, kind, path, digest, result)
}
