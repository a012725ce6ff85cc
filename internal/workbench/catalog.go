/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package workbench holds the scan browsing workflow: the catalog of scans
// loaded from one data file, the pure type/filter functions derived from it,
// and the Controller that reacts to user events and drives the view and the
// plot renderer.
package workbench

import (
	"fmt"
	"strings"
)

// ScanRecord is one scan of a loaded data file. Records are immutable once
// placed in a Catalog; accessors hand out copies.
type ScanRecord struct {
	Key     string
	Number  int
	Command string
	Date    string

	labels []string
	points [][]float64
}

// NewScanRecord builds a record. labels[0] names the scanned axis, the rest
// are detector channels. Each row of points holds one value per label.
func NewScanRecord(key string, number int, command, date string, labels []string, points [][]float64) ScanRecord {
	rows := make([][]float64, len(points))
	for i, p := range points {
		rows[i] = append([]float64(nil), p...)
	}
	return ScanRecord{
		Key:     key,
		Number:  number,
		Command: command,
		Date:    date,
		labels:  append([]string(nil), labels...),
		points:  rows,
	}
}

// Type is the first whitespace-delimited token of the scan command, or "".
func (r ScanRecord) Type() string { return ScanType(r.Command) }

// Labels returns all column names.
func (r ScanRecord) Labels() []string { return append([]string(nil), r.labels...) }

// Axis returns the name of the scanned (x) column.
func (r ScanRecord) Axis() string {
	if len(r.labels) == 0 {
		return ""
	}
	return r.labels[0]
}

// Detectors returns the detector channel names, i.e. every column after the axis.
func (r ScanRecord) Detectors() []string {
	if len(r.labels) < 2 {
		return []string{}
	}
	return append([]string(nil), r.labels[1:]...)
}

// Rows returns a copy of the data points, one row per point.
func (r ScanRecord) Rows() [][]float64 {
	out := make([][]float64, len(r.points))
	for i, p := range r.points {
		out[i] = append([]float64(nil), p...)
	}
	return out
}

// Len is the number of data points.
func (r ScanRecord) Len() int { return len(r.points) }

// Column returns the values recorded for the named column.
func (r ScanRecord) Column(name string) ([]float64, bool) {
	idx := -1
	for i, l := range r.labels {
		if l == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	out := make([]float64, 0, len(r.points))
	for _, row := range r.points {
		if idx < len(row) {
			out = append(out, row[idx])
		}
	}
	return out, true
}

// ScanType extracts the type token of a scan command.
func ScanType(command string) string {
	f := strings.Fields(command)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

// Catalog is the ordered set of scans of one opened file.
type Catalog struct {
	path    string
	records []ScanRecord
	index   map[string]int
}

// NewCatalog builds a catalog preserving the order of records. Keys must be unique.
func NewCatalog(path string, records []ScanRecord) (*Catalog, error) {
	c := &Catalog{path: path, records: make([]ScanRecord, 0, len(records)), index: make(map[string]int, len(records))}
	for _, r := range records {
		if _, dup := c.index[r.Key]; dup {
			return nil, fmt.Errorf("duplicate scan key %q", r.Key)
		}
		c.index[r.Key] = len(c.records)
		c.records = append(c.records, r)
	}
	return c, nil
}

// Path is the file the catalog was loaded from.
func (c *Catalog) Path() string {
	if c == nil {
		return ""
	}
	return c.path
}

// Len returns the number of scans; a nil catalog is empty.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.records)
}

// Records returns all scans in file order.
func (c *Catalog) Records() []ScanRecord {
	if c == nil {
		return []ScanRecord{}
	}
	return append([]ScanRecord(nil), c.records...)
}

// Get looks up a scan by key.
func (c *Catalog) Get(key string) (ScanRecord, bool) {
	if c == nil {
		return ScanRecord{}, false
	}
	i, ok := c.index[key]
	if !ok {
		return ScanRecord{}, false
	}
	return c.records[i], true
}
