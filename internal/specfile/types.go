/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package specfile reads SPEC instrument data files (the *.spec text format
// written by the SPEC control program) into memory and converts them to a
// workbench catalog.
package specfile

import (
	"errors"
	"fmt"
)

// Extension is the file extension offered by the open dialog.
const Extension = ".spec"

// ErrNotSpec is returned for input without any SPEC control line.
var ErrNotSpec = errors.New("not a SPEC data file")

// ParseError reports a malformed line.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string { return fmt.Sprintf("line %d: %s", e.Line, e.Msg) }

// Header is a file header block (#F/#E/#D/#C/#O lines before the first scan
// or between scans).
type Header struct {
	File     string
	Epoch    int64
	Date     string
	Comments []string
	Motors   []string
}

// Scan is one #S block.
type Scan struct {
	Key       string
	Number    int
	Command   string
	Date      string
	Comments  []string
	Columns   int
	Labels    []string
	Points    [][]float64
	Positions map[string]float64
	Line      int
}

// File is a parsed data file.
type File struct {
	Path    string
	Headers []Header
	Scans   []Scan
}

// Scan returns the scan with the given key.
func (f *File) Scan(key string) (Scan, bool) {
	for _, s := range f.Scans {
		if s.Key == key {
			return s, true
		}
	}
	return Scan{}, false
}
