/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package export writes rendered plots to disk as PNG images or as a
// one-page PDF report with the scan's metadata.
package export

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"herixworkbench/internal/workbench"
)

// ErrUnsupportedFormat is returned for output paths with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Report describes the plot being exported.
type Report struct {
	SourceFile string
	ScanKey    string
	Command    string
	Date       string
	Mode       string
	Series     []string
	Created    time.Time
}

// NewReport describes a plot of scan from source drawn in mode with series.
func NewReport(source string, scan workbench.ScanRecord, mode workbench.PlotMode, series []string) Report {
	return Report{
		SourceFile: source,
		ScanKey:    scan.Key,
		Command:    scan.Command,
		Date:       scan.Date,
		Mode:       mode.String(),
		Series:     append([]string(nil), series...),
		Created:    time.Now(),
	}
}

// ToFile writes img to path, choosing the format from its extension (.png or .pdf).
func ToFile(img image.Image, rep Report, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return WritePNG(img, path)
	case ".pdf":
		return WritePDF(img, rep, path, PDFOptions{})
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// WritePNG encodes img to path, creating parent directories.
func WritePNG(img image.Image, path string) error {
	if img == nil {
		return errors.New("no image to export")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}
