/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"herixworkbench/internal/version"
)

// PDFOptions controls the report layout. Units are points.
//
// The page is A4 landscape unless PageWidth/PageHeight are set. The plot is
// scaled to fit the page width minus margins, below a small metadata block
// set in built-in Helvetica so no fonts need embedding.
type PDFOptions struct {
	PageWidth  float64
	PageHeight float64
	Margin     float64
}

func (o PDFOptions) withDefaults() PDFOptions {
	if o.PageWidth <= 0 || o.PageHeight <= 0 {
		o.PageWidth, o.PageHeight = 842, 595
	}
	if o.Margin <= 0 {
		o.Margin = 36
	}
	return o
}

// WritePDF writes a one-page report with rep's metadata and img.
func WritePDF(img image.Image, rep Report, outPath string, opt PDFOptions) error {
	if img == nil {
		return errors.New("no image to export")
	}
	opt = opt.withDefaults()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode plot: %w", err)
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: opt.PageWidth, Ht: opt.PageHeight},
	})
	pdf.SetTitle(fmt.Sprintf("Scan %s", rep.ScanKey), false)
	pdf.SetAuthor("Herix Workbench "+version.Version, false)
	pdf.SetCreator("herixworkbench", false)
	pdf.AddPage()

	x, y := opt.Margin, opt.Margin
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Text(x, y, fmt.Sprintf("#S %s  %s", rep.ScanKey, rep.Command))
	y += 18

	pdf.SetFont("Helvetica", "", 10)
	created := rep.Created
	if created.IsZero() {
		created = time.Now()
	}
	lines := []string{
		"File: " + rep.SourceFile,
		"Scan date: " + rep.Date,
		fmt.Sprintf("Plot: %s  (%s)", rep.Mode, strings.Join(rep.Series, ", ")),
		"Exported: " + created.Format(time.RFC3339),
	}
	for _, ln := range lines {
		pdf.Text(x, y, ln)
		y += 13
	}
	y += 6

	const imgName = "plot"
	pdf.RegisterImageOptionsReader(imgName, gofpdf.ImageOptions{ImageType: "PNG"}, &buf)
	b := img.Bounds()
	w := opt.PageWidth - 2*opt.Margin
	h := w * float64(b.Dy()) / float64(b.Dx())
	if maxH := opt.PageHeight - y - opt.Margin; h > maxH && maxH > 0 {
		h = maxH
		w = h * float64(b.Dx()) / float64(b.Dy())
	}
	pdf.ImageOptions(imgName, x, y, w, h, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
