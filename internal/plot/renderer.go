/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package plot renders scan data as line charts with go-chart and serves the
// results to the workbench as images. It implements workbench.Plotter.
package plot

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"math"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	chart "github.com/wcharczuk/go-chart/v2"

	applog "herixworkbench/internal/log"
	"herixworkbench/internal/workbench"
)

// Defaults for Options.
const (
	DefaultWidth     = 900
	DefaultHeight    = 600
	DefaultCacheSize = 64
)

// Hints drawn on placeholder images.
const (
	HintNoScan      = "Select a scan to plot"
	HintNoDetectors = "No detectors selected"
	HintNoPoints    = "No data points"
	HintRenderError = "Plot unavailable"
)

// Options configures a Renderer.
type Options struct {
	Width     int
	Height    int
	CacheSize int
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.CacheSize <= 0 {
		o.CacheSize = DefaultCacheSize
	}
	return o
}

// Request describes one chart.
type Request struct {
	Scan      workbench.ScanRecord
	Mode      workbench.PlotMode
	Detectors []string
}

// Series returns the detector columns a request draws. Single mode shows the
// last column, which is where SPEC writes the main detector counts.
func (r Request) Series() []string {
	if r.Mode == workbench.PlotMulti {
		return append([]string{}, r.Detectors...)
	}
	dets := r.Scan.Detectors()
	if len(dets) == 0 {
		return []string{}
	}
	return dets[len(dets)-1:]
}

func (r Request) cacheKey(w, h int) string {
	return fmt.Sprintf("%s|%s|%s|%dx%d", r.Scan.Key, r.Mode, strings.Join(r.Series(), "\x1f"), w, h)
}

// ErrNoScan is returned when a render is requested without a focused scan.
var ErrNoScan = errors.New("no scan selected")

// ErrNoPoints is returned for a scan that recorded no data rows.
var ErrNoPoints = errors.New("scan has no data points")

// Renderer draws the focused scan on request and hands each image to a sink.
type Renderer struct {
	opts  Options
	log   *slog.Logger
	cache *lru.Cache[string, image.Image]
	sink  func(image.Image)

	scan workbench.ScanRecord
	last image.Image
	req  Request
}

// New creates a renderer. sink receives every rendered image and may be nil.
func New(opts Options, sink func(image.Image)) (*Renderer, error) {
	opts = opts.withDefaults()
	c, err := lru.New[string, image.Image](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("plot cache: %w", err)
	}
	return &Renderer{opts: opts, log: applog.WithComponent("plot"), cache: c, sink: sink}, nil
}

// Resize changes the output size for later renders.
func (r *Renderer) Resize(w, h int) {
	if w > 0 {
		r.opts.Width = w
	}
	if h > 0 {
		r.opts.Height = h
	}
}

// Focus selects the scan to draw. A zero record clears the canvas and drops
// cached images, since keys of a new file may collide with the old ones.
func (r *Renderer) Focus(scan workbench.ScanRecord) {
	r.scan = scan
	if scan.Key == "" {
		r.cache.Purge()
		r.req = Request{}
		r.emit(Placeholder(r.opts.Width, r.opts.Height, HintNoScan))
	}
}

// SinglePlot draws one series of the focused scan.
func (r *Renderer) SinglePlot() {
	r.show(Request{Scan: r.scan, Mode: workbench.PlotSingle})
}

// MultiPlot draws one series per detector. An empty list clears the canvas.
func (r *Renderer) MultiPlot(detectors []string) {
	r.show(Request{Scan: r.scan, Mode: workbench.PlotMulti, Detectors: detectors})
}

// Last returns the most recent image and the request that produced it.
func (r *Renderer) Last() (image.Image, Request) { return r.last, r.req }

func (r *Renderer) show(req Request) {
	img, err := r.Render(req)
	if err != nil {
		r.log.Warn("render failed", slog.String("scan", req.Scan.Key), slog.Any("err", err))
		img = Placeholder(r.opts.Width, r.opts.Height, hintFor(err))
	}
	r.req = req
	r.emit(img)
}

func (r *Renderer) emit(img image.Image) {
	r.last = img
	if r.sink != nil {
		r.sink(img)
	}
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, ErrNoScan):
		return HintNoScan
	case errors.Is(err, errNoSeries):
		return HintNoDetectors
	case errors.Is(err, ErrNoPoints):
		return HintNoPoints
	default:
		return HintRenderError
	}
}

var errNoSeries = errors.New("no series to draw")

// Render draws req at the renderer's size, using the cache when possible.
func (r *Renderer) Render(req Request) (image.Image, error) {
	if req.Scan.Key == "" {
		return nil, ErrNoScan
	}
	key := req.cacheKey(r.opts.Width, r.opts.Height)
	if img, ok := r.cache.Get(key); ok {
		return img, nil
	}
	img, err := Draw(req, r.opts.Width, r.opts.Height)
	if err != nil {
		return nil, err
	}
	r.cache.Add(key, img)
	r.log.Debug("rendered", slog.String("scan", req.Scan.Key), slog.String("mode", req.Mode.String()))
	return img, nil
}

// Draw renders req without caching.
func Draw(req Request, w, h int) (image.Image, error) {
	series, err := buildSeries(req)
	if err != nil {
		return nil, err
	}
	if req.Scan.Len() == 0 {
		return nil, fmt.Errorf("scan %s: %w", req.Scan.Key, ErrNoPoints)
	}
	xr, yr := paddedRanges(series)
	ch := chart.Chart{
		Title:      fmt.Sprintf("#S %s  %s", req.Scan.Key, req.Scan.Command),
		Width:      w,
		Height:     h,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Name: req.Scan.Axis(), Range: xr},
		YAxis:      chart.YAxis{Name: yAxisName(req), Range: yr},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("decode chart: %w", err)
	}
	return img, nil
}

// paddedRanges returns explicit axis ranges for axes whose values collapse
// to a single number, as in a one-point scan. Nil leaves the axis to go-chart.
func paddedRanges(series []chart.Series) (xr, yr chart.Range) {
	xmin, xmax := math.Inf(1), math.Inf(-1)
	ymin, ymax := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		cs, ok := s.(chart.ContinuousSeries)
		if !ok {
			continue
		}
		for i := 0; i < len(cs.XValues) && i < len(cs.YValues); i++ {
			xmin, xmax = math.Min(xmin, cs.XValues[i]), math.Max(xmax, cs.XValues[i])
			ymin, ymax = math.Min(ymin, cs.YValues[i]), math.Max(ymax, cs.YValues[i])
		}
	}
	if xmin == xmax {
		xr = &chart.ContinuousRange{Min: xmin - 0.5, Max: xmax + 0.5}
	}
	if ymin == ymax {
		yr = &chart.ContinuousRange{Min: ymin - 0.5, Max: ymax + 0.5}
	}
	return xr, yr
}

func yAxisName(req Request) string {
	s := req.Series()
	if len(s) == 1 {
		return s[0]
	}
	return "counts"
}

func buildSeries(req Request) ([]chart.Series, error) {
	names := req.Series()
	if len(names) == 0 {
		return nil, errNoSeries
	}
	xs, ok := req.Scan.Column(req.Scan.Axis())
	if !ok {
		return nil, fmt.Errorf("scan %s has no columns", req.Scan.Key)
	}
	out := make([]chart.Series, 0, len(names))
	for i, name := range names {
		ys, ok := req.Scan.Column(name)
		if !ok {
			return nil, fmt.Errorf("scan %s has no detector %q", req.Scan.Key, name)
		}
		col := chart.GetDefaultColor(i)
		out = append(out, chart.ContinuousSeries{
			Name:    name,
			XValues: xs,
			YValues: ys,
			Style:   chart.Style{StrokeColor: col, StrokeWidth: 1.5, DotColor: col, DotWidth: 2},
		})
	}
	return out, nil
}
