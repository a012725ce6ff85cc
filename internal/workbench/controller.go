/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package workbench

import (
	"fmt"
	"log/slog"

	applog "herixworkbench/internal/log"
)

// Parser turns a file path into a catalog.
type Parser interface {
	Parse(path string) (*Catalog, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(path string) (*Catalog, error)

func (f ParserFunc) Parse(path string) (*Catalog, error) { return f(path) }

// View receives what the scan browser and type selector should display.
type View interface {
	LoadScans(scans []ScanRecord)
	LoadTypes(types []string)
	ShowWarning(title, message string)
}

// DetectorView is implemented by views that show a detector selector.
// options are the channels of the focused scan, selected the current choice.
type DetectorView interface {
	LoadDetectors(options, selected []string)
}

// Plotter renders plots on request. Which scan a Single plot shows is the
// plotter's business.
type Plotter interface {
	SinglePlot()
	MultiPlot(detectors []string)
}

// ScanFocuser is implemented by plotters that track the scan to draw.
// A zero ScanRecord clears the focus.
type ScanFocuser interface {
	Focus(scan ScanRecord)
}

// State is the mutable application state owned by a Controller.
type State struct {
	Catalog    *Catalog
	Types      []string
	TypeFilter string
	Displayed  []ScanRecord
	Selected   []string
	Focused    string
	Detectors  []string
	Mode       PlotMode
}

// Controller applies user events to State and drives the view and plotter.
// It must only be used from one goroutine.
type Controller struct {
	parser  Parser
	view    View
	plotter Plotter
	log     *slog.Logger
	state   State
}

// NewController wires a controller. A nil view or plotter is replaced by a no-op.
func NewController(p Parser, v View, pl Plotter) *Controller {
	if v == nil {
		v = nopView{}
	}
	if pl == nil {
		pl = nopPlotter{}
	}
	return &Controller{
		parser:  p,
		view:    v,
		plotter: pl,
		log:     applog.WithComponent("workbench"),
		state: State{
			Types:      []string{},
			TypeFilter: AllTypes,
			Displayed:  []ScanRecord{},
			Selected:   []string{},
			Detectors:  []string{},
			Mode:       PlotSingle,
		},
	}
}

// Attach registers the controller's handlers on b.
func (c *Controller) Attach(b *Bus) {
	b.Register(KindFileOpened, func(ev Event) error {
		return c.OpenFile(ev.(FileOpened).Path)
	})
	b.Register(KindTypeFilterChanged, func(ev Event) error {
		c.SetTypeFilter(ev.(TypeFilterChanged).Type)
		return nil
	})
	b.Register(KindScanSelectionChanged, func(ev Event) error {
		c.SelectScans(ev.(ScanSelectionChanged).Keys)
		return nil
	})
	b.Register(KindDetectorSelectionChanged, func(ev Event) error {
		c.SetDetectors(ev.(DetectorSelectionChanged).Detectors)
		return nil
	})
	b.Register(KindPlotModeChanged, func(ev Event) error {
		c.SetPlotMode(ev.(PlotModeChanged).Mode)
		return nil
	})
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	s := c.state
	s.Types = append([]string(nil), s.Types...)
	s.Displayed = append([]ScanRecord(nil), s.Displayed...)
	s.Selected = append([]string(nil), s.Selected...)
	s.Detectors = append([]string(nil), s.Detectors...)
	return s
}

// OpenFile loads path and replaces the catalog. An empty path is a cancelled
// chooser and does nothing. On failure the previous catalog stays active, a
// single warning is shown and the wrapped error is returned.
func (c *Controller) OpenFile(path string) error {
	if path == "" {
		c.log.Debug("open cancelled")
		return nil
	}
	l := applog.WithFile(applog.WithOperation(c.log, "open"), path)
	if c.parser == nil {
		err := fmt.Errorf("load %s: no parser configured", path)
		c.view.ShowWarning("Loading error", loadMessage(err))
		return err
	}
	cat, err := c.parser.Parse(path)
	if err != nil {
		l.Warn("load failed", slog.Any("err", err))
		c.view.ShowWarning("Loading error", loadMessage(err))
		return fmt.Errorf("load %s: %w", path, err)
	}
	if cat == nil {
		cat, _ = NewCatalog(path, nil)
	}

	c.state.Catalog = cat
	c.state.Types = DeriveTypes(cat)
	c.state.TypeFilter = AllTypes
	c.state.Displayed = Filter(cat, AllTypes)
	c.state.Selected = []string{}
	c.state.Focused = ""
	c.state.Detectors = []string{}
	l.Info("catalog loaded", slog.Int("scans", cat.Len()), slog.Int("types", len(c.state.Types)))

	c.view.LoadScans(c.State().Displayed)
	c.view.LoadTypes(c.State().Types)
	if dv, ok := c.view.(DetectorView); ok {
		dv.LoadDetectors([]string{}, []string{})
	}
	if f, ok := c.plotter.(ScanFocuser); ok {
		f.Focus(ScanRecord{})
	}
	return nil
}

func loadMessage(err error) string {
	return "There was an error loading the scan file.\n\n" + err.Error()
}

// SetTypeFilter re-filters the displayed scans. Selected scans that are no
// longer displayed are deselected.
func (c *Controller) SetTypeFilter(t string) {
	c.state.TypeFilter = t
	c.state.Displayed = Filter(c.state.Catalog, t)
	c.log.Debug("type filter changed", slog.String("type", t), slog.Int("displayed", len(c.state.Displayed)))

	kept := c.keepDisplayed(c.state.Selected)
	c.view.LoadScans(c.State().Displayed)
	if len(kept) != len(c.state.Selected) {
		c.SelectScans(kept)
	}
}

// SelectScans replaces the scan selection. Keys outside the displayed set are ignored.
func (c *Controller) SelectScans(keys []string) {
	kept := c.keepDisplayed(keys)
	if len(kept) != len(keys) {
		c.log.Debug("ignored scans outside filter", slog.Int("requested", len(keys)), slog.Int("kept", len(kept)))
	}
	c.state.Selected = kept

	focus := ""
	if len(kept) > 0 {
		focus = kept[len(kept)-1]
	}
	if focus == c.state.Focused {
		return
	}
	c.state.Focused = focus
	rec, _ := c.state.Catalog.Get(focus)

	// keep only detectors the focused scan actually has
	avail := map[string]struct{}{}
	for _, d := range rec.Detectors() {
		avail[d] = struct{}{}
	}
	pruned := []string{}
	for _, d := range c.state.Detectors {
		if _, ok := avail[d]; ok {
			pruned = append(pruned, d)
		}
	}
	c.state.Detectors = pruned

	if dv, ok := c.view.(DetectorView); ok {
		dv.LoadDetectors(rec.Detectors(), c.State().Detectors)
	}
	if f, ok := c.plotter.(ScanFocuser); ok {
		f.Focus(rec)
		if focus != "" {
			c.dispatch()
		}
	}
}

func (c *Controller) keepDisplayed(keys []string) []string {
	shown := make(map[string]struct{}, len(c.state.Displayed))
	for _, r := range c.state.Displayed {
		shown[r.Key] = struct{}{}
	}
	out := []string{}
	seen := map[string]struct{}{}
	for _, k := range keys {
		if _, ok := shown[k]; !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// SetDetectors replaces the detector selection. In Multi mode the plot is
// redrawn with the new selection.
func (c *Controller) SetDetectors(detectors []string) {
	c.state.Detectors = append([]string{}, detectors...)
	c.log.Debug("detectors changed", slog.Int("count", len(detectors)))
	if c.state.Mode == PlotMulti {
		c.dispatch()
	}
}

// SetPlotMode switches the plot mode and requests a render right away.
func (c *Controller) SetPlotMode(m PlotMode) {
	c.state.Mode = m
	c.log.Debug("plot mode changed", slog.String("mode", m.String()))
	c.dispatch()
}

// dispatch issues the render request for the current mode. Multi with no
// detectors is still forwarded; the plotter clears its canvas.
func (c *Controller) dispatch() {
	switch c.state.Mode {
	case PlotMulti:
		c.plotter.MultiPlot(append([]string{}, c.state.Detectors...))
	default:
		c.plotter.SinglePlot()
	}
}

type nopView struct{}

func (nopView) LoadScans([]ScanRecord) {}
func (nopView) LoadTypes([]string) {}
func (nopView) ShowWarning(_, _ string) {}

type nopPlotter struct{}

func (nopPlotter) SinglePlot() {}
func (nopPlotter) MultiPlot([]string) {}
