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

// EventKind identifies a user event.
type EventKind int

const (
	KindFileOpened EventKind = iota
	KindTypeFilterChanged
	KindScanSelectionChanged
	KindDetectorSelectionChanged
	KindPlotModeChanged
)

func (k EventKind) String() string {
	switch k {
	case KindFileOpened:
		return "file_opened"
	case KindTypeFilterChanged:
		return "type_filter_changed"
	case KindScanSelectionChanged:
		return "scan_selection_changed"
	case KindDetectorSelectionChanged:
		return "detector_selection_changed"
	case KindPlotModeChanged:
		return "plot_mode_changed"
	default:
		return "unknown"
	}
}

// Event is a user-triggered notification published by the view.
type Event interface {
	Kind() EventKind
}

// FileOpened carries the path picked in the file chooser; "" means cancelled.
type FileOpened struct{ Path string }

// TypeFilterChanged carries the type picked in the type selector.
type TypeFilterChanged struct{ Type string }

// ScanSelectionChanged carries the keys currently selected in the scan browser.
type ScanSelectionChanged struct{ Keys []string }

// DetectorSelectionChanged carries the full detector selection.
type DetectorSelectionChanged struct{ Detectors []string }

// PlotModeChanged carries the mode picked in the plot type selector.
type PlotModeChanged struct{ Mode PlotMode }

func (FileOpened) Kind() EventKind { return KindFileOpened }
func (TypeFilterChanged) Kind() EventKind { return KindTypeFilterChanged }
func (ScanSelectionChanged) Kind() EventKind { return KindScanSelectionChanged }
func (DetectorSelectionChanged) Kind() EventKind { return KindDetectorSelectionChanged }
func (PlotModeChanged) Kind() EventKind { return KindPlotModeChanged }

// Handler consumes one event. Errors are reported back to the publisher.
type Handler func(Event) error

// Bus delivers events synchronously to the handlers registered for their
// kind, in registration order. The zero value is ready to use. It is not
// safe for concurrent use; all calls belong on the UI goroutine.
type Bus struct {
	handlers map[EventKind][]Handler
}

// NewBus returns an empty bus.
func NewBus() *Bus { return &Bus{handlers: map[EventKind][]Handler{}} }

// Register adds h for events of kind k.
func (b *Bus) Register(k EventKind, h Handler) {
	if b.handlers == nil {
		b.handlers = map[EventKind][]Handler{}
	}
	b.handlers[k] = append(b.handlers[k], h)
}

// Publish runs every handler for ev and returns the first error. All handlers
// run even if an earlier one fails.
func (b *Bus) Publish(ev Event) error {
	var first error
	for _, h := range b.handlers[ev.Kind()] {
		if err := h(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
