/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"herixworkbench/internal/telemetry"
	"herixworkbench/internal/workbench"
)

// ErrUnavailable is returned by Run when the binary carries no desktop UI.
var ErrUnavailable = errors.New("desktop UI unavailable")

// scanLabel formats one row of the scan browser.
func scanLabel(r workbench.ScanRecord) string {
	return fmt.Sprintf("#%s  %s  (%d pts)", r.Key, r.Command, r.Len())
}

// toggleSelection adds key to sel, or removes it if present. Order of the
// remaining keys is kept and the new key goes last.
func toggleSelection(sel []string, key string) []string {
	out := make([]string, 0, len(sel)+1)
	found := false
	for _, k := range sel {
		if k == key {
			found = true
			continue
		}
		out = append(out, k)
	}
	if !found {
		out = append(out, key)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// meteredPlotter forwards plot requests and reports each dispatch to telemetry.
type meteredPlotter struct {
	next workbench.Plotter
	tel  *telemetry.Client
}

func (m meteredPlotter) SinglePlot() {
	m.next.SinglePlot()
	m.tel.PlotRendered(workbench.PlotSingle.String(), 1)
}

func (m meteredPlotter) MultiPlot(detectors []string) {
	m.next.MultiPlot(detectors)
	m.tel.PlotRendered(workbench.PlotMulti.String(), len(detectors))
}

func (m meteredPlotter) Focus(scan workbench.ScanRecord) {
	if f, ok := m.next.(workbench.ScanFocuser); ok {
		f.Focus(scan)
	}
}

// Recent file persistence, backed by the app preferences.
const recentPrefsKey = "recent.files"
const recentMax = 10

type prefStore interface {
	StringWithFallback(key, fallback string) string
	SetString(key, value string)
}

func loadRecentFiles(p prefStore) []string {
	raw := p.StringWithFallback(recentPrefsKey, "")
	var items []string
	if strings.TrimSpace(raw) != "" {
		var tmp []string
		if err := json.Unmarshal([]byte(raw), &tmp); err == nil {
			items = tmp
		}
	}
	// drop files that have gone away
	out := make([]string, 0, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := os.Stat(s); err == nil {
			out = append(out, s)
		}
	}
	return out
}

func saveRecentFiles(p prefStore, items []string) {
	if len(items) > recentMax {
		items = items[:recentMax]
	}
	b, _ := json.Marshal(items)
	p.SetString(recentPrefsKey, string(b))
}

func addRecentFile(p prefStore, path string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	abs, _ := filepath.Abs(path)
	rec := loadRecentFiles(p)
	out := make([]string, 0, 1+len(rec))
	out = append(out, abs)
	for _, s := range rec {
		// de-dup (case-insensitive on Windows)
		if strings.EqualFold(s, abs) {
			continue
		}
		out = append(out, s)
	}
	saveRecentFiles(p, out)
}
